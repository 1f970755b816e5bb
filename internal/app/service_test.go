package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"testing"
	"time"

	"vinylclub/api/internal/catalog"
	"vinylclub/api/internal/config"
	"vinylclub/api/internal/metrics"
	"vinylclub/api/internal/musicbrainz"
	"vinylclub/api/internal/search"
	"vinylclub/api/internal/session"
	"vinylclub/api/internal/store"
	"vinylclub/api/internal/votebus"
)

type fakeStore struct {
	createVoteFn             func(context.Context, store.Vote) (store.Vote, error)
	deleteVoteFn             func(context.Context, string, string) error
	getVoteFn                func(context.Context, string, string) (*store.Vote, error)
	countVotesFn             func(context.Context, string) (int, error)
	voteCountsFn             func(context.Context, int, int) ([]store.VoteCount, error)
	listVotesByVoterFn       func(context.Context, string) ([]store.Vote, error)
	insertSuggestionFn       func(context.Context, store.Suggestion) (store.Suggestion, error)
	listSuggestionsByVoterFn func(context.Context, string) ([]store.Suggestion, error)
	listSuggestionsFn        func(context.Context, string) ([]store.Suggestion, error)
	updateSuggestionFn       func(context.Context, string, string) error
	pingFn                   func(context.Context) error
}

func (f *fakeStore) CreateVote(ctx context.Context, vote store.Vote) (store.Vote, error) {
	if f.createVoteFn != nil {
		return f.createVoteFn(ctx, vote)
	}
	vote.CreatedAt = time.Now()
	return vote, nil
}
func (f *fakeStore) DeleteVote(ctx context.Context, voterID, albumID string) error {
	if f.deleteVoteFn != nil {
		return f.deleteVoteFn(ctx, voterID, albumID)
	}
	return nil
}
func (f *fakeStore) GetVote(ctx context.Context, voterID, albumID string) (*store.Vote, error) {
	if f.getVoteFn != nil {
		return f.getVoteFn(ctx, voterID, albumID)
	}
	return nil, nil
}
func (f *fakeStore) CountVotes(ctx context.Context, albumID string) (int, error) {
	if f.countVotesFn != nil {
		return f.countVotesFn(ctx, albumID)
	}
	return 0, nil
}
func (f *fakeStore) VoteCounts(ctx context.Context, limit, offset int) ([]store.VoteCount, error) {
	if f.voteCountsFn != nil {
		return f.voteCountsFn(ctx, limit, offset)
	}
	return nil, nil
}
func (f *fakeStore) ListVotesByVoter(ctx context.Context, voterID string) ([]store.Vote, error) {
	if f.listVotesByVoterFn != nil {
		return f.listVotesByVoterFn(ctx, voterID)
	}
	return nil, nil
}
func (f *fakeStore) InsertSuggestion(ctx context.Context, suggestion store.Suggestion) (store.Suggestion, error) {
	if f.insertSuggestionFn != nil {
		return f.insertSuggestionFn(ctx, suggestion)
	}
	suggestion.Status = "PENDING"
	suggestion.CreatedAt = time.Now()
	return suggestion, nil
}
func (f *fakeStore) ListSuggestionsByVoter(ctx context.Context, voterID string) ([]store.Suggestion, error) {
	if f.listSuggestionsByVoterFn != nil {
		return f.listSuggestionsByVoterFn(ctx, voterID)
	}
	return nil, nil
}
func (f *fakeStore) ListSuggestions(ctx context.Context, status string) ([]store.Suggestion, error) {
	if f.listSuggestionsFn != nil {
		return f.listSuggestionsFn(ctx, status)
	}
	return nil, nil
}
func (f *fakeStore) UpdateSuggestionStatus(ctx context.Context, suggestionID, status string) error {
	if f.updateSuggestionFn != nil {
		return f.updateSuggestionFn(ctx, suggestionID, status)
	}
	return nil
}
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// fakeCatalog resolves from a fixed album set, mimicking the content
// store's silently-omit-unknown-ids contract.
type fakeCatalog struct {
	albums map[string]catalog.Album
	err    error
	calls  int
}

func (f *fakeCatalog) Albums(ctx context.Context, ids []string) (map[string]catalog.Album, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]catalog.Album)
	for _, id := range ids {
		if album, ok := f.albums[id]; ok {
			result[id] = album
		}
	}
	return result, nil
}

type fakeSearcher struct {
	searchFn func(context.Context, search.Query) ([]search.Result, int, error)
}

func (f *fakeSearcher) Search(ctx context.Context, q search.Query) ([]search.Result, int, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return nil, 0, nil
}

type fakeLookup struct {
	searchArtistsFn  func(context.Context, string) ([]musicbrainz.Artist, error)
	artistReleasesFn func(context.Context, string) ([]musicbrainz.Release, error)
}

func (f *fakeLookup) SearchArtists(ctx context.Context, query string) ([]musicbrainz.Artist, error) {
	if f.searchArtistsFn != nil {
		return f.searchArtistsFn(ctx, query)
	}
	return nil, nil
}

func (f *fakeLookup) ArtistReleases(ctx context.Context, artistID string) ([]musicbrainz.Release, error) {
	if f.artistReleasesFn != nil {
		return f.artistReleasesFn(ctx, artistID)
	}
	return nil, nil
}

type fakeSessions struct {
	sessions map[string]session.Session
}

func (f *fakeSessions) Lookup(ctx context.Context, token string) (session.Session, error) {
	if sess, ok := f.sessions[token]; ok {
		return sess, nil
	}
	return session.Session{}, session.ErrNoSession
}

func newTestService(fs *fakeStore, fc *fakeCatalog) *Service {
	if fc == nil {
		fc = &fakeCatalog{albums: map[string]catalog.Album{}}
	}
	return &Service{
		cfg:      config.Config{DefaultLimit: 10, MaxLimit: 100},
		store:    fs,
		catalog:  fc,
		sessions: &fakeSessions{},
		search:   &fakeSearcher{},
		lookup:   &fakeLookup{},
		bus:      votebus.New(),
		metrics:  metrics.New(),
	}
}

func member(id string) Session {
	return Session{VoterID: id, DisplayName: "Member " + id, Role: "member"}
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Status
}

func TestCastVote(t *testing.T) {
	var inserted store.Vote
	fs := &fakeStore{
		createVoteFn: func(_ context.Context, vote store.Vote) (store.Vote, error) {
			inserted = vote
			vote.CreatedAt = time.Now()
			return vote, nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-a": {ID: "album-a", Title: "Kind of Blue"},
	}}
	svc := newTestService(fs, fc)

	var events []votebus.Event
	sub := svc.bus.Subscribe(func(e votebus.Event) { events = append(events, e) })
	defer sub.Unsubscribe()

	status, err := svc.CastVote(context.Background(), member("voter-1"), "album-a")
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if !status.HasVoted || status.AlreadyVoted {
		t.Errorf("expected fresh vote, got %+v", status)
	}
	if inserted.VoterID != "voter-1" || inserted.AlbumID != "album-a" {
		t.Errorf("unexpected inserted vote: %+v", inserted)
	}
	if inserted.ID == "" {
		t.Error("expected a generated vote id")
	}
	if len(events) != 1 || events[0].Action != votebus.ActionVote {
		t.Errorf("expected one vote event, got %v", events)
	}
}

func TestCastVoteDuplicateIsAbsorbed(t *testing.T) {
	fs := &fakeStore{
		createVoteFn: func(context.Context, store.Vote) (store.Vote, error) {
			return store.Vote{}, store.ErrDuplicateVote
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-a": {ID: "album-a"},
	}}
	svc := newTestService(fs, fc)

	var events int
	sub := svc.bus.Subscribe(func(votebus.Event) { events++ })
	defer sub.Unsubscribe()

	status, err := svc.CastVote(context.Background(), member("voter-1"), "album-a")
	if err != nil {
		t.Fatalf("expected duplicate cast to succeed, got %v", err)
	}
	if !status.HasVoted || !status.AlreadyVoted {
		t.Errorf("expected already-voted success, got %+v", status)
	}
	if events != 0 {
		t.Errorf("expected no bus event for a duplicate cast, got %d", events)
	}
}

func TestCastVoteRequiresSession(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	_, err := svc.CastVote(context.Background(), Session{}, "album-a")
	if status := domainStatus(t, err); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
}

func TestCastVoteValidatesAlbumID(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	for _, albumID := range []string{"", "  ", "bad/id", "a b", ".leading"} {
		_, err := svc.CastVote(context.Background(), member("voter-1"), albumID)
		if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
			t.Errorf("albumID %q: expected 422, got %d", albumID, status)
		}
	}
}

func TestCastVoteUnknownAlbum(t *testing.T) {
	fc := &fakeCatalog{albums: map[string]catalog.Album{}}
	svc := newTestService(&fakeStore{}, fc)

	_, err := svc.CastVote(context.Background(), member("voter-1"), "album-gone")
	if status := domainStatus(t, err); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestCastVoteCatalogDown(t *testing.T) {
	fc := &fakeCatalog{err: catalog.ErrUnavailable}
	svc := newTestService(&fakeStore{}, fc)

	_, err := svc.CastVote(context.Background(), member("voter-1"), "album-a")
	if status := domainStatus(t, err); status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

func TestRetractVoteIsIdempotent(t *testing.T) {
	var deletes int
	fs := &fakeStore{
		deleteVoteFn: func(context.Context, string, string) error {
			deletes++
			return nil
		},
	}
	svc := newTestService(fs, nil)

	for i := 0; i < 3; i++ {
		status, err := svc.RetractVote(context.Background(), member("voter-1"), "album-a")
		if err != nil {
			t.Fatalf("RetractVote %d failed: %v", i, err)
		}
		if status.HasVoted {
			t.Errorf("expected hasVoted=false after retract, got %+v", status)
		}
	}
	if deletes != 3 {
		t.Errorf("expected 3 delete calls, got %d", deletes)
	}
}

func TestRetractVoteSkipsCatalogCheck(t *testing.T) {
	// Retract must work even when the album is no longer in the catalog.
	fc := &fakeCatalog{err: catalog.ErrUnavailable}
	svc := newTestService(&fakeStore{}, fc)

	if _, err := svc.RetractVote(context.Background(), member("voter-1"), "album-gone"); err != nil {
		t.Fatalf("RetractVote failed: %v", err)
	}
	if fc.calls != 0 {
		t.Errorf("expected no catalog lookup on retract, got %d", fc.calls)
	}
}

func TestHasVotedAnonymousNeverErrors(t *testing.T) {
	fs := &fakeStore{
		getVoteFn: func(context.Context, string, string) (*store.Vote, error) {
			t.Error("anonymous hasVoted must not hit the ledger")
			return nil, nil
		},
	}
	svc := newTestService(fs, nil)

	status, err := svc.HasVoted(context.Background(), Session{}, "album-a")
	if err != nil {
		t.Fatalf("expected neutral answer for anonymous, got %v", err)
	}
	if status.HasVoted {
		t.Error("expected hasVoted=false for anonymous caller")
	}
}

func TestHasVotedAuthenticated(t *testing.T) {
	vote := store.Vote{ID: "v_1", VoterID: "voter-1", AlbumID: "album-a", CreatedAt: time.Now()}
	fs := &fakeStore{
		getVoteFn: func(_ context.Context, voterID, albumID string) (*store.Vote, error) {
			if voterID == "voter-1" && albumID == "album-a" {
				return &vote, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(fs, nil)

	status, err := svc.HasVoted(context.Background(), member("voter-1"), "album-a")
	if err != nil {
		t.Fatalf("HasVoted failed: %v", err)
	}
	if !status.HasVoted || status.Vote == nil || status.Vote.ID != "v_1" {
		t.Errorf("expected the existing vote, got %+v", status)
	}

	status, err = svc.HasVoted(context.Background(), member("voter-1"), "album-b")
	if err != nil {
		t.Fatalf("HasVoted failed: %v", err)
	}
	if status.HasVoted {
		t.Errorf("expected hasVoted=false for album-b, got %+v", status)
	}
}

func TestRankingScenario(t *testing.T) {
	// A has 3 votes, B has 5, C has 1; rank(2) is B then A.
	fs := &fakeStore{
		voteCountsFn: func(_ context.Context, limit, offset int) ([]store.VoteCount, error) {
			all := []store.VoteCount{
				{AlbumID: "album-b", Count: 5},
				{AlbumID: "album-a", Count: 3},
				{AlbumID: "album-c", Count: 1},
			}
			if offset >= len(all) {
				return []store.VoteCount{}, nil
			}
			end := offset + limit
			if end > len(all) {
				end = len(all)
			}
			return all[offset:end], nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-a": {ID: "album-a", Title: "A"},
		"album-b": {ID: "album-b", Title: "B"},
		"album-c": {ID: "album-c", Title: "C"},
	}}
	svc := newTestService(fs, fc)

	ranking, err := svc.Ranking(context.Background(), 2)
	if err != nil {
		t.Fatalf("Ranking failed: %v", err)
	}
	if len(ranking) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ranking))
	}
	if ranking[0].Position != 1 || ranking[0].AlbumID != "album-b" || ranking[0].VoteCount != 5 {
		t.Errorf("unexpected first entry: %+v", ranking[0])
	}
	if ranking[1].Position != 2 || ranking[1].AlbumID != "album-a" || ranking[1].VoteCount != 3 {
		t.Errorf("unexpected second entry: %+v", ranking[1])
	}
	if !sort.SliceIsSorted(ranking, func(i, j int) bool { return ranking[i].VoteCount > ranking[j].VoteCount }) {
		t.Error("ranking not sorted by vote count descending")
	}
}

func TestRankingBackfillsRemovedAlbums(t *testing.T) {
	// album-b leads but was removed from the catalog; the ranking drops it
	// and still returns two resolvable entries.
	fs := &fakeStore{
		voteCountsFn: func(_ context.Context, limit, offset int) ([]store.VoteCount, error) {
			all := []store.VoteCount{
				{AlbumID: "album-b", Count: 5},
				{AlbumID: "album-a", Count: 3},
				{AlbumID: "album-c", Count: 1},
			}
			if offset >= len(all) {
				return []store.VoteCount{}, nil
			}
			end := offset + limit
			if end > len(all) {
				end = len(all)
			}
			return all[offset:end], nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-a": {ID: "album-a", Title: "A"},
		"album-c": {ID: "album-c", Title: "C"},
	}}
	svc := newTestService(fs, fc)

	ranking, err := svc.Ranking(context.Background(), 2)
	if err != nil {
		t.Fatalf("Ranking failed: %v", err)
	}
	if len(ranking) != 2 {
		t.Fatalf("expected backfilled to 2 entries, got %d", len(ranking))
	}
	if ranking[0].AlbumID != "album-a" || ranking[0].Position != 1 {
		t.Errorf("unexpected first entry: %+v", ranking[0])
	}
	if ranking[1].AlbumID != "album-c" || ranking[1].Position != 2 {
		t.Errorf("unexpected second entry: %+v", ranking[1])
	}
	for _, entry := range ranking {
		if entry.Album.ID == "" {
			t.Errorf("entry %s has unresolved metadata", entry.AlbumID)
		}
	}
}

func TestRankingNoDuplicateAlbums(t *testing.T) {
	fs := &fakeStore{
		voteCountsFn: func(_ context.Context, limit, offset int) ([]store.VoteCount, error) {
			if offset > 0 {
				return []store.VoteCount{}, nil
			}
			return []store.VoteCount{
				{AlbumID: "album-a", Count: 2},
				{AlbumID: "album-b", Count: 1},
			}, nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-a": {ID: "album-a"},
		"album-b": {ID: "album-b"},
	}}
	svc := newTestService(fs, fc)

	ranking, err := svc.Ranking(context.Background(), 10)
	if err != nil {
		t.Fatalf("Ranking failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, entry := range ranking {
		if seen[entry.AlbumID] {
			t.Errorf("duplicate album %s in ranking", entry.AlbumID)
		}
		seen[entry.AlbumID] = true
	}
}

func TestRankingRejectsNonPositiveLimit(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	for _, limit := range []int{0, -1} {
		_, err := svc.Ranking(context.Background(), limit)
		if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
			t.Errorf("limit %d: expected 422, got %d", limit, status)
		}
	}
}

func TestRankingClampsOversizedLimit(t *testing.T) {
	var requested int
	fs := &fakeStore{
		voteCountsFn: func(_ context.Context, limit, _ int) ([]store.VoteCount, error) {
			requested = limit
			return []store.VoteCount{}, nil
		},
	}
	svc := newTestService(fs, nil)

	if _, err := svc.Ranking(context.Background(), 500); err != nil {
		t.Fatalf("Ranking failed: %v", err)
	}
	if requested != 100 {
		t.Errorf("expected limit clamped to 100, got %d", requested)
	}
}

func TestRankingCatalogDownFailsOutright(t *testing.T) {
	fs := &fakeStore{
		voteCountsFn: func(context.Context, int, int) ([]store.VoteCount, error) {
			return []store.VoteCount{{AlbumID: "album-a", Count: 1}}, nil
		},
	}
	fc := &fakeCatalog{err: catalog.ErrUnavailable}
	svc := newTestService(fs, fc)

	_, err := svc.Ranking(context.Background(), 5)
	if status := domainStatus(t, err); status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

func TestVoterHistoryJoinsCatalog(t *testing.T) {
	now := time.Now()
	fs := &fakeStore{
		listVotesByVoterFn: func(context.Context, string) ([]store.Vote, error) {
			return []store.Vote{
				{ID: "v_2", VoterID: "voter-1", AlbumID: "album-b", CreatedAt: now},
				{ID: "v_1", VoterID: "voter-1", AlbumID: "album-gone", CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{
		"album-b": {ID: "album-b", Title: "B"},
	}}
	svc := newTestService(fs, fc)

	entries, err := svc.VoterHistory(context.Background(), member("voter-1"))
	if err != nil {
		t.Fatalf("VoterHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Album == nil || entries[0].Album.Title != "B" {
		t.Errorf("expected resolved album for newest vote, got %+v", entries[0])
	}
	if entries[1].Album != nil {
		t.Errorf("expected nil album for removed album, got %+v", entries[1].Album)
	}
	if fc.calls != 1 {
		t.Errorf("expected one batched catalog lookup, got %d", fc.calls)
	}
}

func TestVoterHistoryRequiresSession(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	_, err := svc.VoterHistory(context.Background(), Session{})
	if status := domainStatus(t, err); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
}

func TestSubmitSuggestion(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	suggestion, err := svc.SubmitSuggestion(context.Background(), member("voter-1"), SuggestionInput{
		ArtistName: "  Alice Coltrane ",
		AlbumTitle: "Journey in Satchidananda",
	})
	if err != nil {
		t.Fatalf("SubmitSuggestion failed: %v", err)
	}
	if suggestion.ArtistName != "Alice Coltrane" {
		t.Errorf("expected trimmed artist name, got %q", suggestion.ArtistName)
	}
	if suggestion.Status != "PENDING" {
		t.Errorf("expected PENDING, got %s", suggestion.Status)
	}
}

func TestSubmitSuggestionValidation(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	_, err := svc.SubmitSuggestion(context.Background(), member("voter-1"), SuggestionInput{ArtistName: "Only Artist"})
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", status)
	}
}

func TestSubmitSuggestionDuplicateIsConflict(t *testing.T) {
	fs := &fakeStore{
		insertSuggestionFn: func(context.Context, store.Suggestion) (store.Suggestion, error) {
			return store.Suggestion{}, store.ErrDuplicateSuggestion
		},
	}
	svc := newTestService(fs, nil)

	_, err := svc.SubmitSuggestion(context.Background(), member("voter-1"), SuggestionInput{
		ArtistName: "Artist",
		AlbumTitle: "Album",
	})
	if status := domainStatus(t, err); status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
}

func TestSuggestionReviewRequiresReviewerRole(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	_, err := svc.ListAllSuggestions(context.Background(), member("voter-1"), "")
	if status := domainStatus(t, err); status != http.StatusForbidden {
		t.Errorf("expected 403 for member, got %d", status)
	}

	editor := Session{VoterID: "voter-2", Role: "editor"}
	if _, err := svc.ListAllSuggestions(context.Background(), editor, "PENDING"); err != nil {
		t.Errorf("expected editor to list suggestions, got %v", err)
	}

	err = svc.ReviewSuggestion(context.Background(), editor, "sug_1", "NOT_A_STATUS")
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for bad status, got %d", status)
	}

	if err := svc.ReviewSuggestion(context.Background(), editor, "sug_1", "APPROVED"); err != nil {
		t.Errorf("expected review to succeed, got %v", err)
	}
}

func TestSearchArtistsDegradesOnOutage(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	svc.lookup = &fakeLookup{
		searchArtistsFn: func(context.Context, string) ([]musicbrainz.Artist, error) {
			return nil, musicbrainz.ErrUnavailable
		},
	}

	artists, err := svc.SearchArtists(context.Background(), "nina")
	if err != nil {
		t.Fatalf("expected degraded empty answer, got %v", err)
	}
	if artists == nil || len(artists) != 0 {
		t.Errorf("expected empty slice, got %+v", artists)
	}
}

func TestArtistReleases(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	svc.lookup = &fakeLookup{
		artistReleasesFn: func(_ context.Context, artistID string) ([]musicbrainz.Release, error) {
			if artistID != "mbid-1" {
				t.Errorf("unexpected artist id %q", artistID)
			}
			return []musicbrainz.Release{{ID: "rg-1", Title: "First Album", Year: 1959}}, nil
		},
	}

	releases, err := svc.ArtistReleases(context.Background(), "mbid-1")
	if err != nil {
		t.Fatalf("ArtistReleases failed: %v", err)
	}
	if len(releases) != 1 || releases[0].ID != "rg-1" {
		t.Errorf("unexpected releases: %+v", releases)
	}

	_, err = svc.ArtistReleases(context.Background(), "  ")
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing artist id, got %d", status)
	}
}

func TestSearchSuggestions(t *testing.T) {
	var seen search.Query
	searcher := &fakeSearcher{
		searchFn: func(_ context.Context, q search.Query) ([]search.Result, int, error) {
			seen = q
			return []search.Result{{ID: "sug_1", ArtistName: "Nina Simone", AlbumTitle: "Pastel Blues", Status: "PENDING"}}, 1, nil
		},
	}
	svc := newTestService(&fakeStore{}, nil)
	svc.search = searcher

	editor := Session{VoterID: "voter-2", Role: "editor"}
	response, err := svc.SearchSuggestions(context.Background(), editor, search.Query{Text: "nina", Status: "PENDING"})
	if err != nil {
		t.Fatalf("SearchSuggestions failed: %v", err)
	}
	if response.Total != 1 || len(response.Results) != 1 || response.Query != "nina" {
		t.Errorf("unexpected response: %+v", response)
	}
	if seen.Limit != 10 {
		t.Errorf("expected default limit 10, got %d", seen.Limit)
	}

	_, err = svc.SearchSuggestions(context.Background(), member("voter-1"), search.Query{Text: "nina"})
	if status := domainStatus(t, err); status != http.StatusForbidden {
		t.Errorf("expected 403 for member, got %d", status)
	}

	_, err = svc.SearchSuggestions(context.Background(), editor, search.Query{Text: "nina", Status: "BOGUS"})
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for bad status, got %d", status)
	}
}

func TestSearchSuggestionsEmptyResultIsNotNull(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	admin := Session{VoterID: "voter-9", Role: "admin"}
	response, err := svc.SearchSuggestions(context.Background(), admin, search.Query{Text: "nothing"})
	if err != nil {
		t.Fatalf("SearchSuggestions failed: %v", err)
	}
	if response.Results == nil {
		t.Error("expected empty slice, not nil")
	}
}

func TestReviewSuggestionNotFound(t *testing.T) {
	fs := &fakeStore{
		updateSuggestionFn: func(context.Context, string, string) error {
			return store.ErrSuggestionNotFound
		},
	}
	svc := newTestService(fs, nil)

	admin := Session{VoterID: "voter-9", Role: "admin"}
	err := svc.ReviewSuggestion(context.Background(), admin, "sug_missing", "REJECTED")
	if status := domainStatus(t, err); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestVoteUnvoteVoteRoundTrip(t *testing.T) {
	// A tiny in-memory ledger that mimics the unique constraint, so the
	// round trip exercises the real absorb-then-reinsert path.
	ledger := make(map[string]store.Vote)
	key := func(voterID, albumID string) string { return voterID + "|" + albumID }
	fs := &fakeStore{
		createVoteFn: func(_ context.Context, vote store.Vote) (store.Vote, error) {
			k := key(vote.VoterID, vote.AlbumID)
			if _, exists := ledger[k]; exists {
				return store.Vote{}, store.ErrDuplicateVote
			}
			vote.CreatedAt = time.Now()
			ledger[k] = vote
			return vote, nil
		},
		deleteVoteFn: func(_ context.Context, voterID, albumID string) error {
			delete(ledger, key(voterID, albumID))
			return nil
		},
		getVoteFn: func(_ context.Context, voterID, albumID string) (*store.Vote, error) {
			if vote, ok := ledger[key(voterID, albumID)]; ok {
				return &vote, nil
			}
			return nil, nil
		},
	}
	fc := &fakeCatalog{albums: map[string]catalog.Album{"album-a": {ID: "album-a"}}}
	svc := newTestService(fs, fc)

	sess := member("voter-1")
	ctx := context.Background()

	if _, err := svc.CastVote(ctx, sess, "album-a"); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if _, err := svc.RetractVote(ctx, sess, "album-a"); err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	if _, err := svc.CastVote(ctx, sess, "album-a"); err != nil {
		t.Fatalf("second cast failed: %v", err)
	}

	if len(ledger) != 1 {
		t.Errorf("expected exactly one ledger row, got %d", len(ledger))
	}
	status, err := svc.HasVoted(ctx, sess, "album-a")
	if err != nil {
		t.Fatalf("HasVoted failed: %v", err)
	}
	if !status.HasVoted {
		t.Error("expected hasVoted=true after vote-unvote-vote")
	}
}
