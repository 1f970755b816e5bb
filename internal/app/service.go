package app

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"vinylclub/api/internal/catalog"
	"vinylclub/api/internal/config"
	"vinylclub/api/internal/metrics"
	"vinylclub/api/internal/musicbrainz"
	"vinylclub/api/internal/rbac"
	"vinylclub/api/internal/search"
	"vinylclub/api/internal/session"
	"vinylclub/api/internal/store"
	"vinylclub/api/internal/util"
	"vinylclub/api/internal/votebus"
)

// Session is the resolved identity for one request. A zero Session means
// the caller is anonymous; reads stay available, mutations do not.
type Session struct {
	VoterID     string
	DisplayName string
	Role        string
}

func (s Session) Authenticated() bool {
	return s.VoterID != ""
}

// VoteStatus is the gateway's answer for a voter/album pair. AlreadyVoted
// marks a duplicate cast that was absorbed rather than surfaced as an error.
type VoteStatus struct {
	AlbumID      string      `json:"albumId"`
	HasVoted     bool        `json:"hasVoted"`
	AlreadyVoted bool        `json:"alreadyVoted,omitempty"`
	Vote         *store.Vote `json:"vote,omitempty"`
}

// RankingEntry is one leaderboard row with resolved album metadata.
// Entries whose album the catalog no longer knows never appear here.
type RankingEntry struct {
	Position  int           `json:"position"`
	AlbumID   string        `json:"albumId"`
	VoteCount int           `json:"voteCount"`
	Album     catalog.Album `json:"album"`
}

// HistoryEntry is one of the voter's own votes joined against the catalog.
// Album may be nil when the album was since removed; the vote itself is
// still the voter's record.
type HistoryEntry struct {
	ID        string         `json:"id"`
	AlbumID   string         `json:"albumId"`
	CreatedAt time.Time      `json:"createdAt"`
	Album     *catalog.Album `json:"album"`
}

type SuggestionInput struct {
	ArtistName string `json:"artistName"`
	AlbumTitle string `json:"albumTitle"`
	MBID       string `json:"mbid"`
	CoverURL   string `json:"coverUrl"`
	Year       int    `json:"year"`
}

var allowedSuggestionStatuses = map[string]struct{}{
	"PENDING":  {},
	"APPROVED": {},
	"REJECTED": {},
	"ADDED":    {},
}

// Album ids come from the content store; they look like opaque document ids.
var albumIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

type voteStore interface {
	CreateVote(context.Context, store.Vote) (store.Vote, error)
	DeleteVote(context.Context, string, string) error
	GetVote(context.Context, string, string) (*store.Vote, error)
	CountVotes(context.Context, string) (int, error)
	VoteCounts(context.Context, int, int) ([]store.VoteCount, error)
	ListVotesByVoter(context.Context, string) ([]store.Vote, error)
	InsertSuggestion(context.Context, store.Suggestion) (store.Suggestion, error)
	ListSuggestionsByVoter(context.Context, string) ([]store.Suggestion, error)
	ListSuggestions(context.Context, string) ([]store.Suggestion, error)
	UpdateSuggestionStatus(context.Context, string, string) error
	Ping(ctx context.Context) error
}

type catalogClient interface {
	Albums(context.Context, []string) (map[string]catalog.Album, error)
}

type sessionStore interface {
	Lookup(context.Context, string) (session.Session, error)
}

type lookupClient interface {
	SearchArtists(context.Context, string) ([]musicbrainz.Artist, error)
	ArtistReleases(context.Context, string) ([]musicbrainz.Release, error)
}

type Service struct {
	cfg      config.Config
	store    voteStore
	catalog  catalogClient
	sessions sessionStore
	search   search.Searcher
	lookup   lookupClient
	bus      *votebus.Bus
	metrics  *metrics.Metrics
}

func New(cfg config.Config, dataStore *store.PostgresStore, catalogClient *catalog.Client, sessions *session.RedisStore, searcher search.Searcher, lookup *musicbrainz.Client, bus *votebus.Bus, m *metrics.Metrics) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		catalog:  catalogClient,
		sessions: sessions,
		search:   searcher,
		lookup:   lookup,
		bus:      bus,
		metrics:  m,
	}
}

// SessionFromToken resolves a bearer token to a Session. An unknown or
// expired token is session.ErrNoSession, which callers treat as anonymous.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	resolved, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		VoterID:     resolved.VoterID,
		DisplayName: resolved.DisplayName,
		Role:        resolved.Role,
	}, nil
}

// CastVote records one vote for the session's voter. A duplicate cast is
// absorbed into an already-voted success; the unique constraint in the
// ledger is what decides the race, not this method.
func (s *Service) CastVote(ctx context.Context, sess Session, albumID string) (VoteStatus, error) {
	if !sess.Authenticated() {
		return VoteStatus{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to vote", nil)
	}
	if err := validateAlbumID(albumID); err != nil {
		return VoteStatus{}, err
	}

	albums, err := s.catalog.Albums(ctx, []string{albumID})
	if err != nil {
		return VoteStatus{}, s.catalogError(err)
	}
	if _, ok := albums[albumID]; !ok {
		return VoteStatus{}, domainError(http.StatusNotFound, "NOT_FOUND", "Album not found", nil)
	}

	vote, err := s.store.CreateVote(ctx, store.Vote{
		ID:      util.NewID("v"),
		VoterID: sess.VoterID,
		AlbumID: albumID,
	})
	if errors.Is(err, store.ErrDuplicateVote) {
		s.metrics.VoteConflicts.Inc()
		return VoteStatus{AlbumID: albumID, HasVoted: true, AlreadyVoted: true}, nil
	}
	if err != nil {
		return VoteStatus{}, err
	}

	s.metrics.VotesCast.Inc()
	s.bus.Publish(albumID, votebus.ActionVote)
	return VoteStatus{AlbumID: albumID, HasVoted: true, Vote: &vote}, nil
}

// RetractVote removes the voter's vote if present. Retracting when no vote
// exists is a success, so double-clicks and retries stay quiet. The album
// is deliberately not re-checked against the catalog: a vote for a removed
// album must still be retractable.
func (s *Service) RetractVote(ctx context.Context, sess Session, albumID string) (VoteStatus, error) {
	if !sess.Authenticated() {
		return VoteStatus{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to vote", nil)
	}
	if err := validateAlbumID(albumID); err != nil {
		return VoteStatus{}, err
	}

	if err := s.store.DeleteVote(ctx, sess.VoterID, albumID); err != nil {
		return VoteStatus{}, err
	}

	s.metrics.VotesRetracted.Inc()
	s.bus.Publish(albumID, votebus.ActionUnvote)
	return VoteStatus{AlbumID: albumID, HasVoted: false}, nil
}

// HasVoted reports the session voter's state for an album. Anonymous
// callers get a neutral not-voted answer, never an error, so the UI can
// render the same component for everyone.
func (s *Service) HasVoted(ctx context.Context, sess Session, albumID string) (VoteStatus, error) {
	if err := validateAlbumID(albumID); err != nil {
		return VoteStatus{}, err
	}
	if !sess.Authenticated() {
		return VoteStatus{AlbumID: albumID, HasVoted: false}, nil
	}

	vote, err := s.store.GetVote(ctx, sess.VoterID, albumID)
	if err != nil {
		return VoteStatus{}, err
	}
	return VoteStatus{AlbumID: albumID, HasVoted: vote != nil, Vote: vote}, nil
}

func (s *Service) CountVotes(ctx context.Context, albumID string) (int, error) {
	if err := validateAlbumID(albumID); err != nil {
		return 0, err
	}
	return s.store.CountVotes(ctx, albumID)
}

// Ranking returns up to limit leaderboard entries. Albums the catalog no
// longer resolves are dropped and backfilled from the next tallies, so a
// removed album shrinks nothing; positions are assigned after the join.
// If the catalog itself is down the whole call fails - a partial ranking
// would silently reorder the board.
func (s *Service) Ranking(ctx context.Context, limit int) ([]RankingEntry, error) {
	if limit < 1 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a positive integer", nil)
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	entries := make([]RankingEntry, 0, limit)
	offset := 0
	for len(entries) < limit {
		counts, err := s.store.VoteCounts(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		if len(counts) == 0 {
			break
		}
		offset += len(counts)

		ids := make([]string, 0, len(counts))
		for _, count := range counts {
			ids = append(ids, count.AlbumID)
		}
		albums, err := s.catalog.Albums(ctx, ids)
		if err != nil {
			return nil, s.catalogError(err)
		}

		for _, count := range counts {
			album, ok := albums[count.AlbumID]
			if !ok {
				continue
			}
			entries = append(entries, RankingEntry{
				Position:  len(entries) + 1,
				AlbumID:   count.AlbumID,
				VoteCount: count.Count,
				Album:     album,
			})
			if len(entries) == limit {
				break
			}
		}
		if len(counts) < limit {
			break
		}
	}

	s.metrics.RankingSize.Observe(float64(len(entries)))
	return entries, nil
}

// VoterHistory returns the session voter's votes, newest first, joined
// against catalog metadata in one batched lookup.
func (s *Service) VoterHistory(ctx context.Context, sess Session) ([]HistoryEntry, error) {
	if !sess.Authenticated() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to see your votes", nil)
	}

	votes, err := s.store.ListVotesByVoter(ctx, sess.VoterID)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return []HistoryEntry{}, nil
	}

	ids := make([]string, 0, len(votes))
	for _, vote := range votes {
		ids = append(ids, vote.AlbumID)
	}
	albums, err := s.catalog.Albums(ctx, ids)
	if err != nil {
		return nil, s.catalogError(err)
	}

	entries := make([]HistoryEntry, 0, len(votes))
	for _, vote := range votes {
		entry := HistoryEntry{
			ID:        vote.ID,
			AlbumID:   vote.AlbumID,
			CreatedAt: vote.CreatedAt,
		}
		if album, ok := albums[vote.AlbumID]; ok {
			entry.Album = &album
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SubmitSuggestion stores an album suggestion. Unlike votes, a duplicate
// here IS surfaced: the member should know they already suggested it.
func (s *Service) SubmitSuggestion(ctx context.Context, sess Session, input SuggestionInput) (store.Suggestion, error) {
	if !sess.Authenticated() {
		return store.Suggestion{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to suggest albums", nil)
	}

	artistName := strings.TrimSpace(input.ArtistName)
	albumTitle := strings.TrimSpace(input.AlbumTitle)
	if artistName == "" || albumTitle == "" {
		return store.Suggestion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "artistName and albumTitle are required", nil)
	}

	suggestion, err := s.store.InsertSuggestion(ctx, store.Suggestion{
		ID:         util.NewID("sug"),
		VoterID:    sess.VoterID,
		ArtistName: artistName,
		AlbumTitle: albumTitle,
		MBID:       strings.TrimSpace(input.MBID),
		CoverURL:   strings.TrimSpace(input.CoverURL),
		Year:       input.Year,
	})
	if errors.Is(err, store.ErrDuplicateSuggestion) {
		return store.Suggestion{}, domainError(http.StatusConflict, "ALREADY_SUGGESTED", "You have already suggested this album", nil)
	}
	if err != nil {
		return store.Suggestion{}, err
	}
	return suggestion, nil
}

func (s *Service) ListOwnSuggestions(ctx context.Context, sess Session) ([]store.Suggestion, error) {
	if !sess.Authenticated() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to see your suggestions", nil)
	}
	return s.store.ListSuggestionsByVoter(ctx, sess.VoterID)
}

// ListAllSuggestions is the staff review queue, optionally filtered by status.
func (s *Service) ListAllSuggestions(ctx context.Context, sess Session, status string) ([]store.Suggestion, error) {
	if err := s.requireReviewer(sess); err != nil {
		return nil, err
	}
	if status != "" {
		if _, ok := allowedSuggestionStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown suggestion status", nil)
		}
	}
	return s.store.ListSuggestions(ctx, status)
}

func (s *Service) ReviewSuggestion(ctx context.Context, sess Session, suggestionID, status string) error {
	if err := s.requireReviewer(sess); err != nil {
		return err
	}
	if strings.TrimSpace(suggestionID) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "suggestionId is required", nil)
	}
	if _, ok := allowedSuggestionStatuses[status]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown suggestion status", nil)
	}
	err := s.store.UpdateSuggestionStatus(ctx, suggestionID, status)
	if errors.Is(err, store.ErrSuggestionNotFound) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Suggestion not found", nil)
	}
	return err
}

// SearchArtists backs the suggestion form's artist autocomplete. A
// MusicBrainz outage degrades to an empty list; autocomplete is
// best-effort and the member can still type the name by hand.
func (s *Service) SearchArtists(ctx context.Context, query string) ([]musicbrainz.Artist, error) {
	artists, err := s.lookup.SearchArtists(ctx, query)
	if errors.Is(err, musicbrainz.ErrUnavailable) {
		s.metrics.LookupErrors.Inc()
		return []musicbrainz.Artist{}, nil
	}
	if err != nil {
		return nil, err
	}
	if artists == nil {
		artists = []musicbrainz.Artist{}
	}
	return artists, nil
}

// ArtistReleases lists an artist's studio albums for the suggestion form.
// Degrades like SearchArtists on an outage.
func (s *Service) ArtistReleases(ctx context.Context, artistID string) ([]musicbrainz.Release, error) {
	if strings.TrimSpace(artistID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "artistId is required", nil)
	}

	releases, err := s.lookup.ArtistReleases(ctx, artistID)
	if errors.Is(err, musicbrainz.ErrUnavailable) {
		s.metrics.LookupErrors.Inc()
		return []musicbrainz.Release{}, nil
	}
	if err != nil {
		return nil, err
	}
	if releases == nil {
		releases = []musicbrainz.Release{}
	}
	return releases, nil
}

// SearchSuggestions runs a full-text query over the review queue.
func (s *Service) SearchSuggestions(ctx context.Context, sess Session, query search.Query) (search.Response, error) {
	if err := s.requireReviewer(sess); err != nil {
		return search.Response{}, err
	}
	if query.Status != "" {
		if _, ok := allowedSuggestionStatuses[query.Status]; !ok {
			return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown suggestion status", nil)
		}
	}
	if query.Limit <= 0 || query.Limit > s.cfg.MaxLimit {
		query.Limit = s.cfg.DefaultLimit
	}

	results, total, err := s.search.Search(ctx, query)
	if err != nil {
		return search.Response{}, err
	}
	if results == nil {
		results = []search.Result{}
	}
	return search.Response{Results: results, Total: total, Query: query.Text}, nil
}

func (s *Service) requireReviewer(sess Session) error {
	if !sess.Authenticated() {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if !rbac.Can(rbac.Normalize(sess.Role), rbac.ActionReview) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}

func (s *Service) Bus() *votebus.Bus {
	return s.bus
}

func (s *Service) DefaultLimit() int {
	return s.cfg.DefaultLimit
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) catalogError(err error) error {
	if errors.Is(err, catalog.ErrUnavailable) {
		s.metrics.CatalogErrors.Inc()
		return domainError(http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Album catalog is unavailable", nil)
	}
	return err
}

func validateAlbumID(albumID string) error {
	if !albumIDPattern.MatchString(albumID) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "albumId is required and must be a valid catalog id", nil)
	}
	return nil
}
