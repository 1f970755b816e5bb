package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// CreateVote inserts a vote row. The insert is a single atomic statement:
// ON CONFLICT DO NOTHING plus RETURNING means a duplicate produces no row,
// which surfaces as ErrDuplicateVote without a separate existence check.
func (s *PostgresStore) CreateVote(ctx context.Context, vote Vote) (Vote, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO votes (id, voter_id, album_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (voter_id, album_id) DO NOTHING
		RETURNING id, voter_id, album_id, created_at
	`, vote.ID, vote.VoterID, vote.AlbumID).Scan(&vote.ID, &vote.VoterID, &vote.AlbumID, &vote.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Vote{}, ErrDuplicateVote
	}
	if err != nil {
		return Vote{}, fmt.Errorf("insert vote: %w", err)
	}
	return vote, nil
}

// DeleteVote removes the voter's vote for an album. Deleting a vote that is
// not there is not an error, so unvote stays idempotent.
func (s *PostgresStore) DeleteVote(ctx context.Context, voterID, albumID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM votes
		WHERE voter_id=$1 AND album_id=$2
	`, voterID, albumID)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

// GetVote returns the voter's vote for an album, or nil if there is none.
func (s *PostgresStore) GetVote(ctx context.Context, voterID, albumID string) (*Vote, error) {
	var vote Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, voter_id, album_id, created_at
		FROM votes
		WHERE voter_id=$1 AND album_id=$2
	`, voterID, albumID).Scan(&vote.ID, &vote.VoterID, &vote.AlbumID, &vote.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &vote, nil
}

func (s *PostgresStore) CountVotes(ctx context.Context, albumID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM votes WHERE album_id=$1
	`, albumID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

// VoteCounts returns per-album tallies ordered by count descending with the
// album id as a deterministic tie-break, paged so the ranking can backfill
// past albums the catalog no longer resolves.
func (s *PostgresStore) VoteCounts(ctx context.Context, limit, offset int) ([]VoteCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT album_id, COUNT(*)::int AS vote_count
		FROM votes
		GROUP BY album_id
		ORDER BY vote_count DESC, album_id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("vote counts: %w", err)
	}
	defer rows.Close()

	counts := make([]VoteCount, 0)
	for rows.Next() {
		var item VoteCount
		if err := rows.Scan(&item.AlbumID, &item.Count); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts = append(counts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) ListVotesByVoter(ctx context.Context, voterID string) ([]Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, voter_id, album_id, created_at
		FROM votes
		WHERE voter_id=$1
		ORDER BY created_at DESC
	`, voterID)
	if err != nil {
		return nil, fmt.Errorf("list votes by voter: %w", err)
	}
	defer rows.Close()

	items := make([]Vote, 0)
	for rows.Next() {
		var vote Vote
		if err := rows.Scan(&vote.ID, &vote.VoterID, &vote.AlbumID, &vote.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		items = append(items, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return items, nil
}

// InsertSuggestion stores an album suggestion. Duplicates per voter map to
// ErrDuplicateSuggestion via the same conditional-insert shape as votes.
func (s *PostgresStore) InsertSuggestion(ctx context.Context, suggestion Suggestion) (Suggestion, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO album_suggestions (id, voter_id, artist_name, album_title, mbid, cover_url, year)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, 0))
		ON CONFLICT (voter_id, artist_name, album_title) DO NOTHING
		RETURNING id, status, created_at
	`, suggestion.ID, suggestion.VoterID, suggestion.ArtistName, suggestion.AlbumTitle,
		suggestion.MBID, suggestion.CoverURL, suggestion.Year,
	).Scan(&suggestion.ID, &suggestion.Status, &suggestion.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Suggestion{}, ErrDuplicateSuggestion
	}
	if err != nil {
		return Suggestion{}, fmt.Errorf("insert suggestion: %w", err)
	}
	return suggestion, nil
}

func (s *PostgresStore) ListSuggestionsByVoter(ctx context.Context, voterID string) ([]Suggestion, error) {
	return s.listSuggestions(ctx, `
		SELECT id, voter_id, artist_name, album_title,
			COALESCE(mbid, ''), COALESCE(cover_url, ''), COALESCE(year, 0),
			status, created_at
		FROM album_suggestions
		WHERE voter_id=$1
		ORDER BY created_at DESC
	`, voterID)
}

// ListSuggestions returns every suggestion, optionally filtered by status.
func (s *PostgresStore) ListSuggestions(ctx context.Context, status string) ([]Suggestion, error) {
	return s.listSuggestions(ctx, `
		SELECT id, voter_id, artist_name, album_title,
			COALESCE(mbid, ''), COALESCE(cover_url, ''), COALESCE(year, 0),
			status, created_at
		FROM album_suggestions
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
	`, status)
}

func (s *PostgresStore) listSuggestions(ctx context.Context, query string, arg any) ([]Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]Suggestion, 0)
	for rows.Next() {
		var item Suggestion
		if err := rows.Scan(&item.ID, &item.VoterID, &item.ArtistName, &item.AlbumTitle,
			&item.MBID, &item.CoverURL, &item.Year, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSuggestionStatus(ctx context.Context, suggestionID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE album_suggestions SET status=$2 WHERE id=$1
	`, suggestionID, status)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suggestion rows: %w", err)
	}
	if affected == 0 {
		return ErrSuggestionNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
