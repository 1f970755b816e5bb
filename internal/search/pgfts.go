package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// fts column on album_suggestions.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search executes a ranked query using plainto_tsquery and ts_rank, with
// ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.Status != "" {
		where += " AND status = $2"
		args = append(args, q.Status)
	}

	countSQL := "SELECT count(*) FROM album_suggestions WHERE " + where

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, artist_name, album_title, status,
			ts_headline('english', artist_name || ' - ' || album_title,
				plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=20') AS snippet
		FROM album_suggestions
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('english', $1)) DESC, created_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.ArtistName, &r.AlbumTitle, &r.Status, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}
