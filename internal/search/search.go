// Package search provides full-text search over the album suggestion
// queue. Catalog search belongs to the external content store; the only
// locally searchable data is what members submit here.
package search

import "context"

// Result is a single suggestion hit returned to the review queue.
type Result struct {
	ID         string `json:"id"`
	ArtistName string `json:"artistName"`
	AlbumTitle string `json:"albumTitle"`
	Snippet    string `json:"snippet"`
	Status     string `json:"status"`
}

// Query describes a search request against the suggestion queue.
type Query struct {
	Text   string
	Status string // empty = all statuses
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over suggestions.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}
