package store

import "time"

// Vote is one voter's vote for one album. The (VoterID, AlbumID) pair is
// unique at the database level; toggling is delete-then-insert, rows are
// never updated in place.
type Vote struct {
	ID        string    `json:"id"`
	VoterID   string    `json:"voterId"`
	AlbumID   string    `json:"albumId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteCount is a per-album tally derived from the votes table. It is never
// persisted; the ledger is the only source of truth.
type VoteCount struct {
	AlbumID string `json:"albumId"`
	Count   int    `json:"voteCount"`
}

// Suggestion is a member-submitted album suggestion reviewed by staff.
type Suggestion struct {
	ID         string    `json:"id"`
	VoterID    string    `json:"voterId"`
	ArtistName string    `json:"artistName"`
	AlbumTitle string    `json:"albumTitle"`
	MBID       string    `json:"mbid,omitempty"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	Year       int       `json:"year,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}
