// Package musicbrainz looks up artists and their albums for the
// suggestion form's autocomplete. The API proxies these reads so browsers
// never call MusicBrainz directly; MusicBrainz rate-limits per client and
// requires an identifying User-Agent.
package musicbrainz

import "errors"

// ErrUnavailable indicates MusicBrainz could not be reached or answered
// with a server error within the configured timeout.
var ErrUnavailable = errors.New("musicbrainz unavailable")

// Artist is one autocomplete candidate from an artist search.
type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sortName"`
	Disambiguation string `json:"disambiguation,omitempty"`
	Country        string `json:"country,omitempty"`
}

// Release is one studio album by an artist, with cover art resolved
// through the Cover Art Archive.
type Release struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	CoverURL    string `json:"coverUrl"`
}
