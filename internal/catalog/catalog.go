// Package catalog is a read-only client for the external content store
// that owns album metadata. Votes reference albums by the store's ids;
// nothing here is ever written.
package catalog

import "errors"

// ErrUnavailable indicates the content store could not be reached or
// answered with a server error within the configured timeout.
var ErrUnavailable = errors.New("content store unavailable")

// Album is the subject metadata resolved for a catalog id.
type Album struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Year       int    `json:"year"`
	Genre      string `json:"genre"`
	CoverImage string `json:"coverImage"`
}
