package store

import "errors"

var (
	// ErrDuplicateVote indicates the voter already has a vote for this album.
	// Raised by the unique constraint, not by an application-level check, so
	// it stays correct under concurrent casts.
	ErrDuplicateVote = errors.New("vote already exists")

	// ErrDuplicateSuggestion indicates the voter already suggested this album.
	ErrDuplicateSuggestion = errors.New("suggestion already exists")

	// ErrSuggestionNotFound indicates the suggestion id does not exist.
	ErrSuggestionNotFound = errors.New("suggestion not found")
)
