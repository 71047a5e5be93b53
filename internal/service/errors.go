package service

import "errors"

var (
	// ErrEmptyQuery is returned when the query text is blank
	ErrEmptyQuery = errors.New("query is empty")
	// ErrEmbedding wraps failures of the embedding provider
	ErrEmbedding = errors.New("embedding provider failed")
	// ErrGeneration wraps failures of the answer generator
	ErrGeneration = errors.New("response generation failed")
	// ErrStore wraps listing store read failures
	ErrStore = errors.New("listing store failed")
	// ErrListingNotFound is returned when a listing id does not exist
	ErrListingNotFound = errors.New("listing not found")
)
