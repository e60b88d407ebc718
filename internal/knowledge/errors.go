package knowledge

import "errors"

// Sentinel errors for knowledge operations; check with errors.Is().
var (
	// ErrEntryNotFound indicates the referenced entry does not exist.
	ErrEntryNotFound = errors.New("knowledge entry not found")

	// ErrUnknownPersonality indicates an unregistered personality id.
	ErrUnknownPersonality = errors.New("unknown personality")

	// ErrEmptyQuery indicates a search with no query text.
	ErrEmptyQuery = errors.New("search query is required")

	// ErrInvalidSearchLimit indicates a non-positive result limit.
	ErrInvalidSearchLimit = errors.New("invalid search limit")
)
