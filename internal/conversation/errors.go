package conversation

import "errors"

// Sentinel errors for conversation operations. Part of the Store's public
// API; check with errors.Is().
var (
	// ErrThreadNotFound indicates the referenced thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidRole indicates a message role other than user/assistant.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptyContent indicates an empty message body.
	ErrEmptyContent = errors.New("message content is required")

	// ErrInvalidLimit indicates a negative history limit.
	ErrInvalidLimit = errors.New("invalid history limit")

	// ErrInvalidBudget indicates a non-positive token budget.
	ErrInvalidBudget = errors.New("invalid token budget")

	// ErrMissingOwner indicates a thread create without an owner id.
	ErrMissingOwner = errors.New("owner id is required")

	// ErrMissingPlatform indicates a thread create without a platform tag.
	ErrMissingPlatform = errors.New("platform is required")
)
