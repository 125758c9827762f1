package anchorlog

import "errors"

// Every failure is detected before any state mutation and surfaced as one of
// these sentinel values (possibly wrapped); match with errors.Is.
var (
	// ErrNotOwner — Initialize called by someone other than the deploying
	// principal.
	ErrNotOwner = errors.New("only the owner can initialize the anchor log")

	// ErrAlreadyInitialized — Initialize called after the authority is set.
	ErrAlreadyInitialized = errors.New("anchor log already initialized")

	// ErrUnauthorized — AnchorState or RotateAuthority called by a principal
	// that is not the current authority.
	ErrUnauthorized = errors.New("caller is not the anchor authority")

	// ErrInvalidAuthority — RotateAuthority given an empty or malformed
	// principal address.
	ErrInvalidAuthority = errors.New("invalid authority address")

	// ErrInvalidBlockRange — AnchorState given block_end < block_start.
	ErrInvalidBlockRange = errors.New("invalid block range: end < start")

	// ErrEmptyStateRoot — AnchorState given an empty state root.
	ErrEmptyStateRoot = errors.New("state root cannot be empty")
)
