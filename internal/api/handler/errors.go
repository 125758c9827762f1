package handler

import (
	"errors"
	"net/http"

	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"github.com/siash1/bhulekh-chain/internal/title"
)

// statusForError maps domain errors to HTTP statuses. Unknown errors map to
// 500 with no message, so callers never leak internal detail.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, anchorlog.ErrUnauthorized),
		errors.Is(err, anchorlog.ErrNotOwner):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, anchorlog.ErrAlreadyInitialized),
		errors.Is(err, title.ErrFrozen),
		errors.Is(err, title.ErrDuplicateProperty):
		return http.StatusConflict, err.Error()
	case errors.Is(err, anchorlog.ErrInvalidAuthority),
		errors.Is(err, anchorlog.ErrInvalidBlockRange),
		errors.Is(err, anchorlog.ErrEmptyStateRoot):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, title.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, ""
	}
}
