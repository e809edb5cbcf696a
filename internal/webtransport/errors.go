package webtransport

import (
	"errors"
	"net/http"

	"github.com/komodore/core/internal/model"
)

// statusForError maps the model error taxonomy (spec §7) to the HTTP
// status the envelope layer responds with, the same mapping
// internal/webhook applies inline for its own narrower set of cases.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
