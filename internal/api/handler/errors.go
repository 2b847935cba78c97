package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/api/middleware"
	"github.com/canemap/canemap/internal/api/response"
	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/prediction"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is required")

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, disallowUnknown bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound):
		response.NotFound(w, r, "session not found")
	case errors.Is(err, dashboard.ErrSessionClosed):
		response.Gone(w, r, "session has been closed")
	case errors.Is(err, filter.ErrUnknownMonth),
		errors.Is(err, filter.ErrDerivedField),
		errors.Is(err, filter.ErrInvalidValue),
		errors.Is(err, filter.ErrUnknownField):
		response.BadRequest(w, r, err.Error())
	case errors.Is(err, maphost.ErrMarkerNotFound):
		response.NotFound(w, r, "marker not found")
	case errors.Is(err, maphost.ErrNoPopup):
		response.NotFound(w, r, "marker has no popup")
	case errors.Is(err, prediction.ErrMapUnavailable):
		response.ServiceUnavailable(w, r, prediction.MessageMapUnavailable)
	default:
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
