package prediction

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure categories surfaced to the analyst.
var (
	// ErrValidationRejected is returned when the backend answers 400.
	ErrValidationRejected = errors.New("prediction query rejected")

	// ErrMapUnavailable is returned when the mapping SDK cannot be used.
	ErrMapUnavailable = errors.New("map unavailable")
)

// Banner messages.
const (
	MessageLoadFailed     = "Error loading prediction data"
	MessageMapUnavailable = "Map is unavailable"
)

// TransportError wraps a network failure or a non-2xx status other than 400.
type TransportError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("prediction backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return "prediction backend unreachable: " + e.Err.Error()
	}
	return "prediction backend unreachable"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage converts an error into the banner text shown on the dashboard.
// Validation rejections are categorical and never leak the raw message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrValidationRejected) {
		return MessageLoadFailed
	}
	if errors.Is(err, ErrMapUnavailable) {
		return MessageMapUnavailable
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d)", MessageLoadFailed, te.StatusCode)
		}
		if te.Err != nil {
			return MessageLoadFailed + ": " + te.Err.Error()
		}
	}
	return MessageLoadFailed + ": " + err.Error()
}
