package models

import (
	"encoding/json"
	"net/http"
)

// problemBase is the namespace of problem type URIs.
const problemBase = "https://canemap.dev/problems/"

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points a validation failure at one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemKind is a class of problem with a fixed type URI, title and status.
type ProblemKind struct {
	Slug   string
	Title  string
	Status int
}

// Type returns the problem type URI.
func (k ProblemKind) Type() string {
	return problemBase + k.Slug
}

// Problem kinds served by the dashboard API.
var (
	KindValidation      = ProblemKind{Slug: "validation-error", Title: "Validation error", Status: http.StatusBadRequest}
	KindNotFound        = ProblemKind{Slug: "not-found", Title: "Not found", Status: http.StatusNotFound}
	KindSessionClosed   = ProblemKind{Slug: "session-closed", Title: "Session closed", Status: http.StatusGone}
	KindTooManyRequests = ProblemKind{Slug: "too-many-requests", Title: "Too many requests", Status: http.StatusTooManyRequests}
	KindUnsupportedType = ProblemKind{Slug: "unsupported-media-type", Title: "Unsupported media type", Status: http.StatusUnsupportedMediaType}
	KindTLSRequired     = ProblemKind{Slug: "tls-required", Title: "TLS required", Status: http.StatusForbidden}
	KindInternal        = ProblemKind{Slug: "internal-error", Title: "Internal server error", Status: http.StatusInternalServerError}
	KindUnavailable     = ProblemKind{Slug: "service-unavailable", Title: "Service unavailable", Status: http.StatusServiceUnavailable}
)

// NewProblem creates a problem of the given kind.
func NewProblem(kind ProblemKind, traceID, detail string) *Problem {
	return &Problem{
		Type:    kind.Type(),
		Title:   kind.Title,
		Status:  kind.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// WithInstance sets the URI of the failing request.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches field errors.
func (p *Problem) WithErrors(errs ...FieldError) *Problem {
	p.Errors = append(p.Errors, errs...)
	return p
}

// Write serializes the problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
