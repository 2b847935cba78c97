// Package worker runs cache-control jobs for the prediction backend.
//
// Jobs travel as JSON on a Pub/Sub topic. The dashboard publishes them and
// the worker consumes them; both sides share the codec in this file.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Job types carried on the cache-control topic.
const (
	JobCacheClear  = "cache_clear"
	JobHealthCheck = "health_check"
)

// Errors that make a message worthless to redeliver.
var (
	ErrMalformedJob = errors.New("malformed job message")
	ErrUnknownJob   = errors.New("unknown job type")
)

// JobMessage is the payload of a cache-control message.
type JobMessage struct {
	JobType     string    `json:"job_type"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// EncodeJob serializes a job message.
func EncodeJob(msg JobMessage) ([]byte, error) {
	if msg.JobType == "" {
		return nil, fmt.Errorf("%w: job_type is required", ErrMalformedJob)
	}
	return json.Marshal(msg)
}

// DecodeJob parses a job message.
func DecodeJob(data []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return JobMessage{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if msg.JobType == "" {
		return JobMessage{}, fmt.Errorf("%w: job_type is required", ErrMalformedJob)
	}
	return msg, nil
}

// Permanent reports whether err leaves nothing to retry, so the message
// should be acked rather than redelivered.
func Permanent(err error) bool {
	return errors.Is(err, ErrMalformedJob) || errors.Is(err, ErrUnknownJob)
}
