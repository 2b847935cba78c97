package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for guarded calls.
var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// RetryPolicy controls retries of failed calls. The zero value disables
// retries entirely.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries uint64

	// InitialInterval is the first backoff delay. Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay. Default: 2s
	MaxInterval time.Duration
}

// NoRetry returns a policy that performs exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// BestEffortRetry returns the policy used for fire-and-forget maintenance
// calls such as cache clearing.
func BestEffortRetry() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// ClientConfig holds configuration for the guarded HTTP client.
type ClientConfig struct {
	// Name identifies the client in the breaker and the registry.
	Name string

	// Timeout bounds each individual HTTP attempt. Default: 30 seconds
	Timeout time.Duration

	// Retry is the retry policy. The zero value means no retries.
	Retry RetryPolicy

	// Breaker overrides the breaker configuration.
	// If nil, DefaultBreakerConfig(Name) is used.
	Breaker *BreakerConfig

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client is an HTTP client guarded by a circuit breaker.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	retry      RetryPolicy
}

// NewClient creates a guarded HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries > 0 {
		if cfg.Retry.InitialInterval == 0 {
			cfg.Retry.InitialInterval = 100 * time.Millisecond
		}
		if cfg.Retry.MaxInterval == 0 {
			cfg.Retry.MaxInterval = 2 * time.Second
		}
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	return &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker: newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		retry:   cfg.Retry,
	}
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// Do executes the request through the breaker.
//
// 5xx responses count as breaker failures but are still handed back to the
// caller once attempts are exhausted, so the caller can report the status.
// 4xx responses are successes from the breaker's point of view and are
// never retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	attempt := func() error {
		if last != nil {
			_ = last.Body.Close()
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(cloneRequest(ctx, req))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			last = resp
			return err
		}
		last = resp
		return nil
	}

	if err := backoff.Retry(attempt, c.backoff(ctx)); err != nil {
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	if c.retry.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialInterval
	bo.MaxInterval = c.retry.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.retry.MaxRetries), ctx)
}

// cloneRequest copies the request for another attempt, rewinding the body
// when the request was built from an in-memory reader.
func cloneRequest(ctx context.Context, req *http.Request) *http.Request {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	return clone
}

// ServerError represents an HTTP 5xx answer.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// State returns the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the current breaker counts.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
