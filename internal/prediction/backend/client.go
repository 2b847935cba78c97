// Package backend provides a client for the crop-yield prediction API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/provider/resilience"
)

const (
	// ProviderName identifies the prediction API in health output.
	ProviderName = "prediction-api"

	// CacheProviderName identifies the cache control endpoint.
	CacheProviderName = "prediction-cache"

	predictPath        = "/predict"
	predictGroupedPath = "/predict/grouped"
	cacheClearPath     = "/cache/clear"

	// maxErrorBody bounds how much of an error body is read for logging.
	maxErrorBody = 4 << 10
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the prediction API client.
type ClientConfig struct {
	// BaseURL is the API base URL (API_BASE_URL). Required.
	BaseURL string

	// HTTPClient executes prediction requests. If nil, a guarded client
	// without retries is created.
	HTTPClient HTTPDoer

	// CacheHTTPClient executes cache control requests. If nil, a guarded
	// client with a best-effort retry policy is created.
	CacheHTTPClient HTTPDoer

	// Timeout for a single prediction request (default: 30s).
	Timeout time.Duration

	// Registry receives call outcomes and the default guarded clients.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a prediction API client.
type Client struct {
	baseURL     string
	httpClient  HTTPDoer
	cacheClient HTTPDoer
	registry    *resilience.Registry
	logger      zerolog.Logger
}

// NewClient creates a new prediction API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		guarded := resilience.NewClient(resilience.ClientConfig{
			Name:    ProviderName,
			Timeout: timeout,
			Retry:   resilience.NoRetry(),
		})
		if cfg.Registry != nil {
			cfg.Registry.Register(guarded)
		}
		httpClient = guarded
	}

	cacheClient := cfg.CacheHTTPClient
	if cacheClient == nil {
		guarded := resilience.NewClient(resilience.ClientConfig{
			Name:    CacheProviderName,
			Timeout: 10 * time.Second,
			Retry:   resilience.BestEffortRetry(),
		})
		if cfg.Registry != nil {
			cfg.Registry.Register(guarded)
		}
		cacheClient = guarded
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		cacheClient: cacheClient,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
	}
}

// Predict sends the query to /predict, or /predict/grouped when the query
// asks for level grouping.
//
// A 400 answer yields prediction.ErrValidationRejected. Any other non-2xx
// status or a network failure yields a *prediction.TransportError.
func (c *Client) Predict(ctx context.Context, q prediction.Query) (*prediction.Response, error) {
	path := predictPath
	if q.GroupByLevel {
		path = predictGroupedPath
	}

	body, err := json.Marshal(newPredictRequest(q))
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ProviderName, err)
		return nil, &prediction.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		c.logRejected(resp)
		c.recordSuccess(ProviderName)
		return nil, prediction.ErrValidationRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &prediction.TransportError{StatusCode: resp.StatusCode}
		c.recordFailure(ProviderName, err)
		return nil, err
	}

	var wire predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		err = fmt.Errorf("decode predict response: %w", err)
		c.recordFailure(ProviderName, err)
		return nil, &prediction.TransportError{Err: err}
	}

	c.recordSuccess(ProviderName)
	return wire.toDomain(), nil
}

// ClearCache asks the backend to drop its prediction cache.
func (c *Client) ClearCache(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+cacheClearPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.cacheClient.Do(req)
	if err != nil {
		c.recordFailure(CacheProviderName, err)
		return fmt.Errorf("clear cache: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %d from cache endpoint", resp.StatusCode)
		c.recordFailure(CacheProviderName, err)
		return err
	}

	c.recordSuccess(CacheProviderName)
	return nil
}

func (c *Client) logRejected(resp *http.Response) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return
	}
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("body", string(raw)).
		Msg("prediction query rejected by backend")
}

func (c *Client) recordSuccess(name string) {
	if c.registry != nil {
		c.registry.RecordSuccess(name)
	}
}

func (c *Client) recordFailure(name string, err error) {
	if c.registry != nil {
		c.registry.RecordFailure(name, err)
	}
}
