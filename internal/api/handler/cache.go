package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/api/middleware"
	"github.com/canemap/canemap/internal/api/models"
	"github.com/canemap/canemap/internal/api/response"
)

// Cache clear modes reported to the client.
const (
	CacheModeQueued = "queued"
	CacheModeDirect = "direct"
)

// directClearTimeout bounds a cache clear run in-process.
const directClearTimeout = 30 * time.Second

// CacheClearer drops the backend prediction cache.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// JobPublisher enqueues a cache clear for the worker.
type JobPublisher interface {
	PublishCacheClear(ctx context.Context, requestID string) (string, error)
}

// CacheHandler serves the cache control endpoint.
type CacheHandler struct {
	clearer   CacheClearer
	publisher JobPublisher
	logger    zerolog.Logger
}

// CacheHandlerConfig holds the collaborators of a CacheHandler.
type CacheHandlerConfig struct {
	Clearer CacheClearer

	// Publisher, when set, hands clears to the worker instead of calling
	// the backend in-process.
	Publisher JobPublisher

	Logger zerolog.Logger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(cfg CacheHandlerConfig) *CacheHandler {
	return &CacheHandler{
		clearer:   cfg.Clearer,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}

// ClearCache handles DELETE /v1/cache. The clear is best effort and the
// request is acknowledged before the backend answers.
func (h *CacheHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if h.publisher != nil {
		jobID, err := h.publisher.PublishCacheClear(r.Context(), requestID)
		if err != nil {
			h.logger.Error().Err(err).Str("request_id", requestID).Msg("enqueueing cache clear")
			response.ServiceUnavailable(w, r, "cache clear could not be queued")
			return
		}
		response.Accepted(w, r, "", models.CacheClearResponse{Status: "accepted", Mode: CacheModeQueued, JobID: jobID})
		return
	}

	if h.clearer == nil {
		response.ServiceUnavailable(w, r, "cache control is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), directClearTimeout)
	go func() {
		defer cancel()
		if err := h.clearer.ClearCache(ctx); err != nil {
			h.logger.Warn().Err(err).Str("request_id", requestID).Msg("prediction cache not cleared")
		} else {
			h.logger.Info().Str("request_id", requestID).Msg("prediction cache cleared")
		}
	}()
	response.Accepted(w, r, "", models.CacheClearResponse{Status: "accepted", Mode: CacheModeDirect})
}
