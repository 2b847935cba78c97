package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/overlay"
	"github.com/canemap/canemap/internal/pipeline"
)

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	Repository Repository
	Predictor  pipeline.Predictor

	MapProviderKey   string
	MaxPointsPerZone int
	Pacing           time.Duration

	Logger          zerolog.Logger
	PipelineMetrics *pipeline.Metrics
	OverlayMetrics  *overlay.Metrics
	Now             func() time.Time
}

// Manager owns the live sessions of the process.
type Manager struct {
	cfg    ManagerConfig
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		logger:   cfg.Logger,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session with default filters.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := m.newSession("ses_"+uuid.New().String(), nil)

	if err := m.repo.Save(ctx, s.Record()); err != nil {
		_ = s.Teardown()
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Debug().Str("session_id", s.ID()).Msg("session created")
	return s, nil
}

// Get returns a live session, restoring it from the repository if this
// process has not seen it yet.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	rec, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s = m.newSession(id, rec)
	m.sessions[id] = s
	m.logger.Debug().Str("session_id", id).Msg("session restored")
	return s, nil
}

// Save persists the filter and applied state of a session.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if err := m.repo.Save(ctx, s.Record()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete tears a session down and forgets it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !live {
		if _, err := m.repo.Get(ctx, id); err != nil {
			return err
		}
	}

	var errs []error
	if live {
		if err := s.Teardown(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	return errors.Join(errs...)
}

// Sweep tears down sessions idle for longer than ttl.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if err := s.Teardown(); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("tearing down idle session")
		}
	}

	ids, err := m.repo.DeleteIdle(ctx, cutoff)
	if err != nil {
		return len(idle), fmt.Errorf("delete idle sessions: %w", err)
	}

	swept := len(idle)
	for _, id := range ids {
		if !containsSession(idle, id) {
			swept++
		}
	}
	if swept > 0 {
		m.logger.Info().Int("sessions", swept).Dur("ttl", ttl).Msg("idle sessions swept")
	}
	return swept, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every live session. Persisted records are kept.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Teardown(); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("tearing down session")
		}
	}
}

func (m *Manager) newSession(id string, rec *Record) *Session {
	return NewSession(SessionConfig{
		ID:               id,
		Predictor:        m.cfg.Predictor,
		MapProviderKey:   m.cfg.MapProviderKey,
		MaxPointsPerZone: m.cfg.MaxPointsPerZone,
		Pacing:           m.cfg.Pacing,
		Record:           rec,
		Logger:           m.logger,
		PipelineMetrics:  m.cfg.PipelineMetrics,
		OverlayMetrics:   m.cfg.OverlayMetrics,
		Now:              m.now,
	})
}

func containsSession(sessions []*Session, id string) bool {
	for _, s := range sessions {
		if s.ID() == id {
			return true
		}
	}
	return false
}
