package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canemap/canemap/internal/prediction/backend"
	"github.com/canemap/canemap/internal/provider/resilience"
	"github.com/canemap/canemap/internal/worker"
)

type mockClearer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockClearer) ClearCache(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockClearer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubHealth map[string]*resilience.Health

func (s stubHealth) Health(name string) *resilience.Health {
	return s[name]
}

func encode(t *testing.T, jobType string) []byte {
	t.Helper()
	data, err := worker.EncodeJob(worker.JobMessage{
		JobType:     jobType,
		RequestID:   "req_1",
		RequestedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return data
}

func TestJobCodec(t *testing.T) {
	data := encode(t, worker.JobCacheClear)

	msg, err := worker.DecodeJob(data)
	require.NoError(t, err)
	assert.Equal(t, worker.JobCacheClear, msg.JobType)
	assert.Equal(t, "req_1", msg.RequestID)
	assert.Equal(t, 2025, msg.RequestedAt.Year())

	_, err = worker.EncodeJob(worker.JobMessage{})
	assert.ErrorIs(t, err, worker.ErrMalformedJob)
}

func TestDecodeJob_Malformed(t *testing.T) {
	for _, data := range []string{`not json`, `{}`, `{"job_type":""}`} {
		_, err := worker.DecodeJob([]byte(data))
		assert.ErrorIs(t, err, worker.ErrMalformedJob, data)
		assert.True(t, worker.Permanent(err))
	}
}

func TestProcessor_CacheClear(t *testing.T) {
	clearer := &mockClearer{}
	p := worker.NewProcessor(worker.ProcessorConfig{Clearer: clearer, Logger: zerolog.Nop()})

	require.NoError(t, p.Process(context.Background(), encode(t, worker.JobCacheClear)))
	assert.Equal(t, 1, clearer.Calls())
}

func TestProcessor_CacheClearFailureIsRetryable(t *testing.T) {
	clearer := &mockClearer{err: errors.New("backend down")}
	p := worker.NewProcessor(worker.ProcessorConfig{Clearer: clearer, Logger: zerolog.Nop()})

	err := p.Process(context.Background(), encode(t, worker.JobCacheClear))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	assert.False(t, worker.Permanent(err))
}

func TestProcessor_UnknownJob(t *testing.T) {
	clearer := &mockClearer{}
	p := worker.NewProcessor(worker.ProcessorConfig{Clearer: clearer, Logger: zerolog.Nop()})

	err := p.Process(context.Background(), encode(t, "provider_refresh"))
	assert.ErrorIs(t, err, worker.ErrUnknownJob)
	assert.True(t, worker.Permanent(err))
	assert.Zero(t, clearer.Calls())
}

func TestProcessor_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		health  stubHealth
		wantErr bool
	}{
		{name: "no registry entries", health: stubHealth{}},
		{
			name: "closed breakers",
			health: stubHealth{
				backend.ProviderName:      {Name: backend.ProviderName, State: gobreaker.StateClosed},
				backend.CacheProviderName: {Name: backend.CacheProviderName, State: gobreaker.StateClosed},
			},
		},
		{
			name: "half open is tolerated",
			health: stubHealth{
				backend.ProviderName: {Name: backend.ProviderName, State: gobreaker.StateHalfOpen},
			},
		},
		{
			name: "open breaker fails",
			health: stubHealth{
				backend.ProviderName: {Name: backend.ProviderName, State: gobreaker.StateOpen, LastError: "timeout"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := worker.NewProcessor(worker.ProcessorConfig{
				Clearer: &mockClearer{},
				Health:  tt.health,
				Logger:  zerolog.Nop(),
			})

			err := p.Process(context.Background(), encode(t, worker.JobHealthCheck))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "timeout")
				assert.False(t, worker.Permanent(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
