package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/prediction"
)

// Schema creates the session table.
const Schema = `
CREATE TABLE IF NOT EXISTS dashboard_sessions (
	id         TEXT PRIMARY KEY,
	filter     JSONB NOT NULL,
	applied    JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS dashboard_sessions_updated_at_idx ON dashboard_sessions (updated_at);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the session table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create dashboard_sessions: %w", err)
	}
	return nil
}

// Get retrieves a session record by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, filter, applied, created_at, updated_at
		FROM dashboard_sessions
		WHERE id = $1
	`

	var (
		rec         Record
		filterJSON  []byte
		appliedJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&filterJSON,
		&appliedJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	rec.Filter, err = decodeState(filterJSON)
	if err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if appliedJSON != nil {
		applied, err := decodeState(appliedJSON)
		if err != nil {
			return nil, fmt.Errorf("decode applied: %w", err)
		}
		rec.Applied = &applied
	}

	return &rec, nil
}

// Save creates or replaces a session record.
func (r *PostgresRepository) Save(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO dashboard_sessions (id, filter, applied, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			filter = EXCLUDED.filter,
			applied = EXCLUDED.applied,
			updated_at = EXCLUDED.updated_at
	`

	filterJSON, err := encodeState(rec.Filter)
	if err != nil {
		return err
	}

	var appliedJSON []byte
	if rec.Applied != nil {
		appliedJSON, err = encodeState(*rec.Applied)
		if err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx, query, rec.ID, filterJSON, appliedJSON, rec.CreatedAt, rec.UpdatedAt)
	return err
}

// Delete deletes a session record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM dashboard_sessions WHERE id = $1`, id)
	return err
}

// DeleteIdle deletes records not updated since cutoff.
func (r *PostgresRepository) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`DELETE FROM dashboard_sessions WHERE updated_at < $1 RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// storedState is the JSONB shape of a filter state.
type storedState struct {
	Year          int      `json:"year"`
	StartMonth    int      `json:"start_month"`
	EndMonth      int      `json:"end_month"`
	SelectedMonth int      `json:"selected_month"`
	Models        []string `json:"models"`
	Zones         []string `json:"zones"`
	Limit         int      `json:"limit"`
	GroupByLevel  bool     `json:"group_by_level"`
	FocusedZone   string   `json:"focused_zone,omitempty"`
}

func encodeState(s filter.State) ([]byte, error) {
	return json.Marshal(storedState{
		Year:          s.Query.Year,
		StartMonth:    s.Query.StartMonth,
		EndMonth:      s.Query.EndMonth,
		SelectedMonth: s.Query.SelectedMonth,
		Models:        s.Query.Models,
		Zones:         s.Query.Zones,
		Limit:         s.Query.Limit,
		GroupByLevel:  s.Query.GroupByLevel,
		FocusedZone:   s.FocusedZone,
	})
}

func decodeState(data []byte) (filter.State, error) {
	var st storedState
	if err := json.Unmarshal(data, &st); err != nil {
		return filter.State{}, err
	}
	return filter.State{
		Query: prediction.Query{
			Year:          st.Year,
			StartMonth:    st.StartMonth,
			EndMonth:      st.EndMonth,
			SelectedMonth: st.SelectedMonth,
			Models:        st.Models,
			Zones:         st.Zones,
			Limit:         st.Limit,
			GroupByLevel:  st.GroupByLevel,
		},
		FocusedZone: st.FocusedZone,
	}, nil
}
