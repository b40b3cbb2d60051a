// Package postgres implements the Store interface on PostgreSQL, for sites
// that run several harvesters against one shared progress database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceanobs/chanharvest/internal/store"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*PostgresStore)(nil)

// Config holds Postgres connection settings.
type Config struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// PostgresStore is a Postgres-backed Store.
type PostgresStore struct {
	dsn  string
	pool *pgxpool.Pool
}

// New creates a new PostgresStore. The connection is established by Start.
func New(cfg *Config) *PostgresStore {
	return &PostgresStore{dsn: cfg.DSN}
}

// Start connects, verifies the connection and runs the schema DDL.
func (s *PostgresStore) Start(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	s.pool = pool

	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Stop closes the connection pool.
func (s *PostgresStore) Stop(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetWatermark returns the watermark for (channel, qc level), or nil when absent.
func (s *PostgresStore) GetWatermark(ctx context.Context, channelID string, qcLevel int) (*types.Watermark, error) {
	wm := &types.Watermark{ChannelID: channelID, QCLevel: qcLevel}
	err := s.pool.QueryRow(ctx, `
		SELECT covered_through, updated_at FROM watermarks
		WHERE channel_id = $1 AND qc_level = $2
	`, channelID, qcLevel).Scan(&wm.CoveredThrough, &wm.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting watermark: %w", err)
	}
	return wm, nil
}

// AdvanceWatermark moves the watermark forward; GREATEST keeps it monotonic
// even when called with an older timestamp.
func (s *PostgresStore) AdvanceWatermark(ctx context.Context, channelID string, qcLevel int, coveredThrough time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watermarks (channel_id, qc_level, covered_through, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel_id, qc_level) DO UPDATE SET
			covered_through = GREATEST(watermarks.covered_through, EXCLUDED.covered_through),
			updated_at      = NOW()
	`, channelID, qcLevel, coveredThrough)
	if err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}

// ListWatermarks returns all watermarks for a QC level, ordered by channel id.
func (s *PostgresStore) ListWatermarks(ctx context.Context, qcLevel int) ([]types.Watermark, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT channel_id, covered_through, updated_at FROM watermarks
		WHERE qc_level = $1 ORDER BY channel_id
	`, qcLevel)
	if err != nil {
		return nil, fmt.Errorf("listing watermarks: %w", err)
	}
	defer rows.Close()

	var out []types.Watermark
	for rows.Next() {
		wm := types.Watermark{QCLevel: qcLevel}
		if err := rows.Scan(&wm.ChannelID, &wm.CoveredThrough, &wm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning watermark: %w", err)
		}
		out = append(out, wm)
	}
	return out, rows.Err()
}

// PutRunReport stores a run summary record.
func (s *PostgresStore) PutRunReport(ctx context.Context, report types.RunReport) error {
	levels, err := json.Marshal(report.Levels)
	if err != nil {
		return fmt.Errorf("marshal run report levels: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO run_reports (run_id, started_at, finished_at, levels)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			levels      = EXCLUDED.levels
	`, report.RunID, report.StartedAt, report.FinishedAt, levels)
	return err
}

// ListRunReports returns the most recent run reports, newest first.
func (s *PostgresStore) ListRunReports(ctx context.Context, limit int) ([]types.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, levels FROM run_reports
		ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing run reports: %w", err)
	}
	defer rows.Close()

	var out []types.RunReport
	for rows.Next() {
		var (
			report types.RunReport
			levels []byte
		)
		if err := rows.Scan(&report.RunID, &report.StartedAt, &report.FinishedAt, &levels); err != nil {
			return nil, fmt.Errorf("scanning run report: %w", err)
		}
		if len(levels) > 0 {
			if err := json.Unmarshal(levels, &report.Levels); err != nil {
				return nil, fmt.Errorf("unmarshal run report levels: %w", err)
			}
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// AcquireLock takes the named lock unless it is held and unexpired.
func (s *PostgresStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO run_locks (key, expires_at)
		VALUES ($1, NOW() + $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE run_locks.expires_at < NOW()
	`, key, ttl)
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLock drops the named lock.
func (s *PostgresStore) ReleaseLock(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM run_locks WHERE key = $1`, key)
	return err
}
