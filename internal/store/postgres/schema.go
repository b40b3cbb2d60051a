package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS watermarks (
    channel_id      TEXT NOT NULL,
    qc_level        INTEGER NOT NULL,
    covered_through TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (channel_id, qc_level)
);
CREATE INDEX IF NOT EXISTS idx_watermarks_qc_level ON watermarks (qc_level);

CREATE TABLE IF NOT EXISTS run_reports (
    run_id      TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    levels      JSONB
);
CREATE INDEX IF NOT EXISTS idx_run_reports_started_at ON run_reports (started_at);

CREATE TABLE IF NOT EXISTS run_locks (
    key        TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);
`

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
