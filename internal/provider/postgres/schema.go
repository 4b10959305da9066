// Package postgres implements a durable Postgres archive for run history.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS etl_runs (
    run_id          TEXT PRIMARY KEY,
    started_at      TIMESTAMPTZ NOT NULL,
    completed_at    TIMESTAMPTZ NOT NULL,
    status          TEXT NOT NULL,
    counts          JSONB,
    tables_loaded   INTEGER NOT NULL,
    total_rows      INTEGER NOT NULL,
    dropped_records INTEGER NOT NULL DEFAULT 0,
    duration_secs   DOUBLE PRECISION NOT NULL,
    error_kind      TEXT,
    error_message   TEXT,
    archived_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_etl_runs_status ON etl_runs (status);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs (started_at);

CREATE TABLE IF NOT EXISTS archive_cursors (
    source       TEXT PRIMARY KEY,
    cursor_value TEXT NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
