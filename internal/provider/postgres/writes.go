package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// UpsertRun archives a run. Run records never change once written, so a
// repeated archive of the same run is a no-op.
func (s *Store) UpsertRun(ctx context.Context, run types.RunRecord) error {
	var counts []byte
	if run.Counts != nil {
		var err error
		if counts, err = json.Marshal(run.Counts); err != nil {
			return fmt.Errorf("marshal run counts: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO etl_runs (run_id, started_at, completed_at, status, counts, tables_loaded,
			total_rows, dropped_records, duration_secs, error_kind, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING
	`, run.RunID, run.StartedAt, run.CompletedAt, string(run.Status), counts, run.TablesLoaded,
		run.TotalRows, run.DroppedRecords, run.DurationSeconds,
		nullable(run.ErrorKind), nullable(run.ErrorMessage))
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", run.RunID, err)
	}
	return nil
}

// GetCursor returns the archive cursor for a source, or "" if none is stored.
func (s *Store) GetCursor(ctx context.Context, source string) (string, error) {
	var cursor string
	err := s.pool.QueryRow(ctx, `
		SELECT cursor_value FROM archive_cursors WHERE source = $1
	`, source).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get cursor %s: %w", source, err)
	}
	return cursor, nil
}

// SetCursor stores the archive cursor for a source.
func (s *Store) SetCursor(ctx context.Context, source, cursorValue string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_cursors (source, cursor_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO UPDATE SET
			cursor_value = EXCLUDED.cursor_value,
			updated_at   = NOW()
	`, source, cursorValue)
	if err != nil {
		return fmt.Errorf("set cursor %s: %w", source, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
