package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// QueryRunHistory returns archived runs, most recent first. A non-empty
// status restricts the result to that status.
func (s *Store) QueryRunHistory(ctx context.Context, status types.RunStatus, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, completed_at, status, counts, tables_loaded, total_rows,
			dropped_records, duration_secs, COALESCE(error_kind, ''), COALESCE(error_message, '')
		FROM etl_runs
		WHERE $1::text = '' OR status = $1
		ORDER BY run_id DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var (
			r      types.RunRecord
			status string
			counts []byte
		)
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.CompletedAt, &status, &counts,
			&r.TablesLoaded, &r.TotalRows, &r.DroppedRecords, &r.DurationSeconds,
			&r.ErrorKind, &r.ErrorMessage); err != nil {
			return nil, err
		}
		r.Status = types.RunStatus(status)
		if counts != nil {
			if err := json.Unmarshal(counts, &r.Counts); err != nil {
				return nil, fmt.Errorf("run %s counts: %w", r.RunID, err)
			}
		}
		r.StartedAt = r.StartedAt.UTC()
		r.CompletedAt = r.CompletedAt.UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FailureKindCount is one row of QueryFailureKinds.
type FailureKindCount struct {
	ErrorKind string
	Runs      int
}

// QueryFailureKinds counts failed runs per error kind since the given time.
func (s *Store) QueryFailureKinds(ctx context.Context, since time.Time) ([]FailureKindCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(error_kind, ''), COUNT(*)
		FROM etl_runs
		WHERE status = 'failure' AND started_at >= $1
		GROUP BY error_kind
		ORDER BY COUNT(*) DESC, error_kind
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query failure kinds: %w", err)
	}
	defer rows.Close()

	var out []FailureKindCount
	for rows.Next() {
		var f FailureKindCount
		if err := rows.Scan(&f.ErrorKind, &f.Runs); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
