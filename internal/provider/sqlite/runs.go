package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

const defaultListLimit = 20

// runRow is the etl_runs row layout. Per-entity counts are NULL for
// entities the run did not load.
type runRow struct {
	RunID            string         `db:"run_id"`
	StartedAt        string         `db:"started_at"`
	CompletedAt      string         `db:"completed_at"`
	Status           string         `db:"status"`
	AgentsRows       sql.NullInt64  `db:"agents_rows"`
	AbilitiesRows    sql.NullInt64  `db:"abilities_rows"`
	WeaponsRows      sql.NullInt64  `db:"weapons_rows"`
	WeaponDamageRows sql.NullInt64  `db:"weapon_damage_rows"`
	MapsRows         sql.NullInt64  `db:"maps_rows"`
	GameModesRows    sql.NullInt64  `db:"gamemodes_rows"`
	TablesLoaded     int            `db:"tables_loaded"`
	TotalRows        int            `db:"total_rows"`
	DroppedRecords   int            `db:"dropped_records"`
	DurationSeconds  float64        `db:"duration_seconds"`
	ErrorKind        sql.NullString `db:"error_kind"`
	ErrorMessage     sql.NullString `db:"error_message"`
}

func (r *runRow) counts() map[types.Entity]*sql.NullInt64 {
	return map[types.Entity]*sql.NullInt64{
		types.EntityAgents:       &r.AgentsRows,
		types.EntityAbilities:    &r.AbilitiesRows,
		types.EntityWeapons:      &r.WeaponsRows,
		types.EntityWeaponDamage: &r.WeaponDamageRows,
		types.EntityMaps:         &r.MapsRows,
		types.EntityGameModes:    &r.GameModesRows,
	}
}

func toRow(rec types.RunRecord) runRow {
	row := runRow{
		RunID:           rec.RunID,
		StartedAt:       rec.StartedAt.UTC().Format(time.RFC3339Nano),
		CompletedAt:     rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		Status:          string(rec.Status),
		TablesLoaded:    rec.TablesLoaded,
		TotalRows:       rec.TotalRows,
		DroppedRecords:  rec.DroppedRecords,
		DurationSeconds: rec.DurationSeconds,
		ErrorKind:       sql.NullString{String: rec.ErrorKind, Valid: rec.ErrorKind != ""},
		ErrorMessage:    sql.NullString{String: rec.ErrorMessage, Valid: rec.ErrorMessage != ""},
	}
	for e, col := range row.counts() {
		if n, ok := rec.Counts[e]; ok {
			*col = sql.NullInt64{Int64: int64(n), Valid: true}
		}
	}
	return row
}

func (r runRow) record() (types.RunRecord, error) {
	started, err := time.Parse(time.RFC3339Nano, r.StartedAt)
	if err != nil {
		return types.RunRecord{}, fmt.Errorf("run %s: parsing started_at: %w", r.RunID, err)
	}
	completed, err := time.Parse(time.RFC3339Nano, r.CompletedAt)
	if err != nil {
		return types.RunRecord{}, fmt.Errorf("run %s: parsing completed_at: %w", r.RunID, err)
	}
	rec := types.RunRecord{
		RunID:           r.RunID,
		StartedAt:       started,
		CompletedAt:     completed,
		Status:          types.RunStatus(r.Status),
		TablesLoaded:    r.TablesLoaded,
		TotalRows:       r.TotalRows,
		DroppedRecords:  r.DroppedRecords,
		DurationSeconds: r.DurationSeconds,
		ErrorKind:       r.ErrorKind.String,
		ErrorMessage:    r.ErrorMessage.String,
	}
	for e, col := range r.counts() {
		if col.Valid {
			if rec.Counts == nil {
				rec.Counts = make(types.LoadReport)
			}
			rec.Counts[e] = int(col.Int64)
		}
	}
	return rec, nil
}

const insertRunSQL = `
	INSERT INTO etl_runs (run_id, started_at, completed_at, status,
		agents_rows, abilities_rows, weapons_rows, weapon_damage_rows, maps_rows, gamemodes_rows,
		tables_loaded, total_rows, dropped_records, duration_seconds, error_kind, error_message)
	VALUES (:run_id, :started_at, :completed_at, :status,
		:agents_rows, :abilities_rows, :weapons_rows, :weapon_damage_rows, :maps_rows, :gamemodes_rows,
		:tables_loaded, :total_rows, :dropped_records, :duration_seconds, :error_kind, :error_message)`

// InsertRun appends one run history row. Rows are never updated.
func (s *Store) InsertRun(ctx context.Context, rec types.RunRecord) error {
	if _, err := s.db.NamedExecContext(ctx, insertRunSQL, toRow(rec)); err != nil {
		return storeErr("insert", string(types.EntityRunHistory), err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM etl_runs ORDER BY run_id DESC LIMIT ?`, limit); err != nil {
		return nil, storeErr("list", string(types.EntityRunHistory), err)
	}
	return toRecords(rows)
}

// ListRunsAfter returns up to limit runs with an id greater than cursor,
// oldest first. Run ids sort by creation time, so the last id returned is
// the next cursor.
func (s *Store) ListRunsAfter(ctx context.Context, cursor string, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM etl_runs WHERE run_id > ? ORDER BY run_id ASC LIMIT ?`, cursor, limit); err != nil {
		return nil, storeErr("list", string(types.EntityRunHistory), err)
	}
	return toRecords(rows)
}

// CountRows returns the number of rows in an entity table.
func (s *Store) CountRows(ctx context.Context, e types.Entity) (int, error) {
	if !knownTable(e) {
		return 0, fmt.Errorf("unknown table %q", e)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+string(e)); err != nil {
		return 0, storeErr("count", string(e), err)
	}
	return n, nil
}

// Rows returns every row of an entity table as column maps, in position order.
func (s *Store) Rows(ctx context.Context, e types.Entity) ([]map[string]any, error) {
	if !knownTable(e) {
		return nil, fmt.Errorf("unknown table %q", e)
	}
	order := "position"
	if e == types.EntityRunHistory {
		order = "run_id"
	}
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+string(e)+" ORDER BY "+order)
	if err != nil {
		return nil, storeErr("read", string(e), err)
	}
	defer func() { _ = rows.Close() }()

	var out []map[string]any
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, storeErr("read", string(e), err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read", string(e), err)
	}
	return out, nil
}

func knownTable(e types.Entity) bool {
	if e == types.EntityRunHistory {
		return true
	}
	_, ok := tables[e]
	return ok
}

func toRecords(rows []runRow) ([]types.RunRecord, error) {
	out := make([]types.RunRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
