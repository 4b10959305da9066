package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// table describes how one entity is inserted.
type table struct {
	columns []string
	rows    func(b *types.Batch, runID, loadedAt string) []any
}

var lineageColumns = []string{"etl_run_id", "etl_loaded_at"}

var tables = map[types.Entity]table{
	types.EntityAgents: {
		columns: []string{"uuid", "position", "name", "role", "description", "icon_url"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.Agents, runID, at)
		},
	},
	types.EntityAbilities: {
		columns: []string{"agent_uuid", "slot", "position", "agent_name", "agent_role", "name", "description"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.Abilities, runID, at)
		},
	},
	types.EntityWeapons: {
		columns: []string{"uuid", "position", "name", "category", "cost", "fire_rate", "magazine_size",
			"reload_time", "equip_time", "first_bullet_accuracy", "wall_penetration", "icon_url"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.Weapons, runID, at)
		},
	},
	types.EntityWeaponDamage: {
		columns: []string{"weapon_uuid", "range_index", "position", "weapon_name", "range_bucket",
			"range_start", "range_end", "head_damage", "body_damage", "leg_damage"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.WeaponDamage, runID, at)
		},
	},
	types.EntityMaps: {
		columns: []string{"uuid", "position", "name", "coordinates", "num_callouts", "tactical_description", "splash_url"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.Maps, runID, at)
		},
	},
	types.EntityGameModes: {
		columns: []string{"uuid", "position", "name", "duration", "allows_match_timeouts", "is_team_voice_allowed",
			"is_minimap_hidden", "orb_count", "rounds_per_half"},
		rows: func(b *types.Batch, runID, at string) []any {
			return stamp(b.GameModes, runID, at)
		},
	},
}

type stamper interface {
	Stamp(runID, loadedAt string)
}

// stamp copies records with their lineage set, leaving the batch untouched.
func stamp[T any, P interface {
	*T
	stamper
}](recs []T, runID, loadedAt string) []any {
	out := make([]any, len(recs))
	for i := range recs {
		r := recs[i]
		P(&r).Stamp(runID, loadedAt)
		out[i] = r
	}
	return out
}

func insertQuery(e types.Entity, t table) string {
	cols := append(append([]string(nil), t.columns...), lineageColumns...)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", e, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

// LoadAll replaces the contents of every entity present in batch within a
// single transaction: children are deleted before parents, parents inserted
// before children. Any failure rolls the whole load back and leaves every
// table as it was. The report holds the committed row count per entity.
func (s *Store) LoadAll(ctx context.Context, runID string, batch *types.Batch) (types.LoadReport, error) {
	entities := batch.Entities()
	loadedAt := s.now().UTC().Format(time.RFC3339Nano)
	report := make(types.LoadReport, len(entities))

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := len(entities) - 1; i >= 0; i-- {
			e := entities[i]
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+string(e)); err != nil {
				return storeErr("delete", string(e), err)
			}
		}

		for _, e := range entities {
			if err := insertAll(ctx, tx, e, tables[e].rows(batch, runID, loadedAt)); err != nil {
				return err
			}
		}

		for _, e := range entities {
			var n int
			if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+string(e)); err != nil {
				return storeErr("count", string(e), err)
			}
			report[e] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func insertAll(ctx context.Context, tx *sqlx.Tx, e types.Entity, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, insertQuery(e, tables[e]))
	if err != nil {
		return storeErr("prepare", string(e), err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return storeErr(fmt.Sprintf("insert row %d into", i), string(e), err)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin", "", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", "", err)
	}
	return nil
}
