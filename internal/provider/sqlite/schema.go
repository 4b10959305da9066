// Package sqlite implements the embedded store: the refreshable entity
// tables and the append-only run history, in one SQLite file.
package sqlite

const schemaDDL = `
CREATE TABLE IF NOT EXISTS agents (
    uuid          TEXT PRIMARY KEY,
    position      INTEGER NOT NULL,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    icon_url      TEXT NOT NULL DEFAULT '',
    etl_run_id    TEXT NOT NULL,
    etl_loaded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS abilities (
    agent_uuid    TEXT NOT NULL REFERENCES agents (uuid),
    slot          TEXT NOT NULL,
    position      INTEGER NOT NULL,
    agent_name    TEXT NOT NULL,
    agent_role    TEXT NOT NULL,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    etl_run_id    TEXT NOT NULL,
    etl_loaded_at TEXT NOT NULL,
    PRIMARY KEY (agent_uuid, slot)
);

CREATE TABLE IF NOT EXISTS weapons (
    uuid                  TEXT PRIMARY KEY,
    position              INTEGER NOT NULL,
    name                  TEXT NOT NULL,
    category              TEXT NOT NULL,
    cost                  INTEGER,
    fire_rate             REAL,
    magazine_size         INTEGER,
    reload_time           REAL,
    equip_time            REAL,
    first_bullet_accuracy REAL,
    wall_penetration      TEXT NOT NULL DEFAULT '',
    icon_url              TEXT NOT NULL DEFAULT '',
    etl_run_id            TEXT NOT NULL,
    etl_loaded_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weapon_damage (
    weapon_uuid   TEXT NOT NULL REFERENCES weapons (uuid),
    range_index   INTEGER NOT NULL,
    position      INTEGER NOT NULL,
    weapon_name   TEXT NOT NULL,
    range_bucket  TEXT NOT NULL,
    range_start   REAL,
    range_end     REAL,
    head_damage   REAL,
    body_damage   REAL,
    leg_damage    REAL,
    etl_run_id    TEXT NOT NULL,
    etl_loaded_at TEXT NOT NULL,
    PRIMARY KEY (weapon_uuid, range_index)
);

CREATE TABLE IF NOT EXISTS maps (
    uuid                 TEXT PRIMARY KEY,
    position             INTEGER NOT NULL,
    name                 TEXT NOT NULL,
    coordinates          TEXT NOT NULL DEFAULT '',
    num_callouts         INTEGER NOT NULL DEFAULT 0,
    tactical_description TEXT NOT NULL DEFAULT '',
    splash_url           TEXT NOT NULL DEFAULT '',
    etl_run_id           TEXT NOT NULL,
    etl_loaded_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gamemodes (
    uuid                  TEXT PRIMARY KEY,
    position              INTEGER NOT NULL,
    name                  TEXT NOT NULL,
    duration              TEXT NOT NULL DEFAULT '',
    allows_match_timeouts INTEGER NOT NULL DEFAULT 0,
    is_team_voice_allowed INTEGER NOT NULL DEFAULT 0,
    is_minimap_hidden     INTEGER NOT NULL DEFAULT 0,
    orb_count             INTEGER,
    rounds_per_half       INTEGER,
    etl_run_id            TEXT NOT NULL,
    etl_loaded_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS etl_runs (
    run_id             TEXT PRIMARY KEY,
    started_at         TEXT NOT NULL,
    completed_at       TEXT NOT NULL,
    status             TEXT NOT NULL CHECK (status IN ('success', 'partial', 'failure')),
    agents_rows        INTEGER,
    abilities_rows     INTEGER,
    weapons_rows       INTEGER,
    weapon_damage_rows INTEGER,
    maps_rows          INTEGER,
    gamemodes_rows     INTEGER,
    tables_loaded      INTEGER NOT NULL DEFAULT 0,
    total_rows         INTEGER NOT NULL DEFAULT 0,
    dropped_records    INTEGER NOT NULL DEFAULT 0,
    duration_seconds   REAL NOT NULL,
    error_kind         TEXT,
    error_message      TEXT
);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs (started_at);

CREATE TRIGGER IF NOT EXISTS etl_runs_no_update
BEFORE UPDATE ON etl_runs
BEGIN
    SELECT RAISE(ABORT, 'etl_runs is append-only');
END;

CREATE TRIGGER IF NOT EXISTS etl_runs_no_delete
BEFORE DELETE ON etl_runs
BEGIN
    SELECT RAISE(ABORT, 'etl_runs is append-only');
END;
`
