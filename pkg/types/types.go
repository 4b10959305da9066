package types

import (
	"database/sql"
	"time"
)

// Lineage is stamped on every loaded row by the store. Normalizers leave it zero.
type Lineage struct {
	RunID    string `db:"etl_run_id" json:"etlRunId,omitempty"`
	LoadedAt string `db:"etl_loaded_at" json:"etlLoadedAt,omitempty"`
}

// Stamp sets the lineage of a row about to be loaded.
func (l *Lineage) Stamp(runID, loadedAt string) {
	l.RunID = runID
	l.LoadedAt = loadedAt
}

// Agent is one playable character.
type Agent struct {
	Position    int    `db:"position" json:"position"`
	UUID        string `db:"uuid" json:"uuid"`
	Name        string `db:"name" json:"name"`
	Role        string `db:"role" json:"role"`
	Description string `db:"description" json:"description"`
	IconURL     string `db:"icon_url" json:"iconUrl"`
	Lineage
}

// Ability belongs to exactly one Agent.
type Ability struct {
	Position    int    `db:"position" json:"position"`
	AgentUUID   string `db:"agent_uuid" json:"agentUuid"`
	AgentName   string `db:"agent_name" json:"agentName"`
	AgentRole   string `db:"agent_role" json:"agentRole"`
	Slot        string `db:"slot" json:"slot"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Lineage
}

// Weapon is one purchasable or melee weapon. Stat columns are NULL when the
// upstream payload omits them.
type Weapon struct {
	Position            int             `db:"position" json:"position"`
	UUID                string          `db:"uuid" json:"uuid"`
	Name                string          `db:"name" json:"name"`
	Category            string          `db:"category" json:"category"`
	Cost                sql.NullInt64   `db:"cost" json:"cost"`
	FireRate            sql.NullFloat64 `db:"fire_rate" json:"fireRate"`
	MagazineSize        sql.NullInt64   `db:"magazine_size" json:"magazineSize"`
	ReloadTime          sql.NullFloat64 `db:"reload_time" json:"reloadTime"`
	EquipTime           sql.NullFloat64 `db:"equip_time" json:"equipTime"`
	FirstBulletAccuracy sql.NullFloat64 `db:"first_bullet_accuracy" json:"firstBulletAccuracy"`
	WallPenetration     string          `db:"wall_penetration" json:"wallPenetration"`
	IconURL             string          `db:"icon_url" json:"iconUrl"`
	Lineage
}

// WeaponDamage is one damage range tier of a Weapon.
type WeaponDamage struct {
	Position    int             `db:"position" json:"position"`
	WeaponUUID  string          `db:"weapon_uuid" json:"weaponUuid"`
	WeaponName  string          `db:"weapon_name" json:"weaponName"`
	RangeIndex  int             `db:"range_index" json:"rangeIndex"`
	RangeBucket string          `db:"range_bucket" json:"rangeBucket"`
	RangeStart  sql.NullFloat64 `db:"range_start" json:"rangeStart"`
	RangeEnd    sql.NullFloat64 `db:"range_end" json:"rangeEnd"`
	HeadDamage  sql.NullFloat64 `db:"head_damage" json:"headDamage"`
	BodyDamage  sql.NullFloat64 `db:"body_damage" json:"bodyDamage"`
	LegDamage   sql.NullFloat64 `db:"leg_damage" json:"legDamage"`
	Lineage
}

// Map is one playable map.
type Map struct {
	Position            int    `db:"position" json:"position"`
	UUID                string `db:"uuid" json:"uuid"`
	Name                string `db:"name" json:"name"`
	Coordinates         string `db:"coordinates" json:"coordinates"`
	NumCallouts         int    `db:"num_callouts" json:"numCallouts"`
	TacticalDescription string `db:"tactical_description" json:"tacticalDescription"`
	SplashURL           string `db:"splash_url" json:"splashUrl"`
	Lineage
}

// GameMode is one game mode and its round properties.
type GameMode struct {
	Position            int           `db:"position" json:"position"`
	UUID                string        `db:"uuid" json:"uuid"`
	Name                string        `db:"name" json:"name"`
	Duration            string        `db:"duration" json:"duration"`
	AllowsMatchTimeouts bool          `db:"allows_match_timeouts" json:"allowsMatchTimeouts"`
	IsTeamVoiceAllowed  bool          `db:"is_team_voice_allowed" json:"isTeamVoiceAllowed"`
	IsMinimapHidden     bool          `db:"is_minimap_hidden" json:"isMinimapHidden"`
	OrbCount            sql.NullInt64 `db:"orb_count" json:"orbCount"`
	RoundsPerHalf       sql.NullInt64 `db:"rounds_per_half" json:"roundsPerHalf"`
	Lineage
}

// LoadReport maps each loaded entity to the number of rows committed for it.
type LoadReport map[Entity]int

// Total returns the number of rows across all entities.
func (r LoadReport) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// RunRecord is one row of the run history. It is written once and never updated.
type RunRecord struct {
	RunID           string     `json:"runId"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     time.Time  `json:"completedAt"`
	Status          RunStatus  `json:"status"`
	Counts          LoadReport `json:"counts,omitempty"`
	TablesLoaded    int        `json:"tablesLoaded"`
	TotalRows       int        `json:"totalRows"`
	DroppedRecords  int        `json:"droppedRecords"`
	DurationSeconds float64    `json:"durationSeconds"`
	ErrorKind       string     `json:"errorKind,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}
