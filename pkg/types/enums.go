// Package types defines the public domain types for the gamedata ETL pipeline.
package types

// RunStatus is the terminal outcome recorded for a pipeline run.
type RunStatus string

// RunStatus values enumerate the recorded run outcomes.
const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial" // loaded, but normalization dropped records
	RunFailure RunStatus = "failure"
)

// Stage is a state of the pipeline orchestrator.
type Stage string

// Stage values follow Extract -> Transform -> Load -> Record.
const (
	StageIdle         Stage = "IDLE"
	StageExtracting   Stage = "EXTRACTING"
	StageTransforming Stage = "TRANSFORMING"
	StageLoading      Stage = "LOADING"
	StageRecording    Stage = "RECORDING"
)

// Entity names one output table.
type Entity string

// Entity values are also the table names in the store.
const (
	EntityAgents       Entity = "agents"
	EntityAbilities    Entity = "abilities"
	EntityWeapons      Entity = "weapons"
	EntityWeaponDamage Entity = "weapon_damage"
	EntityMaps         Entity = "maps"
	EntityGameModes    Entity = "gamemodes"
	EntityRunHistory   Entity = "etl_runs"
)

// LoadOrder lists the refreshable entities with every parent ahead of its
// children. Deletes walk it backwards.
var LoadOrder = []Entity{
	EntityAgents,
	EntityAbilities,
	EntityWeapons,
	EntityWeaponDamage,
	EntityMaps,
	EntityGameModes,
}

// FailureCategory classifies why a fetch attempt failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)

// AbilitySlot is the canonical ability slot vocabulary.
type AbilitySlot string

const (
	SlotAbility1 AbilitySlot = "Ability1"
	SlotAbility2 AbilitySlot = "Ability2"
	SlotGrenade  AbilitySlot = "Grenade"
	SlotUltimate AbilitySlot = "Ultimate"
	SlotPassive  AbilitySlot = "Passive"
)

// AgentRole is the canonical agent role vocabulary.
type AgentRole string

const (
	RoleDuelist    AgentRole = "Duelist"
	RoleInitiator  AgentRole = "Initiator"
	RoleController AgentRole = "Controller"
	RoleSentinel   AgentRole = "Sentinel"
	RoleUnknown    AgentRole = "Unknown"
)

// WeaponCategory is the canonical weapon category vocabulary.
type WeaponCategory string

const (
	CategorySidearm WeaponCategory = "Sidearm"
	CategorySMG     WeaponCategory = "SMG"
	CategoryShotgun WeaponCategory = "Shotgun"
	CategoryRifle   WeaponCategory = "Rifle"
	CategorySniper  WeaponCategory = "Sniper"
	CategoryHeavy   WeaponCategory = "Heavy"
	CategoryMelee   WeaponCategory = "Melee"
	CategoryUnknown WeaponCategory = "Unknown"
)

// WallPenetration is the canonical wall penetration vocabulary.
type WallPenetration string

const (
	PenetrationNone    WallPenetration = ""
	PenetrationLow     WallPenetration = "Low"
	PenetrationMedium  WallPenetration = "Medium"
	PenetrationHigh    WallPenetration = "High"
	PenetrationUnknown WallPenetration = "Unknown"
)
