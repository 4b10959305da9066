package normalize

import (
	"strings"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

const (
	categoryPrefix    = "EEquippableCategory::"
	penetrationPrefix = "EWallPenetrationDisplayType::"
)

var roles = vocabulary(
	types.RoleDuelist, types.RoleInitiator, types.RoleController, types.RoleSentinel,
)

var slots = vocabulary(
	types.SlotAbility1, types.SlotAbility2, types.SlotGrenade, types.SlotUltimate, types.SlotPassive,
)

var categories = vocabulary(
	types.CategorySidearm, types.CategorySMG, types.CategoryShotgun, types.CategoryRifle,
	types.CategorySniper, types.CategoryHeavy, types.CategoryMelee,
)

var penetrations = vocabulary(
	types.PenetrationLow, types.PenetrationMedium, types.PenetrationHigh,
)

// vocabulary indexes canonical values by their lower-cased form.
func vocabulary[T ~string](values ...T) map[string]T {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[strings.ToLower(string(v))] = v
	}
	return m
}

func canonical[T ~string](vocab map[string]T, raw, prefix string) (T, bool) {
	key := strings.TrimSpace(raw)
	if prefix != "" && len(key) >= len(prefix) && strings.EqualFold(key[:len(prefix)], prefix) {
		key = key[len(prefix):]
	}
	v, ok := vocab[strings.ToLower(key)]
	return v, ok
}
