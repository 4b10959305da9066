package normalize

import (
	"database/sql"
	"strconv"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

type rawWeapon struct {
	UUID        Text            `json:"uuid"`
	DisplayName Text            `json:"displayName"`
	Category    Text            `json:"category"`
	DisplayIcon Text            `json:"displayIcon"`
	ShopData    *rawShopData    `json:"shopData"`
	WeaponStats *rawWeaponStats `json:"weaponStats"`
}

type rawShopData struct {
	Cost Num `json:"cost"`
}

type rawWeaponStats struct {
	FireRate            Num              `json:"fireRate"`
	MagazineSize        Num              `json:"magazineSize"`
	ReloadTimeSeconds   Num              `json:"reloadTimeSeconds"`
	EquipTimeSeconds    Num              `json:"equipTimeSeconds"`
	FirstBulletAccuracy Num              `json:"firstBulletAccuracy"`
	WallPenetration     Text             `json:"wallPenetration"`
	DamageRanges        []rawDamageRange `json:"damageRanges"`
}

type rawDamageRange struct {
	RangeStartMeters Num `json:"rangeStartMeters"`
	RangeEndMeters   Num `json:"rangeEndMeters"`
	HeadDamage       Num `json:"headDamage"`
	BodyDamage       Num `json:"bodyDamage"`
	LegDamage        Num `json:"legDamage"`
}

// Weapons normalizes the weapons endpoint into weapons and weapon damage
// ranges. A weapon whose stats do not coerce is dropped with its ranges.
func Weapons(body []byte) (*Result, error) {
	const endpoint = "weapons"
	raws, err := decode[rawWeapon](endpoint, body)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Batch.Mark(types.EntityWeapons, types.EntityWeaponDamage)
	seen := make(map[string]bool, len(raws))

	for i, rw := range raws {
		uuid, err := required(endpoint, i, "uuid", rw.UUID)
		if err != nil {
			return nil, err
		}
		name, err := required(endpoint, i, "displayName", rw.DisplayName)
		if err != nil {
			return nil, err
		}

		stats := rw.WeaponStats
		if stats == nil {
			stats = &rawWeaponStats{}
		}
		if seen[uuid] {
			res.drop(types.EntityWeapons, uuid, "duplicate uuid, %d damage ranges dropped with it", len(stats.DamageRanges))
			continue
		}

		w := types.Weapon{UUID: uuid, Name: name}
		w.Category = string(weaponCategory(rw.Category, uuid, res))
		w.WallPenetration = string(wallPenetration(stats.WallPenetration, uuid, res))
		w.IconURL = optional(rw.DisplayIcon, func(msg string) {
			res.warn(types.EntityWeapons, uuid, "displayIcon %s", msg)
		})

		var cost Num
		if rw.ShopData != nil {
			cost = rw.ShopData.Cost
		}
		if field, err := coerceWeapon(&w, cost, stats); err != nil {
			res.drop(types.EntityWeapons, uuid, "%s: %v; %d damage ranges dropped with it", field, err, len(stats.DamageRanges))
			continue
		}
		seen[uuid] = true
		w.Position = len(res.Batch.Weapons)
		res.Batch.Weapons = append(res.Batch.Weapons, w)

		for j, rd := range stats.DamageRanges {
			d, field, err := coerceDamage(w, j, rd)
			if err != nil {
				res.drop(types.EntityWeaponDamage, uuid+"/"+strconv.Itoa(j), "%s: %v", field, err)
				continue
			}
			d.Position = len(res.Batch.WeaponDamage)
			res.Batch.WeaponDamage = append(res.Batch.WeaponDamage, d)
		}
	}
	return res, nil
}

func coerceWeapon(w *types.Weapon, cost Num, stats *rawWeaponStats) (string, error) {
	var err error
	if w.Cost, err = cost.NullInt(); err != nil {
		return "shopData.cost", err
	}
	if w.FireRate, err = stats.FireRate.NullFloat(); err != nil {
		return "weaponStats.fireRate", err
	}
	if w.MagazineSize, err = stats.MagazineSize.NullInt(); err != nil {
		return "weaponStats.magazineSize", err
	}
	if w.ReloadTime, err = stats.ReloadTimeSeconds.NullFloat(); err != nil {
		return "weaponStats.reloadTimeSeconds", err
	}
	if w.EquipTime, err = stats.EquipTimeSeconds.NullFloat(); err != nil {
		return "weaponStats.equipTimeSeconds", err
	}
	if w.FirstBulletAccuracy, err = stats.FirstBulletAccuracy.NullFloat(); err != nil {
		return "weaponStats.firstBulletAccuracy", err
	}
	return "", nil
}

func coerceDamage(w types.Weapon, index int, rd rawDamageRange) (types.WeaponDamage, string, error) {
	d := types.WeaponDamage{WeaponUUID: w.UUID, WeaponName: w.Name, RangeIndex: index}
	var err error
	if d.RangeStart, err = rd.RangeStartMeters.NullFloat(); err != nil {
		return d, "rangeStartMeters", err
	}
	if d.RangeEnd, err = rd.RangeEndMeters.NullFloat(); err != nil {
		return d, "rangeEndMeters", err
	}
	if d.HeadDamage, err = rd.HeadDamage.NullFloat(); err != nil {
		return d, "headDamage", err
	}
	if d.BodyDamage, err = rd.BodyDamage.NullFloat(); err != nil {
		return d, "bodyDamage", err
	}
	if d.LegDamage, err = rd.LegDamage.NullFloat(); err != nil {
		return d, "legDamage", err
	}
	d.RangeBucket = rangeBucket(d.RangeStart, d.RangeEnd)
	return d, "", nil
}

// rangeBucket labels a damage tier by its distance span, e.g. "0-30m".
func rangeBucket(start, end sql.NullFloat64) string {
	if !start.Valid || !end.Valid {
		return "unknown"
	}
	return strconv.FormatFloat(start.Float64, 'f', -1, 64) + "-" + strconv.FormatFloat(end.Float64, 'f', -1, 64) + "m"
}

func weaponCategory(t Text, uuid string, res *Result) types.WeaponCategory {
	raw, ok := t.String()
	if !ok {
		if t.Present() {
			res.warn(types.EntityWeapons, uuid, "category is not a string, defaulted to %s", types.CategoryUnknown)
		}
		return types.CategoryUnknown
	}
	c, ok := canonical(categories, raw, categoryPrefix)
	if !ok {
		res.warn(types.EntityWeapons, uuid, "unknown category %q, defaulted to %s", raw, types.CategoryUnknown)
		return types.CategoryUnknown
	}
	return c
}

func wallPenetration(t Text, uuid string, res *Result) types.WallPenetration {
	raw, ok := t.String()
	if !ok {
		if t.Present() {
			res.warn(types.EntityWeapons, uuid, "wallPenetration is not a string, defaulted to %s", types.PenetrationUnknown)
			return types.PenetrationUnknown
		}
		return types.PenetrationNone
	}
	p, ok := canonical(penetrations, raw, penetrationPrefix)
	if !ok {
		res.warn(types.EntityWeapons, uuid, "unknown wallPenetration %q, defaulted to %s", raw, types.PenetrationUnknown)
		return types.PenetrationUnknown
	}
	return p
}
