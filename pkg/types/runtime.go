package types

// Batch holds every record produced during one run's Transform stage. Only
// entities marked present are replaced by the store; the rest are untouched.
type Batch struct {
	Agents       []Agent
	Abilities    []Ability
	Weapons      []Weapon
	WeaponDamage []WeaponDamage
	Maps         []Map
	GameModes    []GameMode

	present map[Entity]bool
}

// Mark flags entities as produced by this batch, even when they hold zero rows.
func (b *Batch) Mark(entities ...Entity) {
	if b.present == nil {
		b.present = make(map[Entity]bool, len(entities))
	}
	for _, e := range entities {
		b.present[e] = true
	}
}

// Has reports whether the entity was produced by this batch.
func (b *Batch) Has(e Entity) bool {
	return b.present[e]
}

// Entities returns the present entities in LoadOrder.
func (b *Batch) Entities() []Entity {
	var out []Entity
	for _, e := range LoadOrder {
		if b.present[e] {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of records held for an entity.
func (b *Batch) Len(e Entity) int {
	switch e {
	case EntityAgents:
		return len(b.Agents)
	case EntityAbilities:
		return len(b.Abilities)
	case EntityWeapons:
		return len(b.Weapons)
	case EntityWeaponDamage:
		return len(b.WeaponDamage)
	case EntityMaps:
		return len(b.Maps)
	case EntityGameModes:
		return len(b.GameModes)
	}
	return 0
}

// Merge appends other's records and present marks onto b.
func (b *Batch) Merge(other *Batch) {
	if other == nil {
		return
	}
	b.Agents = append(b.Agents, other.Agents...)
	b.Abilities = append(b.Abilities, other.Abilities...)
	b.Weapons = append(b.Weapons, other.Weapons...)
	b.WeaponDamage = append(b.WeaponDamage, other.WeaponDamage...)
	b.Maps = append(b.Maps, other.Maps...)
	b.GameModes = append(b.GameModes, other.GameModes...)
	b.Mark(other.Entities()...)
}
