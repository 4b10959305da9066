package normalize

import (
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

type rawAgent struct {
	UUID                Text         `json:"uuid"`
	DisplayName         Text         `json:"displayName"`
	Description         Text         `json:"description"`
	DisplayIcon         Text         `json:"displayIcon"`
	IsPlayableCharacter Flag         `json:"isPlayableCharacter"`
	Role                *rawRole     `json:"role"`
	Abilities           []rawAbility `json:"abilities"`
}

type rawRole struct {
	DisplayName Text `json:"displayName"`
}

type rawAbility struct {
	Slot        Text `json:"slot"`
	DisplayName Text `json:"displayName"`
	Description Text `json:"description"`
}

// Agents normalizes the agents endpoint into agents and abilities. Agents
// that are not playable are skipped together with their abilities.
func Agents(body []byte) (*Result, error) {
	const endpoint = "agents"
	raws, err := decode[rawAgent](endpoint, body)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Batch.Mark(types.EntityAgents, types.EntityAbilities)
	seen := make(map[string]bool, len(raws))

	for i, ra := range raws {
		uuid, err := required(endpoint, i, "uuid", ra.UUID)
		if err != nil {
			return nil, err
		}
		name, err := required(endpoint, i, "displayName", ra.DisplayName)
		if err != nil {
			return nil, err
		}

		playable, ok := ra.IsPlayableCharacter.Bool()
		if !ok {
			res.warn(types.EntityAgents, uuid, "isPlayableCharacter is not a boolean, treated as false")
		}
		if !playable {
			continue
		}
		if seen[uuid] {
			res.drop(types.EntityAgents, uuid, "duplicate uuid, %d abilities dropped with it", len(ra.Abilities))
			continue
		}
		seen[uuid] = true

		role := types.RoleUnknown
		if ra.Role != nil {
			rawRole, _ := ra.Role.DisplayName.String()
			if r, ok := canonical(roles, rawRole, ""); ok {
				role = r
			} else {
				res.warn(types.EntityAgents, uuid, "unknown role %q, defaulted to %s", rawRole, types.RoleUnknown)
			}
		}

		agent := types.Agent{
			Position: len(res.Batch.Agents),
			UUID:     uuid,
			Name:     name,
			Role:     string(role),
			Description: truncate(optional(ra.Description, func(msg string) {
				res.warn(types.EntityAgents, uuid, "description %s", msg)
			}), maxDescriptionRunes),
			IconURL: optional(ra.DisplayIcon, func(msg string) {
				res.warn(types.EntityAgents, uuid, "displayIcon %s", msg)
			}),
		}
		res.Batch.Agents = append(res.Batch.Agents, agent)

		abilities, err := normalizeAbilities(endpoint, i, agent, ra.Abilities, res)
		if err != nil {
			return nil, err
		}
		res.Batch.Abilities = append(res.Batch.Abilities, abilities...)
	}

	for i := range res.Batch.Abilities {
		res.Batch.Abilities[i].Position = i
	}
	return res, nil
}

func normalizeAbilities(endpoint string, agentIndex int, agent types.Agent, raws []rawAbility, res *Result) ([]types.Ability, error) {
	out := make([]types.Ability, 0, len(raws))
	seen := make(map[types.AbilitySlot]bool, len(raws))

	for j, rab := range raws {
		key := agent.UUID
		rawSlot, ok := rab.Slot.String()
		if !ok || rawSlot == "" {
			return nil, &NormalizationError{
				Endpoint: endpoint, Index: agentIndex,
				Field:  "abilities[" + itoa(j) + "].slot",
				Reason: "missing",
			}
		}
		slot, ok := canonical(slots, rawSlot, "")
		if !ok {
			res.drop(types.EntityAbilities, key, "ability %d has unknown slot %q", j, rawSlot)
			continue
		}
		key += "/" + string(slot)

		name, ok := rab.DisplayName.String()
		if !ok || name == "" {
			return nil, &NormalizationError{
				Endpoint: endpoint, Index: agentIndex,
				Field:  "abilities." + string(slot) + ".displayName",
				Reason: "missing",
			}
		}
		if seen[slot] {
			res.drop(types.EntityAbilities, key, "duplicate slot")
			continue
		}
		seen[slot] = true

		out = append(out, types.Ability{
			AgentUUID: agent.UUID,
			AgentName: agent.Name,
			AgentRole: agent.Role,
			Slot:      string(slot),
			Name:      name,
			Description: truncate(optional(rab.Description, func(msg string) {
				res.warn(types.EntityAbilities, key, "description %s", msg)
			}), maxDescriptionRunes),
		})
	}
	return out, nil
}
