package normalize

import (
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

type rawGameMode struct {
	UUID                Text `json:"uuid"`
	DisplayName         Text `json:"displayName"`
	Duration            Text `json:"duration"`
	AllowsMatchTimeouts Flag `json:"allowsMatchTimeouts"`
	IsTeamVoiceAllowed  Flag `json:"isTeamVoiceAllowed"`
	IsMinimapHidden     Flag `json:"isMinimapHidden"`
	OrbCount            Num  `json:"orbCount"`
	RoundsPerHalf       Num  `json:"roundsPerHalf"`
}

// GameModes normalizes the gamemodes endpoint.
func GameModes(body []byte) (*Result, error) {
	const endpoint = "gamemodes"
	raws, err := decode[rawGameMode](endpoint, body)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Batch.Mark(types.EntityGameModes)
	seen := make(map[string]bool, len(raws))

	for i, rg := range raws {
		uuid, err := required(endpoint, i, "uuid", rg.UUID)
		if err != nil {
			return nil, err
		}
		name, err := required(endpoint, i, "displayName", rg.DisplayName)
		if err != nil {
			return nil, err
		}
		if seen[uuid] {
			res.drop(types.EntityGameModes, uuid, "duplicate uuid")
			continue
		}

		gm := types.GameMode{
			UUID: uuid,
			Name: name,
			Duration: optional(rg.Duration, func(msg string) {
				res.warn(types.EntityGameModes, uuid, "duration %s", msg)
			}),
		}
		gm.AllowsMatchTimeouts = flag(rg.AllowsMatchTimeouts, "allowsMatchTimeouts", uuid, res)
		gm.IsTeamVoiceAllowed = flag(rg.IsTeamVoiceAllowed, "isTeamVoiceAllowed", uuid, res)
		gm.IsMinimapHidden = flag(rg.IsMinimapHidden, "isMinimapHidden", uuid, res)

		if gm.OrbCount, err = rg.OrbCount.NullInt(); err != nil {
			res.drop(types.EntityGameModes, uuid, "orbCount: %v", err)
			continue
		}
		if gm.RoundsPerHalf, err = rg.RoundsPerHalf.NullInt(); err != nil {
			res.drop(types.EntityGameModes, uuid, "roundsPerHalf: %v", err)
			continue
		}

		seen[uuid] = true
		gm.Position = len(res.Batch.GameModes)
		res.Batch.GameModes = append(res.Batch.GameModes, gm)
	}
	return res, nil
}

func flag(f Flag, field, uuid string, res *Result) bool {
	v, ok := f.Bool()
	if !ok {
		res.warn(types.EntityGameModes, uuid, "%s is not a boolean, defaulted to false", field)
	}
	return v
}
