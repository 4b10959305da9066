package normalize

import (
	"encoding/json"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

type rawMap struct {
	UUID                Text            `json:"uuid"`
	DisplayName         Text            `json:"displayName"`
	Coordinates         Text            `json:"coordinates"`
	TacticalDescription Text            `json:"tacticalDescription"`
	Splash              Text            `json:"splash"`
	Callouts            json.RawMessage `json:"callouts"`
}

// Maps normalizes the maps endpoint. Only the number of callouts is kept.
func Maps(body []byte) (*Result, error) {
	const endpoint = "maps"
	raws, err := decode[rawMap](endpoint, body)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Batch.Mark(types.EntityMaps)
	seen := make(map[string]bool, len(raws))

	for i, rm := range raws {
		uuid, err := required(endpoint, i, "uuid", rm.UUID)
		if err != nil {
			return nil, err
		}
		name, err := required(endpoint, i, "displayName", rm.DisplayName)
		if err != nil {
			return nil, err
		}
		if seen[uuid] {
			res.drop(types.EntityMaps, uuid, "duplicate uuid")
			continue
		}
		seen[uuid] = true

		warnField := func(field string) func(string) {
			return func(msg string) { res.warn(types.EntityMaps, uuid, "%s %s", field, msg) }
		}
		res.Batch.Maps = append(res.Batch.Maps, types.Map{
			Position:            len(res.Batch.Maps),
			UUID:                uuid,
			Name:                name,
			Coordinates:         optional(rm.Coordinates, warnField("coordinates")),
			NumCallouts:         countCallouts(rm.Callouts, uuid, res),
			TacticalDescription: truncate(optional(rm.TacticalDescription, warnField("tacticalDescription")), maxDescriptionRunes),
			SplashURL:           optional(rm.Splash, warnField("splash")),
		})
	}
	return res, nil
}

func countCallouts(raw json.RawMessage, uuid string, res *Result) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var callouts []json.RawMessage
	if err := json.Unmarshal(raw, &callouts); err != nil {
		res.warn(types.EntityMaps, uuid, "callouts is not an array, counted as 0")
		return 0
	}
	return len(callouts)
}
