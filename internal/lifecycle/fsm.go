// Package lifecycle implements the pipeline run stage machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// Transition table: from -> allowed tos. Extracting and Transforming
// alternate once per endpoint; every stage before Recording may fail
// straight into Recording.
var validTransitions = map[types.Stage][]types.Stage{
	types.StageIdle:         {types.StageExtracting, types.StageRecording},
	types.StageExtracting:   {types.StageTransforming, types.StageRecording},
	types.StageTransforming: {types.StageExtracting, types.StageLoading, types.StageRecording},
	types.StageLoading:      {types.StageRecording},
	types.StageRecording:    {types.StageIdle},
}

// CanTransition checks if moving from one stage to another is valid.
func CanTransition(from, to types.Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates and returns an error if the transition is invalid.
func Transition(from, to types.Stage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Machine tracks the current stage of one run.
type Machine struct {
	stage types.Stage
}

// NewMachine returns a machine in the Idle stage.
func NewMachine() *Machine {
	return &Machine{stage: types.StageIdle}
}

// Stage returns the current stage.
func (m *Machine) Stage() types.Stage { return m.stage }

// Enter moves to stage to, or returns an error leaving the stage unchanged.
func (m *Machine) Enter(to types.Stage) error {
	if err := Transition(m.stage, to); err != nil {
		return err
	}
	m.stage = to
	return nil
}
