package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// SequentialRunner advances the field with a single-threaded pass over all
// voxels per step. The pass order is irrelevant to the result because reads
// and writes are separated into current and next buffers.
type SequentialRunner struct{}

// NewSequentialRunner returns the single-threaded backend.
func NewSequentialRunner() *SequentialRunner { return &SequentialRunner{} }

// AdvanceSimulation implements Runner.
func (r *SequentialRunner) AdvanceSimulation(world *World, state *SimState, totalTime, timestep float64) (*SimState, error) {
	steps, lastDt, err := planSteps(totalTime, timestep)
	if err != nil {
		return nil, err
	}
	if err := world.checkShape(state); err != nil {
		return nil, err
	}
	g := world.grid()
	cur := append([]float64(nil), state.temps...)
	next := make([]float64, len(cur))
	logrus.Debugf("sequential advance: %d steps of %v (last %v)", steps, timestep, lastDt)
	for i := 0; i < steps; i++ {
		dt := stepDt(i, steps, timestep, lastDt)
		if err := kernel.StepRegion(g, world.Materials, world.MaterialIndexAt, cur, next, dt,
			0, world.XSize, 0, world.YSize, 0, world.ZSize); err != nil {
			return nil, err
		}
		cur, next = next, cur
	}
	return state.withTemps(cur), nil
}
