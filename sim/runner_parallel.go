package sim

import (
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/sirupsen/logrus"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// ParallelRunner advances the field with a fixed-size worker pool. Each step
// partitions the voxel grid along chunk boundaries (the chunk store's
// caching granularity); workers fill disjoint slices of the next buffer from
// the immutable current buffer, so the only synchronization per step is the
// barrier before the buffer swap. Every worker pins its partition's chunk
// for the duration of the partial pass so cache eviction cannot drop a chunk
// an in-flight step is reading.
type ParallelRunner struct {
	Workers int
}

// NewParallelRunner returns the worker-pool backend. Non-positive workers
// defaults to the machine's CPU count.
func NewParallelRunner(workers int) *ParallelRunner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ParallelRunner{Workers: workers}
}

// AdvanceSimulation implements Runner.
func (r *ParallelRunner) AdvanceSimulation(world *World, state *SimState, totalTime, timestep float64) (*SimState, error) {
	steps, lastDt, err := planSteps(totalTime, timestep)
	if err != nil {
		return nil, err
	}
	if err := world.checkShape(state); err != nil {
		return nil, err
	}
	g := world.grid()
	parts := world.chunkPartitions()
	cur := append([]float64(nil), state.temps...)
	next := make([]float64, len(cur))

	pool := pond.NewPool(r.Workers)
	defer pool.StopAndWait()
	logrus.Debugf("parallel advance: %d steps across %d partitions on %d workers", steps, len(parts), r.Workers)

	for i := 0; i < steps; i++ {
		dt := stepDt(i, steps, timestep, lastDt)

		var wg sync.WaitGroup
		var mu sync.Mutex
		var stepErr error
		for _, part := range parts {
			part := part
			wg.Add(1)
			pool.Submit(func() {
				defer wg.Done()
				if _, err := world.pinChunk(part.coord); err != nil {
					mu.Lock()
					if stepErr == nil {
						stepErr = err
					}
					mu.Unlock()
					return
				}
				defer world.unpinChunk(part.coord)
				b := part.box
				if err := kernel.StepRegion(g, world.Materials, world.MaterialIndexAt, cur, next, dt,
					b.X0, b.X1, b.Y0, b.Y1, b.Z0, b.Z1); err != nil {
					mu.Lock()
					if stepErr == nil {
						stepErr = err
					}
					mu.Unlock()
				}
			})
		}
		// Barrier: every partition must land in next before the swap.
		wg.Wait()
		if stepErr != nil {
			return nil, stepErr
		}
		cur, next = next, cur
	}
	return state.withTemps(cur), nil
}
