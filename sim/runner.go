package sim

import (
	"fmt"
	"math"
)

// Runner advances a simulation state forward in time. The three backends
// (sequential, parallel CPU, accelerator) are interchangeable: they share
// the kernel package's per-voxel update and differ only in how iteration is
// scheduled, so for identical inputs they produce numerically equivalent
// fields.
//
// AdvanceSimulation performs ceil(totalTime/timestep) discrete steps, the
// final one clamped to the exact remaining duration. It validates its inputs
// before any step runs and never returns a partially advanced state: on
// error the caller's state is untouched and no successor exists.
//
// The explicit scheme is only stable while the timestep stays under the
// local diffusive bound (see kernel.StabilityBound); runners do not clamp or
// reject unstable timesteps.
type Runner interface {
	AdvanceSimulation(world *World, state *SimState, totalTime, timestep float64) (*SimState, error)
}

// planSteps validates the advance durations and splits them into full steps
// plus a clamped final step.
func planSteps(totalTime, timestep float64) (steps int, lastDt float64, err error) {
	if timestep <= 0 {
		return 0, 0, fmt.Errorf("%w: timestep %v must be positive", ErrInvalidTimestep, timestep)
	}
	if totalTime <= 0 {
		return 0, 0, fmt.Errorf("%w: total time %v must be positive", ErrInvalidTimestep, totalTime)
	}
	if timestep > totalTime {
		return 0, 0, fmt.Errorf("%w: timestep %v exceeds total time %v", ErrInvalidTimestep, timestep, totalTime)
	}
	steps = int(math.Ceil(totalTime / timestep))
	lastDt = totalTime - timestep*float64(steps-1)
	if lastDt <= 0 {
		// Floating-point edge: the quotient rounded up past an exact
		// multiple of timestep, overcounting by one step.
		steps--
		lastDt = timestep
	} else if lastDt > timestep {
		lastDt = timestep
	}
	return steps, lastDt, nil
}

// stepDt returns the duration of step i (0-based) out of steps.
func stepDt(i, steps int, timestep, lastDt float64) float64 {
	if i == steps-1 {
		return lastDt
	}
	return timestep
}
