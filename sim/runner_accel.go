package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/thermal-sim/thermal-sim/sim/device"
)

// AcceleratorRunner expresses the per-voxel update as data-parallel kernel
// dispatches over device-resident buffers. The material grid and temperature
// field are uploaded once per advance, all steps execute on the device, and
// the field is copied back a single time at the end; no intermediate state
// crosses the host boundary.
type AcceleratorRunner struct {
	dev device.Device
}

// NewAcceleratorRunner returns the accelerator backend. A nil device selects
// the host-execution reference device.
func NewAcceleratorRunner(dev device.Device) *AcceleratorRunner {
	if dev == nil {
		dev = device.CPU()
	}
	return &AcceleratorRunner{dev: dev}
}

// AdvanceSimulation implements Runner.
func (r *AcceleratorRunner) AdvanceSimulation(world *World, state *SimState, totalTime, timestep float64) (*SimState, error) {
	steps, lastDt, err := planSteps(totalTime, timestep)
	if err != nil {
		return nil, err
	}
	if err := world.checkShape(state); err != nil {
		return nil, err
	}
	matIndex, err := world.flattenMaterialIndices()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("accelerator advance: uploading %d voxels, dispatching %d steps", len(matIndex), steps)
	if err := r.dev.Upload(world.grid(), world.Materials, matIndex, state.temps); err != nil {
		return nil, err
	}
	if err := r.dev.Dispatch(steps, timestep, lastDt); err != nil {
		return nil, err
	}
	temps, err := r.dev.Download()
	if err != nil {
		return nil, err
	}
	return state.withTemps(temps), nil
}

// flattenMaterialIndices copies the whole material grid into one linear
// buffer for device upload, faulting chunks in as it goes.
func (w *World) flattenMaterialIndices() ([]uint8, error) {
	out := make([]uint8, w.XSize*w.YSize*w.ZSize)
	i := 0
	for x := 0; x < w.XSize; x++ {
		for y := 0; y < w.YSize; y++ {
			for z := 0; z < w.ZSize; z++ {
				mi, err := w.MaterialIndexAt(x, y, z)
				if err != nil {
					return nil, err
				}
				out[i] = mi
				i++
			}
		}
	}
	return out, nil
}
