package device

import (
	"fmt"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// cpuDevice executes kernel dispatches on the host. It mirrors a real
// accelerator's data flow: Upload snapshots the inputs into device-owned
// buffers, Dispatch double-buffers current/next temperatures entirely on the
// "device", and only Download copies results out.
type cpuDevice struct {
	grid     kernel.Grid
	mats     []kernel.Material
	matIndex []uint8
	cur      []float64
	next     []float64
}

// CPU returns the host-execution device, the always-available reference
// implementation of Device.
func CPU() Device { return &cpuDevice{} }

func (d *cpuDevice) Upload(grid kernel.Grid, materials []kernel.Material, matIndex []uint8, temps []float64) error {
	if len(matIndex) != grid.Len() || len(temps) != grid.Len() {
		return fmt.Errorf("device: buffer lengths %d/%d do not match grid size %d", len(matIndex), len(temps), grid.Len())
	}
	for _, mi := range matIndex {
		if int(mi) >= len(materials) {
			return fmt.Errorf("device: material index %d outside table of %d", mi, len(materials))
		}
	}
	d.grid = grid
	d.mats = append([]kernel.Material(nil), materials...)
	d.matIndex = append([]uint8(nil), matIndex...)
	d.cur = append([]float64(nil), temps...)
	d.next = make([]float64, len(temps))
	return nil
}

func (d *cpuDevice) Dispatch(steps int, dt, lastDt float64) error {
	if d.cur == nil {
		return ErrNotUploaded
	}
	g := d.grid
	matAt := func(x, y, z int) (uint8, error) {
		return d.matIndex[g.Index(x, y, z)], nil
	}
	for i := 0; i < steps; i++ {
		useDt := dt
		if i == steps-1 {
			useDt = lastDt
		}
		if err := kernel.StepRegion(g, d.mats, matAt, d.cur, d.next, useDt, 0, g.NX, 0, g.NY, 0, g.NZ); err != nil {
			return err
		}
		d.cur, d.next = d.next, d.cur
	}
	return nil
}

func (d *cpuDevice) Download() ([]float64, error) {
	if d.cur == nil {
		return nil, ErrNotUploaded
	}
	return append([]float64(nil), d.cur...), nil
}

func (d *cpuDevice) Close() error {
	d.mats, d.matIndex, d.cur, d.next = nil, nil, nil, nil
	return nil
}
