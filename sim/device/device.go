// Package device abstracts the accelerator an AcceleratorRunner dispatches
// to. A device holds the simulation buffers resident between dispatches:
// material data and the temperature field are uploaded once, every step runs
// as a data-parallel kernel over the whole grid on the device, and results
// cross back to the host only on Download.
//
// CPU() returns the reference implementation, which executes the same kernel
// on the host and is always available.
package device

import (
	"errors"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// ErrNotUploaded flags a dispatch or download before any upload.
var ErrNotUploaded = errors.New("device: no simulation uploaded")

// Device is an accelerator holding resident simulation buffers.
type Device interface {
	// Upload copies the grid description, material table, per-voxel material
	// indices, and initial temperatures onto the device, replacing any
	// previous upload. Buffers are linearized x-outer/y-middle/z-inner.
	Upload(grid kernel.Grid, materials []kernel.Material, matIndex []uint8, temps []float64) error
	// Dispatch enqueues steps kernel executions over the resident buffers
	// and blocks until they complete. Every step advances by dt except the
	// last, which advances by lastDt.
	Dispatch(steps int, dt, lastDt float64) error
	// Download copies the resident temperature field back to the host.
	Download() ([]float64, error)
	// Close releases device resources.
	Close() error
}
