package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

func TestCPU_DispatchBeforeUpload(t *testing.T) {
	d := CPU()
	if err := d.Dispatch(1, 0.1, 0.1); !errors.Is(err, ErrNotUploaded) {
		t.Fatalf("got %v, want ErrNotUploaded", err)
	}
	if _, err := d.Download(); !errors.Is(err, ErrNotUploaded) {
		t.Fatalf("got %v, want ErrNotUploaded", err)
	}
}

func TestCPU_UploadRejectsMismatchedBuffers(t *testing.T) {
	d := CPU()
	g := kernel.Grid{NX: 2, NY: 2, NZ: 2, CellSize: 1}
	err := d.Upload(g, []kernel.Material{{Density: 1, SpecificHeat: 1}}, make([]uint8, 4), make([]float64, 8))
	require.Error(t, err)
}

func TestCPU_UploadRejectsDanglingMaterialIndex(t *testing.T) {
	d := CPU()
	g := kernel.Grid{NX: 1, NY: 1, NZ: 1, CellSize: 1}
	err := d.Upload(g, []kernel.Material{{Density: 1, SpecificHeat: 1}}, []uint8{3}, []float64{300})
	require.Error(t, err)
}

func TestCPU_UploadSnapshotsHostBuffers(t *testing.T) {
	// GIVEN an uploaded field
	d := CPU()
	g := kernel.Grid{NX: 2, NY: 1, NZ: 1, CellSize: 1}
	mats := []kernel.Material{{Density: 1, SpecificHeat: 1, ThermalConA: 1}}
	temps := []float64{400, 300}
	require.NoError(t, d.Upload(g, mats, []uint8{0, 0}, temps))

	// WHEN the host mutates its buffer afterwards
	temps[0] = -1

	// THEN the device copy is unaffected
	got, err := d.Download()
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 300}, got)
}

func TestCPU_DispatchAdvancesResidentField(t *testing.T) {
	// GIVEN a hot/cold cell pair resident on the device
	d := CPU()
	g := kernel.Grid{NX: 2, NY: 1, NZ: 1, CellSize: 1}
	mats := []kernel.Material{{Density: 1, SpecificHeat: 1, ThermalConA: 1}}
	require.NoError(t, d.Upload(g, mats, []uint8{0, 0}, []float64{400, 300}))

	// WHEN several steps dispatch, the last clamped shorter
	require.NoError(t, d.Dispatch(3, 0.01, 0.005))

	// THEN the downloaded field moved toward equilibrium and conserved energy
	got, err := d.Download()
	require.NoError(t, err)
	if !(got[0] < 400 && got[0] > 350 && got[1] > 300 && got[1] < 350) {
		t.Fatalf("field did not relax as expected: %v", got)
	}
	assert.InDelta(t, 700.0, got[0]+got[1], 1e-9)
}
