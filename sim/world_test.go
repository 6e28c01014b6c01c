package sim

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfWaterBuilder describes a 1m cube whose lower y half is water.
func halfWaterBuilder() *WorldBuilder {
	return NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 1, 0.5, 1))
}

func TestBuild_InMemoryWorld(t *testing.T) {
	// GIVEN a half-filled cube built at 0.25m resolution
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)

	// THEN dimensions derive from extent/cellSize and the table holds blank+water
	assert.Equal(t, [3]int{4, 4, 4}, [3]int{w.XSize, w.YSize, w.ZSize})
	require.Len(t, w.Materials, 2)
	assert.Equal(t, BlankMaterial(), w.Materials[0])
	assert.Equal(t, WaterMaterial(), w.Materials[1])

	// AND voxels resolve to water below the half plane, blank above
	low, err := w.MaterialIndexAt(2, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), low)
	high, err := w.MaterialIndexAt(2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), high)
}

func TestBuild_LastWriterWinsPerVoxel(t *testing.T) {
	// GIVEN overlapping assignments where steel overwrites part of the water
	steel := Material{Density: 7850, SpecificHeat: 490, ThermalConA: 45}
	w, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 1, 1, 1)).
		WithMaterial(steel, NewVolume(0, 0, 0, 0.5, 1, 1)).
		Build(0.25)
	require.NoError(t, err)

	// THEN the later op owns the overlap
	mi, err := w.MaterialIndexAt(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, steel, w.Materials[mi])
	mi, err = w.MaterialIndexAt(3, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, WaterMaterial(), w.Materials[mi])
}

func TestBuild_MaterialDedupe(t *testing.T) {
	w, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 0.5, 1, 1)).
		WithMaterial(WaterMaterial(), NewVolume(0.5, 0, 0, 1, 1, 1)).
		Build(0.25)
	require.NoError(t, err)
	assert.Len(t, w.Materials, 2) // blank + one water entry
}

func TestBuild_MaterialTableOverflow(t *testing.T) {
	// GIVEN 256 distinct materials on top of the implicit blank
	b := NewWorldBuilder(1, 1, 1)
	for i := 0; i < 256; i++ {
		m := Material{Density: float64(i + 1), SpecificHeat: 1}
		b.WithMaterial(m, NewVolume(0, 0, 0, 1, 1, 1))
	}

	// WHEN built
	_, err := b.Build(0.25)

	// THEN the 8-bit index space overflows
	if !errors.Is(err, ErrMaterialTableOverflow) {
		t.Fatalf("got %v, want ErrMaterialTableOverflow", err)
	}
}

func TestBuild_InvalidGeometry(t *testing.T) {
	// Degenerate volume.
	_, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 0, 1, 1)).
		Build(0.25)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("degenerate volume: got %v, want ErrInvalidGeometry", err)
	}

	// Volume entirely outside the world.
	_, err = NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(5, 5, 5, 6, 6, 6)).
		Build(0.25)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("outside volume: got %v, want ErrInvalidGeometry", err)
	}

	// Non-positive cell size.
	_, err = NewWorldBuilder(1, 1, 1).Build(0)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("zero cell size: got %v, want ErrInvalidGeometry", err)
	}
}

func TestBuildPersisted_RoundTripMatchesInMemory(t *testing.T) {
	// GIVEN the same scene built in memory and persisted with a tiny cache
	inMem, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "world.yml")
	persisted, err := halfWaterBuilder().BuildPersisted(0.25, 2, 2, path)
	require.NoError(t, err)

	// AND reloaded from disk
	loaded, err := LoadWorld(path, 3)
	require.NoError(t, err)

	// THEN every voxel resolves identically through all three worlds
	assert.Equal(t, inMem.Materials, loaded.Materials)
	for x := 0; x < inMem.XSize; x++ {
		for y := 0; y < inMem.YSize; y++ {
			for z := 0; z < inMem.ZSize; z++ {
				a, err := inMem.MaterialIndexAt(x, y, z)
				require.NoError(t, err)
				b, err := persisted.MaterialIndexAt(x, y, z)
				require.NoError(t, err)
				c, err := loaded.MaterialIndexAt(x, y, z)
				require.NoError(t, err)
				if a != b || a != c {
					t.Fatalf("voxel (%d,%d,%d): in-mem %d, persisted %d, loaded %d", x, y, z, a, b, c)
				}
			}
		}
	}
}

func TestBuildPersisted_ChunkSizeValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yml")
	_, err := halfWaterBuilder().BuildPersisted(0.25, 8, 2, path) // 8 > min dimension 4
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("got %v, want ErrInvalidGeometry", err)
	}
}

func TestBuildPersisted_BadOutputPath(t *testing.T) {
	_, err := halfWaterBuilder().BuildPersisted(0.25, 2, 2, filepath.Join(t.TempDir(), "missing", "world.yml"))
	if !errors.Is(err, ErrStorageIO) {
		t.Fatalf("got %v, want ErrStorageIO", err)
	}
}

func TestBlankSimState_Idempotent(t *testing.T) {
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)
	assert.Equal(t, w.BlankSimState(), w.BlankSimState())
	assert.Equal(t, 0.0, w.BlankSimState().Temperature(3, 3, 3))
}

func TestSetSimStateTemperature_DerivesNewState(t *testing.T) {
	// GIVEN a blank state
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)
	blank := w.BlankSimState()

	// WHEN a region is set to 300K
	heated, err := w.SetSimStateTemperature(blank, 300, NewVolume(0, 0, 0, 0.5, 0.5, 0.5))
	require.NoError(t, err)

	// THEN the new state carries the assignment and the input is untouched
	assert.Equal(t, 300.0, heated.Temperature(0, 0, 0))
	assert.Equal(t, 300.0, heated.Temperature(1, 1, 1))
	assert.Equal(t, 0.0, heated.Temperature(2, 2, 2))
	assert.Equal(t, 0.0, blank.Temperature(0, 0, 0))
}

func TestSetSimStateTemperature_PartialOverlapClamps(t *testing.T) {
	// GIVEN a volume hanging off the world's upper corner
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)

	// WHEN applied
	got, err := w.SetSimStateTemperature(w.BlankSimState(), 350, NewVolume(0.75, 0.75, 0.75, 5, 5, 5))
	require.NoError(t, err)

	// THEN only the intersecting voxel changed
	assert.Equal(t, 350.0, got.Temperature(3, 3, 3))
	assert.Equal(t, 0.0, got.Temperature(2, 3, 3))
	assert.Equal(t, 0.0, got.Temperature(3, 3, 2))
}

func TestSetSimStateTemperature_RegionOutOfBounds(t *testing.T) {
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)
	_, err = w.SetSimStateTemperature(w.BlankSimState(), 300, NewVolume(2, 2, 2, 3, 3, 3))
	if !errors.Is(err, ErrRegionOutOfBounds) {
		t.Fatalf("got %v, want ErrRegionOutOfBounds", err)
	}
}

func TestSetSimStateTemperature_DimensionMismatch(t *testing.T) {
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)
	other, err := NewWorldBuilder(2, 1, 1).Build(0.25)
	require.NoError(t, err)
	_, err = w.SetSimStateTemperature(other.BlankSimState(), 300, NewVolume(0, 0, 0, 1, 1, 1))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestAddSimStateEnergy_ConvertsThroughHeatCapacity(t *testing.T) {
	// GIVEN a uniform water world at 0.25m cells
	w, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 1, 1, 1)).
		Build(0.25)
	require.NoError(t, err)

	// WHEN 1kJ lands in one cell
	got, err := w.AddSimStateEnergy(w.BlankSimState(), 1000, NewVolume(0, 0, 0, 0.25, 0.25, 0.25))
	require.NoError(t, err)

	// THEN its temperature rises by E / (rho * c * V)
	wantDelta := 1000.0 / (1000 * 4187 * 0.25 * 0.25 * 0.25)
	assert.InDelta(t, wantDelta, got.Temperature(0, 0, 0), 1e-12)
	assert.Equal(t, 0.0, got.Temperature(1, 0, 0))
}

func TestSampleMaterial(t *testing.T) {
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)

	m, ok := w.SampleMaterial(0.5, 0.1, 0.5)
	require.True(t, ok)
	assert.Equal(t, WaterMaterial(), m)

	m, ok = w.SampleMaterial(0.5, 0.9, 0.5)
	require.True(t, ok)
	assert.Equal(t, BlankMaterial(), m)

	_, ok = w.SampleMaterial(-0.1, 0.5, 0.5)
	assert.False(t, ok)
}

func TestSampleTemperature(t *testing.T) {
	w, err := halfWaterBuilder().Build(0.25)
	require.NoError(t, err)
	state, err := w.SetSimStateTemperature(w.BlankSimState(), 310, NewVolume(0, 0, 0, 1, 0.25, 1))
	require.NoError(t, err)

	got, ok := state.SampleTemperature(0.5, 0.1, 0.5, w.CellSize)
	require.True(t, ok)
	assert.Equal(t, 310.0, got)

	_, ok = state.SampleTemperature(0.5, 1.5, 0.5, w.CellSize)
	assert.False(t, ok)
}

func TestSummarize_TotalEnergy(t *testing.T) {
	// GIVEN a uniform 300K water cube of 8 cells at 0.5m
	w, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 1, 1, 1)).
		Build(0.5)
	require.NoError(t, err)
	state, err := w.SetSimStateTemperature(w.BlankSimState(), 300, NewVolume(0, 0, 0, 1, 1, 1))
	require.NoError(t, err)

	// WHEN summarized
	sum, err := Summarize(w, state)
	require.NoError(t, err)

	// THEN energy is T * rho * c * V per cell
	want := 300.0 * 1000 * 4187 * 0.125 * 8
	assert.InDelta(t, want, sum.TotalEnergy, want*1e-12)
	assert.Equal(t, 300.0, sum.MinTemp)
	assert.Equal(t, 300.0, sum.MaxTemp)
	assert.Equal(t, 300.0, sum.MeanTemp)
}

func ExampleWorldBuilder() {
	// A 1m cube, lower half water, voxelized at 10cm.
	world, err := NewWorldBuilder(1, 1, 1).
		WithMaterial(WaterMaterial(), NewVolume(0, 0, 0, 1, 0.5, 1)).
		Build(0.1)
	if err != nil {
		panic(err)
	}
	state, err := world.SetSimStateTemperature(world.BlankSimState(), 300, NewVolume(0, 0, 0, 1, 1, 1))
	if err != nil {
		panic(err)
	}
	state, err = NewSequentialRunner().AdvanceSimulation(world, state, 1.0, 0.1)
	if err != nil {
		panic(err)
	}
	fmt.Println(state.Temperature(5, 2, 5))
	// Output: 300
}
