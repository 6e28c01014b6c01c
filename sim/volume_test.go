package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolume_VoxelRangeMapping(t *testing.T) {
	// GIVEN a unit cube at 0.25m resolution
	v := NewVolume(0, 0, 0, 1, 1, 1)

	// WHEN mapped to voxels
	r := v.VoxelRange(0.25)

	// THEN the half-open range covers exactly 4 cells per axis
	assert.Equal(t, VoxelRange{X0: 0, X1: 4, Y0: 0, Y1: 4, Z0: 0, Z1: 4}, r)
}

func TestVolume_VoxelRangePartialCellsRound(t *testing.T) {
	// A volume covering any part of a cell selects that cell.
	v := NewVolume(0.1, 0.1, 0.1, 0.9, 0.9, 0.9)
	r := v.VoxelRange(1.0)
	assert.Equal(t, VoxelRange{X0: 0, X1: 1, Y0: 0, Y1: 1, Z0: 0, Z1: 1}, r)
}

func TestVolume_ValidateDegenerate(t *testing.T) {
	cases := []Volume{
		NewVolume(0, 0, 0, 0, 1, 1),   // zero x extent
		NewVolume(0, 0, 0, 1, -1, 1),  // negative y extent
		NewVolume(2, 0, 0, 1, 1, 1),   // inverted x
	}
	for _, v := range cases {
		if err := v.Validate(); !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("Validate(%+v): got %v, want ErrInvalidGeometry", v, err)
		}
	}
}

func TestVoxelRange_ClampAndEmpty(t *testing.T) {
	r := VoxelRange{X0: -2, X1: 10, Y0: 3, Y1: 4, Z0: 0, Z1: 1}
	clamped := r.Clamp(5, 5, 5)
	assert.Equal(t, VoxelRange{X0: 0, X1: 5, Y0: 3, Y1: 4, Z0: 0, Z1: 1}, clamped)
	assert.False(t, clamped.Empty())

	outside := VoxelRange{X0: 7, X1: 9, Y0: 0, Y1: 1, Z0: 0, Z1: 1}
	assert.True(t, outside.Clamp(5, 5, 5).Empty())
}
