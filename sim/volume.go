package sim

import (
	"fmt"
	"math"
)

// Volume is an axis-aligned box in continuous world space (meters), used to
// select voxels for material assignment at build time and temperature
// assignment on states.
type Volume struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// NewVolume builds an axis-aligned volume from its two corners.
func NewVolume(minX, minY, minZ, maxX, maxY, maxZ float64) Volume {
	return Volume{MinX: minX, MinY: minY, MinZ: minZ, MaxX: maxX, MaxY: maxY, MaxZ: maxZ}
}

// Validate rejects degenerate volumes (non-positive extent on any axis).
func (v Volume) Validate() error {
	if v.MaxX <= v.MinX || v.MaxY <= v.MinY || v.MaxZ <= v.MinZ {
		return fmt.Errorf("%w: degenerate volume [%v,%v,%v]..[%v,%v,%v]",
			ErrInvalidGeometry, v.MinX, v.MinY, v.MinZ, v.MaxX, v.MaxY, v.MaxZ)
	}
	return nil
}

// VoxelRange is a half-open integer voxel box [X0,X1)x[Y0,Y1)x[Z0,Z1).
type VoxelRange struct {
	X0, X1, Y0, Y1, Z0, Z1 int
}

// Empty reports whether the range selects no voxels.
func (r VoxelRange) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0 || r.Z1 <= r.Z0
}

// VoxelRange maps the continuous volume onto the voxel lattice: a voxel is
// selected when the volume covers any part of its cell, so the lower corner
// floors and the upper corner ceils.
func (v Volume) VoxelRange(cellSize float64) VoxelRange {
	return VoxelRange{
		X0: int(math.Floor(v.MinX / cellSize)),
		X1: int(math.Ceil(v.MaxX / cellSize)),
		Y0: int(math.Floor(v.MinY / cellSize)),
		Y1: int(math.Ceil(v.MaxY / cellSize)),
		Z0: int(math.Floor(v.MinZ / cellSize)),
		Z1: int(math.Ceil(v.MaxZ / cellSize)),
	}
}

// Clamp intersects the range with the world's voxel box.
func (r VoxelRange) Clamp(nx, ny, nz int) VoxelRange {
	return VoxelRange{
		X0: max(r.X0, 0), X1: min(r.X1, nx),
		Y0: max(r.Y0, 0), Y1: min(r.Y1, ny),
		Z0: max(r.Z0, 0), Z1: min(r.Z1, nz),
	}
}
