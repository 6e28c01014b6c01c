package sim

import (
	"errors"

	"github.com/thermal-sim/thermal-sim/sim/chunk"
)

// Error kinds surfaced by world construction and simulation. Callers
// discriminate with errors.Is; every failure wraps exactly one of these.
var (
	// ErrInvalidGeometry flags a degenerate volume or one entirely outside
	// the world bounds at build time.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrMaterialTableOverflow flags more than 256 distinct materials.
	ErrMaterialTableOverflow = errors.New("material table overflow")
	// ErrRegionOutOfBounds flags a state assignment region that does not
	// intersect the world.
	ErrRegionOutOfBounds = errors.New("region out of bounds")
	// ErrDimensionMismatch flags a simulation state whose shape disagrees
	// with the world.
	ErrDimensionMismatch = errors.New("state dimension mismatch")
	// ErrInvalidTimestep flags a non-positive timestep or one exceeding the
	// total advance duration.
	ErrInvalidTimestep = errors.New("invalid timestep")

	// Storage errors propagate from the chunk layer unchanged.
	ErrCorruptChunk    = chunk.ErrCorruptChunk
	ErrChunkOutOfRange = chunk.ErrChunkOutOfRange
	ErrStorageIO       = chunk.ErrStorageIO
)
