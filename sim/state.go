package sim

import "math"

// SimState is the temperature field over a world's voxel grid at one point
// in simulation time. States are immutable values: every advance or region
// assignment derives a new state, so callers may retain any number of
// historical states for replay or comparison and none of them alias a live
// buffer.
type SimState struct {
	XSize, YSize, ZSize int
	temps               []float64 // x-outer, y-middle, z-inner (z fastest)
}

func newSimState(xSize, ySize, zSize int) *SimState {
	return &SimState{
		XSize: xSize,
		YSize: ySize,
		ZSize: zSize,
		temps: make([]float64, xSize*ySize*zSize),
	}
}

func (s *SimState) index(x, y, z int) int {
	return (x*s.YSize+y)*s.ZSize + z
}

// Temperature returns the temperature of the voxel at an integer coordinate.
// Callers guarantee bounds.
func (s *SimState) Temperature(x, y, z int) float64 {
	return s.temps[s.index(x, y, z)]
}

// SampleTemperature returns the temperature of the voxel containing the
// given continuous world-space point, or ok=false outside the world.
func (s *SimState) SampleTemperature(x, y, z, cellSize float64) (float64, bool) {
	vx := int(math.Floor(x / cellSize))
	vy := int(math.Floor(y / cellSize))
	vz := int(math.Floor(z / cellSize))
	if vx < 0 || vx >= s.XSize || vy < 0 || vy >= s.YSize || vz < 0 || vz >= s.ZSize {
		return 0, false
	}
	return s.temps[s.index(vx, vy, vz)], true
}

// Clone returns a deep copy sharing no buffer with the receiver.
func (s *SimState) Clone() *SimState {
	out := newSimState(s.XSize, s.YSize, s.ZSize)
	copy(out.temps, s.temps)
	return out
}

// withTemps wraps a temperature buffer in a new state of the same shape.
// The buffer is adopted, not copied; callers hand over ownership.
func (s *SimState) withTemps(temps []float64) *SimState {
	return &SimState{XSize: s.XSize, YSize: s.YSize, ZSize: s.ZSize, temps: temps}
}
