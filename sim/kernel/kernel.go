// Package kernel holds the per-voxel conduction update shared by every
// simulation backend. The sequential, parallel, and accelerator runners all
// schedule iteration differently but call into the same StepRegion, so the
// physics exists exactly once.
package kernel

import (
	"fmt"
	"math"
)

// Material carries the numeric fields the update rule needs. Conductivity is
// temperature dependent: k(T) = ConA + ConB*T + ConC*T^2.
type Material struct {
	Density      float64 // kg/m^3
	SpecificHeat float64 // J/(kg*K)
	ThermalConA  float64 // constant conductivity term, W/(m*K)
	ThermalConB  float64 // linear conductivity term
	ThermalConC  float64 // quadratic conductivity term
}

// Conductivity evaluates the conductivity polynomial at temperature t.
// Negative evaluations clamp to zero so a poorly fit polynomial cannot
// produce heat flowing against the gradient.
func (m Material) Conductivity(t float64) float64 {
	k := m.ThermalConA + m.ThermalConB*t + m.ThermalConC*t*t
	if k < 0 {
		return 0
	}
	return k
}

// Grid describes the voxel lattice a temperature buffer is laid out over.
// Buffers are linearized x-outer, y-middle, z-inner (z varies fastest).
type Grid struct {
	NX, NY, NZ int     // voxel counts per axis
	CellSize   float64 // voxel side length in meters
}

// Len returns the number of voxels in the grid.
func (g Grid) Len() int { return g.NX * g.NY * g.NZ }

// Index linearizes a voxel coordinate. Callers guarantee bounds.
func (g Grid) Index(x, y, z int) int {
	return (x*g.NY+y)*g.NZ + z
}

// MatIndexFunc resolves the material index of a voxel. Implementations may
// fault chunk data in from storage, hence the error return.
type MatIndexFunc func(x, y, z int) (uint8, error)

// neighborOffsets enumerates the six axis-aligned neighbor directions.
var neighborOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// harmonicMean combines the conductivities on either side of a cell
// interface. The harmonic mean is symmetric, which makes pairwise fluxes
// cancel exactly, and collapses to zero when either side is a perfect
// insulator.
func harmonicMean(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

// StepRegion writes next-step temperatures for every voxel in the half-open
// box [x0,x1)x[y0,y1)x[z0,z1). All reads come from cur; all writes go to
// next. Out-of-bounds neighbors contribute no flux (insulated world
// boundary).
//
// Stability is the caller's responsibility: the explicit scheme diverges when
// the timestep exceeds roughly cellSize^2 * density * specificHeat / (6*k).
func StepRegion(g Grid, mats []Material, matAt MatIndexFunc, cur, next []float64, dt float64, x0, x1, y0, y1, z0, z1 int) error {
	if len(cur) != g.Len() || len(next) != g.Len() {
		return fmt.Errorf("kernel: buffer length %d/%d does not match grid %dx%dx%d", len(cur), len(next), g.NX, g.NY, g.NZ)
	}
	cs := g.CellSize
	area := cs * cs
	volume := cs * cs * cs
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			for z := z0; z < z1; z++ {
				mi, err := matAt(x, y, z)
				if err != nil {
					return err
				}
				m := mats[mi]
				i := g.Index(x, y, z)
				tv := cur[i]
				kv := m.Conductivity(tv)
				capacity := m.Density * m.SpecificHeat * volume
				delta := 0.0
				for _, off := range neighborOffsets {
					nx, ny, nz := x+off[0], y+off[1], z+off[2]
					if nx < 0 || nx >= g.NX || ny < 0 || ny >= g.NY || nz < 0 || nz >= g.NZ {
						continue
					}
					nmi, err := matAt(nx, ny, nz)
					if err != nil {
						return err
					}
					tn := cur[g.Index(nx, ny, nz)]
					kn := mats[nmi].Conductivity(tn)
					k := harmonicMean(kv, kn)
					if k == 0 {
						continue
					}
					// Heat flow through the shared face, W.
					flux := k * (tn - tv) / cs * area
					delta += flux * dt / capacity
				}
				next[i] = tv + delta
			}
		}
	}
	return nil
}

// StabilityBound returns the largest timestep the explicit scheme tolerates
// for a material at temperature t on the given cell size. Advancing with a
// larger timestep is not rejected, but the result is undefined.
func StabilityBound(m Material, t, cellSize float64) float64 {
	k := m.Conductivity(t)
	if k == 0 {
		return math.Inf(1)
	}
	return cellSize * cellSize * m.Density * m.SpecificHeat / (6 * k)
}
