package sim

import (
	"fmt"

	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// Material is a simulation substance: density, specific heat, and the
// coefficients of its temperature-dependent conductivity polynomial
// k(T) = a + b*T + c*T^2. It aliases the kernel type so the world, the
// runners, and the accelerator device all share one definition of the
// physics inputs.
type Material = kernel.Material

// BlankMaterial is material index 0 of every world: a perfect insulator
// filling all voxels no build operation touched.
func BlankMaterial() Material {
	return Material{Density: 1, SpecificHeat: 1}
}

// WaterMaterial returns liquid water near room temperature, the stock
// material used across examples and tests.
func WaterMaterial() Material {
	return Material{Density: 1000, SpecificHeat: 4187, ThermalConA: 0.6}
}

// ValidateMaterial rejects materials the update rule cannot handle: the
// per-voxel temperature delta divides by density and specific heat, and a
// negative base conductivity would mean heat flowing up the gradient.
func ValidateMaterial(m Material) error {
	if m.Density <= 0 {
		return fmt.Errorf("material density must be positive, got %v", m.Density)
	}
	if m.SpecificHeat <= 0 {
		return fmt.Errorf("material specific heat must be positive, got %v", m.SpecificHeat)
	}
	if m.ThermalConA < 0 {
		return fmt.Errorf("material base conductivity must be non-negative, got %v", m.ThermalConA)
	}
	return nil
}
