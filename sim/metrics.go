package sim

import "fmt"

// FieldSummary aggregates a temperature field over a world: the extreme and
// mean temperatures plus the total thermal energy. With insulated boundaries
// and no injected heat, TotalEnergy is invariant across advance steps, which
// is what the conservation checks assert.
type FieldSummary struct {
	MinTemp     float64
	MaxTemp     float64
	MeanTemp    float64
	TotalEnergy float64 // sum of T * density * specificHeat * cellVolume, joules
}

// Summarize walks the whole field, faulting chunks as needed.
func Summarize(w *World, state *SimState) (FieldSummary, error) {
	if err := w.checkShape(state); err != nil {
		return FieldSummary{}, err
	}
	cellVolume := w.CellSize * w.CellSize * w.CellSize
	out := FieldSummary{}
	sum := 0.0
	first := true
	for x := 0; x < w.XSize; x++ {
		for y := 0; y < w.YSize; y++ {
			for z := 0; z < w.ZSize; z++ {
				t := state.Temperature(x, y, z)
				mi, err := w.MaterialIndexAt(x, y, z)
				if err != nil {
					return FieldSummary{}, fmt.Errorf("summarizing field: %w", err)
				}
				m := w.Materials[mi]
				if first || t < out.MinTemp {
					out.MinTemp = t
				}
				if first || t > out.MaxTemp {
					out.MaxTemp = t
				}
				first = false
				sum += t
				out.TotalEnergy += t * m.Density * m.SpecificHeat * cellVolume
			}
		}
	}
	out.MeanTemp = sum / float64(w.XSize*w.YSize*w.ZSize)
	return out, nil
}
