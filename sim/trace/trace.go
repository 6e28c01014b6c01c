// Package trace provides per-step field summary recording for offline
// analysis of a simulation run. It has no dependencies on sim/ — it stores
// pure data types.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StepRecord captures the field summary after one advance step.
type StepRecord struct {
	Step        int     `json:"step"`
	SimTime     float64 `json:"sim_time"`
	MinTemp     float64 `json:"min_temp"`
	MaxTemp     float64 `json:"max_temp"`
	MeanTemp    float64 `json:"mean_temp"`
	TotalEnergy float64 `json:"total_energy"`
}

// Recorder collects step records during a run. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []StepRecord
}

// NewRecorder creates a Recorder ready for recording.
func NewRecorder() *Recorder {
	return &Recorder{records: make([]StepRecord, 0)}
}

// RecordStep appends one step's summary.
func (r *Recorder) RecordStep(record StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

// Records returns a snapshot of everything recorded so far.
func (r *Recorder) Records() []StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StepRecord, len(r.records))
	copy(out, r.records)
	return out
}

// WriteJSON emits the records as JSON lines, one object per step.
func (r *Recorder) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range r.Records() {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing trace record %d: %w", rec.Step, err)
		}
	}
	return nil
}
