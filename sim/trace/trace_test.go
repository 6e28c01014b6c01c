package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsInOrder(t *testing.T) {
	r := NewRecorder()
	r.RecordStep(StepRecord{Step: 0, SimTime: 0.1, MeanTemp: 300})
	r.RecordStep(StepRecord{Step: 1, SimTime: 0.2, MeanTemp: 301})

	got := r.Records()
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Step)
	assert.Equal(t, 1, got[1].Step)
}

func TestRecorder_WriteJSONLines(t *testing.T) {
	r := NewRecorder()
	r.RecordStep(StepRecord{Step: 0, SimTime: 0.5, MinTemp: 280, MaxTemp: 320, MeanTemp: 300, TotalEnergy: 1.25e9})

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec StepRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, 1.25e9, rec.TotalEnergy)
}

func TestRecorder_ConcurrentRecording(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			r.RecordStep(StepRecord{Step: step})
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Records(), 8)
}
