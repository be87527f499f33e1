package metrics

import (
	"sync"
)

// Sample is one recorded Add call.
type Sample struct {
	Value float64
	Tags  Tags
}

// RecordingInstrument keeps every sample in memory.
type RecordingInstrument struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *RecordingInstrument) Add(value float64, tags Tags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{Value: value, Tags: tags})
}

// Samples returns a copy of the recorded samples.
func (r *RecordingInstrument) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Count returns the number of recorded samples.
func (r *RecordingInstrument) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Sum returns the sum of recorded values.
func (r *RecordingInstrument) Sum() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, s := range r.samples {
		sum += s.Value
	}
	return sum
}

// RecordedAction exposes the concrete instruments behind an ActionMetrics.
type RecordedAction struct {
	Successes         *RecordingInstrument
	Failures          *RecordingInstrument
	CumulativeLatency *RecordingInstrument
	metrics           *ActionMetrics
}

// Recorder is an in-memory Registry used by tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	actions map[string]*RecordedAction
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{actions: make(map[string]*RecordedAction)}
}

func (r *Recorder) GetActionMetrics(action string) *ActionMetrics {
	return r.Action(action).metrics
}

// Action returns the recorded instruments for action, creating them on first use.
func (r *Recorder) Action(action string) *RecordedAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actions[action]; ok {
		return a
	}
	a := &RecordedAction{
		Successes:         &RecordingInstrument{},
		Failures:          &RecordingInstrument{},
		CumulativeLatency: &RecordingInstrument{},
	}
	a.metrics = &ActionMetrics{
		Successes:         a.Successes,
		Failures:          a.Failures,
		CumulativeLatency: a.CumulativeLatency,
	}
	r.actions[action] = a
	return a
}

var _ Registry = (*Recorder)(nil)
