package observability

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

var metricsSeq atomic.Int64

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(fmt.Sprintf("observability_test_%d", metricsSeq.Add(1)))
}

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe("submit_to_playback_start", 500)
	w.Observe("submit_to_playback_start", 700)
	w.Observe("submit_to_playback_start", 900)
	w.ObserveIndicator("memory_saved")
	w.ObserveIndicator("memory_saved")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "submit_to_playback_start" {
		t.Fatalf("Stage = %q, want %q", s.Stage, "submit_to_playback_start")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 3500 {
		t.Fatalf("TargetP95MS = %.2f, want 3500", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "memory_saved" || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0] = %+v, want memory_saved x2", snap.Indicators[0])
	}
}

func TestTurnStageWindowWrapsAtCapacity(t *testing.T) {
	w := newTurnStageWindow(2)
	w.Observe("submit_to_reply", 100)
	w.Observe("submit_to_reply", 200)
	w.Observe("submit_to_reply", 300)

	snap := w.Snapshot()
	if snap.Stages[0].Samples != 2 {
		t.Fatalf("Samples = %d, want 2", snap.Stages[0].Samples)
	}
	if snap.Stages[0].AvgMS != 250 {
		t.Fatalf("AvgMS = %.2f, want 250", snap.Stages[0].AvgMS)
	}
}

func TestTurnStageWindowFlagsOverTarget(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe(StageSubmitToReply, 4000)
	w.Observe(StageReplyToTranslation, 100)
	w.Observe("custom_stage", 9000)
	w.Observe("", 10)
	w.Observe(StageSubmitToSpeak, -1)

	snap := w.Snapshot()
	got := map[string]TurnStageStats{}
	for _, st := range snap.Stages {
		got[st.Stage] = st
	}
	if len(got) != 3 {
		t.Fatalf("stages = %+v, want 3 entries", snap.Stages)
	}
	if !got[StageSubmitToReply].OverTarget {
		t.Fatalf("%s not flagged over its budget: %+v", StageSubmitToReply, got[StageSubmitToReply])
	}
	if got[StageReplyToTranslation].OverTarget {
		t.Fatalf("%s flagged over budget: %+v", StageReplyToTranslation, got[StageReplyToTranslation])
	}
	if st := got["custom_stage"]; st.TargetP95MS != 0 || st.OverTarget {
		t.Fatalf("stage without budget = %+v", st)
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		sorted []float64
		q      float64
		want   float64
	}{
		{nil, 0.5, 0},
		{[]float64{5}, 0.99, 5},
		{[]float64{1, 2, 3, 4, 5}, 0.5, 3},
		{[]float64{0, 10}, 0.25, 2.5},
		{[]float64{1, 2, 3}, 0, 1},
		{[]float64{1, 2, 3}, 1, 3},
	}
	for _, tt := range tests {
		if got := quantile(tt.sorted, tt.q); got != tt.want {
			t.Errorf("quantile(%v, %v) = %v, want %v", tt.sorted, tt.q, got, tt.want)
		}
	}
}

func TestMetricsTurnStagesAndReset(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveTurnStage("submit_to_reply", 1500*time.Millisecond)
	m.ObserveTurnIndicator("agent_error")

	snap := m.TurnStageSnapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].LastMS != 1500 {
		t.Fatalf("snapshot = %+v", snap)
	}
	m.ResetTurnStages()
	if snap := m.TurnStageSnapshot(); len(snap.Stages) != 0 || len(snap.Indicators) != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTransition("idle", "listening", true)
	m.ObserveTurnStage("submit_to_reply", time.Second)
	m.IncMemoryFactSaved()
	if snap := m.TurnStageSnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("nil metrics snapshot = %+v", snap)
	}
}
