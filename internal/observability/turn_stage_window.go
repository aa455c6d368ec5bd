package observability

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Turn stages recorded by the turn controller.
const (
	StageSubmitToReply           = "submit_to_reply"
	StageReplyToTranslation      = "reply_to_translation"
	StageSubmitToSpeak           = "submit_to_speak"
	StageSubmitToPlaybackStart   = "submit_to_playback_start"
	StageGreetingToPlaybackStart = "greeting_to_playback_start"
)

// p95 budgets per stage in milliseconds. Stages that start at submit exclude the
// silence window; the learner already waited for it.
var stageBudgetsMS = map[string]float64{
	StageSubmitToReply:           2500,
	StageReplyToTranslation:      1500,
	StageSubmitToSpeak:           3000,
	StageSubmitToPlaybackStart:   3500,
	StageGreetingToPlaybackStart: 3500,
}

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  bool    `json:"over_target,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TurnStageSnapshot is what /v1/perf/latency serves.
type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// sampleRing keeps the most recent samples of one stage.
type sampleRing struct {
	buf  []float64
	n    int
	head int
	last float64
}

func (r *sampleRing) add(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
	r.last = v
}

func (r *sampleRing) sorted() []float64 {
	out := slices.Clone(r.buf[:r.n])
	slices.Sort(out)
	return out
}

type turnStageWindow struct {
	mu         sync.Mutex
	size       int
	rings      map[string]*sampleRing
	indicators map[string]int
}

func newTurnStageWindow(size int) *turnStageWindow {
	if size <= 0 {
		size = 256
	}
	w := &turnStageWindow{size: size}
	w.clear()
	return w
}

func (w *turnStageWindow) clear() {
	w.rings = make(map[string]*sampleRing)
	w.indicators = make(map[string]int)
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	stage = strings.TrimSpace(stage)
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.rings[stage]
	if r == nil {
		r = &sampleRing{buf: make([]float64, w.size)}
		w.rings[stage] = r
	}
	r.add(ms)
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *turnStageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.clear()
	w.mu.Unlock()
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]TurnStageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		if r := w.rings[stage]; r.n > 0 {
			snap.Stages = append(snap.Stages, summarizeStage(stage, r))
		}
	}
	for _, name := range sortedKeys(w.indicators) {
		snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: w.indicators[name]})
	}
	return snap
}

func summarizeStage(stage string, r *sampleRing) TurnStageStats {
	samples := r.sorted()
	var sum float64
	for _, v := range samples {
		sum += v
	}
	st := TurnStageStats{
		Stage:       stage,
		Samples:     len(samples),
		LastMS:      round2(r.last),
		AvgMS:       round2(sum / float64(len(samples))),
		P50MS:       round2(quantile(samples, 0.50)),
		P95MS:       round2(quantile(samples, 0.95)),
		P99MS:       round2(quantile(samples, 0.99)),
		TargetP95MS: stageBudgetsMS[stage],
	}
	st.OverTarget = st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS
	return st
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
