package turn

import (
	"strings"
	"sync"
	"time"
)

// DefaultSilenceWindow is how long the learner must stay quiet before an utterance is final.
const DefaultSilenceWindow = 3 * time.Second

// SilenceTimer finalizes an utterance once recognition has been quiet for the window.
// Each Observe restarts one countdown; on expiry post receives the countdown's generation
// and the owner calls Claim to take the text. A stale generation claims nothing, so a
// reset racing an expiry can never finalize twice.
type SilenceTimer struct {
	window    time.Duration
	post      func(gen uint64)
	afterFunc func(d time.Duration, f func()) func() bool

	mu      sync.Mutex
	gen     uint64
	stop    func() bool
	pending string
}

func NewSilenceTimer(window time.Duration, post func(gen uint64)) *SilenceTimer {
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	return &SilenceTimer{
		window: window,
		post:   post,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Observe records an incremental recognition result. Non-empty text restarts the countdown;
// empty text clears it.
func (t *SilenceTimer) Observe(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if strings.TrimSpace(text) == "" {
		t.pending = ""
		return
	}
	t.pending = text
	gen := t.gen
	t.stop = t.afterFunc(t.window, func() { t.post(gen) })
}

// Claim returns the pending text for an expired countdown and clears it.
func (t *SilenceTimer) Claim(gen uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.stop == nil {
		return "", false
	}
	text := t.pending
	t.stop = nil
	t.pending = ""
	t.gen++
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// Cancel drops any pending countdown.
func (t *SilenceTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.pending = ""
}

// Pending reports whether a countdown is running.
func (t *SilenceTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *SilenceTimer) stopLocked() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.gen++
}
