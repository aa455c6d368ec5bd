package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	ActiveCalls        prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	ProviderErrors     *prometheus.CounterVec
	StateTransitions   *prometheus.CounterVec
	IllegalTransitions *prometheus.CounterVec
	TurnsCompleted     prometheus.Counter
	MemoryFactsSaved   prometheus.Counter
	AgentLatency       prometheus.Histogram
	FirstAudioLatency  prometheus.Histogram

	turnStages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active tutor sessions.",
		}),
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of voice calls currently in progress.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_transitions_total",
			Help:      "Activity state transitions by source and target state.",
		}, []string{"from", "to"}),
		IllegalTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_illegal_transitions_total",
			Help:      "Refused activity state transitions by source and target state.",
		}, []string{"from", "to"}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Conversation turns that reached assistant playback.",
		}),
		MemoryFactsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_facts_saved_total",
			Help:      "Memory facts extracted from conversation.",
		}),
		AgentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_latency_ms",
			Help:      "Conversation agent round-trip latency in milliseconds.",
			Buckets:   []float64{250, 500, 750, 1000, 1500, 2000, 3000, 5000, 8000},
		}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from utterance submission to assistant playback start in milliseconds.",
			Buckets:   []float64{500, 1000, 1500, 2000, 3000, 4000, 6000, 10000},
		}),
		turnStages: newTurnStageWindow(512),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveAgentLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.AgentLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTransition(from, to string, legal bool) {
	if m == nil {
		return
	}
	if legal {
		m.StateTransitions.WithLabelValues(from, to).Inc()
		return
	}
	m.IllegalTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) IncWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) IncProviderError(provider, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) IncTurnCompleted() {
	if m == nil {
		return
	}
	m.TurnsCompleted.Inc()
}

func (m *Metrics) IncMemoryFactSaved() {
	if m == nil {
		return
	}
	m.MemoryFactsSaved.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) CallStarted() {
	if m == nil {
		return
	}
	m.ActiveCalls.Inc()
}

func (m *Metrics) CallEnded() {
	if m == nil {
		return
	}
	m.ActiveCalls.Dec()
}

func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnStages.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveTurnIndicator(name string) {
	if m == nil {
		return
	}
	m.turnStages.ObserveIndicator(name)
}

func (m *Metrics) TurnStageSnapshot() TurnStageSnapshot {
	if m == nil {
		return newTurnStageWindow(0).Snapshot()
	}
	return m.turnStages.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil {
		return
	}
	m.turnStages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
