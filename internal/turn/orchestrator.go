package turn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/talkmate/internal/agent"
	"github.com/ent0n29/talkmate/internal/logging"
	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/protocol"
	"github.com/ent0n29/talkmate/internal/session"
	"github.com/ent0n29/talkmate/internal/translate"
	"github.com/ent0n29/talkmate/internal/voice"
)

// ErrNoConnection is returned when a session has no websocket attached.
var ErrNoConnection = errors.New("no live connection for session")

type OrchestratorConfig struct {
	APIKey               string
	SilenceWindow        time.Duration
	ErrorRecoveryDelay   time.Duration
	MemoryNoticeDuration time.Duration
	TranslationEnabled   bool
	SpeakTranslation     bool
}

// Orchestrator attaches a Controller to each websocket connection. The agent client,
// translator and store are shared; dialogue history is per connection.
type Orchestrator struct {
	cfg        OrchestratorConfig
	client     agent.Client
	translator translate.Translator
	store      memory.Store
	sessions   SessionTracker
	metrics    *observability.Metrics
	log        zerolog.Logger

	mu   sync.Mutex
	live map[string]*liveCall
}

type liveCall struct {
	ctrl   *Controller
	bridge *voice.Bridge
	cancel context.CancelFunc
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	client agent.Client,
	translator translate.Translator,
	store memory.Store,
	sessions SessionTracker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		client:     client,
		translator: translator,
		store:      store,
		sessions:   sessions,
		metrics:    metrics,
		log:        logging.Component(log, "orchestrator"),
		live:       make(map[string]*liveCall),
	}
}

// RunConnection drives one browser connection until ctx ends or inbound closes.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := func(msg any) bool {
		select {
		case outbound <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}
	bridge := voice.NewBridge(s.ID, send)
	defer bridge.Close()

	conv := agent.NewConversation(o.client)
	if err := conv.Initialize(o.cfg.APIKey); err != nil {
		o.log.Warn().Err(err).Str("session_id", s.ID).Msg("conversation agent not initialized")
	}

	ctrl := NewController(Config{
		SessionID:            s.ID,
		UserID:               s.UserID,
		Level:                s.Level,
		SilenceWindow:        o.cfg.SilenceWindow,
		ErrorRecoveryDelay:   o.cfg.ErrorRecoveryDelay,
		MemoryNoticeDuration: o.cfg.MemoryNoticeDuration,
		TranslationEnabled:   o.cfg.TranslationEnabled,
		SpeakTranslation:     o.cfg.SpeakTranslation,
	}, Deps{
		Source:     bridge,
		Speech:     bridge,
		Agent:      conv,
		Translator: o.translator,
		Store:      o.store,
		Sessions:   o.sessions,
		Emit:       send,
		Metrics:    o.metrics,
		Log:        o.log,
	})

	lc := &liveCall{ctrl: ctrl, bridge: bridge, cancel: cancel}
	o.register(s.ID, lc)
	defer o.unregister(s.ID, lc)

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			bridge.Close()
			return <-runDone
		case msg, ok := <-inbound:
			if !ok {
				cancel()
				bridge.Close()
				return <-runDone
			}
			if o.sessions != nil {
				_ = o.sessions.Touch(s.ID)
			}
			o.dispatch(ctrl, bridge, msg)
		}
	}
}

func (o *Orchestrator) dispatch(ctrl *Controller, bridge *voice.Bridge, msg any) {
	switch m := msg.(type) {
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionStartCall:
			_ = ctrl.StartCall()
		case protocol.ActionEndCall:
			_ = ctrl.EndCall()
		case protocol.ActionResumeListening:
			_ = ctrl.ResumeListening()
		}
	case protocol.STTResult:
		bridge.HandleSTTResult(m)
	case protocol.STTStatus:
		bridge.HandleSTTStatus(m)
	case protocol.TTSStatus:
		bridge.HandleTTSStatus(m)
	case protocol.VoicesReport:
		bridge.HandleVoicesReport(m)
	case protocol.VoiceSettings:
		_ = ctrl.SetVoiceParameters(voice.Parameters{Rate: m.Rate, Pitch: m.Pitch, VoiceID: m.VoiceID})
	default:
		o.log.Debug().Type("msg", msg).Msg("unhandled inbound message")
	}
}

// Hangup closes the connection attached to sessionID, ending its call.
func (o *Orchestrator) Hangup(sessionID string) bool {
	o.mu.Lock()
	lc, ok := o.live[sessionID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	lc.cancel()
	return true
}

// Voices returns the synthesizer voices the browser reported for sessionID.
func (o *Orchestrator) Voices(ctx context.Context, sessionID string) ([]voice.VoiceInfo, error) {
	o.mu.Lock()
	lc, ok := o.live[sessionID]
	o.mu.Unlock()
	if !ok {
		return nil, ErrNoConnection
	}
	return lc.bridge.Voices(ctx)
}

// Snapshot reports the live controller state for sessionID.
func (o *Orchestrator) Snapshot(sessionID string) (Snapshot, bool) {
	o.mu.Lock()
	lc, ok := o.live[sessionID]
	o.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return lc.ctrl.Snapshot(), true
}

func (o *Orchestrator) LiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.live)
}

func (o *Orchestrator) register(sessionID string, lc *liveCall) {
	o.mu.Lock()
	prev := o.live[sessionID]
	o.live[sessionID] = lc
	o.mu.Unlock()
	// A reconnect for the same session replaces the old socket.
	if prev != nil {
		prev.cancel()
	}
}

func (o *Orchestrator) unregister(sessionID string, lc *liveCall) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live[sessionID] == lc {
		delete(o.live, sessionID)
	}
}
