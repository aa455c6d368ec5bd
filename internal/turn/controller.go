package turn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ent0n29/talkmate/internal/agent"
	"github.com/ent0n29/talkmate/internal/audio"
	"github.com/ent0n29/talkmate/internal/cefr"
	"github.com/ent0n29/talkmate/internal/logging"
	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/policy"
	"github.com/ent0n29/talkmate/internal/protocol"
	"github.com/ent0n29/talkmate/internal/reliability"
	"github.com/ent0n29/talkmate/internal/translate"
	"github.com/ent0n29/talkmate/internal/voice"
)

// ErrStopped is returned when an event is posted after Run has returned.
var ErrStopped = errors.New("turn controller stopped")

// Agent is the conversation capability the controller drives.
type Agent interface {
	StartConversation(level cefr.Level, facts []memory.Fact) error
	SendMessage(ctx context.Context, text string) (string, error)
}

// SessionTracker receives activity and turn bookkeeping for the hosting session.
type SessionTracker interface {
	Touch(sessionID string) error
	StartTurn(sessionID, turnID string) error
	CompleteTurn(sessionID string) error
	AbortTurn(sessionID string) error
}

type Config struct {
	SessionID string
	UserID    string
	// Level overrides the learner's stored level when valid.
	Level cefr.Level

	SilenceWindow        time.Duration
	ErrorRecoveryDelay   time.Duration
	MemoryNoticeDuration time.Duration
	TranslationEnabled   bool
	SpeakTranslation     bool
}

type Deps struct {
	Source     voice.TranscriptionSource
	Speech     voice.SpeechOutput
	Agent      Agent
	Translator translate.Translator
	Store      memory.Store
	Sessions   SessionTracker
	Emit       func(msg any) bool
	Metrics    *observability.Metrics
	Tracer     trace.Tracer
	Log        zerolog.Logger
	Now        func() time.Time
}

// Snapshot is a point-in-time view of a controller, safe to read from any goroutine.
type Snapshot struct {
	State      ActivityState `json:"state"`
	CallActive bool          `json:"call_active"`
	Utterance  string        `json:"utterance,omitempty"`
	TurnID     string        `json:"turn_id,omitempty"`
}

// Controller owns one learner's call. Every callback becomes an event on a single loop
// goroutine, so pipeline steps never run in parallel. Remote calls run on short-lived
// goroutines and carry the call epoch; results from an ended call are discarded.
type Controller struct {
	cfg        Config
	source     voice.TranscriptionSource
	speech     voice.SpeechOutput
	agent      Agent
	translator translate.Translator
	store      memory.Store
	sessions   SessionTracker
	emitFn     func(msg any) bool
	metrics    *observability.Metrics
	tracer     trace.Tracer
	log        zerolog.Logger
	now        func() time.Time

	events chan any
	done   chan struct{}
	snap   atomic.Pointer[Snapshot]

	// Loop-owned.
	runCtx         context.Context
	state          ActivityState
	callActive     bool
	epoch          uint64
	callCtx        context.Context
	callCancel     context.CancelFunc
	utterance      Utterance
	silence        *SilenceTimer
	turn           *pendingTurn
	turnCtx        context.Context
	turnSpan       trace.Span
	utteranceID    string
	speakIssuedAt  time.Time
	greetingAt     time.Time
	settings       memory.Settings
	params         voice.Parameters
	paramsOverride bool
}

type (
	controlEvent struct{ action string }
	submitEvent  struct{ text string }
	silenceEvent struct{ gen uint64 }
	paramsEvent  struct{ params voice.Parameters }
	recoverEvent struct{ epoch uint64 }
	noticeEvent  struct{ factID int64 }

	greetingEvent struct {
		epoch uint64
		reply string
		err   error
	}
	replyEvent struct {
		epoch  uint64
		turnID string
		reply  string
		err    error
	}
	translationEvent struct {
		epoch  uint64
		turnID string
		text   string
	}
)

func NewController(cfg Config, deps Deps) *Controller {
	if cfg.ErrorRecoveryDelay < 0 {
		cfg.ErrorRecoveryDelay = 0
	}
	if cfg.MemoryNoticeDuration <= 0 {
		cfg.MemoryNoticeDuration = 3 * time.Second
	}
	if deps.Translator == nil {
		deps.Translator = translate.Disabled{}
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.Tracer()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Controller{
		cfg:        cfg,
		source:     deps.Source,
		speech:     deps.Speech,
		agent:      deps.Agent,
		translator: deps.Translator,
		store:      deps.Store,
		sessions:   deps.Sessions,
		emitFn:     deps.Emit,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		log: logging.Component(deps.Log, "turn").With().
			Str("session_id", cfg.SessionID).
			Str("user_id", cfg.UserID).
			Logger(),
		now:      deps.Now,
		events:   make(chan any, 64),
		done:     make(chan struct{}),
		state:    Idle,
		settings: memory.DefaultSettings(),
		params:   voice.DefaultParameters(),
	}
	c.silence = NewSilenceTimer(cfg.SilenceWindow, func(gen uint64) {
		c.post(silenceEvent{gen: gen})
	})
	c.publish()
	return c
}

// StartCall begins a call: greeting generation, then the listen/think/speak loop.
func (c *Controller) StartCall() error { return c.post(controlEvent{action: protocol.ActionStartCall}) }

// EndCall stops everything in flight and returns to Idle.
func (c *Controller) EndCall() error { return c.post(controlEvent{action: protocol.ActionEndCall}) }

// ResumeListening re-arms recognition after it stopped while the call stayed active.
func (c *Controller) ResumeListening() error {
	return c.post(controlEvent{action: protocol.ActionResumeListening})
}

// Submit finalizes text as the learner's utterance without waiting for silence.
func (c *Controller) Submit(text string) error { return c.post(submitEvent{text: text}) }

// SetVoiceParameters applies to the next Speak call.
func (c *Controller) SetVoiceParameters(p voice.Parameters) error {
	return c.post(paramsEvent{params: p})
}

func (c *Controller) Snapshot() Snapshot { return *c.snap.Load() }

func (c *Controller) State() ActivityState { return c.Snapshot().State }

// Done is closed once Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run processes events until ctx is canceled. Cancellation ends any active call.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	transcripts := c.source.Events()
	speech := c.speech.SpeechEvents()
	for {
		select {
		case <-ctx.Done():
			c.endCall("shutdown")
			return nil
		case ev := <-c.events:
			c.handle(ev)
		case ev, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			c.onTranscript(ev)
		case ev, ok := <-speech:
			if !ok {
				speech = nil
				continue
			}
			c.onSpeech(ev)
		}
	}
}

func (c *Controller) post(ev any) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) handle(ev any) {
	switch ev := ev.(type) {
	case controlEvent:
		switch ev.action {
		case protocol.ActionStartCall:
			c.startCall()
		case protocol.ActionEndCall:
			c.endCall("client")
		case protocol.ActionResumeListening:
			c.resumeListening()
		}
	case submitEvent:
		c.submit(ev.text)
	case silenceEvent:
		c.onSilence(ev.gen)
	case paramsEvent:
		c.params = ev.params.Clamp()
		c.paramsOverride = true
	case greetingEvent:
		c.onGreeting(ev)
	case replyEvent:
		c.onReply(ev)
	case translationEvent:
		c.onTranslation(ev)
	case recoverEvent:
		c.onRecover(ev)
	case noticeEvent:
		c.emit(protocol.MemoryNoticeCleared{
			Type:      protocol.TypeMemoryNoticeCleared,
			SessionID: c.cfg.SessionID,
			FactID:    ev.factID,
		})
	}
}

func (c *Controller) startCall() {
	if c.callActive {
		c.emitSystem("call_already_active", "")
		return
	}
	c.callActive = true
	if !c.transition(Initializing) {
		c.callActive = false
		return
	}
	c.epoch++
	c.callCtx, c.callCancel = context.WithCancel(c.runCtx)
	c.metrics.CallStarted()
	c.metrics.IncSessionEvent("call_started")
	c.touch()
	c.publish()

	rec, err := c.store.Load(c.callCtx, c.cfg.UserID)
	if err != nil {
		c.log.Warn().Err(err).Msg("load learner record failed; using defaults")
		rec = memory.Record{Settings: memory.DefaultSettings()}
	}
	c.applySettings(rec.Settings)

	level := c.cfg.Level
	if !level.Valid() {
		level = rec.Settings.Level
	}
	if err := c.agent.StartConversation(level, rec.Facts); err != nil {
		c.failStart(err)
		return
	}

	c.log.Info().Str("level", string(level)).Int("facts", len(rec.Facts)).Msg("call started")
	c.greetingAt = c.now()
	epoch, ctx := c.epoch, c.callCtx
	go func() {
		reply, err := c.agent.SendMessage(ctx, agent.GreetingPrompt)
		_ = c.post(greetingEvent{epoch: epoch, reply: reply, err: err})
	}()
}

func (c *Controller) failStart(err error) {
	code := CodeAgentStartFailed
	if errors.Is(err, agent.ErrNotInitialized) {
		code = CodeAgentNotInitialized
	}
	c.log.Error().Err(err).Str("code", code).Msg("call start failed")
	c.metrics.IncProviderError("agent", code)
	c.emitError(code, "agent", agent.IsRetryable(err), MessageStartFailed)

	c.callActive = false
	c.epoch++
	if c.callCancel != nil {
		c.callCancel()
	}
	c.metrics.CallEnded()
	c.transition(Idle)
}

func (c *Controller) onGreeting(ev greetingEvent) {
	if ev.epoch != c.epoch || !c.callActive {
		return
	}
	if ev.err != nil {
		c.failStart(ev.err)
		return
	}
	reply := strings.TrimSpace(ev.reply)
	c.appendTurn(memory.RoleAssistant, reply, uuid.NewString())
	c.speak(reply)
}

func (c *Controller) resumeListening() {
	if !c.callActive {
		c.emitError(CodeCallNotActive, "controller", false, "no active call")
		return
	}
	if c.state.Busy() {
		c.emitSystem("turn_in_progress", string(c.state))
		return
	}
	if c.state != Idle {
		return
	}
	c.startListening()
}

func (c *Controller) startListening() {
	if !c.callActive {
		return
	}
	c.silence.Cancel()
	c.utterance = Utterance{}
	if !c.transition(Listening) {
		return
	}
	if err := c.source.Start(c.callCtx); err != nil {
		c.recognitionFailed("start-failed", err.Error())
	}
}

func (c *Controller) onTranscript(ev voice.TranscriptEvent) {
	switch ev.Type {
	case voice.TranscriptResult:
		if !c.callActive || c.state != Listening {
			return
		}
		c.utterance = Utterance{Text: ev.Text, IsFinal: ev.IsFinal}
		c.publish()
		c.emit(protocol.TranscriptUpdate{
			Type:      protocol.TypeTranscriptUpdate,
			SessionID: c.cfg.SessionID,
			Text:      ev.Text,
			IsFinal:   ev.IsFinal,
		})
		c.silence.Observe(ev.Text)
	case voice.TranscriptEnded:
		if !c.callActive || c.state != Listening {
			return
		}
		// The recognizer stopped on its own. A running countdown still finalizes what was heard.
		if c.silence.Pending() {
			c.log.Debug().Msg("recognizer ended with a pending utterance")
			return
		}
		c.utterance = Utterance{}
		c.transition(Idle)
		c.emitSystem("listening_stopped", "")
	case voice.TranscriptError:
		if ev.Code == voice.NoSpeechCode {
			return
		}
		if !c.callActive || c.state != Listening {
			c.log.Debug().Str("code", ev.Code).Str("state", string(c.state)).Msg("recognition error outside listening")
			return
		}
		c.recognitionFailed(ev.Code, ev.Detail)
	}
}

func (c *Controller) recognitionFailed(code, detail string) {
	c.log.Warn().Str("code", code).Str("detail", detail).Msg("recognition error")
	c.silence.Cancel()
	_ = c.source.Stop(c.callCtx)
	c.utterance = Utterance{}
	c.metrics.IncProviderError("transcription", code)
	c.metrics.ObserveTurnIndicator("recognition_error")
	c.transition(Idle)
	c.emitError(CodeRecognition, "transcription", reliability.IsRetryableRecognitionError(code), code)
}

func (c *Controller) onSilence(gen uint64) {
	text, ok := c.silence.Claim(gen)
	if !ok {
		return
	}
	c.submit(text)
}

func (c *Controller) submit(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !c.callActive || c.state != Listening {
		c.log.Debug().Str("state", string(c.state)).Msg("submit ignored")
		return
	}
	c.silence.Cancel()

	t := &pendingTurn{id: uuid.NewString(), userText: text, submittedAt: c.now()}
	c.appendTurn(memory.RoleUser, text, t.id)
	c.transition(Thinking)
	_ = c.source.Stop(c.callCtx)
	c.utterance = Utterance{}
	c.turn = t
	c.refreshSettings()
	if c.sessions != nil {
		_ = c.sessions.StartTurn(c.cfg.SessionID, t.id)
	}

	c.turnCtx, c.turnSpan = c.tracer.Start(c.callCtx, "turn",
		trace.WithAttributes(
			attribute.String("turn.id", t.id),
			attribute.String("session.id", c.cfg.SessionID),
		))
	c.publish()
	tl := observability.WithTrace(c.turnCtx, c.log)
	tl.Info().
		Str("turn_id", t.id).
		Str("utterance", policy.ForLog(text, 0)).
		Msg("utterance submitted")

	epoch, ctx := c.epoch, c.turnCtx
	go func() {
		spanCtx, span := c.tracer.Start(ctx, "agent.send_message")
		reply, err := c.agent.SendMessage(spanCtx, text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "send message failed")
		}
		span.End()
		_ = c.post(replyEvent{epoch: epoch, turnID: t.id, reply: reply, err: err})
	}()
}

func (c *Controller) onReply(ev replyEvent) {
	if ev.epoch != c.epoch || c.turn == nil || ev.turnID != c.turn.id {
		return
	}
	t := c.turn
	t.repliedAt = c.now()
	c.metrics.ObserveAgentLatency(t.repliedAt.Sub(t.submittedAt))
	c.metrics.ObserveTurnStage(observability.StageSubmitToReply, t.repliedAt.Sub(t.submittedAt))

	if ev.err != nil {
		c.turnFailed(ev.err)
		return
	}

	t.reply = strings.TrimSpace(ev.reply)
	c.appendTurn(memory.RoleAssistant, t.reply, t.id)

	if target, ok := TranslationTarget(c.settings, c.cfg.TranslationEnabled); ok {
		c.transition(Translating)
		epoch, ctx, reply := c.epoch, c.turnCtx, t.reply
		go func() {
			spanCtx, span := c.tracer.Start(ctx, "translate",
				trace.WithAttributes(attribute.String("translate.target", target)))
			text := c.translator.Translate(spanCtx, reply, target)
			span.End()
			_ = c.post(translationEvent{epoch: epoch, turnID: t.id, text: text})
		}()
		return
	}
	c.finishTurn()
}

func (c *Controller) onTranslation(ev translationEvent) {
	if ev.epoch != c.epoch || c.turn == nil || ev.turnID != c.turn.id {
		return
	}
	t := c.turn
	t.translation = ev.text
	c.metrics.ObserveTurnStage(observability.StageReplyToTranslation, c.now().Sub(t.repliedAt))
	if ev.text == t.reply {
		c.metrics.ObserveTurnIndicator("translation_passthrough")
	}
	c.emit(protocol.Translation{
		Type:      protocol.TypeTranslation,
		SessionID: c.cfg.SessionID,
		TurnID:    t.id,
		Language:  c.settings.InterfaceLanguage,
		Text:      ev.text,
	})
	c.finishTurn()
}

func (c *Controller) finishTurn() {
	t := c.turn
	c.extractMemory(t)
	c.transition(PreparingVoice)
	c.metrics.ObserveTurnStage(observability.StageSubmitToSpeak, c.now().Sub(t.submittedAt))
	c.speak(SpokenText(t.reply, t.translation, c.cfg.SpeakTranslation))
}

func (c *Controller) extractMemory(t *pendingTurn) {
	cue, ok := MatchMemoryCue(t.reply)
	if !ok {
		return
	}
	fact, err := c.store.AppendFact(c.callCtx, c.cfg.UserID, FactContent(t.userText, c.now()))
	if err != nil {
		c.log.Warn().Err(err).Msg("save memory fact failed")
		return
	}
	c.metrics.IncMemoryFactSaved()
	c.metrics.ObserveTurnIndicator("memory_saved")
	c.log.Info().Int64("fact_id", fact.ID).Str("cue", cue).Msg("memory fact saved")

	c.emit(protocol.MemorySaved{
		Type:      protocol.TypeMemorySaved,
		SessionID: c.cfg.SessionID,
		FactID:    fact.ID,
		Content:   fact.Content,
		VisibleMs: c.cfg.MemoryNoticeDuration.Milliseconds(),
	})
	if chime, err := audio.ChimeBase64(); err == nil {
		c.emit(protocol.MemoryChime{
			Type:        protocol.TypeMemoryChime,
			SessionID:   c.cfg.SessionID,
			Format:      "wav",
			AudioBase64: chime,
		})
	}
	factID := fact.ID
	time.AfterFunc(c.cfg.MemoryNoticeDuration, func() { _ = c.post(noticeEvent{factID: factID}) })
}

func (c *Controller) turnFailed(err error) {
	c.log.Warn().Err(err).Str("turn_id", c.turn.id).Msg("agent reply failed")
	provider := "agent"
	var te *agent.TransportError
	if errors.As(err, &te) {
		provider = te.Provider
	}
	c.metrics.IncProviderError(provider, CodeAgentTransport)
	c.metrics.ObserveTurnIndicator("agent_error")
	c.emitError(CodeAgentTransport, "agent", agent.IsRetryable(err), MessageReplyFailed)

	if c.sessions != nil {
		_ = c.sessions.AbortTurn(c.cfg.SessionID)
	}
	c.endTurnSpan(err)
	c.turn = nil
	c.publish()

	epoch := c.epoch
	time.AfterFunc(c.cfg.ErrorRecoveryDelay, func() { _ = c.post(recoverEvent{epoch: epoch}) })
}

func (c *Controller) onRecover(ev recoverEvent) {
	if ev.epoch != c.epoch || !c.callActive {
		return
	}
	switch c.state {
	case Thinking, Translating, PreparingVoice:
		c.startListening()
	}
}

func (c *Controller) speak(text string) {
	clean := SanitizeForSpeech(text)
	if clean == "" {
		c.playbackFinished()
		return
	}
	id, err := c.speech.Speak(c.callCtx, clean, c.params)
	if err != nil {
		c.log.Warn().Err(err).Msg("speak failed")
		c.metrics.IncProviderError("speech_output", "speak_failed")
		c.emitError(CodeSpeechOutput, "speech", true, err.Error())
		c.playbackFinished()
		return
	}
	c.utteranceID = id
	c.speakIssuedAt = c.now()
}

func (c *Controller) onSpeech(ev voice.SpeechEvent) {
	if ev.UtteranceID == "" || ev.UtteranceID != c.utteranceID {
		return
	}
	switch ev.Type {
	case voice.SpeechStart:
		switch c.state {
		case Initializing:
			c.metrics.ObserveTurnStage(observability.StageGreetingToPlaybackStart, c.now().Sub(c.greetingAt))
		case PreparingVoice:
			if c.turn != nil {
				d := c.now().Sub(c.turn.submittedAt)
				c.metrics.ObserveTurnStage(observability.StageSubmitToPlaybackStart, d)
				c.metrics.ObserveFirstAudioLatency(d)
			}
		}
		c.transition(Speaking)
	case voice.SpeechEnd:
		c.playbackFinished()
	case voice.SpeechError:
		c.log.Warn().Str("code", ev.Code).Str("detail", ev.Detail).Msg("speech output error")
		c.metrics.IncProviderError("speech_output", ev.Code)
		c.playbackFinished()
	}
}

func (c *Controller) playbackFinished() {
	c.utteranceID = ""
	if t := c.turn; t != nil {
		c.metrics.IncTurnCompleted()
		if c.sessions != nil {
			_ = c.sessions.CompleteTurn(c.cfg.SessionID)
		}
		c.endTurnSpan(nil)
		c.turn = nil
	}
	if c.callActive {
		c.startListening()
		return
	}
	c.publish()
}

func (c *Controller) endCall(reason string) {
	if !c.callActive && c.state == Idle {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.silence.Cancel()
	if err := c.source.Stop(ctx); err != nil {
		c.log.Debug().Err(err).Msg("stop transcription")
	}
	if err := c.speech.Cancel(ctx); err != nil {
		c.log.Debug().Err(err).Msg("cancel speech")
	}

	wasActive := c.callActive
	c.callActive = false
	c.epoch++
	if c.callCancel != nil {
		c.callCancel()
	}
	c.utteranceID = ""
	c.utterance = Utterance{}
	if c.turn != nil {
		if c.sessions != nil {
			_ = c.sessions.AbortTurn(c.cfg.SessionID)
		}
		c.endTurnSpan(errors.New("call ended"))
		c.turn = nil
	}
	c.transition(Idle)
	c.publish()
	if wasActive {
		c.metrics.CallEnded()
		c.metrics.IncSessionEvent("call_ended")
		c.log.Info().Str("reason", reason).Msg("call ended")
		c.emitSystem("call_ended", reason)
	}
}

func (c *Controller) transition(to ActivityState) bool {
	from := c.state
	if from == to {
		return true
	}
	if !CanTransition(from, to) {
		c.metrics.ObserveTransition(string(from), string(to), false)
		c.log.Warn().Str("from", string(from)).Str("to", string(to)).Msg("illegal activity transition refused")
		return false
	}
	c.state = to
	c.metrics.ObserveTransition(string(from), string(to), true)
	c.publish()
	c.emit(protocol.ActivityState{
		Type:       protocol.TypeActivityState,
		SessionID:  c.cfg.SessionID,
		State:      string(to),
		Previous:   string(from),
		CallActive: c.callActive,
	})
	return true
}

func (c *Controller) appendTurn(role memory.Role, content, turnID string) {
	now := c.now()
	err := c.store.AppendTurn(c.callCtx, c.cfg.UserID, memory.DialogueTurn{Role: role, Content: content, Timestamp: now})
	if err != nil {
		c.log.Warn().Err(err).Str("role", string(role)).Msg("append conversation log failed")
	}
	c.touch()
	c.emit(protocol.ConversationTurn{
		Type:      protocol.TypeConversationTurn,
		SessionID: c.cfg.SessionID,
		TurnID:    turnID,
		Role:      string(role),
		Content:   content,
		TSMs:      now.UnixMilli(),
	})
}

func (c *Controller) refreshSettings() {
	settings, err := c.store.Settings(c.callCtx, c.cfg.UserID)
	if err != nil {
		c.log.Debug().Err(err).Msg("refresh settings failed; keeping previous")
		return
	}
	c.applySettings(settings)
}

func (c *Controller) applySettings(s memory.Settings) {
	c.settings = s
	if !c.paramsOverride {
		c.params = voice.Parameters{Rate: s.Voice.Rate, Pitch: s.Voice.Pitch, VoiceID: s.Voice.VoiceID}.Clamp()
	}
}

func (c *Controller) endTurnSpan(err error) {
	if c.turnSpan == nil {
		return
	}
	if err != nil {
		c.turnSpan.RecordError(err)
		c.turnSpan.SetStatus(codes.Error, err.Error())
	}
	c.turnSpan.End()
	c.turnSpan = nil
	c.turnCtx = nil
}

func (c *Controller) touch() {
	if c.sessions != nil {
		_ = c.sessions.Touch(c.cfg.SessionID)
	}
}

func (c *Controller) publish() {
	s := &Snapshot{State: c.state, CallActive: c.callActive, Utterance: c.utterance.Text}
	if c.turn != nil {
		s.TurnID = c.turn.id
	}
	c.snap.Store(s)
}

func (c *Controller) emit(msg any) {
	if c.emitFn == nil {
		return
	}
	if !c.emitFn(msg) {
		c.log.Debug().Type("msg", msg).Msg("ui event dropped")
	}
}

func (c *Controller) emitSystem(code, detail string) {
	c.emit(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: c.cfg.SessionID,
		Code:      code,
		Detail:    detail,
	})
}

func (c *Controller) emitError(code, source string, retryable bool, detail string) {
	c.emit(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.cfg.SessionID,
		Code:      code,
		Source:    source,
		Retryable: retryable,
		Detail:    detail,
	})
}
