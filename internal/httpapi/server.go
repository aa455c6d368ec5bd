package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/talkmate/internal/cefr"
	"github.com/ent0n29/talkmate/internal/config"
	"github.com/ent0n29/talkmate/internal/logging"
	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/protocol"
	"github.com/ent0n29/talkmate/internal/session"
	"github.com/ent0n29/talkmate/internal/turn"
	"github.com/ent0n29/talkmate/internal/voice"
)

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
	Voices(ctx context.Context, sessionID string) ([]voice.VoiceInfo, error)
	Snapshot(sessionID string) (turn.Snapshot, bool)
	LiveCount() int
}

type sessionStatusResponse struct {
	*session.Session
	Activity *activityStatus `json:"activity,omitempty"`
}

type activityStatus struct {
	State      turn.ActivityState `json:"state"`
	CallActive bool               `json:"call_active"`
	TurnID     string             `json:"turn_id,omitempty"`
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	store        memory.Store
	metrics      *observability.Metrics
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, store memory.Store, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		store:        store,
		metrics:      metrics,
		log:          logging.Component(log, "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a learner's microphone session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1/tutor", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.Get("/session/ws", s.handleSessionWS)
		r.Get("/session/active", s.handleActiveSession)
		r.Get("/session/{id}", s.handleGetSession)
		r.Post("/session/{id}/end", s.handleEndSession)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/memory", s.handleListMemory)
		r.Get("/history", s.handleGetHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/voices", s.handleListVoices)
		r.Get("/ui-settings", s.handleUISettings)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": memory.Mode(s.store),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	liveCalls := 0
	if s.orchestrator != nil {
		liveCalls = s.orchestrator.LiveCount()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"store_mode":      memory.Mode(s.store),
		"active_sessions": s.sessions.ActiveCount(),
		"live_calls":      liveCalls,
		"agent_provider":  s.cfg.AgentProvider,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}

	var level cefr.Level
	if strings.TrimSpace(req.Level) != "" {
		parsed, err := cefr.Parse(req.Level)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_level", err.Error())
			return
		}
		level = parsed
	} else {
		settings, err := s.store.Settings(r.Context(), req.UserID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		level = settings.Level
	}

	sess, replaced := s.sessions.Create(req.UserID, level)
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	s.metrics.IncSessionEvent("created")

	resp := session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Level:           sess.Level,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
	}
	if replaced != nil {
		resp.ReplacedSession = replaced.ID
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.respondSessionStatus(w, sess)
}

// handleActiveSession lets a reloaded page find the learner's live session.
func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.ActiveForUser(userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.respondSessionStatus(w, sess)
}

func (s *Server) respondSessionStatus(w http.ResponseWriter, sess *session.Session) {
	resp := sessionStatusResponse{Session: sess}
	if s.orchestrator != nil {
		if snap, ok := s.orchestrator.Snapshot(sess.ID); ok {
			resp.Activity = &activityStatus{
				State:      turn.Resolve(snap.State),
				CallActive: snap.CallActive,
				TurnID:     snap.TurnID,
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	s.metrics.IncSessionEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusGone, "session_ended", "session is no longer active")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.log.With().Str("session_id", sessionID).Logger()
	s.metrics.IncSessionEvent("ws_connected")
	log.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		if err := s.orchestrator.RunConnection(ctx, sess, inbound, outbound); err != nil {
			log.Warn().Err(err).Msg("connection ended with error")
		}
		// The orchestrator ends on hangup too; unblock the reader.
		cancel()
		_ = conn.SetReadDeadline(time.Now())
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				data, err := sonic.Marshal(msg)
				if err != nil {
					log.Error().Err(err).Msg("encode outbound message")
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					s.metrics.IncWSMessage("outbound", "write_error")
					cancel()
					return
				}
				if t, ok := protocol.TypeOf(msg); ok {
					s.metrics.IncWSMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				s.metrics.IncWSMessage("outbound", "drop_full")
			}
			continue
		}

		if t, ok := protocol.TypeOf(parsed); ok {
			s.metrics.IncWSMessage("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.IncSessionEvent("ws_disconnected")
	log.Info().Msg("websocket disconnected")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errEmptyBody
	}
	return sonic.Unmarshal(data, out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// userIDParam reads the required user_id query parameter.
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return "", false
	}
	return userID, true
}
