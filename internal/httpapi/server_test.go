package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/talkmate/internal/agent"
	"github.com/ent0n29/talkmate/internal/config"
	"github.com/ent0n29/talkmate/internal/logging"
	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/protocol"
	"github.com/ent0n29/talkmate/internal/session"
	"github.com/ent0n29/talkmate/internal/translate"
	"github.com/ent0n29/talkmate/internal/turn"
	"github.com/ent0n29/talkmate/internal/voice"
)

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_httpapi_%d_%d", time.Now().UnixNano(), metricsSeq.Add(1)))
}

type fakeOrchestrator struct {
	voices   []voice.VoiceInfo
	snapshot *turn.Snapshot
	live     int
}

func (f *fakeOrchestrator) RunConnection(ctx context.Context, _ *session.Session, inbound <-chan any, _ chan<- any) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-inbound:
			if !ok {
				return nil
			}
		}
	}
}

func (f *fakeOrchestrator) Voices(_ context.Context, sessionID string) ([]voice.VoiceInfo, error) {
	if sessionID != "live" {
		return nil, turn.ErrNoConnection
	}
	return f.voices, nil
}

func (f *fakeOrchestrator) Snapshot(string) (turn.Snapshot, bool) {
	if f.snapshot == nil {
		return turn.Snapshot{}, false
	}
	return *f.snapshot, true
}

func (f *fakeOrchestrator) LiveCount() int { return f.live }

type testServer struct {
	*httptest.Server
	store    *memory.InMemoryStore
	sessions *session.Manager
}

func newTestServer(t *testing.T, cfg config.Config, orch Orchestrator) *testServer {
	t.Helper()
	if cfg.SessionInactivityTimeout == 0 {
		cfg.SessionInactivityTimeout = 2 * time.Minute
	}
	store := memory.NewInMemoryStore()
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, orch, store, newTestMetrics(), logging.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, sessions: sessions}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return res.StatusCode
}

func TestCreateAndEndSession(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	settings := memory.DefaultSettings()
	settings.Level = "B2"
	if err := ts.store.SaveSettings(context.Background(), "user-1", settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	var created session.CreateResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session", map[string]string{"user_id": "user-1"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", status, http.StatusCreated)
	}
	if created.SessionID == "" || created.Level != "B2" {
		t.Fatalf("create response = %+v, want stored level B2", created)
	}
	if created.InactivityTTLMS != (2 * time.Minute).Milliseconds() {
		t.Fatalf("inactivity ttl = %d", created.InactivityTTLMS)
	}

	var second session.CreateResponse
	doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session", map[string]string{"user_id": "user-1", "level": "c1"}, &second)
	if second.ReplacedSession != created.SessionID || second.Level != "C1" {
		t.Fatalf("second create = %+v, want replacement of %s at C1", second, created.SessionID)
	}

	var ended session.Session
	status = doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session/"+second.SessionID+"/end", nil, &ended)
	if status != http.StatusOK || ended.Status != session.StatusEnded {
		t.Fatalf("end = %d %+v", status, ended)
	}

	status = doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session/missing/end", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("end missing status = %d, want 404", status)
	}
}

func TestGetSessionIncludesLiveActivity(t *testing.T) {
	orch := &fakeOrchestrator{snapshot: &turn.Snapshot{State: turn.Speaking, CallActive: true, TurnID: "t1"}}
	ts := newTestServer(t, config.Config{}, orch)
	sess, _ := ts.sessions.Create("user-1", "A2")

	var got struct {
		ID       string `json:"session_id"`
		Activity *struct {
			State      string `json:"state"`
			CallActive bool   `json:"call_active"`
			TurnID     string `json:"turn_id"`
		} `json:"activity"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/"+sess.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Activity == nil || got.Activity.State != "speaking" || !got.Activity.CallActive || got.Activity.TurnID != "t1" {
		t.Fatalf("activity = %+v", got.Activity)
	}

	orch.snapshot = nil
	got.Activity = nil
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/"+sess.ID, nil, &got)
	if got.Activity != nil {
		t.Fatalf("activity without a connection = %+v", got.Activity)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/missing", nil, nil); status != http.StatusNotFound {
		t.Fatalf("missing session status = %d", status)
	}
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	for _, body := range []map[string]string{{}, {"user_id": "   "}} {
		var resp errorResponse
		status := doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session", body, &resp)
		if status != http.StatusBadRequest || resp.Code != "missing_user_id" {
			t.Fatalf("body %v: status = %d resp = %+v", body, status, resp)
		}
	}
	if n := ts.sessions.ActiveCount(); n != 0 {
		t.Fatalf("active sessions = %d, want 0", n)
	}
}

func TestActiveSessionForUser(t *testing.T) {
	orch := &fakeOrchestrator{snapshot: &turn.Snapshot{State: turn.Listening, CallActive: true}}
	ts := newTestServer(t, config.Config{}, orch)

	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/active?user_id=u1", nil, nil); status != http.StatusNotFound {
		t.Fatalf("no session status = %d, want 404", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/active", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("missing user_id status = %d, want 400", status)
	}

	sess, _ := ts.sessions.Create("u1", "B1")
	var got struct {
		ID       string `json:"session_id"`
		Activity *struct {
			State string `json:"state"`
		} `json:"activity"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/active?user_id=u1", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.ID != sess.ID || got.Activity == nil || got.Activity.State != "listening" {
		t.Fatalf("active session = %+v", got)
	}

	if _, err := ts.sessions.End(sess.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/session/active?user_id=u1", nil, nil); status != http.StatusNotFound {
		t.Fatalf("ended session status = %d, want 404", status)
	}
}

func TestReadyReportsLiveCalls(t *testing.T) {
	ts := newTestServer(t, config.Config{AgentProvider: "mock"}, &fakeOrchestrator{live: 2})
	ts.sessions.Create("u1", "A1")

	var got struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
		LiveCalls      int    `json:"live_calls"`
		AgentProvider  string `json:"agent_provider"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Status != "ready" || got.ActiveSessions != 1 || got.LiveCalls != 2 || got.AgentProvider != "mock" {
		t.Fatalf("ready = %+v", got)
	}
}

func TestCreateSessionRejectsInvalidLevel(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	var resp errorResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/v1/tutor/session", map[string]string{"user_id": "u", "level": "Z9"}, &resp)
	if status != http.StatusBadRequest || resp.Code != "invalid_level" {
		t.Fatalf("status = %d resp = %+v", status, resp)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	var got settingsResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/settings?user_id=u1", nil, &got); status != http.StatusOK {
		t.Fatalf("GET status = %d", status)
	}
	if got.Settings != memory.DefaultSettings() {
		t.Fatalf("defaults = %+v", got.Settings)
	}

	bad := memory.DefaultSettings()
	bad.Voice.Rate = 3
	var errResp errorResponse
	if status := doJSON(t, http.MethodPut, ts.URL+"/v1/tutor/settings?user_id=u1", bad, &errResp); status != http.StatusBadRequest {
		t.Fatalf("PUT invalid status = %d", status)
	}
	if errResp.Code != "invalid_settings" {
		t.Fatalf("error code = %q", errResp.Code)
	}

	good := memory.DefaultSettings()
	good.Theme = "dark"
	good.ShowTranslation = true
	good.InterfaceLanguage = "EN"
	if status := doJSON(t, http.MethodPut, ts.URL+"/v1/tutor/settings?user_id=u1", good, &got); status != http.StatusOK {
		t.Fatalf("PUT status = %d", status)
	}
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/settings?user_id=u1", nil, &got)
	if got.Settings.Theme != "dark" || !got.Settings.ShowTranslation || got.Settings.InterfaceLanguage != "en" {
		t.Fatalf("stored settings = %+v", got.Settings)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/settings", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("missing user_id status = %d", status)
	}
}

func TestMemoryRecentView(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	ctx := context.Background()
	for _, c := range []string{"one", "two", "three"} {
		if _, err := ts.store.AppendFact(ctx, "u1", c); err != nil {
			t.Fatalf("AppendFact() error = %v", err)
		}
	}

	var all memoryResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/memory?user_id=u1", nil, &all)
	if len(all.Facts) != 3 || all.Facts[0].Content != "one" {
		t.Fatalf("facts = %+v", all.Facts)
	}

	var recent memoryResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/memory?user_id=u1&recent=2", nil, &recent)
	if len(recent.Facts) != 2 || recent.Facts[0].Content != "three" || recent.Facts[1].Content != "two" {
		t.Fatalf("recent = %+v, want newest first", recent.Facts)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/memory?user_id=u1&recent=x", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("invalid recent status = %d", status)
	}
}

func TestHistoryGetAndClear(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	ctx := context.Background()
	_ = ts.store.AppendTurn(ctx, "u1", memory.DialogueTurn{Role: memory.RoleUser, Content: "hi", Timestamp: time.Now()})
	_ = ts.store.AppendTurn(ctx, "u1", memory.DialogueTurn{Role: memory.RoleAssistant, Content: "hello", Timestamp: time.Now()})

	var hist historyResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/history?user_id=u1", nil, &hist)
	if len(hist.Entries) != 2 || hist.Entries[1].Role != memory.RoleAssistant {
		t.Fatalf("history = %+v", hist.Entries)
	}

	if status := doJSON(t, http.MethodDelete, ts.URL+"/v1/tutor/history?user_id=u1", nil, nil); status != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", status)
	}
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/history?user_id=u1", nil, &hist)
	if len(hist.Entries) != 0 {
		t.Fatalf("history after clear = %+v", hist.Entries)
	}
}

func TestListVoices(t *testing.T) {
	orch := &fakeOrchestrator{voices: []voice.VoiceInfo{
		{ID: "de-1", Name: "Anna", Lang: "de-DE"},
		{ID: "en-2", Name: "Daniel", Lang: "en-GB"},
		{ID: "en-1", Name: "Samantha", Lang: "en-US"},
	}}
	ts := newTestServer(t, config.Config{}, orch)

	var resp listVoicesResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/voices?session_id=live", nil, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(resp.Voices) != 3 || resp.SelectedVoiceID != "en-1" {
		t.Fatalf("voices = %+v", resp)
	}

	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/voices?session_id=live&voice_id=en-2", nil, &resp)
	if resp.SelectedVoiceID != "en-2" {
		t.Fatalf("requested voice not honored: %+v", resp)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/voices?session_id=gone", nil, nil); status != http.StatusNotFound {
		t.Fatalf("no connection status = %d", status)
	}
}

func TestOnboardingStatus(t *testing.T) {
	ts := newTestServer(t, config.Config{AgentProvider: "openai", TranslationEnabled: true}, nil)

	var payload onboardingStatusResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/v1/onboarding/status", nil, &payload); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if payload.AgentProvider != "openai" || payload.StoreMode != "in-memory" {
		t.Fatalf("payload = %+v", payload)
	}
	statuses := map[string]string{}
	for _, c := range payload.Checks {
		statuses[c.ID] = c.Status
	}
	if statuses["agent_key"] != "error" || statuses["learner_store"] != "warn" || statuses["translation"] != "ok" {
		t.Fatalf("checks = %+v", payload.Checks)
	}
}

func TestHealthAndUISettings(t *testing.T) {
	ts := newTestServer(t, config.Config{SilenceWindow: 3 * time.Second, MemoryNoticeDuration: 3 * time.Second}, nil)

	var health map[string]any
	if status := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &health); status != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("healthz = %d %+v", status, health)
	}

	var ui uiSettingsResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/tutor/ui-settings", nil, &ui)
	if ui.SilenceWindowMS != 3000 || ui.RecognitionLang != "en-US" || len(ui.Levels) != 6 {
		t.Fatalf("ui settings = %+v", ui)
	}

	res, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET perf error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("perf status = %d", res.StatusCode)
	}
}

func TestSessionWebsocketGreetingFlow(t *testing.T) {
	store := memory.NewInMemoryStore()
	sessions := session.NewManager(2 * time.Minute)
	metrics := newTestMetrics()
	orch := turn.NewOrchestrator(turn.OrchestratorConfig{
		SilenceWindow:        50 * time.Millisecond,
		ErrorRecoveryDelay:   10 * time.Millisecond,
		MemoryNoticeDuration: 10 * time.Millisecond,
	}, agent.NewMockClient(), translate.Disabled{}, store, sessions, metrics, logging.Nop())
	srv := New(config.Config{SessionInactivityTimeout: 2 * time.Minute}, sessions, orch, store, metrics, logging.Nop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	sess, _ := sessions.Create("ws-user", "A2")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/tutor/session/ws?session_id=" + sess.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	send := func(v any) {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	readUntil := func(msgType protocol.MessageType) map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("waiting for %s: %v", msgType, err)
			}
			if msg["type"] == string(msgType) {
				return msg
			}
		}
	}

	send(protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: sess.ID, Action: protocol.ActionStartCall})
	speak := readUntil(protocol.TypeSpeakCommand)
	if speak["text"] != "Hello! How are you today?" {
		t.Fatalf("speak command = %+v", speak)
	}
	uttID, _ := speak["utterance_id"].(string)

	send(protocol.TTSStatus{Type: protocol.TypeTTSStatus, SessionID: sess.ID, UtteranceID: uttID, Status: protocol.TTSStatusStart})
	send(protocol.TTSStatus{Type: protocol.TypeTTSStatus, SessionID: sess.ID, UtteranceID: uttID, Status: protocol.TTSStatusEnd})
	start := readUntil(protocol.TypeSTTCommand)
	if start["action"] != "start" || start["lang"] != "en-US" {
		t.Fatalf("stt command = %+v", start)
	}

	send(protocol.STTResult{Type: protocol.TypeSTTResult, SessionID: sess.ID, Text: "I am fine", IsFinal: true})
	reply := readUntil(protocol.TypeSpeakCommand)
	if reply["text"] != "I heard you: I am fine. What else?" {
		t.Fatalf("reply speak command = %+v", reply)
	}

	send(map[string]string{"type": "bogus", "session_id": sess.ID})
	errEv := readUntil(protocol.TypeErrorEvent)
	if errEv["code"] != "invalid_client_message" {
		t.Fatalf("error event = %+v", errEv)
	}

	logEntries, _ := store.ConversationLog(context.Background(), "ws-user")
	if len(logEntries) != 3 {
		t.Fatalf("conversation log = %+v, want greeting, utterance and reply", logEntries)
	}
}
