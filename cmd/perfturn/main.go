package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/protocol"
	"github.com/ent0n29/talkmate/internal/session"
)

type options struct {
	baseURL     string
	userID      string
	level       string
	turns       int
	speakDelay  time.Duration
	turnTimeout time.Duration
	texts       []string
	verbose     bool
}

type inboundEnvelope struct {
	Type        string `json:"type"`
	State       string `json:"state,omitempty"`
	Role        string `json:"role,omitempty"`
	UtteranceID string `json:"utterance_id,omitempty"`
	Action      string `json:"action,omitempty"`
	Code        string `json:"code,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Content     string `json:"content,omitempty"`
}

var defaultUtterances = []string{
	"I went to the market yesterday and bought some apples.",
	"My favourite hobby is playing the guitar.",
	"Remember that I work as a nurse.",
	"What should I cook for dinner tonight?",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfturn: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfturn: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var speakMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "talkmate base URL")
	flag.StringVar(&cfg.userID, "user-id", "perf-replay", "user_id used for the synthetic learner")
	flag.StringVar(&cfg.level, "level", "", "optional CEFR level for the session")
	flag.IntVar(&cfg.turns, "turns", 4, "number of learner turns to replay")
	flag.IntVar(&speakMS, "speak-ms", 400, "simulated browser playback time per speak_command")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "timeout per turn in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if speakMS < 0 {
		speakMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.speakDelay = time.Duration(speakMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	cfg.texts = splitTexts(textsRaw)
	if len(cfg.texts) == 0 {
		cfg.texts = append([]string(nil), defaultUtterances...)
	}
	return cfg, nil
}

func splitTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// browser plays the client half of the protocol: it acknowledges speak commands
// and reports when the controller is listening again.
type browser struct {
	conn       *websocket.Conn
	sessionID  string
	speakDelay time.Duration
	verbose    bool

	writeMu   sync.Mutex
	listening chan struct{}
	spoke     chan time.Time
	errs      chan error
}

func (b *browser) send(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *browser) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case b.errs <- err:
			default:
			}
			return
		}
		var env inboundEnvelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			continue
		}
		switch protocol.MessageType(env.Type) {
		case protocol.TypeActivityState:
			if env.State == "listening" {
				notify(b.listening, struct{}{})
			}
		case protocol.TypeSpeakCommand:
			notify(b.spoke, time.Now())
			go b.play(env.UtteranceID)
		case protocol.TypeErrorEvent:
			if b.verbose {
				fmt.Fprintf(os.Stderr, "perfturn: error_event code=%s detail=%s\n", env.Code, env.Detail)
			}
		case protocol.TypeConversationTurn:
			if b.verbose {
				fmt.Printf("perfturn: %s: %s\n", env.Role, env.Content)
			}
		}
	}
}

func (b *browser) play(utteranceID string) {
	status := func(s string) {
		_ = b.send(protocol.TTSStatus{
			Type:        protocol.TypeTTSStatus,
			SessionID:   b.sessionID,
			UtteranceID: utteranceID,
			Status:      s,
		})
	}
	status(protocol.TTSStatusStart)
	time.Sleep(b.speakDelay)
	status(protocol.TTSStatusEnd)
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	b := &browser{
		conn:       conn,
		sessionID:  sessionID,
		speakDelay: cfg.speakDelay,
		verbose:    cfg.verbose,
		listening:  make(chan struct{}, 1),
		spoke:      make(chan time.Time, 1),
		errs:       make(chan error, 1),
	}
	go b.readLoop()

	if cfg.verbose {
		fmt.Printf("perfturn: session=%s turns=%d speak_ms=%d\n", sessionID, cfg.turns, cfg.speakDelay.Milliseconds())
	}
	if err := b.send(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionStartCall,
	}); err != nil {
		return fmt.Errorf("start call: %w", err)
	}
	if err := await(b.listening, b.errs, cfg.turnTimeout); err != nil {
		return fmt.Errorf("await greeting: %w", err)
	}

	latencies := make([]time.Duration, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		sentAt := time.Now()
		if err := b.send(protocol.STTResult{
			Type:      protocol.TypeSTTResult,
			SessionID: sessionID,
			Text:      text,
			IsFinal:   true,
		}); err != nil {
			return fmt.Errorf("turn %d send transcript: %w", i+1, err)
		}

		timer := time.NewTimer(cfg.turnTimeout)
		select {
		case spokeAt := <-b.spoke:
			latencies = append(latencies, spokeAt.Sub(sentAt))
		case err := <-b.errs:
			timer.Stop()
			return fmt.Errorf("turn %d: %w", i+1, err)
		case <-timer.C:
			return fmt.Errorf("turn %d: no speak_command after %s", i+1, cfg.turnTimeout)
		}
		timer.Stop()

		if err := await(b.listening, b.errs, cfg.turnTimeout); err != nil {
			return fmt.Errorf("turn %d await listening: %w", i+1, err)
		}
	}

	fmt.Println(summarize(latencies))

	snap, err := fetchPerf(ctx, httpClient, cfg.baseURL)
	if err != nil {
		return fmt.Errorf("fetch perf snapshot: %w", err)
	}
	for _, st := range snap.Stages {
		fmt.Printf("perfturn: stage=%s samples=%d p50_ms=%.1f p95_ms=%.1f\n", st.Stage, st.Samples, st.P50MS, st.P95MS)
	}
	return nil
}

func await(ch <-chan struct{}, errs <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case err := <-errs:
		return err
	case <-timer.C:
		return fmt.Errorf("timeout after %s", timeout)
	}
}

// summarize reports transcript-to-speak latency, which includes the silence window.
func summarize(latencies []time.Duration) string {
	if len(latencies) == 0 {
		return "perfturn: no turns completed"
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return fmt.Sprintf("perfturn: turns=%d avg_ms=%d p50_ms=%d max_ms=%d",
		len(sorted),
		(total / time.Duration(len(sorted))).Milliseconds(),
		percentile(sorted, 0.50).Milliseconds(),
		sorted[len(sorted)-1].Milliseconds(),
	)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func createSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := sonic.Marshal(session.CreateRequest{UserID: cfg.userID, Level: cfg.level})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/tutor/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out session.CreateResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/tutor/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func fetchPerf(ctx context.Context, client *http.Client, baseURL string) (observability.TurnStageSnapshot, error) {
	var snap observability.TurnStageSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return snap, err
	}
	res, err := client.Do(req)
	if err != nil {
		return snap, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return snap, err
	}
	if res.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("HTTP %d", res.StatusCode)
	}
	err = sonic.Unmarshal(body, &snap)
	return snap, err
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/tutor/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
