package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.SilenceWindow != 3*time.Second {
		t.Fatalf("SilenceWindow = %v, want 3s", cfg.SilenceWindow)
	}
	if cfg.ErrorRecoveryDelay != time.Second {
		t.Fatalf("ErrorRecoveryDelay = %v, want 1s", cfg.ErrorRecoveryDelay)
	}
	if cfg.MemoryNoticeDuration != 3*time.Second {
		t.Fatalf("MemoryNoticeDuration = %v, want 3s", cfg.MemoryNoticeDuration)
	}
	if cfg.AgentProvider != "auto" {
		t.Fatalf("AgentProvider = %q, want auto", cfg.AgentProvider)
	}
	if cfg.SpeakTranslation {
		t.Fatalf("SpeakTranslation should default to false")
	}
}

func TestLoadAPIKeyFallbacks(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AgentAPIKey != "gem-key" {
		t.Fatalf("AgentAPIKey = %q, want gem-key", cfg.AgentAPIKey)
	}

	t.Setenv("AGENT_API_KEY", "primary")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AgentAPIKey != "primary" {
		t.Fatalf("AgentAPIKey = %q, want primary", cfg.AgentAPIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"TURN_SILENCE_WINDOW":            "0s",
		"APP_SESSION_INACTIVITY_TIMEOUT": "1s",
		"AGENT_PROVIDER":                 "gemini-native",
		"AGENT_TEMPERATURE":              "3.5",
		"TURN_SPEAK_TRANSLATION":         "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q should fail", key, value)
			}
		})
	}
}

func TestLoadYAMLOverlayWithEnvPrecedence(t *testing.T) {
	setCoreEnvEmpty(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "talkmate.yaml")
	doc := `
server:
  bind_addr: ":7070"
agent:
  provider: mock
  model: tutor-small
turn:
  silence_window: 2s
  speak_translation: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("TALKMATE_CONFIG", path)
	t.Setenv("AGENT_MODEL", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":7070" {
		t.Fatalf("BindAddr = %q, want :7070", cfg.BindAddr)
	}
	if cfg.AgentProvider != "mock" {
		t.Fatalf("AgentProvider = %q, want mock", cfg.AgentProvider)
	}
	if cfg.AgentModel != "from-env" {
		t.Fatalf("AgentModel = %q, want env value", cfg.AgentModel)
	}
	if cfg.SilenceWindow != 2*time.Second {
		t.Fatalf("SilenceWindow = %v, want 2s", cfg.SilenceWindow)
	}
	if !cfg.SpeakTranslation {
		t.Fatalf("SpeakTranslation should come from yaml")
	}
}

func TestDecodeFileRejectsUnknownFields(t *testing.T) {
	_, err := decodeFile(strings.NewReader("server:\n  bind_adress: \":1\"\n"))
	if err == nil {
		t.Fatalf("decodeFile() should reject unknown keys")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"TALKMATE_CONFIG",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"AGENT_PROVIDER",
		"AGENT_API_KEY",
		"OPENAI_API_KEY",
		"GEMINI_API_KEY",
		"AGENT_BASE_URL",
		"AGENT_MODEL",
		"AGENT_HTTP_URL",
		"AGENT_TEMPERATURE",
		"AGENT_MAX_TOKENS",
		"TRANSLATION_ENABLED",
		"DATABASE_URL",
		"TALKMATE_STATE_FILE",
		"TURN_SILENCE_WINDOW",
		"TURN_ERROR_RECOVERY_DELAY",
		"TURN_MEMORY_NOTICE",
		"TURN_SPEAK_TRANSLATION",
		"OTEL_TRACING_ENABLED",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
