package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the tutor service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	LogLevel  string
	LogFormat string

	AgentProvider    string
	AgentAPIKey      string
	AgentBaseURL     string
	AgentModel       string
	AgentHTTPURL     string
	AgentTemperature float64
	AgentMaxTokens   int

	TranslationEnabled bool

	DatabaseURL string
	StateFile   string

	SilenceWindow        time.Duration
	ErrorRecoveryDelay   time.Duration
	MemoryNoticeDuration time.Duration
	SpeakTranslation     bool

	TracingEnabled bool
}

// Load reads .env, the optional YAML file and environment variables, then applies safe defaults.
// Precedence: environment > YAML file > built-in defaults.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	overlay, err := LoadFile(strings.TrimSpace(os.Getenv("TALKMATE_CONFIG")))
	if err != nil {
		return Config{}, err
	}
	src := source{file: overlay}

	cfg := Config{
		BindAddr:         src.envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: src.envOrDefault("APP_METRICS_NAMESPACE", "talkmate"),
		AllowAnyOrigin:   false,
		LogLevel:         src.envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        src.envOrDefault("LOG_FORMAT", "json"),
		AgentProvider:    src.envOrDefault("AGENT_PROVIDER", "auto"),
		AgentAPIKey:      firstNonEmpty(src.stringsTrimSpace("AGENT_API_KEY"), src.stringsTrimSpace("OPENAI_API_KEY"), src.stringsTrimSpace("GEMINI_API_KEY")),
		AgentBaseURL:     src.stringsTrimSpace("AGENT_BASE_URL"),
		AgentModel:       src.envOrDefault("AGENT_MODEL", "gpt-4o-mini"),
		AgentHTTPURL:     src.stringsTrimSpace("AGENT_HTTP_URL"),
		AgentTemperature: 0.7,
		AgentMaxTokens:   300,
		// Translation is on by default; each learner still opts in through settings.
		TranslationEnabled:       true,
		DatabaseURL:              src.stringsTrimSpace("DATABASE_URL"),
		StateFile:                src.stringsTrimSpace("TALKMATE_STATE_FILE"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		SilenceWindow:            3 * time.Second,
		ErrorRecoveryDelay:       time.Second,
		MemoryNoticeDuration:     3 * time.Second,
	}
	cfg.ShutdownTimeout, err = src.durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = src.durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceWindow, err = src.durationFromEnv("TURN_SILENCE_WINDOW", cfg.SilenceWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.ErrorRecoveryDelay, err = src.durationFromEnv("TURN_ERROR_RECOVERY_DELAY", cfg.ErrorRecoveryDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryNoticeDuration, err = src.durationFromEnv("TURN_MEMORY_NOTICE", cfg.MemoryNoticeDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeakTranslation, err = src.boolFromEnv("TURN_SPEAK_TRANSLATION", cfg.SpeakTranslation)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = src.boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.TranslationEnabled, err = src.boolFromEnv("TRANSLATION_ENABLED", cfg.TranslationEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.TracingEnabled, err = src.boolFromEnv("OTEL_TRACING_ENABLED", cfg.TracingEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentTemperature, err = src.floatFromEnv("AGENT_TEMPERATURE", cfg.AgentTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentMaxTokens, err = src.intFromEnv("AGENT_MAX_TOKENS", cfg.AgentMaxTokens)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SilenceWindow <= 0 {
		return Config{}, fmt.Errorf("TURN_SILENCE_WINDOW must be positive")
	}
	if cfg.ErrorRecoveryDelay < 0 {
		return Config{}, fmt.Errorf("TURN_ERROR_RECOVERY_DELAY must be >= 0")
	}
	if cfg.AgentMaxTokens < 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_TOKENS must be >= 0")
	}
	if cfg.AgentTemperature < 0 || cfg.AgentTemperature > 2 {
		return Config{}, fmt.Errorf("AGENT_TEMPERATURE must be within [0,2]")
	}
	switch strings.ToLower(cfg.AgentProvider) {
	case "auto", "openai", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid AGENT_PROVIDER: %q (expected auto|openai|http|mock)", cfg.AgentProvider)
	}

	return cfg, nil
}

// source resolves a key from the process environment first, then the YAML overlay.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return s.file[key]
}

func (s source) envOrDefault(key, fallback string) string {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) stringsTrimSpace(key string) string {
	return strings.TrimSpace(s.get(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s source) durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := s.stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func (s source) intFromEnv(key string, fallback int) (int, error) {
	v := s.stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func (s source) floatFromEnv(key string, fallback float64) (float64, error) {
	v := s.stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func (s source) boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(s.stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
