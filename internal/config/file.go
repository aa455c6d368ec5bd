package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the environment keys as a nested YAML document.
type fileConfig struct {
	Server struct {
		BindAddr                 string `yaml:"bind_addr"`
		ShutdownTimeout          string `yaml:"shutdown_timeout"`
		SessionInactivityTimeout string `yaml:"session_inactivity_timeout"`
		MetricsNamespace         string `yaml:"metrics_namespace"`
		AllowAnyOrigin           *bool  `yaml:"allow_any_origin"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Agent struct {
		Provider    string   `yaml:"provider"`
		APIKey      string   `yaml:"api_key"`
		BaseURL     string   `yaml:"base_url"`
		Model       string   `yaml:"model"`
		HTTPURL     string   `yaml:"http_url"`
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   *int     `yaml:"max_tokens"`
	} `yaml:"agent"`
	Translation struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"translation"`
	Storage struct {
		DatabaseURL string `yaml:"database_url"`
		StateFile   string `yaml:"state_file"`
	} `yaml:"storage"`
	Turn struct {
		SilenceWindow      string `yaml:"silence_window"`
		ErrorRecoveryDelay string `yaml:"error_recovery_delay"`
		MemoryNotice       string `yaml:"memory_notice"`
		SpeakTranslation   *bool  `yaml:"speak_translation"`
	} `yaml:"turn"`
	Tracing struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"tracing"`
}

// LoadFile reads the YAML overlay at path and flattens it into environment keys.
// An empty path yields an empty overlay.
func LoadFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	values, err := decodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return values, nil
}

func decodeFile(r io.Reader) (map[string]string, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return fc.values(), nil
}

func (fc fileConfig) values() map[string]string {
	out := make(map[string]string)
	set := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = strconv.FormatBool(*v)
		}
	}

	set("APP_BIND_ADDR", fc.Server.BindAddr)
	set("APP_SHUTDOWN_TIMEOUT", fc.Server.ShutdownTimeout)
	set("APP_SESSION_INACTIVITY_TIMEOUT", fc.Server.SessionInactivityTimeout)
	set("APP_METRICS_NAMESPACE", fc.Server.MetricsNamespace)
	setBool("APP_ALLOW_ANY_ORIGIN", fc.Server.AllowAnyOrigin)

	set("LOG_LEVEL", fc.Log.Level)
	set("LOG_FORMAT", fc.Log.Format)

	set("AGENT_PROVIDER", fc.Agent.Provider)
	set("AGENT_API_KEY", fc.Agent.APIKey)
	set("AGENT_BASE_URL", fc.Agent.BaseURL)
	set("AGENT_MODEL", fc.Agent.Model)
	set("AGENT_HTTP_URL", fc.Agent.HTTPURL)
	if fc.Agent.Temperature != nil {
		out["AGENT_TEMPERATURE"] = strconv.FormatFloat(*fc.Agent.Temperature, 'f', -1, 64)
	}
	if fc.Agent.MaxTokens != nil {
		out["AGENT_MAX_TOKENS"] = strconv.Itoa(*fc.Agent.MaxTokens)
	}

	setBool("TRANSLATION_ENABLED", fc.Translation.Enabled)

	set("DATABASE_URL", fc.Storage.DatabaseURL)
	set("TALKMATE_STATE_FILE", fc.Storage.StateFile)

	set("TURN_SILENCE_WINDOW", fc.Turn.SilenceWindow)
	set("TURN_ERROR_RECOVERY_DELAY", fc.Turn.ErrorRecoveryDelay)
	set("TURN_MEMORY_NOTICE", fc.Turn.MemoryNotice)
	setBool("TURN_SPEAK_TRANSLATION", fc.Turn.SpeakTranslation)

	setBool("OTEL_TRACING_ENABLED", fc.Tracing.Enabled)
	return out
}
