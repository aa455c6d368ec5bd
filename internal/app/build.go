package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/talkmate/internal/config"
	"github.com/ent0n29/talkmate/internal/httpapi"
	"github.com/ent0n29/talkmate/internal/logging"
	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/observability"
	"github.com/ent0n29/talkmate/internal/session"
	"github.com/ent0n29/talkmate/internal/turn"
)

type AgentInfo struct {
	Provider string
	Detail   string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *turn.Orchestrator
	Store        memory.Store
	Metrics      *observability.Metrics
	Agent        AgentInfo

	// Cleanup should be called on shutdown to release external resources (DB pool, tracer).
	Cleanup func(ctx context.Context) error
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	shutdownTracing := observability.InitTracing(cfg.TracingEnabled, "talkmate", nil)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.StateFile)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	setup, err := resolveAgent(cfg, logging.Component(log, "translate"))
	if err != nil {
		_ = store.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	// Handlers report the backend that actually serves conversations.
	cfg.AgentProvider = setup.resolvedProvider

	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	orchestrator := turn.NewOrchestrator(turn.OrchestratorConfig{
		APIKey:               cfg.AgentAPIKey,
		SilenceWindow:        cfg.SilenceWindow,
		ErrorRecoveryDelay:   cfg.ErrorRecoveryDelay,
		MemoryNoticeDuration: cfg.MemoryNoticeDuration,
		TranslationEnabled:   cfg.TranslationEnabled,
		SpeakTranslation:     cfg.SpeakTranslation,
	}, setup.client, setup.translator, store, sessions, metrics, log)

	sessionLog := logging.Component(log, "session")
	sessions.SetEndHook(func(s *session.Session, reason string) {
		metrics.IncSessionEvent(reason)
		metrics.SetActiveSessions(sessions.ActiveCount())
		hungUp := orchestrator.Hangup(s.ID)
		sessionLog.Info().
			Str("session_id", s.ID).
			Str("user_id", s.UserID).
			Str("reason", reason).
			Bool("hung_up", hungUp).
			Msg("session ended")
	})

	api := httpapi.New(cfg, sessions, orchestrator, store, metrics, log)

	cleanup := func(ctx context.Context) error {
		var errs []string
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := shutdownTracing(ctx); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Store:        store,
		Metrics:      metrics,
		Agent: AgentInfo{
			Provider: setup.resolvedProvider,
			Detail:   setup.detail,
		},
		Cleanup: cleanup,
	}, nil
}
