package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/raisecoach/internal/anthropic"
	"github.com/MikeSquared-Agency/raisecoach/internal/api"
	"github.com/MikeSquared-Agency/raisecoach/internal/auth"
	"github.com/MikeSquared-Agency/raisecoach/internal/chat"
	"github.com/MikeSquared-Agency/raisecoach/internal/config"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
	"github.com/MikeSquared-Agency/raisecoach/internal/hermes"
	"github.com/MikeSquared-Agency/raisecoach/internal/middleware"
	"github.com/MikeSquared-Agency/raisecoach/internal/negotiation"
	"github.com/MikeSquared-Agency/raisecoach/internal/realtime"
	"github.com/MikeSquared-Agency/raisecoach/internal/store"
	"github.com/MikeSquared-Agency/raisecoach/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), config.Load())
		},
	}
}

// newCompleter returns the configured LLM provider.
func newCompleter(cfg config.Config) gateway.Completer {
	if cfg.LLMProvider == config.ProviderAnthropic {
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GatewayTimeout)
	}
	slog.Info("ai gateway client ready", "url", cfg.GatewayURL, "model", cfg.GatewayModel)
	return gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayModel, cfg.GatewayTimeout)
}

func serve(parent context.Context, cfg config.Config) error {
	setupLogging(cfg.LogLevel)
	slog.Info("raisecoach starting", "port", cfg.Port, "version", version)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, "raisecoach", version, cfg.OTELInsecure)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	// Storage
	repo, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath, cfg.StartingCredits)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()
	if cfg.DatabaseURL != "" {
		slog.Info("database connected", "driver", "postgres")
	} else {
		slog.Info("database connected", "driver", "sqlite", "path", cfg.SQLitePath)
	}

	logger := slog.Default()
	llm := newCompleter(cfg)
	orch := chat.New(llm, logger)
	grader := grading.New(llm, logger)

	// NATS/Hermes (optional; events are dropped when not configured)
	var events hermes.Publisher = hermes.Nop{}
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer hermesClient.Close()
		events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, running without events")
	}

	svc := negotiation.New(repo, orch, grader, events, cfg.PurchaseCredits, logger)

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectCheckoutCompleted, svc.HandleCheckoutCompleted); err != nil {
			return fmt.Errorf("subscribe to checkout events: %w", err)
		}
	}

	var minter *realtime.Minter
	if cfg.OpenAIAPIKey != "" {
		minter = realtime.NewMinter(cfg.OpenAIAPIKey, "", cfg.RealtimeModel, cfg.GatewayTimeout, logger)
	} else {
		slog.Warn("OPENAI_API_KEY not set, realtime voice sessions disabled")
	}
	if cfg.AuthJWTSecret == "" {
		slog.Warn("AUTH_JWT_SECRET not set, authenticated routes will reject every request")
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		Chat:         orch,
		Grader:       grader,
		Negotiations: svc,
		Realtime:     minter,
		Verifier:     auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthAudience),
		Store:        repo,
		CORSOrigins:  middleware.ParseOrigins(cfg.CORSOrigins),
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	slog.Info("raisecoach ready", "port", cfg.Port)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	slog.Info("raisecoach stopped")
	return nil
}
