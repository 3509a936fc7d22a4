// Package main is the entry point for the conversational agent server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dialogkit/dialogkit/internal/config"
	"github.com/dialogkit/dialogkit/internal/events"
	"github.com/dialogkit/dialogkit/internal/handler"
	"github.com/dialogkit/dialogkit/internal/history"
	"github.com/dialogkit/dialogkit/internal/llm"
	"github.com/dialogkit/dialogkit/internal/session"
	"github.com/dialogkit/dialogkit/internal/source"
	"github.com/dialogkit/dialogkit/internal/store"
	"github.com/dialogkit/dialogkit/pkg/logger"
	"github.com/dialogkit/dialogkit/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting agent server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "dialogkit", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open conversation store
	st, err := store.NewSQLiteStore(cfg.DBPath, log)
	if err != nil {
		log.Error("failed to open conversation store", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	// Context resolvers. Hosts embedding the module register their own;
	// the standalone server starts with an empty registry and relies on
	// ALLOW_CONTEXTLESS for contextless conversations.
	resolvers := source.NewRegistry()

	// Initialize LLM client
	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	llmClient = llm.WithRetry(llmClient, llm.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	})

	var suggester *llm.Suggester
	if cfg.SuggestionsEnabled {
		suggester = llm.NewSuggester(llmClient, cfg.LLMModel)
	}

	// Event publisher (optional)
	var publisher events.Publisher = events.NopPublisher{}
	var natsPublisher *events.NATSPublisher
	if cfg.NATSEnabled {
		natsPublisher, err = events.ConnectNATS(ctx, events.NATSConfig{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	// Initialize services
	sessions := session.NewManager(st, resolvers, llmClient, suggester, publisher, log, session.Options{
		TurnTimeout:      cfg.TurnTimeout,
		Model:            cfg.LLMModel,
		MaxTokens:        cfg.LLMMaxTokens,
		AllowContextless: cfg.AllowContextless,
		WelcomeMessage:   cfg.WelcomeMessage,
	})
	histSvc := history.NewService(st, publisher, log)

	// Initialize handlers
	agentHandler := handler.NewAgentHandler(sessions, log)
	historyHandler := handler.NewHistoryHandler(histSvc, log)
	healthHandler := handler.NewHealthHandler(natsPublisher)

	r := handler.Routes(handler.RouteConfig{
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		DeleteScope:       cfg.DeleteScope,
	}, agentHandler, historyHandler, healthHandler, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderOpenAI:
		return llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	default:
		return llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	}
}
