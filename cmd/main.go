package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/UnknownOlympus/dispatch/internal/api"
	"github.com/UnknownOlympus/dispatch/internal/config"
	"github.com/UnknownOlympus/dispatch/internal/devices"
	"github.com/UnknownOlympus/dispatch/internal/metrics"
	"github.com/UnknownOlympus/dispatch/internal/orders"
	"github.com/UnknownOlympus/dispatch/internal/push"
	"github.com/UnknownOlympus/dispatch/internal/push/broker"
	"github.com/UnknownOlympus/dispatch/internal/push/fcm"
	"github.com/UnknownOlympus/dispatch/internal/repository"
	"github.com/UnknownOlympus/dispatch/internal/server"
	"github.com/UnknownOlympus/dispatch/internal/topic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection.
	dtb, err := repository.NewDatabase(
		ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	// Create a new repository instance using the database connection.
	repo := repository.NewRepository(dtb)

	// Initialize the push channel once for the whole process.
	provider, pinger, closer, err := buildProvider(ctx, logger, cfg.Push)
	if err != nil {
		log.Fatalf("Failed to initialize push provider: %v", err)
	}
	defer func() {
		if err = closer.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close push provider", "error", err)
		}
	}()

	dispatcher := push.NewDispatcher(logger, provider, appMetrics, cfg.Push.Timeout)
	directory := topic.NewDirectory(logger, repo, dispatcher)

	router := api.NewRouter(api.Deps{
		Log:       logger,
		Metrics:   appMetrics,
		Auth:      api.NewAuthenticator(logger, cfg.Auth.JWTSecret),
		Orders:    orders.NewManager(logger, repo, dispatcher, appMetrics, cfg.Currency),
		Devices:   devices.NewManager(logger, repo, directory),
		Topics:    directory,
		Reference: repo,
	})
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.",
		"env", cfg.Env, "push_provider", cfg.Push.Provider)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		server.Run(ctx, logger.With("server", "api"), apiServer)
	}()
	go func() {
		defer wg.Done()
		health := server.NewHealthChecker(logger, dtb, pinger)
		server.StartMonitoringServer(ctx, logger, reg, health, cfg.Monitoring.Port)
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	wg.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildProvider creates the configured push provider. The returned pinger is
// nil for providers without a connection to watch.
func buildProvider(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.PushConfig,
) (push.Provider, server.Pinger, io.Closer, error) {
	switch cfg.Provider {
	case config.ProviderFCM:
		provider, err := fcm.New(ctx, logger, cfg.FCM.CredentialsFile, cfg.FCM.ProjectID)
		if err != nil {
			return nil, nil, nil, err
		}
		return provider, nil, nopCloser{}, nil
	case config.ProviderBroker:
		provider, err := broker.Dial(ctx, logger, cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			return nil, nil, nil, err
		}
		return provider, provider, provider, nil
	case config.ProviderMemory:
		logger.WarnContext(ctx, "Using in-memory push provider, notifications are not delivered")
		return push.NewMemoryProvider(), nil, nopCloser{}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
