package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/services"
)

var (
	rt        *services.Runtime
	handlers  *intake
	closeLogs func() error
	once      sync.Once
	initErr   error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleSummary", withRuntime(func(in *intake) http.HandlerFunc { return in.submitHTTP(models.ModeSummary) }))
	functions.HTTP("HandlePricing", withRuntime(func(in *intake) http.HandlerFunc { return in.submitHTTP(models.ModePricing) }))
	functions.HTTP("HandleHealth", withRuntime(func(in *intake) http.HandlerFunc { return in.health }))
	functions.HTTP("HandleMetrics", promhttp.Handler().ServeHTTP)
	functions.CloudEvent("HandleRFQEvent", handleRFQEvent)
}

// initRuntime builds every client once and starts the dispatch loop.
func initRuntime() {
	once.Do(func() {
		var settings *config.Settings
		settings, initErr = config.Load()
		if initErr != nil {
			return
		}
		var logger *slog.Logger
		logger, closeLogs = logging.Setup(settings.Log.File, logging.ParseLevel(settings.Log.Level))
		slog.SetDefault(logger)

		rt, initErr = services.NewRuntime(context.Background(), settings, logger)
		if initErr != nil {
			return
		}
		handlers = &intake{queue: rt.Dispatcher, logger: logger}
		go func() {
			if err := rt.Dispatcher.Run(context.Background()); err != nil {
				logger.Error("Dispatcher stopped with error", "error", err)
			}
		}()
	})
}

func withRuntime(build func(*intake) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initRuntime()
		if initErr != nil {
			slog.Error("Critical: RFQ intake initialization failed", "error", initErr)
			http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
			return
		}
		build(handlers)(w, r)
	}
}

func handleRFQEvent(ctx context.Context, e cloudevents.Event) error {
	initRuntime()
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}
	return handlers.submitEvent(ctx, e)
}

func main() {
	// The dispatch loop must be running before the first request arrives.
	initRuntime()
	if initErr != nil {
		slog.Error("Critical: RFQ intake initialization failed", "error", initErr)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- funcframework.Start(port) }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Functions framework exited", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received.")
	}

	if err := rt.Dispatcher.Stop(); err != nil {
		slog.Warn("Dispatcher did not drain", "error", err)
	}
	if err := rt.Close(); err != nil {
		slog.Warn("Failed to close clients", "error", err)
	}
	if closeLogs != nil {
		_ = closeLogs()
	}
}
