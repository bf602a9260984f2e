// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/assistant"
	"github.com/Shivanand-hulikatti/parking-console/internal/config"
	"github.com/Shivanand-hulikatti/parking-console/internal/database"
	"github.com/Shivanand-hulikatti/parking-console/internal/gemini"
	"github.com/Shivanand-hulikatti/parking-console/internal/handler"
	"github.com/Shivanand-hulikatti/parking-console/internal/live"
	"github.com/Shivanand-hulikatti/parking-console/internal/recognition"
	"github.com/Shivanand-hulikatti/parking-console/internal/repository"
	"github.com/Shivanand-hulikatti/parking-console/internal/service"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("parking console stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration and logging ──────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// ── 2. Ticket store ───────────────────────────────────────────────────
	var store service.TicketStore
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		store = repository.NewPostgresStore(pool)
	default:
		logger.Info("using in-memory ticket store; tickets are lost on restart")
		store = repository.NewMemoryStore()
	}

	// ── 3. External services ──────────────────────────────────────────────
	var gem *gemini.Client
	if cfg.GeminiAPIKey != "" {
		if gem, err = gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
	}

	var recognizer service.Recognizer
	switch cfg.RecognitionProvider {
	case config.RecognitionGemini:
		if gem == nil {
			return errors.New("RECOGNITION_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		recognizer = recognition.NewGemini(gem)
	case config.RecognitionRekognition:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		recognizer = recognition.NewRekognition(rekognition.NewFromConfig(awsCfg), logger)
	}

	var answerer service.Answerer
	if gem != nil {
		answerer = assistant.New(gem, cfg.Location)
	} else {
		logger.Warn("GEMINI_API_KEY not set; assistant answers with fallback text")
	}

	// ── 4. Wire up layers ─────────────────────────────────────────────────
	hub := live.NewHub(logger)
	svc := service.NewFacilityService(store, service.Options{
		TotalSpots:             cfg.TotalSpots,
		Location:               cfg.Location,
		Rates:                  &cfg.Rates,
		Recognizer:             recognizer,
		Answerer:               answerer,
		ExternalTimeout:        cfg.ExternalTimeout,
		LowConfidenceThreshold: cfg.LowConfidenceThreshold,
		Publisher:              hub,
		Logger:                 logger,
	})
	facilityHandler := handler.NewFacilityHandler(svc)

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(facilityHandler, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		logger.Info("server listening",
			"addr", srv.Addr,
			"total_spots", cfg.TotalSpots,
			"store", cfg.Store,
			"recognition", cfg.RecognitionProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
