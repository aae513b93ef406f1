// Avia - Risk scoring and adjudication for insurance claims.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avia-insurance/avia/internal/api"
	"github.com/avia-insurance/avia/internal/artifacts"
	"github.com/avia-insurance/avia/internal/bus"
	"github.com/avia-insurance/avia/internal/cache"
	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/genai"
	"github.com/avia-insurance/avia/internal/lifecycle"
	"github.com/avia-insurance/avia/internal/repository"
	"github.com/avia-insurance/avia/internal/rules"
	"github.com/avia-insurance/avia/internal/scoring"
	"github.com/avia-insurance/avia/internal/velocity"
	"github.com/avia-insurance/avia/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("AVIA_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting avia",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()
	if os.Getenv("AVIA_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if dir := os.Getenv("AVIA_ARTIFACTS_DIR"); dir != "" {
		cfg.ArtifactsDir = dir
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Filing velocity
	velocitySvc := velocity.NewService(repo, cacheImpl)

	// Rule engine with builtin rules; more can be added via POST /rules
	engine, err := rules.NewEngine(velocitySvc.Getter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Model artifacts. Missing artifacts route scoring to the heuristic
	// fallback instead of failing startup.
	var scorer *scoring.Scorer
	arts, err := artifacts.Load(cfg.ArtifactsDir)
	switch {
	case err == nil:
		scorer = scoring.NewScorer(arts, cfg.Scoring)
		slog.Info("model artifacts loaded",
			"dir", cfg.ArtifactsDir,
			"features", len(arts.FeatureNames),
		)
	case errors.Is(err, domain.ErrModelUnavailable):
		slog.Warn("model artifacts unavailable, using heuristic fallback",
			"dir", cfg.ArtifactsDir,
		)
	default:
		slog.Error("failed to load model artifacts", "error", err)
		os.Exit(1)
	}

	// Gemini explainer and document reader
	var explainer genai.Explainer
	var reader domain.DocumentReader
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		client := genai.NewClient(genai.Config{
			APIKey: apiKey,
			Model:  os.Getenv("GEMINI_MODEL"),
		})
		explainer = client
		reader = genai.NewReader(client)
		slog.Info("genai explainer initialized")
	} else {
		slog.Warn("GEMINI_API_KEY not set, explanations disabled")
	}

	// Lifecycle service
	svc := lifecycle.NewService(lifecycle.Options{
		Repository: repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Engine:     engine,
		Scorer:     scorer,
		Fallback:   scoring.NewFallbackScorer(engine, cfg.Scoring),
		Explainer:  explainer,
		Reader:     reader,
		Scoring:    cfg.Scoring,
		UploadDir:  os.Getenv("AVIA_UPLOAD_DIR"),
		Logger:     logger,
	})

	// Async worker: analyzes dataset claims as they are ingested
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("AVIA_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, svc)

		var orgIDs []string
		if envOrgs := os.Getenv("AVIA_ORGS"); envOrgs != "" {
			for _, o := range strings.Split(envOrgs, ",") {
				if o = strings.TrimSpace(o); o != "" {
					orgIDs = append(orgIDs, o)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{OrgIDs: orgIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "org_count", len(orgIDs))
		}
	}

	// HTTP server
	srv := api.NewServer(cfg.Server, svc, repo, cacheImpl, engine, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("avia is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("avia shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  AVIA - Claim Risk Scoring & Adjudication")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                           - Ingest a claim")
	fmt.Println("    GET  /claims                           - List claims")
	fmt.Println("    GET  /claims/{id}                      - Get claim with analysis")
	fmt.Println("    GET  /claims/{id}/intake-check         - Validate claim readiness")
	fmt.Println("    POST /claims/{id}/analyze              - Score a claim")
	fmt.Println("    POST /claims/{id}/decide               - Record a decision")
	fmt.Println("    GET  /claims/{id}/decisions            - Decision audit log")
	fmt.Println("    POST /claims/{id}/documents            - Attach a document")
	fmt.Println("    GET  /claims/{id}/documents            - List documents")
	fmt.Println("    GET  /claims/{id}/escalation-package   - Escalation handoff")
	fmt.Println("    GET  /rules                            - List rules")
	fmt.Println("    POST /rules                            - Add a rule")
	fmt.Println("    POST /rules/reload                     - Reset to builtin rules")
	fmt.Println("    GET  /health                           - Health check")
	fmt.Println()
}
