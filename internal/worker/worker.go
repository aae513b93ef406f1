// Package worker provides async claim analysis driven by the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/lifecycle"
)

// Worker analyzes newly ingested claims asynchronously. Dataset claims
// are scored as soon as they land; uploaded claims wait for the intake
// gate and are analyzed on demand instead.
type Worker struct {
	bus domain.EventBus
	svc *lifecycle.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// OrgIDs is the list of organizations to process.
	OrgIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, svc *lifecycle.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing ingested claims for the given organizations.
func (w *Worker) Start(cfg Config) error {
	for _, orgID := range cfg.OrgIDs {
		if err := w.startOrgWorker(orgID); err != nil {
			slog.Error("failed to start worker for org",
				"org_id", orgID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"org_count", len(cfg.OrgIDs),
	)
	return nil
}

// startOrgWorker subscribes one organization's claim-ingested topic.
func (w *Worker) startOrgWorker(orgID string) error {
	sub, err := w.bus.Subscribe(w.ctx, orgID, domain.TopicClaimIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, orgID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("org worker started",
		"org_id", orgID,
		"topic", domain.TopicClaimIngested,
	)
	return nil
}

// processClaim analyzes one ingested claim.
func (w *Worker) processClaim(ctx context.Context, orgID string, msg *domain.Message) error {
	start := time.Now()

	var claim domain.ClaimRecord
	if err := json.Unmarshal(msg.Payload, &claim); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if msg.OrgID != "" {
		orgID = msg.OrgID
	}

	// Uploaded claims are gated on intake and analyzed on demand.
	if claim.Source != domain.SourceDataset {
		slog.Debug("skipping non-dataset claim",
			"claim_id", claim.ID,
			"source", claim.Source,
		)
		return nil
	}

	snap, err := w.svc.Analyze(ctx, orgID, claim.ID)
	if err != nil {
		slog.Error("async analysis failed",
			"claim_id", claim.ID,
			"org_id", orgID,
			"error", err,
		)
		return err
	}

	slog.Info("claim analyzed async",
		"claim_id", claim.ID,
		"org_id", orgID,
		"overall", snap.OverallScore,
		"risk", snap.RiskLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
