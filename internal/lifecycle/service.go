// Package lifecycle orchestrates the claim state machine: intake, analysis,
// adjudication and escalation.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/escalation"
	"github.com/avia-insurance/avia/internal/genai"
	"github.com/avia-insurance/avia/internal/insight"
	"github.com/avia-insurance/avia/internal/intake"
	"github.com/avia-insurance/avia/internal/rules"
	"github.com/avia-insurance/avia/internal/scoring"
)

const (
	// claimListCacheKey caches the org's claim list between mutations.
	claimListCacheKey = "claims:list"
	claimListCacheTTL = 30 * time.Second

	// velocityWindowDays is the trailing window for filing velocity.
	velocityWindowDays = 90
)

// Service coordinates claim operations. Analysis for a given claim is
// serialized through a per-claim lock; cross-process races are caught by
// the repository's version check.
type Service struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	scorer    *scoring.Scorer
	fallback  *scoring.FallbackScorer
	validator *intake.Validator
	packager  *escalation.Packager
	explainer genai.Explainer
	reader    domain.DocumentReader
	cfg       domain.ScoringConfig
	uploadDir string
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*claimLock
}

// claimLock serializes mutating operations on one claim. Entries are
// reference counted so the table only holds claims with an operation
// in flight.
type claimLock struct {
	mu   sync.Mutex
	refs int
}

// Options carries the collaborators for a lifecycle service. Scorer,
// Explainer and Reader are optional; their absence degrades analysis
// rather than disabling it.
type Options struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Engine     *rules.Engine
	Scorer     *scoring.Scorer
	Fallback   *scoring.FallbackScorer
	Explainer  genai.Explainer
	Reader     domain.DocumentReader
	Scoring    domain.ScoringConfig
	UploadDir  string
	Logger     *slog.Logger
}

// NewService creates the lifecycle service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	uploadDir := opts.UploadDir
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	return &Service{
		repo:      opts.Repository,
		cache:     opts.Cache,
		bus:       opts.Bus,
		engine:    opts.Engine,
		scorer:    opts.Scorer,
		fallback:  opts.Fallback,
		validator: intake.NewValidator(),
		packager:  escalation.NewPackager(),
		explainer: opts.Explainer,
		reader:    opts.Reader,
		cfg:       opts.Scoring,
		uploadDir: uploadDir,
		logger:    logger,
		locks:     make(map[string]*claimLock),
	}
}

// lockClaim acquires the lock serializing analysis of one claim.
func (s *Service) lockClaim(claimID string) *claimLock {
	s.mu.Lock()
	l, ok := s.locks[claimID]
	if !ok {
		l = &claimLock{}
		s.locks[claimID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

// unlockClaim releases the lock and drops the table entry once no other
// caller holds or waits on it.
func (s *Service) unlockClaim(claimID string, l *claimLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, claimID)
	}
	s.mu.Unlock()
}

// CreateClaimInput carries the fields for claim ingestion.
type CreateClaimInput struct {
	PolicyNumber string                 `json:"policyNumber"`
	Source       string                 `json:"source"`
	Attributes   domain.ClaimAttributes `json:"attributes"`
}

// CreateClaim ingests a new claim in pending status.
func (s *Service) CreateClaim(ctx context.Context, orgID string, input *CreateClaimInput) (*domain.ClaimRecord, error) {
	if input.PolicyNumber == "" {
		return nil, domain.NewValidationError("policyNumber is required")
	}
	source := input.Source
	if source == "" {
		source = domain.SourceUploaded
	}
	if source != domain.SourceDataset && source != domain.SourceUploaded {
		return nil, domain.NewValidationError("unknown source %q", source)
	}

	claim := &domain.ClaimRecord{
		ID:           "CLM-" + uuid.New().String(),
		OrgID:        orgID,
		PolicyNumber: input.PolicyNumber,
		Source:       source,
		Status:       domain.StatusPending,
		Attributes:   input.Attributes,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}

	s.invalidateListCache(ctx, orgID)
	s.publish(ctx, orgID, domain.TopicClaimIngested, claim)

	s.logger.Info("claim ingested",
		"claim_id", claim.ID,
		"org_id", orgID,
		"policy", claim.PolicyNumber,
		"source", claim.Source,
	)
	return claim, nil
}

// GetClaim returns a claim with its live snapshot, if any.
func (s *Service) GetClaim(ctx context.Context, orgID, claimID string) (*domain.ClaimRecord, *domain.AnalysisSnapshot, error) {
	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, nil, err
	}

	snap, err := s.repo.GetSnapshot(ctx, claimID)
	if errors.Is(err, domain.ErrNotFound) {
		return claim, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return claim, snap, nil
}

// ClaimSummary is one row of the claim list: the claim's identity plus
// the headline numbers of its live analysis, if any.
type ClaimSummary struct {
	ID           string    `json:"id"`
	PolicyNumber string    `json:"policyNumber"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`

	OverallScore *int   `json:"overallScore,omitempty"`
	RiskLevel    string `json:"riskLevel,omitempty"`
	NextAction   string `json:"nextAction,omitempty"`
}

// ListClaims returns the org's claim summaries, newest first, served from
// cache between mutations.
func (s *Service) ListClaims(ctx context.Context, orgID string) ([]ClaimSummary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, orgID, claimListCacheKey); err == nil && data != nil {
			var summaries []ClaimSummary
			if err := json.Unmarshal(data, &summaries); err == nil {
				return summaries, nil
			}
		}
	}

	claims, err := s.repo.ListClaims(ctx, orgID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ClaimSummary, 0, len(claims))
	for _, c := range claims {
		sum := ClaimSummary{
			ID:           c.ID,
			PolicyNumber: c.PolicyNumber,
			Source:       c.Source,
			Status:       c.Status,
			CreatedAt:    c.CreatedAt,
		}
		snap, err := s.repo.GetSnapshot(ctx, c.ID)
		if err == nil {
			score := snap.OverallScore
			sum.OverallScore = &score
			sum.RiskLevel = snap.RiskLevel
			sum.NextAction = domain.NextAction(snap.RiskLevel)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	if s.cache != nil {
		if data, err := json.Marshal(summaries); err == nil {
			_ = s.cache.Set(ctx, orgID, claimListCacheKey, data, claimListCacheTTL)
		}
	}
	return summaries, nil
}

// IntakeCheck validates a claim's readiness for analysis.
func (s *Service) IntakeCheck(ctx context.Context, orgID, claimID string) (*intake.Result, error) {
	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, err
	}
	docs, err := s.listDocs(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(claim, deref(docs)), nil
}

// Analyze scores a claim and replaces its analysis snapshot. Uploaded
// claims are gated on intake readiness (required fields present, no
// inconsistencies); missing important fields lower confidence but do not
// block. Dataset claims skip the gate. A losing concurrent analysis
// surfaces domain.ErrConflict.
func (s *Service) Analyze(ctx context.Context, orgID, claimID string) (*domain.AnalysisSnapshot, error) {
	lock := s.lockClaim(claimID)
	defer s.unlockClaim(claimID, lock)

	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, err
	}

	docs, err := s.listDocs(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.Source == domain.SourceUploaded {
		res := s.validator.Validate(claim, deref(docs))
		if !res.ReadyForAnalysis {
			return nil, &domain.ValidationError{
				Reason:          fmt.Sprintf("claim is %s", res.Status),
				MissingFields:   res.MissingRequired,
				Inconsistencies: res.Inconsistencies,
			}
		}
	}

	docInsights := insight.Aggregate(deref(docs))
	attrs := claim.Attributes.AttributeMap()

	hits, err := s.engine.EvaluateAll(ctx, &rules.EvaluateInput{
		OrgID:              orgID,
		ClaimID:            claim.ID,
		PolicyNumber:       claim.PolicyNumber,
		Attributes:         attrs,
		VelocityWindowDays: velocityWindowDays,
		PoliceReportFiled:  claim.Attributes.PoliceReportFiled(),
		VehicleIncident:    claim.Attributes.VehicleIncident(),
	})
	if err != nil {
		return nil, fmt.Errorf("rule evaluation: %w", err)
	}

	result, ruleFlags, err := s.score(ctx, claim, attrs, hits)
	if err != nil {
		return nil, err
	}

	snap := &domain.AnalysisSnapshot{
		ID:               uuid.New().String(),
		ClaimID:          claim.ID,
		OverallScore:     result.Overall,
		BucketScores:     result.Buckets,
		RiskLevel:        result.RiskLevel,
		Flags:            insight.MergeFlags(ruleFlags, docInsights.Flags),
		TopFeatures:      result.TopFeatures,
		FraudProbability: result.FraudProbability,
		AnomalyScore:     result.AnomalyScore,
		Fallback:         result.Fallback,
		AnalyzedAt:       time.Now().UTC(),
	}

	s.explain(ctx, claim, snap, docInsights)

	if err := s.repo.ReplaceSnapshot(ctx, claim.ID, claim.AnalysisVersion, snap); err != nil {
		return nil, err
	}

	if err := s.refreshStatus(ctx, orgID, claim.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, orgID, domain.TopicClaimAnalyzed, snap)

	s.logger.Info("claim analyzed",
		"claim_id", claim.ID,
		"org_id", orgID,
		"overall", snap.OverallScore,
		"risk", snap.RiskLevel,
		"fallback", snap.Fallback,
		"genai_error", snap.GenAIError != "",
	)
	return snap, nil
}

// score runs the model-backed scorer when available, otherwise the
// heuristic fallback. Returns the numeric result and the rule flags.
func (s *Service) score(ctx context.Context, claim *domain.ClaimRecord, attrs map[string]any, hits []domain.RuleHit) (*scoring.Result, []string, error) {
	flags := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Flag != "" {
			flags = append(flags, h.Flag)
		}
	}

	if s.scorer != nil {
		result, err := s.scorer.Score(attrs)
		if err == nil {
			return result, flags, nil
		}
		s.logger.Warn("model scoring failed, using fallback",
			"claim_id", claim.ID,
			"error", err,
		)
	}

	if s.fallback == nil {
		return nil, nil, domain.ErrModelUnavailable
	}

	result, fbHits, err := s.fallback.Score(ctx, &rules.EvaluateInput{
		OrgID:              claim.OrgID,
		ClaimID:            claim.ID,
		PolicyNumber:       claim.PolicyNumber,
		Attributes:         attrs,
		VelocityWindowDays: velocityWindowDays,
		PoliceReportFiled:  claim.Attributes.PoliceReportFiled(),
		VehicleIncident:    claim.Attributes.VehicleIncident(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fallback scoring: %w", err)
	}

	flags = flags[:0]
	for _, h := range fbHits {
		if h.Flag != "" {
			flags = append(flags, h.Flag)
		}
	}
	return result, flags, nil
}

// explain attaches the generative narrative. Failures are recorded on the
// snapshot, never propagated.
func (s *Service) explain(ctx context.Context, claim *domain.ClaimRecord, snap *domain.AnalysisSnapshot, docInsights *insight.ClaimInsights) {
	if s.explainer == nil {
		snap.GenAIError = "explainer not configured"
		return
	}

	timeout := s.cfg.GenAITimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	expl, err := s.explainer.Explain(genCtx, &genai.ExplainRequest{
		ClaimID:           claim.ID,
		Attributes:        claim.Attributes.AttributeMap(),
		OverallScore:      snap.OverallScore,
		BucketScores:      snap.BucketScores,
		RiskLevel:         snap.RiskLevel,
		Flags:             snap.Flags,
		TopFeatures:       snap.TopFeatures,
		DocumentSummaries: docInsights.Summaries,
	})
	if err != nil {
		snap.GenAIError = err.Error()
		s.logger.Warn("explanation unavailable",
			"claim_id", claim.ID,
			"error", err,
		)
		return
	}
	snap.Explanation = expl.Narrative
	snap.ReasoningTrace = expl.Trace
}

// Decide records an adjudication decision for an analyzed claim.
func (s *Service) Decide(ctx context.Context, orgID, claimID, action, notes, decidedBy string) (*domain.Decision, error) {
	if !domain.ValidAction(action) {
		return nil, domain.NewValidationError("unknown action %q", action)
	}

	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetSnapshot(ctx, claim.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("claim has not been analyzed")
		}
		return nil, err
	}

	dec := &domain.Decision{
		ID:        "DEC-" + uuid.New().String(),
		ClaimID:   claim.ID,
		Action:    action,
		Notes:     notes,
		DecidedBy: decidedBy,
		DecidedAt: time.Now().UTC(),
	}
	if err := s.repo.AppendDecision(ctx, dec); err != nil {
		return nil, fmt.Errorf("append decision: %w", err)
	}

	if err := s.refreshStatus(ctx, orgID, claim.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, orgID, domain.TopicClaimDecided, dec)

	s.logger.Info("claim decided",
		"claim_id", claim.ID,
		"org_id", orgID,
		"action", action,
		"decided_by", decidedBy,
	)
	return dec, nil
}

// AttachDocument stores a document, extracts insights when a reader is
// configured, and re-derives nothing: existing analysis stays live until
// the next analyze call.
func (s *Service) AttachDocument(ctx context.Context, orgID, claimID, filename string, data []byte, mimeType string) (*domain.Document, error) {
	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, domain.NewValidationError("filename is required")
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("document is empty")
	}

	doc := &domain.Document{
		ID:         "DOC-" + uuid.New().String(),
		ClaimID:    claim.ID,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}

	ref, err := s.storeContent(doc.ID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	doc.ContentRef = ref

	if err := s.repo.AppendDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("append document: %w", err)
	}

	// Insight extraction runs after the append so a reader failure never
	// loses the upload.
	if s.reader != nil {
		if insights, err := s.reader.Insights(data, mimeType, claim); err == nil {
			doc.Summary = insights.Summary
			doc.Flags = insight.MergeFlags(insights.Flags, insights.RiskHints)
			if err := s.repo.UpdateDocumentInsights(ctx, doc.ID, doc.Summary, doc.Flags); err != nil {
				s.logger.Warn("document insight update failed",
					"doc_id", doc.ID,
					"error", err,
				)
			}
		} else {
			s.logger.Warn("document insight extraction failed",
				"claim_id", claim.ID,
				"filename", filename,
				"error", err,
			)
		}
	}

	s.publish(ctx, orgID, domain.TopicDocumentAdded, doc)

	s.logger.Info("document attached",
		"claim_id", claim.ID,
		"org_id", orgID,
		"filename", filename,
		"doc_id", doc.ID,
	)
	return doc, nil
}

// ListDocuments returns a claim's documents in upload order.
func (s *Service) ListDocuments(ctx context.Context, orgID, claimID string) ([]*domain.Document, error) {
	if _, err := s.repo.GetClaim(ctx, orgID, claimID); err != nil {
		return nil, err
	}
	return s.listDocs(ctx, claimID)
}

// EscalationPackage assembles the handoff package for an analyzed claim.
func (s *Service) EscalationPackage(ctx context.Context, orgID, claimID string) (*escalation.Package, error) {
	claim, err := s.repo.GetClaim(ctx, orgID, claimID)
	if err != nil {
		return nil, err
	}

	snap, err := s.repo.GetSnapshot(ctx, claim.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("claim has not been analyzed")
		}
		return nil, err
	}

	docs, err := s.listDocs(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	decisions, err := s.repo.ListDecisions(ctx, claim.ID)
	if err != nil {
		return nil, err
	}

	return s.packager.Build(claim, snap, deref(docs), derefDecisions(decisions)), nil
}

// ListDecisions returns a claim's decision log, newest first.
func (s *Service) ListDecisions(ctx context.Context, orgID, claimID string) ([]*domain.Decision, error) {
	if _, err := s.repo.GetClaim(ctx, orgID, claimID); err != nil {
		return nil, err
	}
	return s.repo.ListDecisions(ctx, claimID)
}

// refreshStatus re-derives the claim status and persists it.
func (s *Service) refreshStatus(ctx context.Context, orgID, claimID string) error {
	hasSnapshot := true
	if _, err := s.repo.GetSnapshot(ctx, claimID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		hasSnapshot = false
	}

	decisions, err := s.repo.ListDecisions(ctx, claimID)
	if err != nil {
		return err
	}
	var latest *domain.Decision
	if len(decisions) > 0 {
		latest = decisions[0]
	}

	status := domain.DeriveStatus(hasSnapshot, latest)
	if err := s.repo.UpdateClaimStatus(ctx, claimID, status); err != nil {
		return err
	}
	s.invalidateListCache(ctx, orgID)
	return nil
}

func (s *Service) listDocs(ctx context.Context, claimID string) ([]*domain.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Service) storeContent(docID, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, docID+"_"+filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Service) invalidateListCache(ctx context.Context, orgID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, orgID, claimListCacheKey)
	}
}

// publish emits an event; bus failures are logged, never fatal.
func (s *Service) publish(ctx context.Context, orgID, topic string, payload any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, orgID, topic, data); err != nil {
		s.logger.Warn("event publish failed",
			"topic", topic,
			"org_id", orgID,
			"error", err,
		)
	}
}

func deref(docs []*domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d)
	}
	return out
}

func derefDecisions(decisions []*domain.Decision) []domain.Decision {
	out := make([]domain.Decision, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, *d)
	}
	return out
}
