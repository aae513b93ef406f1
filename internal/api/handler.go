package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/lifecycle"
	"github.com/avia-insurance/avia/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc     *lifecycle.Service
	repo    domain.Repository
	cache   domain.Cache
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(svc *lifecycle.Service, repo domain.Repository, cache domain.Cache, engine *rules.Engine, version string) *Handler {
	return &Handler{
		svc:     svc,
		repo:    repo,
		cache:   cache,
		engine:  engine,
		version: version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// CreateClaim handles POST /claims.
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)

	var req lifecycle.CreateClaimInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	claim, err := h.svc.CreateClaim(ctx, orgID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

// ListClaims handles GET /claims.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := h.svc.ListClaims(ctx, GetOrgID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claims": claims,
		"count":  len(claims),
	})
}

// ClaimResponse is a claim with its live analysis snapshot.
type ClaimResponse struct {
	Claim    *domain.ClaimRecord      `json:"claim"`
	Analysis *domain.AnalysisSnapshot `json:"analysis,omitempty"`
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claim, snap, err := h.svc.GetClaim(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimResponse{Claim: claim, Analysis: snap})
}

// IntakeCheck handles GET /claims/{id}/intake-check.
func (h *Handler) IntakeCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.svc.IntakeCheck(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Analyze handles POST /claims/{id}/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.svc.Analyze(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// DecideRequest is the request body for POST /claims/{id}/decide.
type DecideRequest struct {
	Action    string `json:"action"`
	Notes     string `json:"notes,omitempty"`
	DecidedBy string `json:"decidedBy"`
}

// Decide handles POST /claims/{id}/decide.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.DecidedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decidedBy is required",
		})
		return
	}

	dec, err := h.svc.Decide(ctx, GetOrgID(ctx), chi.URLParam(r, "id"), req.Action, req.Notes, req.DecidedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dec)
}

// ListDecisions handles GET /claims/{id}/decisions.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	decisions, err := h.svc.ListDecisions(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// AttachDocumentRequest is the request body for POST /claims/{id}/documents.
type AttachDocumentRequest struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mimeType,omitempty"`
	ContentBase64 string `json:"contentBase64"`
}

// AttachDocument handles POST /claims/{id}/documents.
func (h *Handler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AttachDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contentBase64 is not valid base64",
		})
		return
	}

	doc, err := h.svc.AttachDocument(ctx, GetOrgID(ctx), chi.URLParam(r, "id"), req.Filename, data, req.MimeType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /claims/{id}/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.svc.ListDocuments(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// EscalationPackage handles GET /claims/{id}/escalation-package.
// With ?format=text the plain-text handoff document is returned instead
// of JSON.
func (h *Handler) EscalationPackage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pkg, err := h.svc.EscalationPackage(ctx, GetOrgID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pkg.RenderText()))
		return
	}

	writeJSON(w, http.StatusOK, pkg)
}

// ListRules returns all loaded rules from the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Bucket      string  `json:"bucket"`
	Delta       float64 `json:"delta"`
	Flag        string  `json:"flag,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule loads a new rule into the engine. The expression is compiled
// before acceptance; invalid CEL is rejected.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Bucket:      req.Bucket,
		Delta:       req.Delta,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	if err := h.engine.LoadRule(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	slog.Info("rule created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, cfg)
}

// ReloadRules resets the engine to the builtin rule set.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	builtins := rules.BuiltinRules()
	if err := h.engine.ReloadRules(builtins); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "count", len(builtins))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(builtins),
	})
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           ve.Reason,
			"missingFields":   ve.MissingFields,
			"inconsistencies": ve.Inconsistencies,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "concurrent modification, retry",
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
