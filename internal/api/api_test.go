package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/lifecycle"
	"github.com/avia-insurance/avia/internal/repository"
	"github.com/avia-insurance/avia/internal/rules"
	"github.com/avia-insurance/avia/internal/scoring"
	"github.com/avia-insurance/avia/internal/velocity"
)

func strPtr(s string) *string   { return &s }
func numPtr(f float64) *float64 { return &f }

// createTestServer wires a server against a temp sqlite database with the
// builtin rules and fallback scoring.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(dir, "test.db"),
	})
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	vel := velocity.NewService(repo, nil)
	engine, err := rules.NewEngine(vel.Getter(), 4)
	if err != nil {
		t.Fatalf("rules.NewEngine: %v", err)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	scoringCfg := domain.DefaultScoringConfig()
	svc := lifecycle.NewService(lifecycle.Options{
		Repository: repo,
		Engine:     engine,
		Fallback:   scoring.NewFallbackScorer(engine, scoringCfg),
		Scoring:    scoringCfg,
		UploadDir:  filepath.Join(dir, "uploads"),
	})

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	return NewServer(cfg, svc, repo, nil, engine, "test-v1")
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-ID", "org-test")

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func createClaim(t *testing.T, srv *Server) *domain.ClaimRecord {
	t.Helper()

	rr := doJSON(t, srv, http.MethodPost, "/claims", lifecycle.CreateClaimInput{
		PolicyNumber: "POL-9001",
		Source:       domain.SourceDataset,
		Attributes: domain.ClaimAttributes{
			IncidentType:     strPtr("Single Vehicle Collision"),
			IncidentSeverity: strPtr("Total Loss"),
			TotalClaimAmount: numPtr(82000),
			MonthsAsCustomer: numPtr(4),
			BodilyInjuries:   numPtr(2),
			Witnesses:        numPtr(0),
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create claim: status %d: %s", rr.Code, rr.Body.String())
	}

	var claim domain.ClaimRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &claim); err != nil {
		t.Fatalf("parse claim: %v", err)
	}
	return &claim
}

func TestHealthEndpoints(t *testing.T) {
	srv := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("status = %q, want healthy", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("version = %q, want test-v1", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})
}

func TestClaimEndpoints(t *testing.T) {
	srv := createTestServer(t)

	t.Run("MissingOrgHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without X-Org-ID, got %d", rr.Code)
		}
	})

	t.Run("CreateAndList", func(t *testing.T) {
		claim := createClaim(t, srv)
		if claim.ID == "" {
			t.Fatal("expected claim ID")
		}
		if claim.Status != domain.StatusPending {
			t.Errorf("status = %q, want pending", claim.Status)
		}

		rr := doJSON(t, srv, http.MethodGet, "/claims", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list claims: status %d", rr.Code)
		}

		var list struct {
			Claims []lifecycle.ClaimSummary `json:"claims"`
			Count  int                      `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("parse list: %v", err)
		}
		if list.Count < 1 {
			t.Error("expected at least one claim")
		}
		if list.Claims[0].Status != domain.StatusPending {
			t.Errorf("summary status = %q, want pending", list.Claims[0].Status)
		}
		if list.Claims[0].OverallScore != nil {
			t.Error("unanalyzed claim should have no overall score")
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims", lifecycle.CreateClaimInput{
			Source: domain.SourceDataset,
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 without policy number, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader("not-json"))
		req.Header.Set("X-Org-ID", "org-test")
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/no-such-id", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestAnalyzeFlow(t *testing.T) {
	srv := createTestServer(t)
	claim := createClaim(t, srv)

	t.Run("Analyze", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/analyze", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("analyze: status %d: %s", rr.Code, rr.Body.String())
		}

		var snap domain.AnalysisSnapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatalf("parse snapshot: %v", err)
		}
		if snap.OverallScore <= 0 || snap.OverallScore > 100 {
			t.Errorf("overall score %d out of range", snap.OverallScore)
		}
		if !snap.Fallback {
			t.Error("expected fallback scoring without model artifacts")
		}
	})

	t.Run("GetIncludesAnalysis", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("get claim: status %d", rr.Code)
		}

		var resp ClaimResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp.Analysis == nil {
			t.Fatal("expected analysis in response")
		}
		if resp.Claim.Status != domain.StatusAnalyzed {
			t.Errorf("status = %q, want analyzed", resp.Claim.Status)
		}
	})

	t.Run("ListShowsScore", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list claims: status %d", rr.Code)
		}

		var list struct {
			Claims []lifecycle.ClaimSummary `json:"claims"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("parse list: %v", err)
		}
		if len(list.Claims) == 0 {
			t.Fatal("expected claims in list")
		}
		sum := list.Claims[0]
		if sum.OverallScore == nil {
			t.Fatal("expected overall score after analysis")
		}
		if sum.NextAction == "" {
			t.Error("expected next action hint")
		}
	})

	t.Run("Decide", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/decide", DecideRequest{
			Action:    domain.ActionEscalate,
			Notes:     "refer to SIU",
			DecidedBy: "adjuster-1",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("decide: status %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("DecideMissingDecidedBy", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/decide", DecideRequest{
			Action: domain.ActionApprove,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("DecideInvalidAction", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/decide", DecideRequest{
			Action:    "reject",
			DecidedBy: "adjuster-1",
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rr.Code)
		}
	})

	t.Run("EscalationPackage", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID+"/escalation-package", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("escalation package: status %d: %s", rr.Code, rr.Body.String())
		}

		var pkg map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &pkg); err != nil {
			t.Fatalf("parse package: %v", err)
		}
		if pkg["claimId"] != claim.ID {
			t.Errorf("claimId = %v, want %s", pkg["claimId"], claim.ID)
		}
	})

	t.Run("EscalationPackageText", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID+"/escalation-package?format=text", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("text package: status %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "ESCALATION PACKAGE") {
			t.Error("expected rendered text package")
		}
	})

	t.Run("Decisions", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID+"/decisions", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("decisions: status %d", rr.Code)
		}

		var list struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("parse decisions: %v", err)
		}
		if list.Count != 1 {
			t.Errorf("decision count = %d, want 1", list.Count)
		}
	})
}

func TestIntakeGate(t *testing.T) {
	srv := createTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/claims", lifecycle.CreateClaimInput{
		PolicyNumber: "POL-GATED",
		Source:       domain.SourceUploaded,
		Attributes: domain.ClaimAttributes{
			IncidentType: strPtr("Parked Car"),
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create claim: status %d", rr.Code)
	}
	var claim domain.ClaimRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &claim); err != nil {
		t.Fatalf("parse claim: %v", err)
	}

	t.Run("IntakeCheck", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID+"/intake-check", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("intake check: status %d", rr.Code)
		}

		var res struct {
			Status           string   `json:"status"`
			ReadyForAnalysis bool     `json:"readyForAnalysis"`
			RequiredPresent  []string `json:"requiredPresent"`
			RequiredTotal    int      `json:"requiredTotal"`
			MissingRequired  []string `json:"missingRequired"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("parse result: %v", err)
		}
		if res.Status != "INCOMPLETE" {
			t.Errorf("status = %q, want INCOMPLETE", res.Status)
		}
		if res.ReadyForAnalysis {
			t.Error("incomplete claim reported ready for analysis")
		}
		if len(res.MissingRequired) == 0 {
			t.Error("expected missing required fields")
		}
		if len(res.RequiredPresent)+len(res.MissingRequired) != res.RequiredTotal {
			t.Errorf("present %v + missing %v does not cover total %d",
				res.RequiredPresent, res.MissingRequired, res.RequiredTotal)
		}
	})

	t.Run("AnalyzeBlocked", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/analyze", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 for gated claim, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestDocumentEndpoints(t *testing.T) {
	srv := createTestServer(t)
	claim := createClaim(t, srv)

	t.Run("Attach", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/documents", AttachDocumentRequest{
			Filename:      "police_report.pdf",
			MimeType:      "application/pdf",
			ContentBase64: base64.StdEncoding.EncodeToString([]byte("report body")),
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("attach: status %d: %s", rr.Code, rr.Body.String())
		}

		var doc domain.Document
		if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
			t.Fatalf("parse document: %v", err)
		}
		if doc.Filename != "police_report.pdf" {
			t.Errorf("filename = %q", doc.Filename)
		}
	})

	t.Run("AttachBadBase64", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/claims/"+claim.ID+"/documents", AttachDocumentRequest{
			Filename:      "a.pdf",
			ContentBase64: "!!!not-base64!!!",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/claims/"+claim.ID+"/documents", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list documents: status %d", rr.Code)
		}

		var list struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("parse list: %v", err)
		}
		if list.Count != 1 {
			t.Errorf("document count = %d, want 1", list.Count)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	srv := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list rules: status %d", rr.Code)
		}

		var list struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("parse list: %v", err)
		}
		if list.Count == 0 {
			t.Error("expected builtin rules loaded")
		}
	})

	t.Run("Create", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "night-incident",
			Name:       "Night Incident",
			Expression: "incident_hour >= 0.0",
			Bucket:     "pattern",
			Delta:      5,
			Enabled:    true,
		})
		// incident_hour is not a declared variable, so compilation fails
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for undeclared variable, got %d", rr.Code)
		}

		rr = doJSON(t, srv, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "very-high-amount",
			Name:       "Very High Amount",
			Expression: "amount > 250000.0",
			Bucket:     "claim",
			Delta:      25,
			Flag:       "amount above a quarter million",
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create rule: status %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, srv, http.MethodGet, "/rules/very-high-amount", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("get rule: status %d", rr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("reload: status %d", rr.Code)
		}

		rr = doJSON(t, srv, http.MethodGet, "/rules/very-high-amount", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("custom rule should be gone after reload, got %d", rr.Code)
		}
	})
}
