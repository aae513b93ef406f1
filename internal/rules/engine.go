// Package rules provides the CEL-Go based rule evaluation engine used by
// flag detection and the heuristic fallback scorer.
package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/avia-insurance/avia/internal/domain"
)

// Engine compiles and evaluates claim rules.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]*CompiledRule
	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// VelocityGetter returns the number of claims filed against a policy within
// the trailing window.
type VelocityGetter func(ctx context.Context, orgID, policyNumber string, windowDays int) (int64, error)

// NewEngine creates a rule evaluation engine.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with claim variables. The full attribute map is
	// available as "claim"; common fields are promoted to typed variables
	// with safe defaults so rules stay readable.
	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("months_as_customer", cel.IntType),
		cel.Variable("witnesses", cel.IntType),
		cel.Variable("bodily_injuries", cel.IntType),
		cel.Variable("incident_type", cel.StringType),
		cel.Variable("incident_severity", cel.StringType),
		cel.Variable("police_report_filed", cel.BoolType),
		cel.Variable("vehicle_incident", cel.BoolType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]*CompiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the claim data for rule evaluation.
type EvaluateInput struct {
	OrgID        string
	ClaimID      string
	PolicyNumber string
	Attributes   map[string]any

	// VelocityWindowDays enables the filing-velocity variable when > 0.
	VelocityWindowDays int

	// Derived booleans not present in the raw attribute map.
	PoliceReportFiled bool
	VehicleIncident   bool
}

// EvaluateAll evaluates every loaded rule in parallel and returns the hits.
// A rule whose evaluation errors is skipped; a broken rule must never block
// scoring.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleHit, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	var velocityCount int64
	if e.velocityGetter != nil && input.VelocityWindowDays > 0 && input.PolicyNumber != "" {
		count, err := e.velocityGetter(ctx, input.OrgID, input.PolicyNumber, input.VelocityWindowDays)
		if err == nil {
			velocityCount = count
		}
	}

	activation := buildActivation(input, velocityCount)

	hits := make([]*domain.RuleHit, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			hits[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	out := make([]domain.RuleHit, 0, len(hits))
	for _, h := range hits {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out, nil
}

// buildActivation prepares the CEL variable bindings. Promoted variables
// default to values that keep guard expressions false when a field is
// absent.
func buildActivation(input *EvaluateInput, velocityCount int64) map[string]any {
	activation := map[string]any{
		"claim":               input.Attributes,
		"amount":              0.0,
		"months_as_customer":  int64(-1),
		"witnesses":           int64(-1),
		"bodily_injuries":     int64(-1),
		"incident_type":       "",
		"incident_severity":   "",
		"police_report_filed": input.PoliceReportFiled,
		"vehicle_incident":    input.VehicleIncident,
		"velocity_count":      velocityCount,
	}

	if v, ok := asFloat(input.Attributes["total_claim_amount"]); ok {
		activation["amount"] = v
	}
	if v, ok := asInt(input.Attributes["months_as_customer"]); ok {
		activation["months_as_customer"] = v
	}
	if v, ok := asInt(input.Attributes["witnesses"]); ok {
		activation["witnesses"] = v
	}
	if v, ok := asInt(input.Attributes["bodily_injuries"]); ok {
		activation["bodily_injuries"] = v
	}
	if s, ok := input.Attributes["incident_type"].(string); ok {
		activation["incident_type"] = strings.ToLower(s)
	}
	if s, ok := input.Attributes["incident_severity"].(string); ok {
		activation["incident_severity"] = strings.ToLower(s)
	}

	return activation
}

// evaluateRule evaluates a single rule, returning a hit or nil.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) *domain.RuleHit {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return nil
	}
	if !truthy(out) {
		return nil
	}
	return &domain.RuleHit{
		RuleID: rule.Config.ID,
		Name:   rule.Config.Name,
		Bucket: rule.Config.Bucket,
		Delta:  rule.Config.Delta,
		Flag:   rule.Config.Flag,
	}
}

func truthy(val ref.Val) bool {
	b, ok := val.(types.Bool)
	return ok && bool(b)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
