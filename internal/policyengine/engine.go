// Package policyengine evaluates stored policies against an access
// request: a global pass followed by a provider-specific pass, each
// picking candidates by glob-matched resource pattern and CEL-lite
// condition, tie-broken by priority, pattern specificity, age and id.
//
// The two-phase evaluation, glob resource matching, and priority sort
// here are carried over from the policy-engine repo this package
// replaces; the expression layer underneath is CEL-lite (package
// cellite) instead of google/cel-go.
package policyengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"gorm.io/gorm"

	cellite "github.com/SourceRegistry/cel-lite"
	"github.com/SourceRegistry/cel-lite/internal/model"
	"github.com/SourceRegistry/cel-lite/internal/observability"
)

// Engine caches compiled policy programs and evaluates requests against
// the policies stored in db.
type Engine struct {
	db         *gorm.DB
	opts       cellite.Options
	cache      sync.Map // uuid.UUID -> *cellite.Program
	failClosed bool
}

// New builds an Engine. opts bounds every policy's expression length,
// AST size, call depth, and trace length; failClosed controls whether a
// database error or a broken policy expression denies (true) or allows
// (false) the request under evaluation.
func New(db *gorm.DB, opts cellite.Options, failClosed bool) *Engine {
	return &Engine{db: db, opts: opts, failClosed: failClosed}
}

func (e *Engine) compileOrGet(id uuid.UUID, expr string) (*cellite.Program, error) {
	if v, ok := e.cache.Load(id); ok {
		return v.(*cellite.Program), nil
	}
	prog, err := cellite.Compile(expr, e.opts)
	if err != nil {
		return nil, err
	}
	e.cache.Store(id, prog)
	return prog, nil
}

// Request is the attribute bundle a policy expression evaluates against.
type Request struct {
	Subject  map[string]any `json:"subject"`
	Resource string         `json:"resource"`
	Action   string         `json:"action"`
	Metadata map[string]any `json:"metadata"`
	Protocol string         `json:"protocol,omitempty"`
	Platform string         `json:"platform,omitempty"`
	Cloud    string         `json:"cloud,omitempty"`
}

// TraceItem is one policy's contribution to an evaluation's audit trail,
// including the CEL-lite explain() entries for its condition.
type TraceItem struct {
	PolicyID uuid.UUID       `json:"policy_id"`
	Result   *bool           `json:"result,omitempty"`
	Effect   string          `json:"effect"`
	Reason   string          `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
	Trace    []cellite.Entry `json:"trace,omitempty"`
}

// EvaluateAndAudit evaluates req and persists the resulting decision and
// trace to the policy_audits table before returning it.
func (e *Engine) EvaluateAndAudit(req Request) (decision string, matched *uuid.UUID, reason string, trace []TraceItem, err error) {
	decision, matched, reason, trace, err = e.evaluate(req)
	if auditErr := e.persistAudit(req, decision, matched, trace); auditErr != nil {
		observability.L().Warnw("failed to persist policy audit", "error", auditErr)
	}
	return
}

func (e *Engine) evaluate(req Request) (string, *uuid.UUID, string, []TraceItem, error) {
	var traceOut []TraceItem

	globalPolicies, err := e.loadPolicies("global", req.Action)
	if err != nil {
		if e.failClosed {
			return "deny", nil, "database error: " + err.Error(), nil, err
		}
		return "allow", nil, "database error (fail-open)", nil, err
	}

	for _, p := range globalPolicies {
		if resourceMatch(p.Resource, req.Resource) {
			result, matched, reason, trace, err := e.evaluatePolicy(p, req)
			traceOut = append(traceOut, trace...)
			if err != nil {
				return result, matched, reason, traceOut, err
			}
			if result == "deny" {
				return "deny", matched, reason, traceOut, nil
			}
		}
	}

	provider := req.Cloud
	if provider == "" || provider == "none" {
		provider = req.Protocol
	}
	if provider == "" {
		return "deny", nil, "Access denied: no provider specified", traceOut, nil
	}
	providerPolicies, err := e.loadPolicies(provider, req.Action)
	if err != nil {
		if e.failClosed {
			return "deny", nil, "database error: " + err.Error(), traceOut, err
		}
		return "allow", nil, "database error (fail-open)", traceOut, err
	}

	type candidate struct {
		p  model.Policy
		sp int
	}
	var cands []candidate
	for _, p := range providerPolicies {
		if resourceMatch(p.Resource, req.Resource) {
			cands = append(cands, candidate{p: p, sp: computeSpecificity(p.Resource)})
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].p.Priority != cands[j].p.Priority {
			return cands[i].p.Priority < cands[j].p.Priority
		}
		if cands[i].sp != cands[j].sp {
			return cands[i].sp > cands[j].sp
		}
		if !cands[i].p.CreatedAt.Equal(cands[j].p.CreatedAt) {
			return cands[i].p.CreatedAt.Before(cands[j].p.CreatedAt)
		}
		return strings.Compare(cands[i].p.ID.String(), cands[j].p.ID.String()) < 0
	})

	var allowWinner *model.Policy
	for _, c := range cands {
		p := c.p
		result, matched, reason, trace, err := e.evaluatePolicy(p, req)
		traceOut = append(traceOut, trace...)
		if err != nil {
			return result, matched, reason, traceOut, err
		}
		if result == "deny" {
			return "deny", matched, reason, traceOut, nil
		}
		if result == "allow" {
			allowWinner = &p
		}
	}

	if allowWinner != nil {
		return "allow", &allowWinner.ID, policyMessageOrDefault(*allowWinner, fmt.Sprintf("Access allowed by policy '%s'", allowWinner.Name)), traceOut, nil
	}
	return "deny", nil, fmt.Sprintf("Access denied: no allow policy matched for action '%s' on resource '%s'", req.Action, req.Resource), traceOut, nil
}

func policyMessageOrDefault(p model.Policy, defaultMsg string) string {
	if len(p.Metadata) > 0 {
		var m map[string]any
		if err := json.Unmarshal(p.Metadata, &m); err == nil {
			if v, ok := m["message"].(string); ok && v != "" {
				return v
			}
		}
	}
	return defaultMsg
}

func policyNonMatchReason(p model.Policy) string {
	if len(p.Metadata) > 0 {
		var m map[string]any
		if err := json.Unmarshal(p.Metadata, &m); err == nil {
			if v, ok := m["non_match_message"].(string); ok && v != "" {
				return v
			}
		}
	}
	return "conditions not met"
}

func (e *Engine) persistAudit(req Request, decision string, matched *uuid.UUID, trace []TraceItem) error {
	rb, err := json.Marshal(req)
	if err != nil {
		return err
	}
	tb, err := json.Marshal(trace)
	if err != nil {
		return err
	}
	a := model.PolicyAudit{Request: rb, Decision: decision, MatchedID: matched, Trace: tb}
	return e.db.Create(&a).Error
}

var globCache sync.Map

func resourceMatch(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if g, ok := globCache.Load(pattern); ok {
		return g.(glob.Glob).Match(value)
	}
	g := glob.MustCompile(pattern)
	globCache.Store(pattern, g)
	return g.Match(value)
}

func computeSpecificity(pattern string) int {
	if pattern == "" {
		return 0
	}
	wildcards := 0
	for _, r := range pattern {
		if r == '*' || r == '?' {
			wildcards++
		}
	}
	return len(pattern) - (wildcards * 10)
}

func (e *Engine) loadPolicies(provider, action string) ([]model.Policy, error) {
	var policies []model.Policy

	q := e.db.Where("enabled = ? AND provider = ?", true, provider)
	if action != "" {
		q = q.Where("? = ANY(actions) OR array_length(actions,1) IS NULL", action)
	}

	return policies, q.Find(&policies).Error
}

func (e *Engine) evaluatePolicy(p model.Policy, req Request) (string, *uuid.UUID, string, []TraceItem, error) {
	var traceOut []TraceItem
	prog, err := e.compileOrGet(p.ID, p.Expr)
	if err != nil {
		traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Error: "compile: " + err.Error(), Reason: "policy expression failed to compile"})
		if e.failClosed {
			return "deny", &p.ID, fmt.Sprintf("Access denied by policy '%s': expression failed to compile", p.Name), traceOut, nil
		}
		return "allow", nil, "expression failed to compile (fail-open)", traceOut, err
	}

	res, evalErr := prog.Explain(map[string]any{
		"subject":  req.Subject,
		"resource": req.Resource,
		"action":   req.Action,
		"metadata": req.Metadata,
		"protocol": req.Protocol,
		"platform": req.Platform,
		"cloud":    req.Cloud,
	})
	if evalErr != nil {
		traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Error: "runtime: " + evalErr.Error(), Reason: "policy evaluation runtime error"})
		if e.failClosed {
			return "deny", &p.ID, fmt.Sprintf("Access denied by policy '%s': runtime error during evaluation", p.Name), traceOut, nil
		}
		return "allow", nil, "runtime error (fail-open)", traceOut, evalErr
	}
	b, ok := res.Result.(bool)
	if !ok {
		traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Error: "non-boolean result", Reason: "policy expression did not return boolean", Trace: res.Trace})
		if e.failClosed {
			return "deny", &p.ID, fmt.Sprintf("Access denied by policy '%s': expression did not return true/false", p.Name), traceOut, nil
		}
		return "allow", nil, "non-boolean result (fail-open)", traceOut, nil
	}
	if b {
		if p.Effect == "deny" {
			r := policyMessageOrDefault(p, fmt.Sprintf("Access denied by policy '%s'", p.Name))
			traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Result: &b, Reason: r, Trace: res.Trace})
			return "deny", &p.ID, r, traceOut, nil
		}
		if p.Effect == "allow" {
			r := policyMessageOrDefault(p, fmt.Sprintf("Access allowed by policy '%s'", p.Name))
			traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Result: &b, Reason: r, Trace: res.Trace})
			return "allow", &p.ID, r, traceOut, nil
		}
	} else {
		traceOut = append(traceOut, TraceItem{PolicyID: p.ID, Effect: p.Effect, Result: &b, Reason: policyNonMatchReason(p), Trace: res.Trace})
	}
	return "", nil, "", traceOut, nil
}

// Invalidate drops a single policy's cached program, forcing recompile on
// its next evaluation. Call it after updating or deleting a policy.
func (e *Engine) Invalidate(id uuid.UUID) { e.cache.Delete(id) }

// InvalidateMany drops several policies' cached programs.
func (e *Engine) InvalidateMany(ids []uuid.UUID) {
	for _, id := range ids {
		e.cache.Delete(id)
	}
}

// InvalidateAll drops every cached program.
func (e *Engine) InvalidateAll() {
	e.cache.Range(func(k, _ any) bool { e.cache.Delete(k); return true })
}
