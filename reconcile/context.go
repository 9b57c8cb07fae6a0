package reconcile

import (
	"context"
	"sync"

	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
)

// ReferenceResolver is the narrow surface ComputableValue template
// resolution needs: live property reads and secret lookups, kept as an
// interface so tests can substitute a fixture resolver instead of a live
// Hub (spec.md §4.8's "resolving each against the context (variables,
// property reads, secret provider, task results)").
type ReferenceResolver interface {
	ReadProperty(ctx context.Context, addr meta.Address, name string) (meta.Value, error)
	ResolveSecret(ctx context.Context, key string) (string, error)
}

// hubResolver is the default ReferenceResolver, backed by a live Hub and an
// optional SecretProvider.
type hubResolver struct {
	hub       *hub.Hub
	principal security.Principal
	secrets   security.SecretProvider
}

// NewHubResolver builds the default ReferenceResolver a plan executes
// against: property reads go through h under principal's authorization,
// secret references go through secrets (nil means every secret:
// reference fails closed).
func NewHubResolver(h *hub.Hub, principal security.Principal, secrets security.SecretProvider) ReferenceResolver {
	return &hubResolver{hub: h, principal: principal, secrets: secrets}
}

func (r *hubResolver) ReadProperty(ctx context.Context, addr meta.Address, name string) (meta.Value, error) {
	return r.hub.ReadProperty(ctx, r.principal, addr, name)
}

func (r *hubResolver) ResolveSecret(ctx context.Context, key string) (string, error) {
	if r.secrets == nil {
		return "", security.ErrSecretNotFound
	}
	return r.secrets.Resolve(ctx, key)
}

// PlanExecutionContext carries a plan execution's variable bindings and
// collaborators, per spec.md §4.8. Variables are bound by the caller before
// Execute and by Loop, which binds LoopVar for each iteration; ResultKey on
// Invoke/RunWorkspaceTask steps writes to Results, not Variables. Results
// stores the full *meta.Tree of each step's output for "result:" template
// references.
type PlanExecutionContext struct {
	Hub       *hub.Hub
	Principal security.Principal
	Resolver  ReferenceResolver
	Variables map[string]meta.Value
	Results   map[string]*meta.Tree

	// mu guards Variables/Results writes made from Parallel's concurrent
	// branches. Reads (e.g. template.go's resolveExpr) go through the maps
	// directly; Parallel always finishes its branches before a later step
	// reads what they wrote, so the missing read-lock does not race in
	// practice.
	mu sync.Mutex
}

// NewPlanExecutionContext builds an execution context driving h, using
// resolver for ComputableValue template resolution (NewHubResolver(h,
// principal, secrets) if resolver is nil).
func NewPlanExecutionContext(h *hub.Hub, principal security.Principal, resolver ReferenceResolver) *PlanExecutionContext {
	if resolver == nil {
		resolver = NewHubResolver(h, principal, nil)
	}
	return &PlanExecutionContext{
		Hub:       h,
		Principal: principal,
		Resolver:  resolver,
		Variables: make(map[string]meta.Value),
		Results:   make(map[string]*meta.Tree),
	}
}

// setVariable binds name to v, safe to call from a Parallel branch.
func (pctx *PlanExecutionContext) setVariable(name string, v meta.Value) {
	pctx.mu.Lock()
	defer pctx.mu.Unlock()
	pctx.Variables[name] = v
}

// setResult stores a step's output tree under key, safe to call from a
// Parallel branch.
func (pctx *PlanExecutionContext) setResult(key string, tree *meta.Tree) {
	if key == "" {
		return
	}
	pctx.mu.Lock()
	defer pctx.mu.Unlock()
	pctx.Results[key] = tree
}

// child returns a copy of pctx with its own Variables map (so a Loop
// iteration's binding doesn't leak into sibling iterations) sharing the
// same Results map (so later steps can still see earlier ones' output).
func (pctx *PlanExecutionContext) child() *PlanExecutionContext {
	vars := make(map[string]meta.Value, len(pctx.Variables)+1)
	for k, v := range pctx.Variables {
		vars[k] = v
	}
	return &PlanExecutionContext{
		Hub:       pctx.Hub,
		Principal: pctx.Principal,
		Resolver:  pctx.Resolver,
		Variables: vars,
		Results:   pctx.Results,
	}
}
