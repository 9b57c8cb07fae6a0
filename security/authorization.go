// Package security implements the AuthorizationService and SecretProvider
// external collaborators spec.md §6 lists as service plug-ins the core
// consumes. Grounded on jordigilh-kubernaut's go.mod dependency on
// github.com/open-policy-agent/opa: Meridian's AuthorizationService
// embeds a Rego evaluator rather than a bespoke ACL engine.
package security

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/halcyon-automation/meridian/meta"
)

// Principal identifies the caller of a Hub operation.
type Principal struct {
	ID    string
	Roles []string
}

// Permission names a single authorization check, e.g. "device.write",
// "lock.force_release".
type Permission string

// ErrDenied is wrapped into every authorization failure, letting callers
// at the hub boundary map it to the Security error kind (spec.md §7).
var ErrDenied = fmt.Errorf("security: permission denied")

// AuthorizationService checks whether a principal may perform an
// operation against an address. Per spec.md §9, the zero value (no policy
// bundle loaded) must deny every request.
type AuthorizationService interface {
	CheckPermission(ctx context.Context, principal Principal, perm Permission, addr meta.Address) error
}

// defaultDenyService is returned by NewRegoAuthorization when no policy
// module is supplied; it denies everything, satisfying the default-deny
// open question (spec.md §9).
type defaultDenyService struct{}

func (defaultDenyService) CheckPermission(context.Context, Principal, Permission, meta.Address) error {
	return fmt.Errorf("%w: no policy bundle loaded", ErrDenied)
}

// RegoAuthorization evaluates `data.meridian.authz.allow` from a bundled
// Rego module against {principal, permission, address}.
type RegoAuthorization struct {
	query rego.PreparedEvalQuery
}

// NewRegoAuthorization compiles policyModule (Rego source) once at startup.
// An empty policyModule yields the default-deny service.
func NewRegoAuthorization(ctx context.Context, policyModule string) (AuthorizationService, error) {
	if policyModule == "" {
		return defaultDenyService{}, nil
	}
	r := rego.New(
		rego.Query("data.meridian.authz.allow"),
		rego.Module("meridian_authz.rego", policyModule),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("security: compiling authorization policy: %w", err)
	}
	return &RegoAuthorization{query: pq}, nil
}

// CheckPermission evaluates the compiled policy; any evaluation error, an
// empty result set, or a non-true "allow" value is treated as a denial
// (fail closed).
func (s *RegoAuthorization) CheckPermission(ctx context.Context, principal Principal, perm Permission, addr meta.Address) error {
	input := map[string]any{
		"principal": map[string]any{
			"id":    principal.ID,
			"roles": principal.Roles,
		},
		"permission": string(perm),
		"address": map[string]any{
			"route":  addr.Route.String(),
			"device": addr.Device.String(),
		},
	}
	rs, err := s.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("%w: policy evaluation error: %v", ErrDenied, err)
	}
	if !decisionAllows(rs) {
		return fmt.Errorf("%w: principal=%s permission=%s address=%s", ErrDenied, principal.ID, perm, addr)
	}
	return nil
}

func decisionAllows(rs rego.ResultSet) bool {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allow
}

// DefaultDeny returns the always-deny AuthorizationService used when no
// policy is configured.
func DefaultDeny() AuthorizationService { return defaultDenyService{} }
