// Package validate implements the feature-plug validation layer (spec.md
// §4.11): a registry of capability-keyed validators run against a fully
// hydrated blueprint.Declaration before a device is allowed to attach,
// structured as a syscall-boundary check in the spirit of the teacher's
// coreengine/grpc/validation.go — arguments are rejected here, before they
// reach the Hub's attach/reconcile machinery, so that machinery only ever
// sees already-validated input.
package validate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/halcyon-automation/meridian/blueprint"
)

// Validator checks one capability a Declaration advertises. f is the
// Feature value matching the FeatureKind the validator was registered
// under.
type Validator interface {
	Validate(d *blueprint.Declaration, f blueprint.Feature) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(d *blueprint.Declaration, f blueprint.Feature) error

// Validate implements Validator.
func (fn ValidatorFunc) Validate(d *blueprint.Declaration, f blueprint.Feature) error {
	return fn(d, f)
}

// Registry dispatches validation by FeatureKind, so a Declaration's
// Features map drives exactly which checks run against it — a blueprint
// that never declares TASK_EXECUTOR never pays for task-id validation.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register installs v for kind, replacing any validator previously
// registered for it.
func (r *Registry) Register(kind blueprint.FeatureKind, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[string(kind)] = v
}

// ValidateDeclaration runs every registered validator whose FeatureKind d
// advertises, collecting every failure rather than stopping at the first
// (a caller fixing a blueprint wants the whole list in one pass, not one
// error per edit-and-retry cycle).
func (r *Registry) ValidateDeclaration(d *blueprint.Declaration) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for kind, feature := range d.Features {
		v, ok := r.validators[kind]
		if !ok {
			continue
		}
		if err := v.Validate(d, feature); err != nil {
			errs = append(errs, fmt.Errorf("blueprint %s: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}

// defaultRegistry is the process-wide set of built-in capability
// validators. Hub.attachSubtree calls Default() directly; nothing in this
// module yet needs a per-Hub override, so there is no injection point on
// hub.Config for swapping it out.
var defaultRegistry = buildDefaultRegistry()

// Default returns the built-in Registry, with validators for TASK_EXECUTOR,
// REMOTE_MIRROR, OPERATIONAL_GUARDS, BINARY_DATA, DATA_SOURCE and
// INTROSPECTION. RECONFIGURABLE, STATEFUL, PLAN_EXECUTOR and OPERATIONAL_FSM
// have no validator here, and LIFECYCLE invariants are enforced by
// blueprint.Builder directly, since they need access to unexported builder
// state that a post-hoc Declaration cannot see.
func Default() *Registry { return defaultRegistry }

func buildDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(blueprint.FeatureTaskExecutor, ValidatorFunc(validateTaskExecutor))
	r.Register(blueprint.FeatureRemoteMirror, ValidatorFunc(validateRemoteMirror))
	r.Register(blueprint.FeatureOperationalGuards, ValidatorFunc(validateOperationalGuards))
	r.Register(blueprint.FeatureBinaryData, ValidatorFunc(validateBinaryData))
	r.Register(blueprint.FeatureDataSource, ValidatorFunc(validateDataSource))
	r.Register(blueprint.FeatureIntrospection, ValidatorFunc(validateIntrospection))
	return r
}
