package device

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/fabric"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
	"github.com/halcyon-automation/meridian/state"
)

// ReadProperty reads name under principal's authorization, per spec.md
// §4.6: authorize, acquire any declared locks, then call the property's
// handler (or, absent one, return the reactive cell's last published
// value).
func (r *Runtime) ReadProperty(ctx context.Context, principal security.Principal, name string) (meta.Value, state.Quality, error) {
	r.mu.RLock()
	node, ok := r.properties[name]
	r.mu.RUnlock()
	if !ok {
		return meta.Value{}, state.QualityError, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if !node.desc.Readable {
		return meta.Value{}, state.QualityError, fmt.Errorf("%w: %q", ErrNotReadable, name)
	}

	if err := r.authorize(ctx, principal, node.desc.Permissions, "read"); err != nil {
		return meta.Value{}, state.QualityError, err
	}

	release, err := r.acquireLocks(ctx, node.desc.RequiredLocks)
	if err != nil {
		return meta.Value{}, state.QualityError, err
	}
	defer release()

	if node.handler.Read != nil {
		v, err := node.handler.Read(ctx, r.instance)
		if err != nil {
			return meta.Value{}, state.QualityError, err
		}
		node.cell.Update(state.Some(v))
		return v, state.QualityOK, nil
	}

	cur := node.cell.Current()
	if cur.Value == nil {
		return meta.Null(), cur.Quality, nil
	}
	return *cur.Value, cur.Quality, nil
}

// WriteProperty validates, authorizes, locks, and writes name, per
// spec.md §4.6. A successful write emits a PropertyChanged message on the
// device's bus.
func (r *Runtime) WriteProperty(ctx context.Context, principal security.Principal, name string, v meta.Value) error {
	r.mu.RLock()
	node, ok := r.properties[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if !node.desc.Mutable || node.handler.Write == nil {
		return fmt.Errorf("%w: %q", ErrNotMutable, name)
	}

	if err := convert.Validate(node.desc, v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := r.authorize(ctx, principal, node.desc.Permissions, "write"); err != nil {
		return err
	}

	release, err := r.acquireLocks(ctx, node.desc.RequiredLocks)
	if err != nil {
		return err
	}
	defer release()

	if err := node.handler.Write(ctx, r.instance, v); err != nil {
		return err
	}
	node.cell.Update(state.Some(v))

	if r.deps.Bus != nil {
		_ = r.deps.Bus.Publish(ctx, fabric.PropertyChanged{
			MessageBase: fabric.NewBase(r.Address, time.Now()),
			Property:    meta.MustParseName(name),
			Value:       v,
			Quality:     state.QualityOK.String(),
		})
	}
	return nil
}

// PredicateSatisfied reads a PREDICATE property and reports its boolean
// value, used by action dispatch (requiredPredicates) and plan
// AwaitPredicate steps.
func (r *Runtime) PredicateSatisfied(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	node, ok := r.properties[name]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if node.desc.Kind != convert.PropertyKindPredicate {
		return false, fmt.Errorf("device: %q is not a PREDICATE property", name)
	}
	v, _, err := r.ReadProperty(ctx, security.Principal{}, name)
	if err != nil {
		return false, err
	}
	b, _ := v.AsBool()
	return b, nil
}

func (r *Runtime) authorize(ctx context.Context, principal security.Principal, perms []convert.Permission, verb string) error {
	if r.deps.Authz == nil || len(perms) == 0 {
		return nil
	}
	for _, p := range perms {
		if err := r.deps.Authz.CheckPermission(ctx, principal, security.Permission(p), r.Address); err != nil {
			return fmt.Errorf("device: %s denied for %s: %w", verb, r.Address, err)
		}
	}
	return nil
}

func (r *Runtime) acquireLocks(ctx context.Context, locks []convert.ResourceLockSpec) (func(), error) {
	if r.deps.Locks == nil || len(locks) == 0 {
		return func() {}, nil
	}
	release, err := r.deps.Locks.Acquire(ctx, r.Address, locks)
	if err != nil {
		return nil, err
	}
	return release, nil
}
