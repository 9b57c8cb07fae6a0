package device

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/fabric"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
)

// ExecuteAction runs name's body under principal's authorization, per
// spec.md §4.6: authorize, acquire locks, assert requiredPredicates, post
// the operational-FSM trigger event (after authorization — Open Question
// (c), SPEC_FULL.md §9), run the body under its soft/hard timeouts, then
// post onSuccess/onFailure. A failed run also publishes a
// fabric.DeviceError; a successful run publishes no message.
func (r *Runtime) ExecuteAction(ctx context.Context, principal security.Principal, name string, args *meta.Tree) (*meta.Tree, error) {
	desc, ok := r.bp.Declaration.Action(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	if desc.TaskRef != "" || desc.PlanRef != "" {
		return nil, fmt.Errorf("%w: %q", ErrTaskBackedAction, name)
	}
	handler, ok := r.bp.Facet.ActionHandlers[name]
	if !ok || handler == nil {
		return nil, fmt.Errorf("%w: %q has no registered handler", ErrUnknownAction, name)
	}

	if err := r.authorize(ctx, principal, desc.Permissions, "execute"); err != nil {
		return nil, err
	}

	release, err := r.acquireLocks(ctx, desc.RequiredLocks)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, pred := range desc.RequiredPredicates {
		ok, err := r.PredicateSatisfied(ctx, pred)
		if err != nil {
			return nil, fmt.Errorf("device: checking predicate %q for action %q: %w", pred, name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q requires %q", ErrPredicateNotSatisfied, name, pred)
		}
	}

	if r.Operational != nil && desc.TriggerEvent != "" {
		r.Operational.Post(desc.TriggerEvent)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if desc.ExecutionDeadline > 0 {
		runCtx, cancel = context.WithDeadline(runCtx, time.Now().Add(desc.ExecutionDeadline))
		defer cancel()
	}
	if desc.DefaultTimeout > 0 {
		var softCancel context.CancelFunc
		runCtx, softCancel = context.WithTimeout(runCtx, desc.DefaultTimeout)
		defer softCancel()
	}

	type result struct {
		out *meta.Tree
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := handler(runCtx, r.instance, args)
		done <- result{out: out, err: err}
	}()

	var res result
	select {
	case <-runCtx.Done():
		res = result{err: fmt.Errorf("%w: %q", ErrActionTimeout, name)}
	case res = <-done:
	}

	if res.err != nil {
		if r.Operational != nil && desc.OnFailureEvent != "" {
			r.Operational.Post(desc.OnFailureEvent)
		}
		if r.deps.Bus != nil {
			_ = r.deps.Bus.Publish(context.Background(), fabric.DeviceError{
				MessageBase: fabric.NewBase(r.Address, time.Now()),
				Err:         res.err,
			})
		}
		return nil, res.err
	}

	if r.Operational != nil && desc.OnSuccessEvent != "" {
		r.Operational.Post(desc.OnSuccessEvent)
	}
	return res.out, nil
}

// ActionDescriptor exposes a blueprint action's declared contract, used by
// the plan engine to check distributable/cache-policy hints without
// importing blueprint directly.
func (r *Runtime) ActionDescriptor(name string) (convert.ActionDescriptor, bool) {
	return r.bp.Declaration.Action(name)
}
