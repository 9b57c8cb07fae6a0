package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-automation/meridian/fabric"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/observability"
)

// pollInterval bounds how often AwaitPredicate re-checks its condition.
const pollInterval = 100 * time.Millisecond

// Execute runs plan to completion against pctx, per spec.md §4.8:
// Sequence evaluates strictly in order and stops at the first error;
// Parallel waits for every branch and collects all errors; cancelling ctx
// cancels any running children cooperatively. Execute is the entry point a
// caller (e.g. a reconciliation loop or a RunWorkspaceTask handler driving
// a nested plan) invokes once per TransactionPlan.
func Execute(ctx context.Context, pctx *PlanExecutionContext, plan TransactionPlan) error {
	err := executeStep(ctx, pctx, plan.Root)
	if err != nil {
		observability.RecordPlanExecution("error")
	} else {
		observability.RecordPlanExecution("success")
	}
	return err
}

func executeStep(ctx context.Context, pctx *PlanExecutionContext, step ActionSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		observability.RecordPlanStep(string(step.Kind), time.Since(start).Seconds())
	}()

	switch step.Kind {
	case ActionSequence:
		return executeSequence(ctx, pctx, step.Steps)
	case ActionParallel:
		return executeParallel(ctx, pctx, step.Steps)
	case ActionAttach:
		cfg, err := resolveTree(ctx, pctx, step.Config)
		if err != nil {
			return err
		}
		return pctx.Hub.Attach(ctx, step.Address, step.BlueprintID, step.Version, cfg)
	case ActionDetach:
		return pctx.Hub.Detach(ctx, step.Address)
	case ActionStart:
		return pctx.Hub.Start(ctx, step.Address)
	case ActionStop:
		return pctx.Hub.Stop(ctx, step.Address)
	case ActionWriteProperty:
		resolved, err := resolveTree(ctx, pctx, step.Value)
		if err != nil {
			return err
		}
		v := meta.Null()
		if resolved != nil && resolved.Value() != nil {
			v = *resolved.Value()
		}
		return pctx.Hub.Reconfigure(ctx, pctx.Principal, step.Address, map[string]meta.Value{step.Property: v})
	case ActionInvoke:
		args, err := resolveTree(ctx, pctx, step.Args)
		if err != nil {
			return err
		}
		out, err := pctx.Hub.Invoke(ctx, pctx.Principal, step.Address, step.Name, args)
		if err != nil {
			return err
		}
		pctx.setResult(step.ResultKey, out)
		return nil
	case ActionRunWorkspaceTask:
		args, err := resolveTree(ctx, pctx, step.Args)
		if err != nil {
			return err
		}
		out, err := pctx.Hub.ExecuteTask(ctx, pctx.Principal, step.Name, args)
		if err != nil {
			return err
		}
		pctx.setResult(step.ResultKey, out)
		return nil
	case ActionDelay:
		return sleepCtx(ctx, step.Duration)
	case ActionAwaitPredicate:
		return awaitPredicate(ctx, pctx, step)
	case ActionAwaitSignal:
		return awaitSignal(ctx, pctx, step)
	case ActionConditional:
		return executeConditional(ctx, pctx, step)
	case ActionLoop:
		return executeLoop(ctx, pctx, step)
	default:
		return fmt.Errorf("reconcile: unknown action kind %q", step.Kind)
	}
}

// executeSequence evaluates steps strictly in order, stopping at the first
// error, per spec.md §4.8's "Evaluation order inside Sequence is strict".
func executeSequence(ctx context.Context, pctx *PlanExecutionContext, steps []ActionSpec) error {
	for _, step := range steps {
		if err := executeStep(ctx, pctx, step); err != nil {
			return err
		}
	}
	return nil
}

// executeParallel runs every step concurrently and waits for all of them,
// collecting every error rather than cancelling siblings on the first
// failure ("wait-all, collect errors", spec.md §4.8), adapted from the
// teacher's DAG executor channel-coordination pattern
// (coreengine/runtime/dag_executor.go's completedChan/errorChan): each
// branch reports its outcome on a result channel sized to the step count
// instead of sharing completedChan/errorChan, since Parallel here has no
// dependency graph to schedule against.
func executeParallel(ctx context.Context, pctx *PlanExecutionContext, steps []ActionSpec) error {
	if len(steps) == 0 {
		return nil
	}
	results := make(chan error, len(steps))
	for _, step := range steps {
		branchCtx := pctx.child()
		go func(s ActionSpec) {
			results <- executeStep(ctx, branchCtx, s)
		}(step)
	}

	var errs []error
	for range steps {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func executeConditional(ctx context.Context, pctx *PlanExecutionContext, step ActionSpec) error {
	v, ok := pctx.Variables[step.ConditionVar]
	if !ok {
		return fmt.Errorf("reconcile: conditional references undefined variable %q", step.ConditionVar)
	}
	cond, _ := v.AsBool()
	switch {
	case cond && step.Then != nil:
		return executeStep(ctx, pctx, *step.Then)
	case !cond && step.Else != nil:
		return executeStep(ctx, pctx, *step.Else)
	}
	return nil
}

// executeLoop iterates the list bound to CollectionRef, running Body once
// per element with LoopVar rebound in a child context so sibling
// iterations never observe each other's bindings. Iterations run
// sequentially; spec.md §4.8 names no parallel-loop variant.
func executeLoop(ctx context.Context, pctx *PlanExecutionContext, step ActionSpec) error {
	v, ok := pctx.Variables[step.CollectionRef]
	if !ok {
		return fmt.Errorf("reconcile: loop references undefined variable %q", step.CollectionRef)
	}
	items, ok := v.AsList()
	if !ok {
		return fmt.Errorf("reconcile: loop variable %q is not a list", step.CollectionRef)
	}
	if step.Body == nil {
		return nil
	}
	for _, item := range items {
		iter := pctx.child()
		iter.Variables[step.LoopVar] = item
		if err := executeStep(ctx, iter, *step.Body); err != nil {
			return err
		}
	}
	return nil
}

func awaitPredicate(ctx context.Context, pctx *PlanExecutionContext, step ActionSpec) error {
	deadline := time.Now().Add(step.Timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := pctx.Hub.PredicateSatisfied(ctx, step.Address, step.Predicate)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if step.Timeout > 0 && time.Now().After(deadline) {
			return fmt.Errorf("reconcile: predicate %q on %s did not hold within %s", step.Predicate, step.Address, step.Timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func awaitSignal(ctx context.Context, pctx *PlanExecutionContext, step ActionSpec) error {
	waitCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	received := make(chan *meta.Tree, 1)
	unsubscribe := pctx.Hub.Bus.Subscribe(meta.NameOf("signal", step.SignalID), func(_ context.Context, msg fabric.Message) (any, error) {
		if sig, ok := msg.(fabric.WorkspaceSignal); ok && sig.ID == step.SignalID {
			select {
			case received <- sig.Payload:
			default:
			}
		}
		return nil, nil
	})
	defer unsubscribe()

	select {
	case payload := <-received:
		pctx.setResult(step.ResultKey, payload)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reconcile: signal %q not received within %s", step.SignalID, step.Timeout)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
