package device

import (
	"context"
	"fmt"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
)

// ExecuteTask runs a FeatureTaskExecutor-advertised task body directly,
// bypassing the TaskRef/PlanRef guard ExecuteAction enforces for regular
// actions. This is the orchestrator-only route spec.md's Design Notes
// describe for RunWorkspaceTask plan steps: the reconciler's PlanExecutor
// resolves a bare taskID to this device (via Hub.ExecuteTask) and invokes
// the handler the blueprint registered under that id.
func (r *Runtime) ExecuteTask(ctx context.Context, principal security.Principal, taskID string, args *meta.Tree) (*meta.Tree, error) {
	handler, ok := r.bp.Facet.TaskHandlers[taskID]
	if !ok || handler == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if err := r.authorize(ctx, principal, nil, "execute_task"); err != nil {
		return nil, err
	}
	return handler(ctx, r.instance, args)
}

// TaskIDs reports the workspace task ids this device's blueprint advertises
// via FeatureTaskExecutor, used by Hub.ExecuteTask to resolve a taskID to
// the device that handles it.
func (r *Runtime) TaskIDs() []string {
	if f, ok := r.bp.Declaration.Features[string(blueprint.FeatureTaskExecutor)]; ok {
		return f.TaskIDs
	}
	return nil
}
