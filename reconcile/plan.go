package reconcile

import (
	"time"

	"github.com/halcyon-automation/meridian/meta"
)

// ActionKind tags which variant of the ActionSpec union a value carries.
type ActionKind string

const (
	ActionAttach           ActionKind = "ATTACH"
	ActionDetach           ActionKind = "DETACH"
	ActionStart            ActionKind = "START"
	ActionStop             ActionKind = "STOP"
	ActionWriteProperty    ActionKind = "WRITE_PROPERTY"
	ActionInvoke           ActionKind = "INVOKE"
	ActionSequence         ActionKind = "SEQUENCE"
	ActionParallel         ActionKind = "PARALLEL"
	ActionDelay            ActionKind = "DELAY"
	ActionAwaitPredicate   ActionKind = "AWAIT_PREDICATE"
	ActionAwaitSignal      ActionKind = "AWAIT_SIGNAL"
	ActionConditional      ActionKind = "CONDITIONAL"
	ActionLoop             ActionKind = "LOOP"
	ActionRunWorkspaceTask ActionKind = "RUN_WORKSPACE_TASK"
)

// ActionSpec is the tagged union of plan steps spec.md §4.8 names. Only the
// fields relevant to Kind are populated, matching blueprint.Feature's
// flat-struct union shape. Value/Config/Args fields are *meta.Tree so they
// can carry "${...}" ComputableValue templates resolved lazily at
// execution time (see template.go).
type ActionSpec struct {
	Kind ActionKind

	// Attach / Detach / Start / Stop / WriteProperty / Invoke / AwaitPredicate
	Address meta.Address

	// Attach
	BlueprintID string
	Version     string
	Config      *meta.Tree

	// WriteProperty
	Property string
	Value    *meta.Tree

	// Invoke / RunWorkspaceTask
	Name      string // action name (Invoke) or task id (RunWorkspaceTask)
	Args      *meta.Tree
	ResultKey string

	// Sequence / Parallel
	Steps []ActionSpec

	// Delay
	Duration time.Duration

	// AwaitPredicate
	Predicate string
	Timeout   time.Duration

	// AwaitSignal
	SignalID string
	Prompt   string

	// Conditional
	ConditionVar string // variable name holding a bool; set by the caller or an enclosing Loop
	Then         *ActionSpec
	Else         *ActionSpec

	// Loop
	CollectionRef string // variable name holding a meta.Value list
	LoopVar       string
	Body          *ActionSpec
}

// TransactionPlan is the root of a compiled plan: a single Sequence node by
// convention, executed by PlanExecutor.
type TransactionPlan struct {
	Root ActionSpec
}

// Reconcile compiles diffs into a TransactionPlan. Each diff becomes one or
// more ActionSpec steps, assembled into a top-level Sequence so devices
// that must be torn down (DeviceExtra) happen before devices that must be
// brought up (DeviceMissing) are attached, keeping a swap-in-place
// predictable.
func Reconcile(diffs []StateDiff) TransactionPlan {
	var steps []ActionSpec

	for _, d := range diffs {
		if d.Kind == DiffDeviceExtra {
			steps = append(steps, ActionSpec{Kind: ActionDetach, Address: d.Address})
		}
	}

	for _, d := range diffs {
		switch d.Kind {
		case DiffDeviceMissing:
			steps = append(steps, ActionSpec{
				Kind:        ActionAttach,
				Address:     d.Address,
				BlueprintID: d.DesiredBlueprintID,
				Version:     d.DesiredVersion,
				Config:      d.DesiredConfig,
			})
		case DiffBlueprintMismatch:
			steps = append(steps,
				ActionSpec{Kind: ActionDetach, Address: d.Address},
				ActionSpec{
					Kind:        ActionAttach,
					Address:     d.Address,
					BlueprintID: d.DesiredBlueprintID,
					Version:     d.DesiredVersion,
					Config:      d.DesiredConfig,
				},
			)
		case DiffChildBindingsChanged:
			// Bindings are only (re-)applied at attach time; converging a
			// binding change means detaching and reattaching the subtree
			// under its current blueprint/version so the declared child
			// bindings get re-run against the desired config.
			steps = append(steps,
				ActionSpec{Kind: ActionDetach, Address: d.Address},
				ActionSpec{
					Kind:        ActionAttach,
					Address:     d.Address,
					BlueprintID: d.DesiredBlueprintID,
					Version:     d.DesiredVersion,
					Config:      d.DesiredConfig,
				},
			)
		case DiffMetaMismatch:
			var writes []ActionSpec
			for prop, v := range d.ChangedProperties {
				writes = append(writes, ActionSpec{
					Kind:     ActionWriteProperty,
					Address:  d.Address,
					Property: prop,
					Value:    meta.Leaf(v),
				})
			}
			if len(writes) > 0 {
				steps = append(steps, ActionSpec{Kind: ActionSequence, Steps: writes})
			}
		case DiffLifecycleStateMismatch:
			if d.DesiredRunning {
				steps = append(steps, ActionSpec{Kind: ActionStart, Address: d.Address})
			} else {
				steps = append(steps, ActionSpec{Kind: ActionStop, Address: d.Address})
			}
		}
	}

	return TransactionPlan{Root: ActionSpec{Kind: ActionSequence, Steps: steps}}
}
