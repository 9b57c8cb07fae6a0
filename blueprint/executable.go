package blueprint

import (
	"context"

	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/state"
)

// Driver creates and destroys device instances for a blueprint. Mandatory:
// hydration fails without one.
type Driver interface {
	// Create constructs a device instance from layered configuration meta.
	// Returning an error aborts the attach.
	Create(ctx context.Context, cfg *meta.Tree) (any, error)
}

// DriverFunc adapts a plain function to Driver.
type DriverFunc func(ctx context.Context, cfg *meta.Tree) (any, error)

// Create implements Driver.
func (f DriverFunc) Create(ctx context.Context, cfg *meta.Tree) (any, error) { return f(ctx, cfg) }

// PropertyHandler computes or accepts writes for one property. Read is
// always defined; Write is nil for read-only properties.
type PropertyHandler struct {
	Read  func(ctx context.Context, instance any) (meta.Value, error)
	Write func(ctx context.Context, instance any, v meta.Value) error
}

// ActionHandler executes one action's body.
type ActionHandler func(ctx context.Context, instance any, args *meta.Tree) (*meta.Tree, error)

// SignalHandler reacts to an inbound out-of-band signal (e.g. a hardware
// interrupt callback wired by the driver).
type SignalHandler func(ctx context.Context, instance any, payload *meta.Tree) error

// ReactiveLogic is the long-running closure executed in the device's scope
// after attach completes; it observes DeviceState graphs and reacts.
type ReactiveLogic func(ctx context.Context, instance any)

// LifecycleHooks are the four driver hooks the lifecycle FSM launches on
// entry to Attaching/Starting/Stopping/Detaching, plus the two FSM
// after-hooks run on successful Starting->Running and Stopping->Stopped.
type LifecycleHooks struct {
	OnAttach  func(ctx context.Context, instance any) error
	OnStart   func(ctx context.Context, instance any) error
	OnStop    func(ctx context.Context, instance any) error
	OnDetach  func(ctx context.Context, instance any) error
	AfterStart func(ctx context.Context, instance any)
	AfterStop  func(ctx context.Context, instance any)
}

// BehaviorFacet is the behavioral complement to a Declaration: everything a
// Declaration cannot express because it isn't pure data. Facets are
// registered separately from declarations and fused at hydration time.
type BehaviorFacet struct {
	BlueprintID string

	Driver Driver

	PropertyHandlers map[string]PropertyHandler
	ActionHandlers   map[string]ActionHandler
	SignalHandlers   map[string]SignalHandler

	// TaskHandlers backs FeatureTaskExecutor: the orchestrator-only route a
	// RunWorkspaceTask plan step invokes directly, bypassing the TaskRef/
	// PlanRef guard ActionHandlers enforce for direct execute() calls.
	TaskHandlers map[string]ActionHandler

	Lifecycle LifecycleHooks

	// OperationalInitialState is the state the operational FSM starts in,
	// when the declaration advertises FeatureOperationalFsm.
	OperationalInitialState string
	OperationalTransitions  []OperationalTransition
	Guards                  []GuardSpec

	ReactiveLogic ReactiveLogic

	// PersistentElements exposes the stateful cells a driver constructed
	// internally (via state.NewStateful) for any property descriptor
	// marked Persistent, keyed by property name. The device runtime
	// registers each with persistence.SnapshotService at attach and
	// unregisters at detach.
	PersistentElements map[string]state.PersistenceElement
}

// OperationalTransition is one edge of a blueprint's user-defined
// operational FSM.
type OperationalTransition struct {
	From  string
	Event string
	To    string
}

// GuardKind tags which variant of GuardSpec a value carries.
type GuardKind string

const (
	GuardTimedPredicate GuardKind = "TIMED_PREDICATE"
	GuardValueChange    GuardKind = "VALUE_CHANGE"
)

// GuardSpec declares one operational-FSM guard, hydrated into a running
// fsm.Guard by the device runtime.
type GuardSpec struct {
	Kind GuardKind

	// TimedPredicate
	PredicateName string
	Duration      string // parsed with time.ParseDuration at wiring time
	FromStates    []string

	// ValueChange
	PropertyName string
	Window       int
	Predicate    func(window []meta.Value) bool

	PostEvent string
}

// ExecutableBlueprint is a Declaration fused with its Driver and behavior
// facets: everything the device runtime needs to instantiate a device. Not
// serializable.
type ExecutableBlueprint struct {
	Declaration *Declaration
	Facet       *BehaviorFacet
}

// PropertyHandler looks up the handler for name, or (zero, false).
func (e *ExecutableBlueprint) PropertyHandler(name string) (PropertyHandler, bool) {
	h, ok := e.Facet.PropertyHandlers[name]
	return h, ok
}

// ActionHandler looks up the handler for name, or (nil, false).
func (e *ExecutableBlueprint) ActionHandler(name string) (ActionHandler, bool) {
	h, ok := e.Facet.ActionHandlers[name]
	return h, ok
}
