package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/fabric"
	"github.com/halcyon-automation/meridian/fsm"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/persistence"
	"github.com/halcyon-automation/meridian/security"
	"github.com/halcyon-automation/meridian/state"
)

// LockAcquirer is the narrow surface a Hub exposes to a Runtime for
// acquiring the locks an action or property write declares. Defined here
// (not in hub) so device has no dependency on hub, matching spec.md §4.7's
// "locks are acquired through the hub" wiring without an import cycle.
type LockAcquirer interface {
	Acquire(ctx context.Context, addr meta.Address, locks []convert.ResourceLockSpec) (release func(), err error)
}

// Dependencies are the collaborators a Runtime needs, all supplied
// explicitly by the Hub that attaches it (spec.md §9's no-ambient-
// singletons rule).
type Dependencies struct {
	Bus     *fabric.Bus
	Authz   security.AuthorizationService
	Locks   LockAcquirer
	Persist *persistence.SnapshotService
	Log     corelog.Logger
}

// propertyNode pairs a property's reactive cell with its descriptor and
// blueprint-supplied handler.
type propertyNode struct {
	desc    convert.PropertyDescriptor
	handler blueprint.PropertyHandler
	cell    state.MutableDeviceState[meta.Value]
}

// Runtime is one running device instance produced from an
// ExecutableBlueprint (spec.md §4.6). It owns the device's dual FSM, its
// property state graph, and a coroutine scope: cancelling Scope cancels
// every reactive observer, guard, and timer the device started.
type Runtime struct {
	Address     meta.Address
	BlueprintID string
	Version     string

	bp   *blueprint.ExecutableBlueprint
	deps Dependencies

	instance any

	Lifecycle   *fsm.LifecycleFSM
	Operational *fsm.Operational

	mu         sync.RWMutex
	properties map[string]*propertyNode
	guardStops []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	transitions chan fsm.LifecycleState
}

// New builds a Runtime for addr from bp, but does not attach it; call
// Attach to run driver.Create and start both FSMs.
func New(parent context.Context, addr meta.Address, bp *blueprint.ExecutableBlueprint, deps Dependencies) *Runtime {
	ctx, cancel := context.WithCancel(parent)
	if deps.Log == nil {
		deps.Log = corelog.NewNoop()
	}
	return &Runtime{
		Address:     addr,
		BlueprintID: bp.Declaration.ID,
		Version:     bp.Declaration.Version,
		bp:          bp,
		deps:        deps,
		properties:  make(map[string]*propertyNode),
		ctx:         ctx,
		cancel:      cancel,
		transitions: make(chan fsm.LifecycleState, 8),
	}
}

// Attach runs driver.Create, wires the property state graph, registers
// stateful cells with persistence, starts both FSMs in their initial
// states, and launches the reactive-logic closure. It blocks until the
// lifecycle FSM reaches Stopped or Failed; a device is attached but not
// yet started until a subsequent call to Start.
func (r *Runtime) Attach(ctx context.Context, cfg *meta.Tree) error {
	instance, err := r.bp.Facet.Driver.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("device: driver.Create for %s: %w", r.Address, err)
	}
	r.instance = instance

	r.wireProperties()
	r.registerPersistence()

	r.Lifecycle = fsm.NewLifecycleFSM(r.ctx, r.lifecycleHooks(), corelog.Func(r.deps.Log))
	r.Lifecycle.OnTransition(func(from, to fsm.LifecycleState) {
		r.deps.Log.Info("lifecycle_transition", "address", r.Address.String(), "from", from, "to", to)
		if r.deps.Bus != nil {
			_ = r.deps.Bus.Publish(context.Background(), fabric.LifecycleStateChanged{
				MessageBase: fabric.NewBase(r.Address, time.Now()),
				From:        string(from),
				To:          string(to),
			})
		}
		select {
		case r.transitions <- to:
		default:
		}
	})

	if r.bp.Declaration.HasFeature(blueprint.FeatureOperationalFsm) {
		r.Operational = fsm.NewOperational(r.ctx, r.bp.Facet.OperationalTransitions, r.bp.Facet.OperationalInitialState, corelog.Func(r.deps.Log))
	}

	r.startGuards()

	if r.bp.Facet.ReactiveLogic != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.bp.Facet.ReactiveLogic(r.ctx, r.instance)
		}()
	}

	r.Lifecycle.Dispatch(fsm.EventAttach, nil)
	return r.awaitState(ctx, fsm.StateStopped)
}

// Start dispatches the Start lifecycle event and waits for Running/Failed.
func (r *Runtime) Start(ctx context.Context) error {
	if r.Lifecycle.State() != fsm.StateStopped {
		return fmt.Errorf("%w: Start requires Stopped, got %s", ErrLifecycleState, r.Lifecycle.State())
	}
	r.Lifecycle.Dispatch(fsm.EventStart, nil)
	return r.awaitState(ctx, fsm.StateRunning)
}

// Stop dispatches the Stop lifecycle event and waits for Stopped/Failed.
func (r *Runtime) Stop(ctx context.Context) error {
	if r.Lifecycle.State() != fsm.StateRunning {
		return fmt.Errorf("%w: Stop requires Running, got %s", ErrLifecycleState, r.Lifecycle.State())
	}
	r.Lifecycle.Dispatch(fsm.EventStop, nil)
	return r.awaitState(ctx, fsm.StateStopped)
}

// Detach dispatches the Detach lifecycle event, waits for Detached, then
// cancels the device's scope, stopping every guard, timer, and observer.
func (r *Runtime) Detach(ctx context.Context) error {
	cur := r.Lifecycle.State()
	if cur != fsm.StateStopped && cur != fsm.StateFailed {
		return fmt.Errorf("%w: Detach requires Stopped or Failed, got %s", ErrLifecycleState, cur)
	}
	if cur == fsm.StateFailed {
		// Detach is reachable only from Stopped in the fixed transition
		// table; reset through Failed first so the hook still runs.
		r.Lifecycle.Dispatch(fsm.EventReset, nil)
		if err := r.awaitState(ctx, fsm.StateStopped); err != nil {
			return err
		}
	}
	r.Lifecycle.Dispatch(fsm.EventDetach, nil)
	if err := r.awaitState(ctx, fsm.StateDetached); err != nil {
		return err
	}
	r.Close()
	return nil
}

// Close cancels the device's coroutine scope and waits for its
// goroutines (guards, reactive logic) to exit, and unregisters it from
// persistence. Idempotent.
func (r *Runtime) Close() {
	r.cancel()
	r.mu.Lock()
	stops := append([]func(){}, r.guardStops...)
	r.guardStops = nil
	r.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	r.wg.Wait()
	if r.deps.Persist != nil {
		r.deps.Persist.Unregister(r.Address.String())
	}
}

// Instance returns the opaque device instance the driver created, for
// internal hub operations (e.g. hot-swap's old-instance teardown).
func (r *Runtime) Instance() any { return r.instance }

func (r *Runtime) awaitState(ctx context.Context, want fsm.LifecycleState) error {
	if r.Lifecycle.State() == want {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-r.transitions:
			if s == want {
				return nil
			}
			if s == fsm.StateFailed {
				return fmt.Errorf("device: %s entered Failed while awaiting %s", r.Address, want)
			}
		}
	}
}

func (r *Runtime) lifecycleHooks() fsm.LifecycleHooks {
	h := r.bp.Facet.Lifecycle
	wrap := func(fn func(context.Context, any) error) func(context.Context) error {
		if fn == nil {
			return nil
		}
		return func(ctx context.Context) error { return fn(ctx, r.instance) }
	}
	wrapAfter := func(fn func(context.Context, any)) func(context.Context) {
		if fn == nil {
			return nil
		}
		return func(ctx context.Context) { fn(ctx, r.instance) }
	}
	return fsm.LifecycleHooks{
		OnAttach:   wrap(h.OnAttach),
		OnStart:    wrap(h.OnStart),
		OnStop:     wrap(h.OnStop),
		OnDetach:   wrap(h.OnDetach),
		AfterStart: wrapAfter(h.AfterStart),
		AfterStop:  wrapAfter(h.AfterStop),
	}
}

func (r *Runtime) wireProperties() {
	all := map[string]convert.PropertyDescriptor{}
	for k, v := range r.bp.Declaration.PublicProperties {
		all[k] = v
	}
	for k, v := range r.bp.Declaration.NonPublicProperties {
		all[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, desc := range all {
		handler := r.bp.Facet.PropertyHandlers[name]
		node := &propertyNode{desc: desc, handler: handler}
		initial := state.None[meta.Value](state.QualityStale)
		if handler.Read != nil {
			if v, err := handler.Read(r.ctx, r.instance); err == nil {
				initial = state.Some(v)
			}
		}
		node.cell = state.NewRaw(initial)
		r.properties[name] = node
	}
}

func (r *Runtime) registerPersistence() {
	if r.deps.Persist == nil {
		return
	}
	for _, el := range r.bp.Facet.PersistentElements {
		r.deps.Persist.Register(r.Address.String(), el)
	}
}

func (r *Runtime) startGuards() {
	for _, spec := range r.bp.Facet.Guards {
		guard := r.buildGuard(spec)
		if guard == nil {
			continue
		}
		stop := guard.Start()
		r.mu.Lock()
		r.guardStops = append(r.guardStops, stop)
		r.mu.Unlock()
	}
}

func (r *Runtime) buildGuard(spec blueprint.GuardSpec) fsm.Guard {
	if r.Operational == nil {
		return nil
	}
	switch spec.Kind {
	case blueprint.GuardTimedPredicate:
		node, ok := r.PropertyState(spec.PredicateName)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(spec.Duration)
		if err != nil {
			r.deps.Log.Error(err, "invalid guard duration", "guard", spec.PredicateName)
			return nil
		}
		boolState := state.Map(node, func(v meta.Value) bool {
			b, _ := v.AsBool()
			return b
		})
		return fsm.TimedPredicateGuard{
			Predicate:  boolState,
			Duration:   d,
			PostEvent:  spec.PostEvent,
			FromStates: spec.FromStates,
			FSM:        r.Operational,
		}
	case blueprint.GuardValueChange:
		node, ok := r.PropertyState(spec.PropertyName)
		if !ok {
			return nil
		}
		return fsm.ValueChangeGuard[meta.Value]{
			Property:  node,
			Window:    spec.Window,
			Predicate: spec.Predicate,
			PostEvent: spec.PostEvent,
			FSM:       r.Operational,
		}
	default:
		return nil
	}
}

// PropertyState returns the reactive cell backing name, for reactive-logic
// closures and guards.
func (r *Runtime) PropertyState(name string) (state.DeviceState[meta.Value], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.properties[name]
	if !ok {
		return nil, false
	}
	return n.cell, true
}

// PublishProperty pushes a new value into name's reactive cell directly,
// used by reactive-logic closures for DERIVED/PREDICATE properties that
// have no Write handler.
func (r *Runtime) PublishProperty(name string, v meta.Value, quality state.Quality) {
	r.mu.RLock()
	n, ok := r.properties[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	n.cell.Update(state.StateValue[meta.Value]{Value: &v, Timestamp: time.Now().UTC(), Quality: quality})
}
