// Package fsm implements the dual-FSM device engine: a fixed Lifecycle
// state machine plus an optional, user-defined Operational state machine,
// both built as explicit transition-table interpreters (no reflection, no
// generic third-party FSM library — see DESIGN.md) dispatched through a
// single-goroutine-per-FSM FIFO event loop, per spec.md §4.5.
package fsm

import (
	"context"
	"fmt"
	"sync"
)

// LifecycleState is one of the fixed states every device's lifecycle FSM
// occupies.
type LifecycleState string

const (
	StateDetached  LifecycleState = "Detached"
	StateAttaching LifecycleState = "Attaching"
	StateStopped   LifecycleState = "Stopped"
	StateStarting  LifecycleState = "Starting"
	StateRunning   LifecycleState = "Running"
	StateStopping  LifecycleState = "Stopping"
	StateFailed    LifecycleState = "Failed"
	StateDetaching LifecycleState = "Detaching"
)

// LifecycleEvent is one of the fixed external events the lifecycle FSM
// accepts.
type LifecycleEvent string

const (
	EventAttach  LifecycleEvent = "Attach"
	EventStart   LifecycleEvent = "Start"
	EventStop    LifecycleEvent = "Stop"
	EventFail    LifecycleEvent = "Fail"
	EventReset   LifecycleEvent = "Reset"
	EventDetach  LifecycleEvent = "Detach"
	eventSuccess LifecycleEvent = "__success" // internal: hook completion
)

// lifecycleTransitions is the fixed transition table from spec.md §4.5,
// modeled directly on the teacher's validTransitions map in
// coreengine/kernel/lifecycle.go.
var lifecycleTransitions = map[LifecycleState]map[LifecycleEvent]LifecycleState{
	StateDetached: {
		EventAttach: StateAttaching,
	},
	StateAttaching: {
		eventSuccess: StateStopped,
		EventFail:    StateFailed,
	},
	StateStopped: {
		EventStart:  StateStarting,
		EventDetach: StateDetaching,
	},
	StateStarting: {
		eventSuccess: StateRunning,
		EventFail:    StateFailed,
	},
	StateRunning: {
		EventStop: StateStopping,
		EventFail: StateFailed,
	},
	StateStopping: {
		eventSuccess: StateStopped,
		EventFail:    StateFailed,
	},
	StateFailed: {
		EventReset: StateStopped,
	},
	StateDetaching: {
		eventSuccess: StateDetached,
	},
}

// hookStates are the states whose on-entry launches a driver hook and
// auto-posts a success/Fail event on completion.
var hookStates = map[LifecycleState]bool{
	StateAttaching: true,
	StateStarting:  true,
	StateStopping:  true,
	StateDetaching: true,
}

// IsValidLifecycleTransition reports whether event is accepted from state.
func IsValidLifecycleTransition(from LifecycleState, event LifecycleEvent) (LifecycleState, bool) {
	targets, ok := lifecycleTransitions[from]
	if !ok {
		return "", false
	}
	to, ok := targets[event]
	return to, ok
}

// LifecycleHooks are the driver/runtime callbacks the lifecycle FSM invokes
// on state entry and on successful Starting->Running / Stopping->Stopped
// transitions.
type LifecycleHooks struct {
	OnAttach   func(ctx context.Context) error
	OnStart    func(ctx context.Context) error
	OnStop     func(ctx context.Context) error
	OnDetach   func(ctx context.Context) error
	AfterStart func(ctx context.Context)
	AfterStop  func(ctx context.Context)
}

// LifecycleFSM runs the fixed lifecycle state machine for one device. Events
// are dispatched in FIFO order through a single goroutine; concurrent
// Dispatch calls never race with hook execution or each other.
type LifecycleFSM struct {
	hooks LifecycleHooks
	log   func(msg string, kv ...any)

	mu    sync.Mutex
	state LifecycleState

	events chan dispatchedEvent
	done   chan struct{}

	listeners   []func(from, to LifecycleState)
	listenersMu sync.Mutex
}

type dispatchedEvent struct {
	event   LifecycleEvent
	failure error
}

// NewLifecycleFSM creates a lifecycle FSM starting in Detached and begins
// its event loop under ctx; cancelling ctx stops the loop.
func NewLifecycleFSM(ctx context.Context, hooks LifecycleHooks, log func(string, ...any)) *LifecycleFSM {
	if log == nil {
		log = func(string, ...any) {}
	}
	f := &LifecycleFSM{
		hooks:  hooks,
		log:    log,
		state:  StateDetached,
		events: make(chan dispatchedEvent, 32),
		done:   make(chan struct{}),
	}
	go f.loop(ctx)
	return f
}

// State returns the current lifecycle state.
func (f *LifecycleFSM) State() LifecycleState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnTransition registers a listener invoked after every accepted
// transition (not dropped events).
func (f *LifecycleFSM) OnTransition(listener func(from, to LifecycleState)) {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	f.listeners = append(f.listeners, listener)
}

// Dispatch enqueues an external event. A Fail event should carry the
// triggering failure.
func (f *LifecycleFSM) Dispatch(event LifecycleEvent, failure error) {
	select {
	case f.events <- dispatchedEvent{event: event, failure: failure}:
	case <-f.done:
	}
}

func (f *LifecycleFSM) loop(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case de := <-f.events:
			f.handle(ctx, de)
		}
	}
}

// handle applies one event, launching a hook on entry to a hook state and
// self-posting eventSuccess/EventFail on hook completion. A Fail event
// dispatched from within a hook always takes priority (it is simply the
// next event off the FIFO channel, already honoring that rule structurally
// since the hook posts it itself before any externally queued event can be
// processed).
func (f *LifecycleFSM) handle(ctx context.Context, de dispatchedEvent) {
	f.mu.Lock()
	from := f.state
	to, ok := lifecycleTransitions[from][de.event]
	if !ok {
		f.mu.Unlock()
		f.log("lifecycle_event_dropped", "from", from, "event", de.event)
		return
	}
	f.state = to
	f.mu.Unlock()

	f.log("lifecycle_transition", "from", from, "to", to, "event", de.event)
	f.notify(from, to)

	if de.event == eventSuccess {
		f.runAfterHook(ctx, from)
	}

	if !hookStates[to] {
		return
	}

	hook := f.hookFor(to)
	go func() {
		var err error
		if hook != nil {
			err = hook(ctx)
		}
		if to == StateDetaching {
			// Detach always proceeds to Detached after logging, even on error.
			if err != nil {
				f.log("detach_hook_error", "error", err)
			}
			f.Dispatch(eventSuccess, nil)
			return
		}
		if err != nil {
			f.Dispatch(EventFail, err)
			return
		}
		f.Dispatch(eventSuccess, nil)
	}()
}

func (f *LifecycleFSM) hookFor(state LifecycleState) func(context.Context) error {
	switch state {
	case StateAttaching:
		return f.hooks.OnAttach
	case StateStarting:
		return f.hooks.OnStart
	case StateStopping:
		return f.hooks.OnStop
	case StateDetaching:
		return f.hooks.OnDetach
	default:
		return nil
	}
}

func (f *LifecycleFSM) runAfterHook(ctx context.Context, enteredFrom LifecycleState) {
	switch enteredFrom {
	case StateStarting:
		if f.hooks.AfterStart != nil {
			f.hooks.AfterStart(ctx)
		}
	case StateStopping:
		if f.hooks.AfterStop != nil {
			f.hooks.AfterStop(ctx)
		}
	}
}

func (f *LifecycleFSM) notify(from, to LifecycleState) {
	f.listenersMu.Lock()
	listeners := append([]func(from, to LifecycleState){}, f.listeners...)
	f.listenersMu.Unlock()
	for _, l := range listeners {
		l(from, to)
	}
}

// ErrInvalidTransition names a lifecycle transition the table does not
// allow. No function in this package returns it: Dispatch drops and logs
// such events (spec.md §4.5), and IsValidLifecycleTransition reports a bool.
var ErrInvalidTransition = fmt.Errorf("fsm: invalid lifecycle transition")
