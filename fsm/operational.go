package fsm

import (
	"context"
	"fmt"
	"sync"
)

// OperationalTransition is one edge of a user-defined operational FSM.
type OperationalTransition struct {
	From  string
	Event string
	To    string
}

// Operational is a generic, user-defined state machine over string states
// and events, dispatched through the same single-goroutine FIFO discipline
// as LifecycleFSM. Unlike the lifecycle FSM its transition table and event
// vocabulary are supplied entirely by a blueprint's behavior facet.
type Operational struct {
	table map[string]map[string]string
	log   func(msg string, kv ...any)

	mu    sync.Mutex
	state string

	events chan string
	done   chan struct{}

	listeners   []func(from, event, to string)
	listenersMu sync.Mutex
}

// NewOperational builds an operational FSM from a transition list, starting
// in initialState, and begins its event loop under ctx.
func NewOperational(ctx context.Context, transitions []OperationalTransition, initialState string, log func(string, ...any)) *Operational {
	if log == nil {
		log = func(string, ...any) {}
	}
	table := make(map[string]map[string]string)
	for _, t := range transitions {
		if table[t.From] == nil {
			table[t.From] = make(map[string]string)
		}
		table[t.From][t.Event] = t.To
	}
	o := &Operational{
		table:  table,
		log:    log,
		state:  initialState,
		events: make(chan string, 64),
		done:   make(chan struct{}),
	}
	go o.loop(ctx)
	return o
}

// State returns the current operational state.
func (o *Operational) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnTransition registers a listener invoked after every accepted
// transition.
func (o *Operational) OnTransition(listener func(from, event, to string)) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

// Post enqueues an event by name, resolved against the transition table.
// Events are dispatched in FIFO order; an event with no matching
// transition from the current state is dropped (and logged), not an error.
func (o *Operational) Post(event string) {
	select {
	case o.events <- event:
	case <-o.done:
	}
}

func (o *Operational) loop(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-o.events:
			o.handle(event)
		}
	}
}

func (o *Operational) handle(event string) {
	o.mu.Lock()
	from := o.state
	to, ok := o.table[from][event]
	if !ok {
		o.mu.Unlock()
		o.log("operational_event_dropped", "from", from, "event", event)
		return
	}
	o.state = to
	o.mu.Unlock()

	o.log("operational_transition", "from", from, "to", to, "event", event)
	o.listenersMu.Lock()
	listeners := append([]func(from, event, to string){}, o.listeners...)
	o.listenersMu.Unlock()
	for _, l := range listeners {
		l(from, event, to)
	}
}

// ErrUnknownState is returned by validation helpers that check a
// transition table references only declared states.
var ErrUnknownState = fmt.Errorf("fsm: transition references an undeclared state")

// ValidateTransitions checks that every From/To in transitions is a member
// of states. No other package in this module calls it; the validate
// package's blueprint checks do not cover operational transitions.
func ValidateTransitions(states []string, transitions []OperationalTransition) error {
	known := make(map[string]bool, len(states))
	for _, s := range states {
		known[s] = true
	}
	for _, t := range transitions {
		if !known[t.From] {
			return fmt.Errorf("%w: %q", ErrUnknownState, t.From)
		}
		if !known[t.To] {
			return fmt.Errorf("%w: %q", ErrUnknownState, t.To)
		}
	}
	return nil
}
