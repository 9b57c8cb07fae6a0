package fsm

import (
	"time"

	"github.com/halcyon-automation/meridian/state"
)

// Guard observes a reactive state and posts an event into an Operational
// FSM when its condition is met. Stop cancels the observation
// deterministically; callers must invoke it when leaving the state the
// guard is scoped to, mirroring the teacher's StartCleanupLoop stop-closure
// pattern in coreengine/kernel/cleanup.go.
type Guard interface {
	Start() (stop func())
}

// TimedPredicateGuard fires postEvent into fsm once predicate has been
// continuously true for duration while the operational FSM is in one of
// fromStates (or anywhere, if fromStates is empty).
type TimedPredicateGuard struct {
	Predicate  state.DeviceState[bool]
	Duration   time.Duration
	PostEvent  string
	FromStates []string
	FSM        *Operational
}

// Start begins observing the predicate and returns a stop function.
func (g TimedPredicateGuard) Start() func() {
	ch, unsub := g.Predicate.Subscribe()
	done := make(chan struct{})

	var timer *time.Timer
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	inScope := func() bool {
		if len(g.FromStates) == 0 {
			return true
		}
		cur := g.FSM.State()
		for _, s := range g.FromStates {
			if s == cur {
				return true
			}
		}
		return false
	}

	evaluate := func(v bool) {
		stopTimer()
		if !v || !inScope() {
			return
		}
		timer = time.AfterFunc(g.Duration, func() {
			g.FSM.Post(g.PostEvent)
		})
	}

	if cur := g.Predicate.Current(); cur.Value != nil {
		evaluate(*cur.Value)
	}

	go func() {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					return
				}
				if v.Value != nil {
					evaluate(*v.Value)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		unsub()
		stopTimer()
	}
}

// ValueChangeGuard observes the last window values of a property and fires
// postEvent into fsm when predicate holds over that window.
type ValueChangeGuard[T any] struct {
	Property  state.DeviceState[T]
	Window    int
	Predicate func(window []T) bool
	PostEvent string
	FSM       *Operational
}

// Start begins observing the property and returns a stop function.
func (g ValueChangeGuard[T]) Start() func() {
	ch, unsub := g.Property.Subscribe()
	done := make(chan struct{})
	history := make([]T, 0, g.Window)

	push := func(v T) {
		history = append(history, v)
		if len(history) > g.Window {
			history = history[len(history)-g.Window:]
		}
		if g.Predicate(history) {
			g.FSM.Post(g.PostEvent)
		}
	}

	if cur := g.Property.Current(); cur.Value != nil {
		push(*cur.Value)
	}

	go func() {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					return
				}
				if v.Value != nil {
					push(*v.Value)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		unsub()
	}
}
