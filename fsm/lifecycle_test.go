package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitForState(t *testing.T, f *LifecycleFSM, want LifecycleState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last seen %s", want, f.State())
}

func TestLifecycleHappyPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewLifecycleFSM(ctx, LifecycleHooks{
		OnAttach: func(ctx context.Context) error { return nil },
		OnStart:  func(ctx context.Context) error { return nil },
		OnStop:   func(ctx context.Context) error { return nil },
		OnDetach: func(ctx context.Context) error { return nil },
	}, nil)

	if f.State() != StateDetached {
		t.Fatalf("expected initial state Detached, got %s", f.State())
	}

	f.Dispatch(EventAttach, nil)
	waitForState(t, f, StateStopped)

	f.Dispatch(EventStart, nil)
	waitForState(t, f, StateRunning)

	f.Dispatch(EventStop, nil)
	waitForState(t, f, StateStopped)

	f.Dispatch(EventDetach, nil)
	waitForState(t, f, StateDetached)
}

func TestLifecycleHookFailureGoesToFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewLifecycleFSM(ctx, LifecycleHooks{
		OnAttach: func(ctx context.Context) error { return errors.New("boom") },
	}, nil)

	f.Dispatch(EventAttach, nil)
	waitForState(t, f, StateFailed)

	f.Dispatch(EventReset, nil)
	waitForState(t, f, StateStopped)
}

func TestLifecycleInvalidTransitionDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewLifecycleFSM(ctx, LifecycleHooks{}, nil)

	// Start is not valid from Detached; should be dropped, state unchanged.
	f.Dispatch(EventStart, nil)
	time.Sleep(50 * time.Millisecond)
	if f.State() != StateDetached {
		t.Fatalf("expected state to remain Detached, got %s", f.State())
	}
}

func TestLifecycleAfterHooksFireOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	afterStartCount := 0
	afterStopCount := 0

	f := NewLifecycleFSM(ctx, LifecycleHooks{
		OnAttach: func(ctx context.Context) error { return nil },
		OnStart:  func(ctx context.Context) error { return nil },
		OnStop:   func(ctx context.Context) error { return nil },
		AfterStart: func(ctx context.Context) {
			mu.Lock()
			afterStartCount++
			mu.Unlock()
		},
		AfterStop: func(ctx context.Context) {
			mu.Lock()
			afterStopCount++
			mu.Unlock()
		},
	}, nil)

	f.Dispatch(EventAttach, nil)
	waitForState(t, f, StateStopped)
	f.Dispatch(EventStart, nil)
	waitForState(t, f, StateRunning)
	f.Dispatch(EventStop, nil)
	waitForState(t, f, StateStopped)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if afterStartCount != 1 {
		t.Fatalf("expected afterStart to fire once, got %d", afterStartCount)
	}
	if afterStopCount != 1 {
		t.Fatalf("expected afterStop to fire once, got %d", afterStopCount)
	}
}

func TestLifecycleDetachAlwaysProceedsDespiteHookError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewLifecycleFSM(ctx, LifecycleHooks{
		OnAttach: func(ctx context.Context) error { return nil },
		OnDetach: func(ctx context.Context) error { return errors.New("detach hook failed") },
	}, nil)

	f.Dispatch(EventAttach, nil)
	waitForState(t, f, StateStopped)
	f.Dispatch(EventDetach, nil)
	waitForState(t, f, StateDetached)
}
