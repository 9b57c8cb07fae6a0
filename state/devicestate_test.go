package state

import (
	"testing"
	"time"
)

func drain[T any](t *testing.T, ch <-chan StateValue[T]) StateValue[T] {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
		return StateValue[T]{}
	}
}

func TestRawUpdateAndSubscribe(t *testing.T) {
	raw := NewRaw(Some(10))
	ch, unsub := raw.Subscribe()
	defer unsub()

	raw.Update(Some(20))
	v := drain(t, ch)
	if v.Value == nil || *v.Value != 20 {
		t.Fatalf("expected 20, got %+v", v)
	}
	if cur := raw.Current(); cur.Value == nil || *cur.Value != 20 {
		t.Fatalf("Current() did not reflect update: %+v", cur)
	}
}

func TestLatestWinsBackpressure(t *testing.T) {
	raw := NewRaw(Some(0))
	ch, unsub := raw.Subscribe()
	defer unsub()

	raw.Update(Some(1))
	raw.Update(Some(2))
	raw.Update(Some(3))

	v := drain(t, ch)
	if v.Value == nil || *v.Value != 3 {
		t.Fatalf("expected latest value 3 under backpressure, got %+v", v)
	}
}

func TestMapDerivesAndStaysDormantUntilSubscribed(t *testing.T) {
	raw := NewRaw(Some(2))
	doubled := Map(raw, func(i int) int { return i * 2 })

	raw.Update(Some(5))

	ch, unsub := doubled.Subscribe()
	defer unsub()
	if cur := doubled.Current(); cur.Value == nil || *cur.Value != 10 {
		t.Fatalf("expected derived current 10 on first subscribe, got %+v", cur)
	}

	raw.Update(Some(7))
	v := drain(t, ch)
	if v.Value == nil || *v.Value != 14 {
		t.Fatalf("expected 14, got %+v", v)
	}
}

func TestCombine2MaxTimestampWorstQuality(t *testing.T) {
	a := NewRaw(StateValue[int]{Value: ptr(1), Timestamp: time.Unix(100, 0), Quality: QualityOK})
	b := NewRaw(StateValue[int]{Value: ptr(2), Timestamp: time.Unix(200, 0), Quality: QualityStale})

	sum := Combine2(a, b, func(x, y int) int { return x + y })
	ch, unsub := sum.Subscribe()
	defer unsub()

	cur := sum.Current()
	if cur.Value == nil || *cur.Value != 3 {
		t.Fatalf("expected 3, got %+v", cur)
	}
	if !cur.Timestamp.Equal(time.Unix(200, 0)) {
		t.Fatalf("expected max timestamp 200, got %v", cur.Timestamp)
	}
	if cur.Quality != QualityStale {
		t.Fatalf("expected worst quality STALE, got %v", cur.Quality)
	}

	a.Update(StateValue[int]{Value: ptr(10), Timestamp: time.Unix(300, 0), Quality: QualityError})
	v := drain(t, ch)
	if v.Value == nil || *v.Value != 12 {
		t.Fatalf("expected 12, got %+v", v)
	}
	if v.Quality != QualityError {
		t.Fatalf("expected worst quality ERROR, got %v", v.Quality)
	}
}

func TestReduceOverHomogeneousList(t *testing.T) {
	states := []DeviceState[int]{NewRaw(Some(1)), NewRaw(Some(2)), NewRaw(Some(3))}
	total := Reduce(states, func(vals []int) int {
		sum := 0
		for _, v := range vals {
			sum += v
		}
		return sum
	})
	ch, unsub := total.Subscribe()
	defer unsub()
	if cur := total.Current(); cur.Value == nil || *cur.Value != 6 {
		t.Fatalf("expected 6, got %+v", cur)
	}

	states[1].(MutableDeviceState[int]).Update(Some(20))
	v := drain(t, ch)
	if v.Value == nil || *v.Value != 24 {
		t.Fatalf("expected 24, got %+v", v)
	}
}

func TestLateBoundRebindOnce(t *testing.T) {
	lb := NewLateBound(None[int](QualityStale))
	if lb.Bound() {
		t.Fatal("expected not yet bound")
	}

	source := NewRaw(Some(5))
	if err := lb.Rebind(source); err != nil {
		t.Fatalf("first Rebind should succeed: %v", err)
	}
	if !lb.Bound() {
		t.Fatal("expected bound after Rebind")
	}
	if cur := lb.Current(); cur.Value == nil || *cur.Value != 5 {
		t.Fatalf("expected value forwarded from source, got %+v", cur)
	}

	if err := lb.Rebind(NewRaw(Some(99))); err != ErrAlreadyBound {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
