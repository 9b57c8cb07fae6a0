package state

import (
	"sync"
	"time"
)

// Map derives a new DeviceState by applying f to every value of src. The
// derived cell stays dormant (no subscription to src) until something
// subscribes to it, per spec.md §4.3's "pure, side-effect free until
// observed" requirement for derived nodes.
func Map[T, R any](src DeviceState[T], f func(T) R) DeviceState[R] {
	out := &cell[R]{}
	out.start = func() {
		upstream, _ := src.Subscribe()
		out.Update(deriveOne(src.Current(), f, out.Current()))
		go func() {
			for v := range upstream {
				out.Update(deriveOne(v, f, out.Current()))
			}
		}()
	}
	return out
}

// deriveOne applies f, catching a panic inside f and translating it to an
// ERROR-quality result that keeps the prior value, per spec.md §4.3's
// "an exception inside f yields quality ERROR, keeps the last-known value"
// rule. last is the derived cell's current value, used as the fallback.
func deriveOne[T, R any](in StateValue[T], f func(T) R, last StateValue[R]) (out StateValue[R]) {
	if in.Value == nil {
		return StateValue[R]{Value: last.Value, Timestamp: in.Timestamp, Quality: in.Quality}
	}
	defer func() {
		if r := recover(); r != nil {
			out = StateValue[R]{Value: last.Value, Timestamp: in.Timestamp, Quality: QualityError}
		}
	}()
	r := f(*in.Value)
	return StateValue[R]{Value: &r, Timestamp: in.Timestamp, Quality: in.Quality}
}

// combineLatest tracks the most recent value seen from each of n upstream
// states and invokes compute whenever any of them changes, once all n have
// produced at least one value. The resulting timestamp is the max of the
// inputs' timestamps and the quality is the worst of the inputs' qualities,
// per spec.md §4.3/§8 invariant 3.
func combineLatest[R any](n int, subscribe func(i int) (StateValue[any], <-chan StateValue[any]), compute func(vals []any) R) DeviceState[R] {
	out := &cell[R]{}
	out.start = func() {
		vals := make([]any, n)
		ts := make([]timeQuality, n)
		have := make([]bool, n)
		chans := make([]<-chan StateValue[any], n)

		var mu chanMutex
		emit := func() {
			for _, ok := range have {
				if !ok {
					return
				}
			}
			sv := computeSafe(vals, compute, out.Current())
			for _, tq := range ts {
				if tq.ts.After(sv.Timestamp) {
					sv.Timestamp = tq.ts
				}
				sv.Quality = WorstQuality(sv.Quality, tq.q)
			}
			out.Update(sv)
		}

		for i := 0; i < n; i++ {
			i := i
			cur, ch := subscribe(i)
			chans[i] = ch
			mu.apply(func() {
				have[i] = cur.Value != nil
				if cur.Value != nil {
					vals[i] = *cur.Value
				}
				ts[i] = timeQuality{cur.Timestamp, cur.Quality}
			})
		}
		emit()

		for i := 0; i < n; i++ {
			i := i
			go func() {
				for v := range chans[i] {
					mu.apply(func() {
						if v.Value != nil {
							vals[i] = *v.Value
							have[i] = true
						}
						ts[i] = timeQuality{v.Timestamp, v.Quality}
					})
					emit()
				}
			}()
		}
	}
	return out
}

// computeSafe invokes compute, catching a panic and falling back to the
// prior value with ERROR quality, mirroring deriveOne's rule for combine.
func computeSafe[R any](vals []any, compute func([]any) R, last StateValue[R]) (out StateValue[R]) {
	defer func() {
		if r := recover(); r != nil {
			out = StateValue[R]{Value: last.Value, Quality: QualityError}
		}
	}()
	r := compute(vals)
	return StateValue[R]{Value: &r}
}

type timeQuality struct {
	ts time.Time
	q  Quality
}

// chanMutex serializes the read-modify-write of combineLatest's shared
// slices across the N upstream goroutines.
type chanMutex struct{ mu sync.Mutex }

func (m *chanMutex) apply(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f()
}

func anySub[T any](s DeviceState[T]) (StateValue[any], <-chan StateValue[any]) {
	ch, _ := s.Subscribe()
	out := make(chan StateValue[any], 1)
	go func() {
		for v := range ch {
			out <- toAny(v)
		}
		close(out)
	}()
	return toAny(s.Current()), out
}

func toAny[T any](v StateValue[T]) StateValue[any] {
	sv := StateValue[any]{Timestamp: v.Timestamp, Quality: v.Quality}
	if v.Value != nil {
		a := any(*v.Value)
		sv.Value = &a
	}
	return sv
}

// Combine2 joins two heterogeneous states with f.
func Combine2[A, B, R any](a DeviceState[A], b DeviceState[B], f func(A, B) R) DeviceState[R] {
	return combineLatest(2, func(i int) (StateValue[any], <-chan StateValue[any]) {
		if i == 0 {
			return anySub(a)
		}
		return anySub(b)
	}, func(vals []any) R {
		var av A
		var bv B
		if vals[0] != nil {
			av = vals[0].(A)
		}
		if vals[1] != nil {
			bv = vals[1].(B)
		}
		return f(av, bv)
	})
}

// Combine3 joins three heterogeneous states with f.
func Combine3[A, B, C, R any](a DeviceState[A], b DeviceState[B], c DeviceState[C], f func(A, B, C) R) DeviceState[R] {
	return combineLatest(3, func(i int) (StateValue[any], <-chan StateValue[any]) {
		switch i {
		case 0:
			return anySub(a)
		case 1:
			return anySub(b)
		default:
			return anySub(c)
		}
	}, func(vals []any) R {
		var av A
		var bv B
		var cv C
		if vals[0] != nil {
			av = vals[0].(A)
		}
		if vals[1] != nil {
			bv = vals[1].(B)
		}
		if vals[2] != nil {
			cv = vals[2].(C)
		}
		return f(av, bv, cv)
	})
}

// Combine4 joins four heterogeneous states with f.
func Combine4[A, B, C, D, R any](a DeviceState[A], b DeviceState[B], c DeviceState[C], d DeviceState[D], f func(A, B, C, D) R) DeviceState[R] {
	return combineLatest(4, func(i int) (StateValue[any], <-chan StateValue[any]) {
		switch i {
		case 0:
			return anySub(a)
		case 1:
			return anySub(b)
		case 2:
			return anySub(c)
		default:
			return anySub(d)
		}
	}, func(vals []any) R {
		var av A
		var bv B
		var cv C
		var dv D
		if vals[0] != nil {
			av = vals[0].(A)
		}
		if vals[1] != nil {
			bv = vals[1].(B)
		}
		if vals[2] != nil {
			cv = vals[2].(C)
		}
		if vals[3] != nil {
			dv = vals[3].(D)
		}
		return f(av, bv, cv, dv)
	})
}

// Combine5 joins five heterogeneous states with f.
func Combine5[A, B, C, D, E, R any](a DeviceState[A], b DeviceState[B], c DeviceState[C], d DeviceState[D], e DeviceState[E], f func(A, B, C, D, E) R) DeviceState[R] {
	return combineLatest(5, func(i int) (StateValue[any], <-chan StateValue[any]) {
		switch i {
		case 0:
			return anySub(a)
		case 1:
			return anySub(b)
		case 2:
			return anySub(c)
		case 3:
			return anySub(d)
		default:
			return anySub(e)
		}
	}, func(vals []any) R {
		var av A
		var bv B
		var cv C
		var dv D
		var ev E
		if vals[0] != nil {
			av = vals[0].(A)
		}
		if vals[1] != nil {
			bv = vals[1].(B)
		}
		if vals[2] != nil {
			cv = vals[2].(C)
		}
		if vals[3] != nil {
			dv = vals[3].(D)
		}
		if vals[4] != nil {
			ev = vals[4].(E)
		}
		return f(av, bv, cv, dv, ev)
	})
}

// Reduce combines a homogeneous list of states into one, applying f to the
// slice of current values whenever any member changes.
func Reduce[T, R any](inputs []DeviceState[T], f func([]T) R) DeviceState[R] {
	n := len(inputs)
	return combineLatest(n, func(i int) (StateValue[any], <-chan StateValue[any]) {
		return anySub(inputs[i])
	}, func(vals []any) R {
		ts := make([]T, n)
		for i, v := range vals {
			if v != nil {
				ts[i] = v.(T)
			}
		}
		return f(ts)
	})
}
