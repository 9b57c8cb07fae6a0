package state

import (
	"sync"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/meta"
)

// PersistenceElement is the narrow surface a stateful cell exposes to the
// persistence package for snapshot/restore, kept here (rather than
// depending on persistence from state) to avoid an import cycle.
type PersistenceElement interface {
	Name() string
	Snapshot() (meta.Value, error)
	Restore(meta.Value) error
}

// StatefulState is a mutable cell whose value survives device restarts: it
// converts to/from meta.Value for snapshotting and calls an injectable
// dirty hook on every Update so a device runtime can schedule a flush.
type StatefulState[T any] struct {
	*cell[T]
	name string
	conv convert.Converter[T]

	mu    sync.Mutex
	dirty func()
}

// NewStateful creates a stateful cell under the given logical name,
// converting through conv for persistence.
func NewStateful[T any](name string, initial T, conv convert.Converter[T]) *StatefulState[T] {
	return &StatefulState[T]{
		cell: &cell[T]{current: Some(initial)},
		name: name,
		conv: conv,
	}
}

// SetDirtyHook installs the callback invoked after every Update. Intended to
// be wired once, at device construction time, by the owning runtime.
func (s *StatefulState[T]) SetDirtyHook(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = hook
}

// Update overrides cell.Update to additionally fire the dirty hook.
func (s *StatefulState[T]) Update(v StateValue[T]) {
	s.cell.Update(v)
	s.mu.Lock()
	hook := s.dirty
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Name identifies this element within a device's persistence manifest.
func (s *StatefulState[T]) Name() string { return s.name }

// Snapshot converts the current value to meta.Value for storage.
func (s *StatefulState[T]) Snapshot() (meta.Value, error) {
	cur := s.Current()
	if cur.Value == nil {
		return meta.Null(), nil
	}
	return s.conv.Convert(*cur.Value), nil
}

// Restore loads a previously snapshotted value, bypassing the dirty hook
// since this represents an external write, not a runtime-driven change.
func (s *StatefulState[T]) Restore(v meta.Value) error {
	val, err := s.conv.ReadValue(v)
	if err != nil {
		return err
	}
	s.cell.Update(Some(val))
	return nil
}
