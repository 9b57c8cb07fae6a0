package state

import (
	"testing"

	"github.com/halcyon-automation/meridian/convert"
)

func TestStatefulSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStateful("setpoint", int32(70), convert.Int32Converter)

	dirtyCount := 0
	s.SetDirtyHook(func() { dirtyCount++ })

	s.Update(Some(int32(72)))
	if dirtyCount != 1 {
		t.Fatalf("expected dirty hook fired once, got %d", dirtyCount)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewStateful("setpoint", int32(0), convert.Int32Converter)
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if cur := restored.Current(); cur.Value == nil || *cur.Value != 72 {
		t.Fatalf("expected restored value 72, got %+v", cur)
	}
	if s.Name() != "setpoint" {
		t.Fatalf("expected name setpoint, got %q", s.Name())
	}
}
