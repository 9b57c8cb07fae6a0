package meta

import "testing"

func TestTreePutGet(t *testing.T) {
	root := NewTree()
	root.Put(MustParseName("motor.axis[0].position"), Double(0.5))

	got, ok := root.Get(MustParseName("motor.axis[0].position"))
	if !ok {
		t.Fatalf("expected node at path")
	}
	d, ok := got.Value().AsDouble()
	if !ok || d != 0.5 {
		t.Fatalf("expected 0.5, got %v ok=%v", d, ok)
	}
}

func TestTreeSealPreventsMutation(t *testing.T) {
	root := NewTree()
	root.Put(MustParseName("a"), Int(1))
	root.Seal()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic writing to sealed tree")
		}
	}()
	root.Put(MustParseName("b"), Int(2))
}

func TestTreeCloneIsMutable(t *testing.T) {
	root := NewTree()
	root.Put(MustParseName("a"), Int(1))
	root.Seal()

	clone := root.Clone()
	clone.Put(MustParseName("b"), Int(2))

	if _, ok := root.Get(MustParseName("b")); ok {
		t.Fatalf("mutation leaked into sealed original")
	}
	if _, ok := clone.Get(MustParseName("b")); !ok {
		t.Fatalf("expected clone to contain new path")
	}
}

func TestMergeOverwritesScalars(t *testing.T) {
	base := NewTree()
	base.Put(MustParseName("x"), Int(1))
	base.Put(MustParseName("y"), Int(2))

	overlay := NewTree()
	overlay.Put(MustParseName("y"), Int(20))
	overlay.Put(MustParseName("z"), Int(3))

	merged := Merge(base, overlay)

	for path, want := range map[string]int32{"x": 1, "y": 20, "z": 3} {
		n, ok := merged.Get(MustParseName(path))
		if !ok {
			t.Fatalf("missing path %q after merge", path)
		}
		got, _ := n.Value().AsInt()
		if got != want {
			t.Errorf("path %q = %d, want %d", path, got, want)
		}
	}
}

func TestTreeEqualAfterClone(t *testing.T) {
	a := NewTree()
	a.Put(MustParseName("x"), String("hello"))
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatalf("clone should be equal to original")
	}
}
