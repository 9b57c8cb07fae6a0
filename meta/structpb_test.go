package meta

import "testing"

func TestTreeStructRoundTrip(t *testing.T) {
	root := NewTree()
	root.Put(MustParseName("position"), Double(0.5))
	root.Put(MustParseName("counter"), Long(42))
	root.Put(MustParseName("index"), Int(7))
	root.Put(MustParseName("mode"), Enum("RUNNING"))
	root.Put(MustParseName("axis[0].label"), String("x"))
	root.Put(MustParseName("axis[1].label"), String("y"))
	root.Put(MustParseName("tags"), List(String("a"), String("b")))

	s, err := root.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	back, err := FromStruct(s)
	if err != nil {
		t.Fatalf("FromStruct: %v", err)
	}

	for _, path := range []string{"position", "counter", "index", "mode", "axis[0].label", "axis[1].label", "tags"} {
		orig, ok := root.Get(MustParseName(path))
		if !ok {
			t.Fatalf("missing original path %q", path)
		}
		got, ok := back.Get(MustParseName(path))
		if !ok {
			t.Fatalf("missing round-tripped path %q", path)
		}
		if !orig.Value().Equal(*got.Value()) {
			t.Errorf("path %q: %v != %v", path, orig.Value(), got.Value())
		}
	}
}
