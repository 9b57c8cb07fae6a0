package meta

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	a := NewAddress(NameOf("cluster", "hub1"), NameOf("motor", "axis"))
	s := a.String()
	a2, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	if !a.Equal(a2) {
		t.Fatalf("round trip mismatch: %v != %v", a, a2)
	}
}

func TestParseAddressMalformed(t *testing.T) {
	cases := []string{"nocolon", "a::b::c", "::"}
	for _, c := range cases {
		if _, err := ParseAddress(c); c != "::" && err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
	if _, err := ParseAddress("a::b::c"); err == nil {
		t.Errorf("expected error for duplicated separator")
	}
}
