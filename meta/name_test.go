package meta

import "testing"

func TestParseNameRoundTrip(t *testing.T) {
	cases := []string{
		"motor",
		"motor.axis",
		"motor.axis[0]",
		"motor.axis[0].position",
		`a\.b.c`,
	}
	for _, c := range cases {
		n, err := ParseName(c)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", c, err)
		}
		n2, err := ParseName(n.String())
		if err != nil {
			t.Fatalf("ParseName(String()) for %q: %v", c, err)
		}
		if !n.Equal(n2) {
			t.Fatalf("round trip mismatch for %q: %v != %v", c, n, n2)
		}
	}
}

func TestNameMatchWildcards(t *testing.T) {
	cases := []struct {
		name, pattern string
		want          bool
	}{
		{"a.b.c", "a.b.c", true},
		{"a.b.c", "a.*.c", true},
		{"a.b.d", "a.*.c", false},
		{"a", "a.**", true},
		{"a.b.c", "a.**", true},
		{"a.b.c", "**", true},
		{"", "**", true},
		{"a.b", "a.b.c", false},
		{"a.b.c.d", "a.b.**", true},
	}
	for _, c := range cases {
		n, err := ParseName(c.name)
		if err != nil && c.name != "" {
			t.Fatalf("ParseName(%q): %v", c.name, err)
		}
		p, err := ParseName(c.pattern)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", c.pattern, err)
		}
		if got := n.Match(p); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.name, c.pattern, got, c.want)
		}
	}
}

func TestNameIndexedTokens(t *testing.T) {
	n := MustParseName("motor.axis[2].position")
	toks := n.Tokens()
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(toks))
	}
	if !toks[1].HasIndex || toks[1].Index != 2 || toks[1].Body != "axis" {
		t.Fatalf("unexpected token: %+v", toks[1])
	}
}
