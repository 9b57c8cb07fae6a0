package meta

import "testing"

func TestValueEqual(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{Int(1), Int(1), true},
		{Int(1), Int(2), false},
		{Int(1), Long(1), false},
		{String("a"), Enum("a"), false},
		{List(Int(1), String("x")), List(Int(1), String("x")), true},
		{List(Int(1)), List(Int(1), Int(2)), false},
		{Null(), Null(), true},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
