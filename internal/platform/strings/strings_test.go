package strings

import "testing"

func TestIfEmpty(t *testing.T) {
	t.Parallel()

	// non-empty slice should be returned as-is
	in := []int{1, 2, 3}
	def := []int{9}
	got := IfEmpty(in, def)
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("IfEmpty returned wrong slice: %#v", got)
	}

	// empty slice should fall back to default
	var empty []string
	def2 := []string{"x"}
	got2 := IfEmpty(empty, def2)
	if len(got2) != 1 || got2[0] != "x" {
		t.Fatalf("IfEmpty did not return default: %#v", got2)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []string
		want string
	}{
		{name: "first wins", in: []string{"a", "b"}, want: "a"},
		{name: "skips blanks", in: []string{"", "   ", "b"}, want: "b"},
		{name: "all blank", in: []string{"", "  "}, want: ""},
		{name: "no args", in: nil, want: ""},
	}

	for _, c := range cases {
		if got := FirstNonEmpty(c.in...); got != c.want {
			t.Errorf("%s: FirstNonEmpty(%v) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestMustString(t *testing.T) {
	if got := MustString("ok", "name"); got != "ok" {
		t.Fatalf("want ok got %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("want panic for empty name")
		}
	}()
	_ = MustString("   ", "name")
}

func TestEmptyToNil(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"value", "value"},
		{"  padded  ", "  padded  "}, // non-blank content kept verbatim
		{"   ", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := EmptyToNil(c.in); got != c.want {
			t.Errorf("EmptyToNil(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPtr(t *testing.T) {
	t.Parallel()

	if p := Ptr(""); p != nil {
		t.Fatalf("Ptr(\"\") = %v, want nil", p)
	}
	p := Ptr("x")
	if p == nil || *p != "x" {
		t.Fatalf("Ptr(\"x\") = %v", p)
	}
}

func TestCollapseSpaces(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"  Juntada   de  peticao ", "Juntada de peticao"},
		{"one\ttwo\n\nthree", "one two three"},
		{"single", "single"},
		{"   ", ""},
	}

	for _, c := range cases {
		if got := CollapseSpaces(c.in); got != c.want {
			t.Errorf("CollapseSpaces(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
