package cnj

import "testing"

func TestParse_FormattedAndDigits(t *testing.T) {
	const formatted = "1234567-89.2024.8.26.0100"
	const digits = "12345678920248260100"

	a, err := Parse(formatted)
	if err != nil {
		t.Fatalf("parse formatted: %v", err)
	}
	b, err := Parse(digits)
	if err != nil {
		t.Fatalf("parse digits: %v", err)
	}
	if a != b {
		t.Fatalf("formatted and digit forms split differently: %+v vs %+v", a, b)
	}
	if a.Sequence != "1234567" || a.Check != "89" || a.Year != "2024" || a.Segment != "8" || a.Court != "26" || a.Origin != "0100" {
		t.Fatalf("bad split: %+v", a)
	}
	if a.String() != formatted {
		t.Fatalf("String() = %q, want %q", a.String(), formatted)
	}
}

func TestParse_RejectsBadInput(t *testing.T) {
	for _, s := range []string{
		"",
		"123",
		"123456789202482601001",     // 21 digits
		"1234567-89.0024.8.26.0100", // year out of range
	} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) accepted bad input", s)
		}
	}
}

func TestDigits_StripsEverythingButNumbers(t *testing.T) {
	if got := Digits(" 1234567-89.2024.8.26.0100 "); got != "12345678920248260100" {
		t.Fatalf("Digits = %q", got)
	}
	if got := Digits("abc"); got != "" {
		t.Fatalf("Digits = %q, want empty", got)
	}
}

func TestFormat_Roundtrip(t *testing.T) {
	got, err := Format("12345678920248260100")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if got != "1234567-89.2024.8.26.0100" {
		t.Fatalf("Format = %q", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid("1234567-89.2024.8.26.0100") {
		t.Fatalf("expected valid")
	}
	if Valid("not a number") {
		t.Fatalf("expected invalid")
	}
}

func TestFold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"José  da SILVA", "jose da silva"},
		{"PENHORA realizada", "penhora realizada"},
		{"Restrição\tVeicular\n", "restricao veicular"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Fold(tc.in); got != tc.want {
			t.Fatalf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFold_StableAcrossCalls(t *testing.T) {
	const in = "Ação de Execução de Título Extrajudicial"
	first := Fold(in)
	for range 10 {
		if got := Fold(in); got != first {
			t.Fatalf("fold drifted: %q vs %q", got, first)
		}
	}
}
