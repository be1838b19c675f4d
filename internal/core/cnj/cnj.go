// Package cnj handles the standardized judicial process number
// (sequence-check.year.segment.court.origin, 20 digits total) plus the
// deterministic text folding used for cache keys and classifier matching
package cnj

import (
	"fmt"
	"strings"

	perr "processo/internal/platform/errors"
)

// DigitCount is the fixed length of a full process number
const DigitCount = 20

// Number is the structural split of a process number
// All fields keep their zero padded string form so check digits survive
type Number struct {
	Sequence string // 7 digits
	Check    string // 2 digits
	Year     string // 4 digits
	Segment  string // 1 digit, justice segment
	Court    string // 2 digits, tribunal
	Origin   string // 4 digits, originating unit
}

// String renders the canonical formatted form NNNNNNN-DD.AAAA.J.TR.OOOO
func (n Number) String() string {
	return fmt.Sprintf("%s-%s.%s.%s.%s.%s", n.Sequence, n.Check, n.Year, n.Segment, n.Court, n.Origin)
}

// Digits strips every non digit character from s
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse accepts a formatted or digits-only process number and splits it.
// Shorter inputs are not padded; a wrong length is an invalid argument
func Parse(s string) (Number, error) {
	d := Digits(s)
	if len(d) != DigitCount {
		return Number{}, perr.InvalidArgf("process number must have %d digits, got %d (%q)", DigitCount, len(d), s)
	}
	n := Number{
		Sequence: d[0:7],
		Check:    d[7:9],
		Year:     d[9:13],
		Segment:  d[13:14],
		Court:    d[14:16],
		Origin:   d[16:20],
	}
	if n.Year < "1900" || n.Year > "2100" {
		return Number{}, perr.InvalidArgf("process number year %s out of range", n.Year)
	}
	return n, nil
}

// Format returns the canonical formatted form of any process number input
func Format(s string) (string, error) {
	n, err := Parse(s)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// Valid reports whether s carries a structurally valid process number
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
