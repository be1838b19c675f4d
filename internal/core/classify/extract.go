package classify

import (
	"fmt"
	"regexp"
	"strconv"
)

// amountExpr matches monetary values with the currency prefix and
// thousands/decimal separators, eg "R$ 1.234.567,89" or "R$1500,00"
var amountExpr = regexp.MustCompile(`R\$\s?\d{1,3}(?:\.\d{3})*(?:,\d{2})?`)

// dateExpr matches day/month/year with /, . or - separators and 1-2 digit
// day and month, eg "5/3/2024", "05.03.24", "05-03-2024"
var dateExpr = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)

// ExtractAmounts returns every monetary substring in text, preserving the
// original formatting, in left-to-right order of appearance
func ExtractAmounts(text string) []string {
	return amountExpr.FindAllString(text, -1)
}

// ExtractDates returns every date substring in text normalized to
// DD/MM/YYYY, in order of appearance. Two digit years expand on a 50-year
// pivot: <50 becomes 20xx, >=50 becomes 19xx. Day/month values outside
// their calendar range are skipped
func ExtractDates(text string) []string {
	ms := dateExpr.FindAllStringSubmatch(text, -1)
	if len(ms) == 0 {
		return nil
	}
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			continue
		}
		if len(m[3]) == 2 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		} else if len(m[3]) == 3 {
			continue
		}
		out = append(out, fmt.Sprintf("%02d/%02d/%04d", day, month, year))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
