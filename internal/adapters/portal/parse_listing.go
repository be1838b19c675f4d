package portal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"processo/internal/core/cnj"
)

// countExpr matches the listing's result-count phrase, eg
// "Resultados 1 a 25 de 132"
var countExpr = regexp.MustCompile(`de\s+(\d+)\s*$`)

// parseResultCount estimates the total result count from the first listing
// page's count phrase. ok=false when the phrase is absent or unparseable
func parseResultCount(html string) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, false
	}
	phrase := strings.TrimSpace(doc.Find("#contadorDeProcessos").First().Text())
	m := countExpr.FindStringSubmatch(phrase)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseListing pulls the process numbers off one listing page, dropping
// anything that is not a structurally valid number
func parseListing(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	doc.Find("#listagemDeProcessos a.linkProcesso").Each(func(_ int, a *goquery.Selection) {
		d := cnj.Digits(a.Text())
		if len(d) != cnj.DigitCount {
			return
		}
		if _, dup := seen[d]; dup {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	})
	return out
}

// hasNextPage reports whether the listing carries a next-page control
func hasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selNextPage).Length() > 0
}
