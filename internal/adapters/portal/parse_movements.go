package portal

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	pstrings "processo/internal/platform/strings"
)

// rawMovement is one extracted movement row before classification
type rawMovement struct {
	Order     int
	Date      time.Time
	ShortText string
	FullText  string
	// ExpandSel addresses the row's "show full text" control when present
	ExpandSel string
}

// hasExpandControl reports whether the page carries the load-all control
// for the complete movement table
func hasExpandControl(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selExpandAll).Length() > 0
}

// parseMovements extracts movement rows, preferring the complete table over
// the latest-N one, renumbered chronologically with a 1-based sequence
func parseMovements(html string) []rawMovement {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	table := doc.Find("#tabelaTodasMovimentacoes")
	if table.Length() == 0 || table.Find("tr.containerMovimentacao").Length() == 0 {
		table = doc.Find("#tabelaUltimasMovimentacoes")
	}

	var movs []rawMovement
	table.Find("tr.containerMovimentacao").Each(func(_ int, row *goquery.Selection) {
		m := parseMovementRow(row)
		if m.ShortText == "" {
			return
		}
		movs = append(movs, m)
	})

	// the portal renders newest first; records carry chronological order
	for i, j := 0, len(movs)-1; i < j; i, j = i+1, j-1 {
		movs[i], movs[j] = movs[j], movs[i]
	}
	for i := range movs {
		movs[i].Order = i + 1
	}
	return movs
}

func parseMovementRow(row *goquery.Selection) rawMovement {
	var m rawMovement

	if t, err := time.Parse("02/01/2006", pstrings.CollapseSpaces(row.Find("td.dataMovimentacao").Text())); err == nil {
		m.Date = t
	}

	cell := row.Find("td.descricaoMovimentacao")
	if cell.Length() == 0 {
		return m
	}

	// a hidden span carries the full decision text once expanded
	if full := pstrings.CollapseSpaces(cell.Find("span.descricaoCompletaMovimentacao").Text()); full != "" {
		m.FullText = full
	}
	if a := cell.Find("a.linkTextoCompleto").First(); a.Length() > 0 {
		if id, ok := a.Attr("id"); ok && id != "" {
			m.ExpandSel = "#" + id
		}
	}

	short := cell.Clone()
	short.Find("span.descricaoCompletaMovimentacao, a.linkTextoCompleto").Remove()
	m.ShortText = pstrings.CollapseSpaces(short.Text())
	return m
}

// parseFullTextFor finds the full-text span sitting next to the given
// expand control after it was activated
func parseFullTextFor(html, expandSel string) string {
	if !strings.HasPrefix(expandSel, "#") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	cell := doc.Find("a" + expandSel).Closest("td.descricaoMovimentacao")
	return pstrings.CollapseSpaces(cell.Find("span.descricaoCompletaMovimentacao").Text())
}
