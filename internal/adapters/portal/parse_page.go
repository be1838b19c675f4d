package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"processo/internal/core/cnj"
)

// pageKind is the coarse classification of a captured page
type pageKind int

const (
	pageUnknown pageKind = iota
	pageDetail
	pageListing
	pageNoInfo
	pageSealed
)

// terminal markers, matched on folded text so casing and accents don't matter
const (
	markerNoInfo = "nao existem informacoes disponiveis"
	markerSealed = "segredo de justica"
)

// classifyPage decides what the browser landed on. A rendered detail page
// wins; the no-information and seal markers are terminal; a listing page is
// the paginated search result
func classifyPage(html string) pageKind {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageUnknown
	}
	if doc.Find("#numeroProcesso").Length() > 0 {
		return pageDetail
	}
	folded := cnj.Fold(doc.Find("body").Text())
	if strings.Contains(folded, markerNoInfo) {
		return pageNoInfo
	}
	if strings.Contains(folded, markerSealed) {
		return pageSealed
	}
	if doc.Find("#listagemDeProcessos").Length() > 0 {
		return pageListing
	}
	return pageUnknown
}
