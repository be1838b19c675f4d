package portal

import (
	"fmt"
	"net/url"

	"processo/internal/core/cnj"
)

// search modes understood by the portal's consultation form
const (
	searchModeNumber = "NUMPROC"
	searchModeParty  = "NMPARTE"
)

// form and page selectors. Site-specific by nature; everything above this
// layer works off the parsed page structure only
const (
	selSearchMode    = "#cbPesquisa"
	selNumberField   = "#numeroDigitoAnoUnificado"
	selPartyField    = "#campo_NMPARTE"
	selSearchSubmit  = "#botaoConsultarProcessos"
	selExpandAll     = "#linkmovimentacoes"
	selMovementsFull = "#tabelaTodasMovimentacoes"
	selNextPage      = "a.paginacao-proxima"
)

// directURL builds the consultation URL straight from the number's
// structural segments; the fastest strategy when the portal accepts it
func directURL(base string, n cnj.Number) string {
	q := url.Values{}
	q.Set("cbPesquisa", searchModeNumber)
	q.Set("dadosConsulta.tipoNuProcesso", "UNIFICADO")
	q.Set("numeroDigitoAnoUnificado", fmt.Sprintf("%s-%s.%s", n.Sequence, n.Check, n.Year))
	q.Set("foroNumeroUnificado", n.Origin)
	q.Set("dadosConsulta.valorConsultaNuUnificado", n.String())
	return base + "/cpopg/search.do?" + q.Encode()
}

// searchURL is the consultation form entry point
func searchURL(base string) string { return base + "/cpopg/open.do" }

// detailURL addresses the detail page by number directly, the last-resort
// strategy
func detailURL(base string, n cnj.Number) string {
	q := url.Values{}
	q.Set("processo.numero", n.String())
	return base + "/cpopg/show.do?" + q.Encode()
}
