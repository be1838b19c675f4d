package portal

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"processo/internal/core/cnj"
)

func mustNumber(t *testing.T) cnj.Number {
	t.Helper()
	n, err := cnj.Parse("1234567-89.2024.8.26.0100")
	if err != nil {
		t.Fatalf("parse number: %v", err)
	}
	return n
}

const detailPage = `<html><body>
<span id="numeroProcesso">1234567-89.2024.8.26.0100</span>
<span id="classeProcesso">Execução de Título Extrajudicial</span>
<span id="assuntoProcesso">Contratos Bancários</span>
<span id="foroProcesso">Foro Central Cível</span>
<span id="varaProcesso">2ª Vara Cível</span>
<div id="dataHoraDistribuicaoProcesso">15/02/2024 às 14:30 - Livre</div>
<div id="valorAcaoProcesso">R$ 150.000,00</div>
<table id="tableTodasPartes">
 <tr>
  <td class="label">Exeqte</td>
  <td class="nomeParteEAdvogado">Banco Alfa S.A.
   Advogado: Carlos Pereira</td>
 </tr>
 <tr>
  <td class="label">Exectdo</td>
  <td class="nomeParteEAdvogado">João das Neves
   Advogada: Ana Souza</td>
 </tr>
</table>
</body></html>`

func TestParseDetail(t *testing.T) {
	rec, err := parseDetail(detailPage, mustNumber(t))
	if err != nil {
		t.Fatalf("parse detail: %v", err)
	}
	if rec.Number != "1234567-89.2024.8.26.0100" || rec.RawNumber != "12345678920248260100" {
		t.Fatalf("numbers = %q / %q", rec.Number, rec.RawNumber)
	}
	if rec.SubjectClass != "Execução de Título Extrajudicial" {
		t.Fatalf("class = %q", rec.SubjectClass)
	}
	if !reflect.DeepEqual(rec.Subjects, []string{"Contratos Bancários"}) {
		t.Fatalf("subjects = %v", rec.Subjects)
	}
	if rec.Court != "Foro Central Cível" || rec.JudgingBody != "2ª Vara Cível" {
		t.Fatalf("court/body = %q / %q", rec.Court, rec.JudgingBody)
	}
	if rec.Degree != "G1" {
		t.Fatalf("degree = %q", rec.Degree)
	}
	if rec.ClaimValue != "R$ 150.000,00" {
		t.Fatalf("claim value = %q", rec.ClaimValue)
	}
	want := time.Date(2024, 2, 15, 14, 30, 0, 0, time.UTC)
	if !rec.FilingDate.Equal(want) {
		t.Fatalf("filing date = %v, want %v", rec.FilingDate, want)
	}
	if rec.Parties.Claimant != "Banco Alfa S.A." || rec.Parties.Defendant != "João das Neves" {
		t.Fatalf("parties = %+v", rec.Parties)
	}
	if rec.Attorneys.Claimant != "Carlos Pereira" || rec.Attorneys.Defendant != "Ana Souza" {
		t.Fatalf("attorneys = %+v", rec.Attorneys)
	}
}

func TestParseDetail_MissingMarkers(t *testing.T) {
	if _, err := parseDetail("<html><body>nada</body></html>", mustNumber(t)); err == nil {
		t.Fatalf("expected error for a page without detail markers")
	}
}

func TestParseDetailNumber(t *testing.T) {
	if got := parseDetailNumber(detailPage); got != "12345678920248260100" {
		t.Fatalf("detail number = %q", got)
	}
	if got := parseDetailNumber("<html><body><span id=\"numeroProcesso\">123</span></body></html>"); got != "" {
		t.Fatalf("expected empty for short number, got %q", got)
	}
}

func TestClassifyPage(t *testing.T) {
	cases := []struct {
		html string
		want pageKind
	}{
		{detailPage, pageDetail},
		{`<html><body>Não existem informações disponíveis para os parâmetros informados.</body></html>`, pageNoInfo},
		{`<html><body>Processo em Segredo de Justiça</body></html>`, pageSealed},
		{`<html><body><div id="listagemDeProcessos"></div></body></html>`, pageListing},
		{`<html><body>algo inesperado</body></html>`, pageUnknown},
	}
	for i, tc := range cases {
		if got := classifyPage(tc.html); got != tc.want {
			t.Fatalf("case %d: classifyPage = %d, want %d", i, got, tc.want)
		}
	}
}

func movementsPage(tableID string, rows string) string {
	return fmt.Sprintf(`<html><body><table id=%q><tbody>%s</tbody></table></body></html>`, tableID, rows)
}

const movementRows = `
<tr class="containerMovimentacao">
 <td class="dataMovimentacao">10/03/2024</td>
 <td class="descricaoMovimentacao">Decisão proferida
  <a class="linkTextoCompleto" id="linkMov2">mais</a>
  <span class="descricaoCompletaMovimentacao">Vistos. DEFIRO o bloqueio via Sisbajud.</span>
 </td>
</tr>
<tr class="containerMovimentacao">
 <td class="dataMovimentacao">01/03/2024</td>
 <td class="descricaoMovimentacao">Juntada de petição</td>
</tr>`

func TestParseMovements_PrefersCompleteTableAndChronologicalOrder(t *testing.T) {
	html := movementsPage("tabelaTodasMovimentacoes", movementRows)

	movs := parseMovements(html)
	if len(movs) != 2 {
		t.Fatalf("len = %d", len(movs))
	}
	// the wire renders newest first, extraction renumbers chronologically
	if movs[0].ShortText != "Juntada de petição" || movs[0].Order != 1 {
		t.Fatalf("first = %+v", movs[0])
	}
	if movs[1].ShortText != "Decisão proferida" || movs[1].Order != 2 {
		t.Fatalf("second = %+v", movs[1])
	}
	if movs[1].FullText != "Vistos. DEFIRO o bloqueio via Sisbajud." {
		t.Fatalf("full text = %q", movs[1].FullText)
	}
	if movs[1].ExpandSel != "#linkMov2" {
		t.Fatalf("expand sel = %q", movs[1].ExpandSel)
	}
	if !movs[1].Date.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", movs[1].Date)
	}
}

func TestParseMovements_FallsBackToLatestTable(t *testing.T) {
	html := movementsPage("tabelaUltimasMovimentacoes", movementRows)
	if movs := parseMovements(html); len(movs) != 2 {
		t.Fatalf("fallback table not used, len = %d", len(movs))
	}

	// an empty complete table must not mask the latest-N table
	both := strings.Replace(
		movementsPage("tabelaUltimasMovimentacoes", movementRows),
		"<body>",
		`<body><table id="tabelaTodasMovimentacoes"></table>`, 1)
	if movs := parseMovements(both); len(movs) != 2 {
		t.Fatalf("empty complete table masked the fallback, len = %d", len(movs))
	}
}

func TestParseFullTextFor(t *testing.T) {
	html := movementsPage("tabelaTodasMovimentacoes", movementRows)
	if got := parseFullTextFor(html, "#linkMov2"); got != "Vistos. DEFIRO o bloqueio via Sisbajud." {
		t.Fatalf("full text = %q", got)
	}
	if got := parseFullTextFor(html, "#missing"); got != "" {
		t.Fatalf("expected empty for missing control, got %q", got)
	}
	if got := parseFullTextFor(html, "noHash"); got != "" {
		t.Fatalf("expected empty for malformed selector, got %q", got)
	}
}

const listingPage = `<html><body>
<span id="contadorDeProcessos">Resultados 1 a 25 de 132</span>
<div id="listagemDeProcessos">
 <a class="linkProcesso">1234567-89.2024.8.26.0100</a>
 <a class="linkProcesso">7654321-98.2023.8.26.0002</a>
 <a class="linkProcesso">1234567-89.2024.8.26.0100</a>
 <a class="linkProcesso">123</a>
</div>
<a class="paginacao-proxima" href="#">&gt;</a>
</body></html>`

func TestParseListing(t *testing.T) {
	nums := parseListing(listingPage)
	want := []string{"12345678920248260100", "76543219820238260002"}
	if !reflect.DeepEqual(nums, want) {
		t.Fatalf("listing = %v, want %v", nums, want)
	}
}

func TestParseResultCount(t *testing.T) {
	n, ok := parseResultCount(listingPage)
	if !ok || n != 132 {
		t.Fatalf("count = %d %v", n, ok)
	}
	if _, ok := parseResultCount("<html><body><span id=\"contadorDeProcessos\">sem total</span></body></html>"); ok {
		t.Fatalf("expected unparseable phrase to report ok=false")
	}
	if _, ok := parseResultCount("<html><body></body></html>"); ok {
		t.Fatalf("expected missing counter to report ok=false")
	}
}

func TestHasNextPage(t *testing.T) {
	if !hasNextPage(listingPage) {
		t.Fatalf("expected next-page control")
	}
	if hasNextPage("<html><body></body></html>") {
		t.Fatalf("expected no next-page control")
	}
}

func TestHasExpandControl(t *testing.T) {
	if !hasExpandControl(`<html><body><a id="linkmovimentacoes">todas</a></body></html>`) {
		t.Fatalf("expected expand control")
	}
	if hasExpandControl("<html><body></body></html>") {
		t.Fatalf("expected none")
	}
}
