package portal

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"processo/internal/core/cnj"
	perr "processo/internal/platform/errors"
	pstrings "processo/internal/platform/strings"
	"processo/internal/services/collect/domain"
)

// claimant/defendant role labels seen on party tables, folded
var (
	claimantRoles  = []string{"reqte", "exeqte", "autor", "autora", "reclamante", "embargte", "impugte"}
	defendantRoles = []string{"reqdo", "reqda", "exectdo", "exectda", "reu", "re", "reclamado", "reclamada", "embargdo"}
)

// parseDetail maps the detail page's case metadata and party table into a
// record without movements; movement extraction runs separately because it
// may need further browser interaction first
func parseDetail(html string, n cnj.Number) (*domain.ProcessRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeMalformed, "portal: parse detail page")
	}
	if doc.Find("#numeroProcesso").Length() == 0 {
		return nil, perr.Malformedf("portal: detail markers missing")
	}

	rec := &domain.ProcessRecord{
		Number:       n.String(),
		RawNumber:    cnj.Digits(n.String()),
		SubjectClass: text(doc, "#classeProcesso"),
		Court:        pstrings.FirstNonEmpty(text(doc, "#foroProcesso"), text(doc, "#secaoProcesso")),
		JudgingBody:  text(doc, "#varaProcesso"),
		System:       "portal",
		Degree:       pstrings.FirstNonEmpty(text(doc, "#grauProcesso"), "G1"),
		ClaimValue:   text(doc, "#valorAcaoProcesso"),
	}
	if subj := text(doc, "#assuntoProcesso"); subj != "" {
		rec.Subjects = []string{subj}
	}
	if d := parsePortalDate(text(doc, "#dataHoraDistribuicaoProcesso")); !d.IsZero() {
		rec.FilingDate = d
	}

	rec.Parties, rec.Attorneys = parseParties(doc)
	return rec, nil
}

// parseDetailNumber pulls the process number off a detail page, used when a
// unique party search jumps straight to the detail view
func parseDetailNumber(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	d := cnj.Digits(text(doc, "#numeroProcesso"))
	if len(d) != cnj.DigitCount {
		return ""
	}
	return d
}

// parseParties walks the fullest available party table. Each row carries a
// role label cell and a name cell; attorney names follow an "Advogado:"
// prefix inside the name cell
func parseParties(doc *goquery.Document) (domain.Parties, domain.Attorneys) {
	var parties domain.Parties
	var attorneys domain.Attorneys

	table := doc.Find("#tableTodasPartes")
	if table.Length() == 0 {
		table = doc.Find("#tablePartesPrincipais")
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		role := cnj.Fold(row.Find("td.label").Text())
		cell := row.Find("td.nomeParteEAdvogado")
		if role == "" || cell.Length() == 0 {
			return
		}
		name, attorney := splitPartyCell(cell)
		switch {
		case matchesRole(role, claimantRoles):
			if parties.Claimant == "" {
				parties.Claimant = name
			}
			if attorneys.Claimant == "" {
				attorneys.Claimant = attorney
			}
		case matchesRole(role, defendantRoles):
			if parties.Defendant == "" {
				parties.Defendant = name
			}
			if attorneys.Defendant == "" {
				attorneys.Defendant = attorney
			}
		}
	})
	return parties, attorneys
}

// splitPartyCell separates the party name from the attorney line
func splitPartyCell(cell *goquery.Selection) (name, attorney string) {
	raw := cell.Text()
	for _, line := range strings.Split(raw, "\n") {
		line = pstrings.CollapseSpaces(line)
		if line == "" {
			continue
		}
		folded := cnj.Fold(line)
		if after, ok := cutAttorneyPrefix(line, folded); ok {
			if attorney == "" {
				attorney = after
			}
			continue
		}
		if name == "" {
			name = line
		}
	}
	return name, attorney
}

func cutAttorneyPrefix(line, folded string) (string, bool) {
	for _, p := range []string{"advogado:", "advogada:"} {
		if strings.HasPrefix(folded, p) {
			idx := strings.Index(line, ":")
			if idx >= 0 && idx+1 < len(line) {
				return pstrings.CollapseSpaces(line[idx+1:]), true
			}
			return "", true
		}
	}
	return "", false
}

func matchesRole(folded string, roles []string) bool {
	for _, r := range roles {
		if folded == r || strings.HasPrefix(folded, r+" ") || strings.HasPrefix(folded, r+"/") {
			return true
		}
	}
	return false
}

func text(doc *goquery.Document, sel string) string {
	return pstrings.CollapseSpaces(doc.Find(sel).First().Text())
}

// parsePortalDate accepts the portal's "02/01/2006 às 15:04" stamps as well
// as the bare date form
func parsePortalDate(s string) time.Time {
	s = pstrings.CollapseSpaces(s)
	if s == "" {
		return time.Time{}
	}
	if i := strings.Index(s, " - "); i > 0 {
		s = s[:i]
	}
	for _, layout := range []string{"02/01/2006 às 15:04", "02/01/2006 as 15:04", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// fall back to the date prefix alone
	if len(s) >= 10 {
		if t, err := time.Parse("02/01/2006", s[:10]); err == nil {
			return t
		}
	}
	return time.Time{}
}
