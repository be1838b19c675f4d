// Package domain defines the collection engine's data model and the ports
// its collaborators implement
package domain

import (
	"time"

	"processo/internal/core/classify"
	"processo/internal/core/cnj"
)

// Source tags where a record's data came from
type Source string

const (
	// SourceRegistry means the structured registry API alone
	SourceRegistry Source = "registry"
	// SourceScrape means the portal scraper alone
	SourceScrape Source = "scrape"
	// SourceMerged means both a registry and a scrape contribution are present
	SourceMerged Source = "merged"
)

// QueryType discriminates the two lookup shapes
type QueryType string

const (
	// QueryByNumber looks up a single process by its number
	QueryByNumber QueryType = "by_number"
	// QueryByParty searches processes by a party or attorney name
	QueryByParty QueryType = "by_party"
)

// ProcessQuery is the discriminated query union. Exactly one of Number or
// Party is set depending on Type
type ProcessQuery struct {
	Type       QueryType `validate:"required,oneof=by_number by_party"`
	Number     string    `validate:"required_if=Type by_number"`
	Party      string    `validate:"required_if=Type by_party"`
	MaxResults int       `validate:"gte=0,lte=1000"`
}

// ByNumber builds a number query
func ByNumber(number string) ProcessQuery {
	return ProcessQuery{Type: QueryByNumber, Number: number}
}

// ByParty builds a party-name query
func ByParty(name string, maxResults int) ProcessQuery {
	return ProcessQuery{Type: QueryByParty, Party: name, MaxResults: maxResults}
}

// CacheParams returns the normalized parameter string used for cache keying.
// Numbers reduce to digits, names fold case/accents/whitespace, so logically
// equal queries always key identically
func (q ProcessQuery) CacheParams() string {
	if q.Type == QueryByNumber {
		return cnj.Digits(q.Number)
	}
	return cnj.Fold(q.Party)
}

// Label returns a short human identifier for logs
func (q ProcessQuery) Label() string {
	if q.Type == QueryByNumber {
		return cnj.Digits(q.Number)
	}
	return q.Party
}

// Movement is one dated entry of a process's procedural history
type Movement struct {
	// Order is the 1-based sequence, stable within a record
	Order     int              `json:"order"`
	Date      time.Time        `json:"date"`
	ShortText string           `json:"short_text"`
	FullText  string           `json:"full_text,omitempty"`
	Keywords  []string         `json:"keywords,omitempty"`
	Outcome   classify.Outcome `json:"outcome"`
	Amount    string           `json:"amount,omitempty"`
	// IsDecision mirrors the judicial-decision heuristic; it is independent
	// of Outcome and neither implies the other
	IsDecision bool `json:"is_decision"`
	Priority   int  `json:"priority,omitempty"`
}

// Parties names the two sides of a process
type Parties struct {
	Claimant  string `json:"claimant,omitempty"`
	Defendant string `json:"defendant,omitempty"`
}

// Attorneys names counsel for each side
type Attorneys struct {
	Claimant  string `json:"claimant,omitempty"`
	Defendant string `json:"defendant,omitempty"`
}

// ProcessRecord is one collected process
type ProcessRecord struct {
	Number       string     `json:"number"`     // canonical formatted form
	RawNumber    string     `json:"raw_number"` // digits only
	SubjectClass string     `json:"subject_class,omitempty"`
	Subjects     []string   `json:"subjects,omitempty"`
	Court        string     `json:"court,omitempty"`
	JudgingBody  string     `json:"judging_body,omitempty"`
	FilingDate   time.Time  `json:"filing_date,omitzero"`
	LastUpdate   time.Time  `json:"last_update,omitzero"`
	System       string     `json:"system,omitempty"`
	Degree       string     `json:"degree,omitempty"`
	ClaimValue   string     `json:"claim_value,omitempty"`
	Movements    []Movement `json:"movements,omitempty"`
	Parties      Parties    `json:"parties,omitzero"`
	Attorneys    Attorneys  `json:"attorneys,omitzero"`
	Source       Source     `json:"source"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

// OutcomeStatus tags one per-query collection result
type OutcomeStatus string

const (
	// StatusFound means a record was collected
	StatusFound OutcomeStatus = "found"
	// StatusNotFound means no match exists (or the process is sealed)
	StatusNotFound OutcomeStatus = "not_found"
	// StatusError means collection failed after exhausting retries
	StatusError OutcomeStatus = "error"
)

// CollectionOutcome maps exactly one input query to one result.
// Found carries records; NotFound may carry a category (not_found or
// sealed); Error carries the failure category and message
type CollectionOutcome struct {
	Query    ProcessQuery    `json:"query"`
	Status   OutcomeStatus   `json:"status"`
	Records  []ProcessRecord `json:"records,omitempty"`
	Category string          `json:"category,omitempty"`
	Message  string          `json:"message,omitempty"`
	// CachedFrom is set when the outcome was served from cache, carrying the
	// cache entry's recorded source tag
	CachedFrom string `json:"cached_from,omitempty"`
}

// BatchSummary reports counts for one batch collection run
type BatchSummary struct {
	BatchID  string        `json:"batch_id"`
	Total    int           `json:"total"`
	Found    int           `json:"found"`
	NotFound int           `json:"not_found"`
	Errors   int           `json:"errors"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Summarize tallies a finished outcome list
func Summarize(batchID string, outs []CollectionOutcome, elapsed time.Duration) BatchSummary {
	s := BatchSummary{BatchID: batchID, Total: len(outs), Elapsed: elapsed}
	for _, o := range outs {
		switch o.Status {
		case StatusFound:
			s.Found++
		case StatusNotFound:
			s.NotFound++
		default:
			s.Errors++
		}
	}
	return s
}
