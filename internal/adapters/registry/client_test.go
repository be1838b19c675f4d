package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perr "processo/internal/platform/errors"
	kit "processo/internal/platform/testkit"
)

const testNumber = "1234567-89.2024.8.26.0100"
const testDigits = "12345678920248260100"

func testClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", MaxRetries: 3, RetryBase: time.Millisecond})
	kit.Swap(t, &c.sleep, func(time.Duration) {})
	return c, srv
}

func wireOK(numbers ...string) []byte {
	resp := searchResponse{Total: len(numbers)}
	for _, n := range numbers {
		resp.Processos = append(resp.Processos, wireProcess{
			Numero:          n,
			Classe:          "Execução de Título Extrajudicial",
			Tribunal:        "TJSP",
			DataAjuizamento: "2024-02-01T00:00:00Z",
		})
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestByNumber_SendsDigitsAndAPIKey(t *testing.T) {
	var gotReq searchRequest
	var gotAuth string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write(wireOK(testDigits))
	})

	rec, err := c.ByNumber(t.Context(), testNumber)
	if err != nil {
		t.Fatalf("by number: %v", err)
	}
	if gotReq.QueryType != "numero" || gotReq.Value != testDigits {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotAuth != "APIKey k" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if rec.Number != testNumber || rec.RawNumber != testDigits {
		t.Fatalf("record numbers = %q / %q", rec.Number, rec.RawNumber)
	}
	if rec.Source != "registry" {
		t.Fatalf("source = %q", rec.Source)
	}
}

func TestByNumber_RejectsBadNumberWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	_, err := c.ByNumber(t.Context(), "12345")
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("client hit the network for an invalid number")
	}
}

func TestByNumber_EmptyResultIsNotFound_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"total":0,"processos":[]}`))
	})
	_, err := c.ByNumber(t.Context(), testNumber)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("not-found was retried: %d calls", calls.Load())
	}
}

func TestByNumber_404IsNotFound_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.ByNumber(t.Context(), testNumber)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 was retried: %d calls", calls.Load())
	}
}

func TestSearch_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(wireOK(testDigits))
	})
	if _, err := c.ByNumber(t.Context(), testNumber); err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestSearch_RateLimitedSurfacesAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.ByNumber(t.Context(), testNumber)
	if !perr.IsCode(err, perr.ErrorCodeRateLimited) {
		t.Fatalf("expected rate-limited, got %v", err)
	}
	if calls.Load() != 4 { // initial + 3 retries
		t.Fatalf("calls = %d, want 4", calls.Load())
	}
}

func TestSearch_UnexpectedStatusIsMalformed_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("weird"))
	})
	_, err := c.ByNumber(t.Context(), testNumber)
	if !perr.IsCode(err, perr.ErrorCodeMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("malformed status was retried: %d calls", calls.Load())
	}
}

func TestByParty_SortedByFilingDescAndClamped(t *testing.T) {
	nums := []string{
		"0000001-11.2020.8.26.0100",
		"0000002-22.2023.8.26.0100",
		"0000003-33.2021.8.26.0100",
	}
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Total: 3}
		for i, n := range nums {
			resp.Processos = append(resp.Processos, wireProcess{
				Numero:          n,
				DataAjuizamento: fmt.Sprintf("20%d0-0%d-01T00:00:00Z", 2+i, i+1),
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	recs, err := c.ByParty(t.Context(), "José da Silva", 2)
	if err != nil {
		t.Fatalf("by party: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("maxResults not applied: %d records", len(recs))
	}
	if !recs[0].FilingDate.After(recs[1].FilingDate) {
		t.Fatalf("records not sorted by filing date desc: %v, %v", recs[0].FilingDate, recs[1].FilingDate)
	}
}

func TestByParty_BlankNameRejected(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.ByParty(t.Context(), "   ", 5); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestByParty_SkipsMalformedResults(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Total: 2, Processos: []wireProcess{
			{Numero: "garbage"},
			{Numero: testDigits, DataAjuizamento: "2024-01-01"},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	recs, err := c.ByParty(t.Context(), "Maria", 10)
	if err != nil {
		t.Fatalf("by party: %v", err)
	}
	if len(recs) != 1 || recs[0].RawNumber != testDigits {
		t.Fatalf("malformed result not skipped: %+v", recs)
	}
}
