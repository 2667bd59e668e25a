package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

func TestLookupCompanyStatic(t *testing.T) {
	l := NewLookup(common.MarketConfig{}, nil, nil)

	company, err := l.LookupCompany(context.Background(), "nee")
	if err != nil {
		t.Fatalf("LookupCompany failed: %v", err)
	}
	if company.Name != "NextEra Energy" || company.Sector != "Energy" {
		t.Errorf("unexpected company: %+v", company)
	}
	if company.Beta <= 0 {
		t.Errorf("beta = %f, want positive", company.Beta)
	}
}

func TestLookupCompanyUnknownTickerIsPermanent(t *testing.T) {
	l := NewLookup(common.MarketConfig{}, nil, nil)

	_, err := l.LookupCompany(context.Background(), "ZZZZ")
	if err == nil {
		t.Fatal("expected error for unknown ticker")
	}
	if models.IsRetryable(err) {
		t.Error("unknown ticker should be a permanent failure")
	}
}

func TestTickersForSector(t *testing.T) {
	l := NewLookup(common.MarketConfig{}, nil, nil)

	tickers, err := l.TickersForSector(context.Background(), "Semiconductors")
	if err != nil {
		t.Fatalf("TickersForSector failed: %v", err)
	}
	want := []string{"AMD", "INTC", "NVDA"}
	if len(tickers) != len(want) {
		t.Fatalf("tickers = %v, want %v", tickers, want)
	}
	for i := range want {
		if tickers[i] != want[i] {
			t.Errorf("tickers[%d] = %q, want %q", i, tickers[i], want[i])
		}
	}
}

func TestTickersForSectorPrefersUniverse(t *testing.T) {
	universe := map[string][]string{"Semiconductors": {"nvda", "TSM"}}
	l := NewLookup(common.MarketConfig{}, universe, nil)

	tickers, err := l.TickersForSector(context.Background(), "semiconductors")
	if err != nil {
		t.Fatalf("TickersForSector failed: %v", err)
	}
	want := []string{"NVDA", "TSM"}
	if len(tickers) != len(want) || tickers[0] != want[0] || tickers[1] != want[1] {
		t.Errorf("tickers = %v, want %v", tickers, want)
	}
}

func TestLookupCompanyFromProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(interfaces.CompanyContext{
			Ticker: "ACME", Name: "Acme Corp", Sector: "Manufacturing",
			MarketCap: 10e9, Beta: 1.3, SectorExposure: 0.8,
		})
	}))
	defer srv.Close()

	l := NewLookup(common.MarketConfig{BaseURL: srv.URL, APIKey: "test-key", RateLimit: 100}, nil, nil)

	company, err := l.LookupCompany(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("LookupCompany failed: %v", err)
	}
	if company.Name != "Acme Corp" || company.Beta != 1.3 {
		t.Errorf("unexpected company: %+v", company)
	}
}

func TestLookupCompanyProviderMissFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewLookup(common.MarketConfig{BaseURL: srv.URL, RateLimit: 100}, nil, nil)

	company, err := l.LookupCompany(context.Background(), "XOM")
	if err != nil {
		t.Fatalf("LookupCompany failed: %v", err)
	}
	if company.Name != "Exxon Mobil" {
		t.Errorf("expected static fallback, got %+v", company)
	}
}
