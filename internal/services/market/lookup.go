package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"golang.org/x/time/rate"
)

// Lookup resolves tickers to sector and risk context. When a provider base
// URL is configured it queries the provider with a rate-limited HTTP client
// and falls back to the static dataset on provider misses; with no provider
// it serves the static dataset alone.
type Lookup struct {
	config   common.MarketConfig
	client   *http.Client
	limiter  *rate.Limiter
	universe map[string][]string
	logger   arbor.ILogger
}

// NewLookup creates the company lookup capability. The universe maps sector
// names to their tracked tickers (normally from the vocabulary file); sectors
// absent from it fall back to the static dataset.
func NewLookup(cfg common.MarketConfig, universe map[string][]string, logger arbor.ILogger) *Lookup {
	if logger == nil {
		logger = common.GetLogger()
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 2
	}
	timeout := 30 * time.Second
	if cfg.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.RequestTimeout); err == nil {
			timeout = d
		}
	}
	return &Lookup{
		config:   cfg,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		universe: universe,
		logger:   logger,
	}
}

// LookupCompany returns sector and financial context for a ticker.
func (l *Lookup) LookupCompany(ctx context.Context, ticker string) (*interfaces.CompanyContext, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, models.NewPermanentCapabilityError("company_lookup", fmt.Errorf("empty ticker"))
	}

	if l.config.BaseURL != "" {
		company, err := l.fetchCompany(ctx, symbol)
		if err == nil {
			return company, nil
		}
		l.logger.Warn().Err(err).Str("ticker", symbol).Msg("Provider lookup failed, using static dataset")
	}

	if company, ok := staticCompanies[symbol]; ok {
		c := company
		return &c, nil
	}
	return nil, models.NewPermanentCapabilityError("company_lookup", fmt.Errorf("unknown ticker %s", symbol))
}

// TickersForSector returns the tracked tickers in a sector, sorted for
// deterministic downstream iteration. The configured universe wins; the
// static dataset covers sectors the universe does not name.
func (l *Lookup) TickersForSector(ctx context.Context, sector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for name, symbols := range l.universe {
		if strings.EqualFold(name, sector) {
			tickers := make([]string, 0, len(symbols))
			for _, s := range symbols {
				tickers = append(tickers, strings.ToUpper(strings.TrimSpace(s)))
			}
			sort.Strings(tickers)
			return tickers, nil
		}
	}

	var tickers []string
	for symbol, company := range staticCompanies {
		if strings.EqualFold(company.Sector, sector) {
			tickers = append(tickers, symbol)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

func (l *Lookup) fetchCompany(ctx context.Context, symbol string) (*interfaces.CompanyContext, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/company/%s", strings.TrimRight(l.config.BaseURL, "/"), url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if l.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.config.APIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, models.NewCapabilityError("company_lookup", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("provider has no record for %s", symbol)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, models.NewCapabilityError("company_lookup", fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, models.NewPermanentCapabilityError("company_lookup", fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var company interfaces.CompanyContext
	if err := json.NewDecoder(resp.Body).Decode(&company); err != nil {
		return nil, models.NewCapabilityError("company_lookup", fmt.Errorf("malformed provider response: %w", err))
	}
	if company.Ticker == "" {
		company.Ticker = symbol
	}
	return &company, nil
}
