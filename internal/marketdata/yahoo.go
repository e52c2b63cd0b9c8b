package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPriceUnavailable is returned when a provider has no price for a symbol.
var ErrPriceUnavailable = errors.New("marketdata: price unavailable")

const (
	yahooBatchMax = 50
	yahooUA       = "Mozilla/5.0 (compatible; papertrade/1.0)"
)

// YahooProvider fetches quotes and historical closes from the Yahoo Finance
// public endpoints.
type YahooProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewYahooProvider creates a Yahoo Finance price provider.
func NewYahooProvider(httpClient *http.Client, baseURL string) *YahooProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &YahooProvider{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// Quotes fetches current prices in batches. Symbols absent from the response
// are simply left out of the returned map.
func (p *YahooProvider) Quotes(ctx context.Context, symbols []Symbol) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		tickers = append(tickers, s.Ticker)
	}

	for i := 0; i < len(tickers); i += yahooBatchMax {
		end := min(i+yahooBatchMax, len(tickers))
		if err := p.fetchQuoteBatch(ctx, tickers[i:end], prices); err != nil {
			return nil, err
		}
	}
	return prices, nil
}

func (p *YahooProvider) fetchQuoteBatch(ctx context.Context, tickers []string, out map[string]float64) error {
	reqURL := p.baseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(strings.Join(tickers, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var quoteResp yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	for _, r := range quoteResp.QuoteResponse.Result {
		if r.RegularMarketPrice != 0 {
			out[r.Symbol] = r.RegularMarketPrice
		}
	}
	return nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// ClosingPrice fetches the closing price for one symbol on one date via the
// chart endpoint, querying the single-day window.
func (p *YahooProvider) ClosingPrice(ctx context.Context, symbol Symbol, date time.Time) (float64, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		p.baseURL, url.PathEscape(symbol.Ticker), day.Unix(), day.Add(24*time.Hour).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrPriceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}

	for _, r := range chartResp.Chart.Result {
		for _, q := range r.Indicators.Quote {
			for _, c := range q.Close {
				if c != 0 {
					return c, nil
				}
			}
		}
	}
	return 0, ErrPriceUnavailable
}
