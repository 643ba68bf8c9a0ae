package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// --- API Response Structs ---

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type quoteServiceImpl struct {
	httpClient http.Client
	baseURL    string
	quoteCache *cache.Cache
	limiter    *rate.Limiter
}

// NewQuoteService builds the external lookup client. Quotes are cached per
// symbol for the given TTL and outbound requests are rate limited so a busy
// portfolio page does not hammer the upstream API.
func NewQuoteService(baseURL string, quoteCache *cache.Cache, requestsPerSecond float64, timeout time.Duration) QuoteService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &quoteServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL:    baseURL,
		quoteCache: quoteCache,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (s *quoteServiceImpl) Lookup(ctx context.Context, symbol string) (*model.Quote, error) {
	if cached, found := s.quoteCache.Get(symbol); found {
		quote := cached.(model.Quote)
		return &quote, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote rate limiter: %w", err)
	}

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if quote.Name == "" || quote.Name == quote.Symbol {
		if name := s.fetchName(ctx, quote.Symbol); name != "" {
			quote.Name = name
		}
	}
	if quote.Name == "" {
		quote.Name = quote.Symbol
	}

	// Cache under the requested key and the canonical symbol, so an alias
	// and its canonical form share one upstream fetch.
	s.quoteCache.Set(symbol, *quote, cache.DefaultExpiration)
	if quote.Symbol != symbol {
		s.quoteCache.Set(quote.Symbol, *quote, cache.DefaultExpiration)
	}
	return quote, nil
}

func (s *quoteServiceImpl) fetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s", s.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSymbolNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote lookup returned status %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if len(result.Chart.Result) == 0 {
		return nil, ErrSymbolNotFound
	}
	meta := result.Chart.Result[0].Meta
	if meta.Symbol == "" || meta.RegularMarketPrice <= 0 {
		return nil, ErrSymbolNotFound
	}

	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}

	return &model.Quote{
		Symbol: meta.Symbol,
		Name:   name,
		Price:  decimal.NewFromFloat(meta.RegularMarketPrice).Round(2),
	}, nil
}

// fetchName resolves a display name through the search endpoint. Best effort:
// a quote without a pretty name is still a usable quote.
func (s *quoteServiceImpl) fetchName(ctx context.Context, symbol string) string {
	reqURL := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=5&newsCount=0", s.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Name lookup request failed", "symbol", symbol, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	for _, q := range result.Quotes {
		if q.Symbol == symbol {
			if q.Shortname != "" {
				return q.Shortname
			}
			return q.Longname
		}
	}
	return ""
}
