// Package currency converts amounts between currencies. Rates come from a
// live exchange-rate API when configured; a built-in fallback table covers
// the common pairs when the API is unreachable. Conversion never fails the
// caller: an unknown pair degrades to a rate of 1.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/cache"
)

const (
	defaultRateTTL   = time.Hour
	defaultCacheSize = 64
)

// defaultFallbackRates covers the pairs the tracker most often sees.
// Missing reciprocals are synthesized at lookup time.
var defaultFallbackRates = map[string]map[string]float64{
	"QAR": {"USD": 0.27, "EUR": 0.25},
	"USD": {"QAR": 3.64, "EUR": 0.92, "GBP": 0.79},
	"EUR": {"QAR": 3.97, "USD": 1.09},
}

type Config struct {
	// BaseURL is the exchange-rate API root, e.g.
	// https://v6.exchangerate-api.com/v6. Empty disables live lookups.
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Fallback enumerates the recognized currency pairs used when the live
	// source is unavailable. Nil selects the built-in table.
	Fallback map[string]map[string]float64
}

type Converter struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	rates    *cache.TTL[map[string]decimal.Decimal]
	fallback map[string]map[string]float64
}

func NewConverter(cfg Config) *Converter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = defaultFallbackRates
	}
	return &Converter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		rates:    cache.NewTTL[map[string]decimal.Decimal](defaultCacheSize, defaultRateTTL),
		fallback: fallback,
	}
}

// Rate returns the multiplier from one currency to another. Identity pairs
// short-circuit to 1 without any lookup. Live rates are tried first, then
// the fallback table; a pair known to neither degrades to 1 so reporting
// keeps working with unconverted amounts.
func (c *Converter) Rate(ctx context.Context, from, to string) decimal.Decimal {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return decimal.NewFromInt(1)
	}

	if table, err := c.liveRates(ctx, from); err == nil {
		// A zero or negative live rate counts as a failed lookup: the
		// multiplier must stay positive.
		if rate, ok := table[to]; ok && rate.IsPositive() {
			return rate
		}
	} else {
		slog.DebugContext(ctx, "Live rate lookup failed, using fallback",
			"from", from, "to", to, "error", err)
	}

	if rate, ok := c.fallbackRate(from, to); ok {
		return rate
	}

	slog.WarnContext(ctx, "No exchange rate for pair, using 1", "from", from, "to", to)
	return decimal.NewFromInt(1)
}

// Convert applies Rate to an amount.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	return amount.Mul(c.Rate(ctx, from, to))
}

type ratesResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

func (c *Converter) liveRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, fmt.Errorf("live rates not configured")
	}
	if table, ok := c.rates.Get(base); ok {
		return table, nil
	}

	url := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, c.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates API returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	if len(body.ConversionRates) == 0 {
		return nil, fmt.Errorf("rates response for %s carried no rates", base)
	}

	table := make(map[string]decimal.Decimal, len(body.ConversionRates))
	for code, rate := range body.ConversionRates {
		table[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	c.rates.Set(base, table)
	return table, nil
}

// fallbackRate consults the configured static table, synthesizing the
// reciprocal when only the reverse direction is listed.
func (c *Converter) fallbackRate(from, to string) (decimal.Decimal, bool) {
	if table, ok := c.fallback[from]; ok {
		if rate, ok := table[to]; ok && rate > 0 {
			return decimal.NewFromFloat(rate), true
		}
	}
	if table, ok := c.fallback[to]; ok {
		if rate, ok := table[from]; ok && rate > 0 {
			return decimal.NewFromInt(1).DivRound(decimal.NewFromFloat(rate), 8), true
		}
	}
	return decimal.Decimal{}, false
}
