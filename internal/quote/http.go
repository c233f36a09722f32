package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/shopspring/decimal"
)

// HTTPOptions configures an HTTPProvider.
//
// URL may contain `{symbol}` and `{token}` placeholders. The paths are
// JSONPath expressions evaluated against the response body.
type HTTPOptions struct {
	URL        string
	APIKey     string
	SymbolPath string
	NamePath   string
	PricePath  string
	Timeout    time.Duration
}

// HTTPProvider looks up quotes from a JSON market data API.
type HTTPProvider struct {
	options HTTPOptions
	client  *http.Client
}

func NewHTTPProvider(options HTTPOptions) *HTTPProvider {
	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}

	return &HTTPProvider{
		options: options,
		client: &http.Client{
			Timeout: options.Timeout,
		},
	}
}

func (p *HTTPProvider) endpoint(symbol string) string {
	return strings.NewReplacer(
		"{symbol}", url.PathEscape(symbol),
		"{token}", url.QueryEscape(p.options.APIKey),
	).Replace(p.options.URL)
}

func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(symbol), nil)

	if err != nil {
		return model.Quote{}, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)

	if err != nil {
		return model.Quote{}, err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Quote{}, ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return model.Quote{}, fmt.Errorf("quote api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload any

	if err := decoder.Decode(&payload); err != nil {
		return model.Quote{}, fmt.Errorf("quote api returned invalid JSON: %w", err)
	}

	return p.readQuote(symbol, payload)
}

func (p *HTTPProvider) readQuote(symbol string, payload any) (model.Quote, error) {
	if payload == nil {
		return model.Quote{}, ErrNotFound
	}

	result := model.Quote{Symbol: symbol, Name: symbol}

	if value, ok := lookupPath(p.options.SymbolPath, payload); ok {
		if text, ok := value.(string); ok && text != "" {
			result.Symbol = strings.ToUpper(text)
		}
	}

	if value, ok := lookupPath(p.options.NamePath, payload); ok {
		if text, ok := value.(string); ok && text != "" {
			result.Name = text
		}
	}

	value, ok := lookupPath(p.options.PricePath, payload)

	if !ok {
		return model.Quote{}, ErrNotFound
	}

	price, err := toDecimal(value)

	if err != nil {
		return model.Quote{}, fmt.Errorf("quote api price for %s: %w", symbol, err)
	}

	// Nothing can be traded at a price of zero or less.
	if price.Sign() <= 0 {
		return model.Quote{}, ErrNotFound
	}

	result.Price = price

	return result, nil
}

// lookupPath evaluates a JSONPath expression, returning false for missing or null values.
func lookupPath(path string, payload any) (any, bool) {
	if path == "" {
		return nil, false
	}

	value, err := jsonpath.Get(path, payload)

	if err != nil {
		return nil, false
	}

	// Wildcard paths return lists, so take the first match.
	if list, ok := value.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}

		value = list[0]
	}

	return value, value != nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected price value %v", value)
	}
}
