package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/shopspring/decimal"
)

// StaticProvider serves quotes from a fixed table.
type StaticProvider struct {
	quotes map[string]model.Quote
}

func NewStaticProvider(quotes ...model.Quote) *StaticProvider {
	provider := &StaticProvider{quotes: make(map[string]model.Quote, len(quotes))}

	for _, q := range quotes {
		provider.Set(q)
	}

	return provider
}

// ParseStatic reads a table in the form `SYM:Name:price;SYM:Name:price`.
func ParseStatic(table string) (*StaticProvider, error) {
	provider := NewStaticProvider()

	for _, entry := range strings.Split(table, ";") {
		entry = strings.TrimSpace(entry)

		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")

		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static quote %q", entry)
		}

		price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))

		if err != nil || price.Sign() <= 0 {
			return nil, fmt.Errorf("invalid static quote price %q", entry)
		}

		provider.Set(model.Quote{
			Symbol: strings.ToUpper(strings.TrimSpace(parts[0])),
			Name:   strings.TrimSpace(parts[1]),
			Price:  price,
		})
	}

	return provider, nil
}

// Set adds or replaces a quote. It is not safe to call while lookups run.
func (p *StaticProvider) Set(q model.Quote) {
	p.quotes[strings.ToUpper(q.Symbol)] = q
}

func (p *StaticProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}

	if q, ok := p.quotes[strings.ToUpper(symbol)]; ok && q.Price.Sign() > 0 {
		return q, nil
	}

	return model.Quote{}, ErrNotFound
}

// Remove deletes a quote, so lookups for the symbol fail.
func (p *StaticProvider) Remove(symbol string) {
	delete(p.quotes, strings.ToUpper(symbol))
}
