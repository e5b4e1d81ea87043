// Package fixed is a static QuoteProvider: prices are declared up front,
// typically from a configuration file, for offline runs and tests.
package fixed

import (
	"context"
	"fmt"
	"sync"

	"github.com/bankroll-py/bankroll"
)

// Provider serves quotes from a fixed table. The zero value is empty and
// usable; Provider is safe for concurrent use.
type Provider struct {
	mu     sync.RWMutex
	quotes map[string]bankroll.Quote
	policy bankroll.SymbolPolicy
}

var _ bankroll.QuoteProvider = (*Provider)(nil)

// New builds an empty provider keyed under the default symbol normalization.
func New() *Provider {
	return &Provider{policy: bankroll.DefaultSymbolPolicy()}
}

// Set declares the quote for an instrument, replacing any previous one.
func (p *Provider) Set(instrument bankroll.Instrument, quote bankroll.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quotes == nil {
		p.quotes = make(map[string]bankroll.Quote)
	}
	p.quotes[instrument.Key(p.policy)] = quote
}

// SetPrice declares a single last price for an instrument.
func (p *Provider) SetPrice(instrument bankroll.Instrument, last bankroll.Cash) {
	p.Set(instrument, bankroll.Quote{Last: last})
}

// SetRate declares the exchange rate for a currency pair: one unit of base
// is worth rate units of the rate's currency.
func (p *Provider) SetRate(base string, rate bankroll.Cash) error {
	pair, err := bankroll.NewForex(base, rate.Currency())
	if err != nil {
		return err
	}
	p.SetPrice(pair, rate)
	return nil
}

// Quote implements bankroll.QuoteProvider.
func (p *Provider) Quote(ctx context.Context, instrument bankroll.Instrument) (bankroll.Quote, error) {
	p.mu.RLock()
	quote, ok := p.quotes[instrument.Key(p.policy)]
	p.mu.RUnlock()
	if !ok {
		return bankroll.Quote{}, fmt.Errorf("%s: %w", instrument, bankroll.ErrNoQuote)
	}
	return quote, nil
}
