// Package tradegate serves live quotes from the Tradegate exchange and the
// ls-tc.de chart API. Equities are quoted through Tradegate's refresh
// endpoint by ISIN; currency pairs through the ls-tc.de intraday series.
// All Tradegate prices are denominated in EUR.
package tradegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/bankroll-py/bankroll"
)

const (
	refreshURL = "https://www.tradegate.de/refresh.php?isin="
	chartURL   = "https://www.ls-tc.de/_rpc/json/instrument/chart/dataForInstrument?series=intraday&type=mini&instrumentId="
)

// lastPath extracts the newest intraday point from an ls-tc.de chart payload.
const lastPath = "$.series.intraday.data[-1:][1]"

// Provider is a live QuoteProvider. It holds no connection state and is safe
// for concurrent use.
type Provider struct {
	client *http.Client

	// isins maps instrument symbols to the ISINs Tradegate quotes them
	// under.
	isins map[string]string

	// pairs maps currency-pair symbols ("EURUSD") to ls-tc.de instrument
	// ids.
	pairs map[string]string
}

var _ bankroll.QuoteProvider = (*Provider)(nil)

// New builds a provider over the given symbol-to-ISIN table. EURUSD is
// always resolvable; further pairs are added with AddPair.
func New(isins map[string]string) *Provider {
	if isins == nil {
		isins = make(map[string]string)
	}
	return &Provider{
		client: http.DefaultClient,
		isins:  isins,
		pairs:  map[string]string{"EURUSD": "349938"},
	}
}

// SetClient replaces the HTTP client, e.g. to add caching. Not safe to call
// once quotes are being served.
func (p *Provider) SetClient(c *http.Client) { p.client = c }

// AddPair registers the ls-tc.de instrument id quoting a currency pair.
func (p *Provider) AddPair(pair bankroll.Instrument, instrumentID string) {
	p.pairs[pair.Symbol()] = instrumentID
}

// Quote implements bankroll.QuoteProvider.
func (p *Provider) Quote(ctx context.Context, instrument bankroll.Instrument) (bankroll.Quote, error) {
	if instrument.Kind() == bankroll.KindForex {
		return p.pairQuote(ctx, instrument)
	}
	isin, ok := p.isins[instrument.Symbol()]
	if !ok {
		return bankroll.Quote{}, fmt.Errorf("no ISIN known for %s: %w", instrument, bankroll.ErrNoQuote)
	}
	return p.equityQuote(ctx, instrument, isin)
}

// equityQuote reads Tradegate's refresh payload, a flat JSON object whose
// bid/ask/last fields are floats, localized strings, or the "./." marker for
// a missing value.
func (p *Provider) equityQuote(ctx context.Context, instrument bankroll.Instrument, isin string) (bankroll.Quote, error) {
	var payload map[string]any
	if err := p.getJSON(ctx, refreshURL+url.QueryEscape(isin), &payload); err != nil {
		return bankroll.Quote{}, lookupError(instrument, err)
	}

	bid := priceField(payload, "bid")
	ask := priceField(payload, "ask")
	last := priceField(payload, "last")
	quote, err := bankroll.NewQuote(bid, ask, last, bankroll.Cash{})
	if err != nil {
		return bankroll.Quote{}, fmt.Errorf("%s: %w", instrument, err)
	}
	if quote.Market().Currency() == "" {
		return bankroll.Quote{}, fmt.Errorf("%s: empty payload for isin %s: %w", instrument, isin, bankroll.ErrNoQuote)
	}
	return quote, nil
}

// pairQuote reads the newest point of the ls-tc.de intraday series for the
// pair, priced in the pair's quote currency.
func (p *Provider) pairQuote(ctx context.Context, pair bankroll.Instrument) (bankroll.Quote, error) {
	id, ok := p.pairs[pair.Symbol()]
	if !ok {
		return bankroll.Quote{}, fmt.Errorf("no chart instrument known for %s: %w", pair, bankroll.ErrNoQuote)
	}
	var payload any
	if err := p.getJSON(ctx, chartURL+url.QueryEscape(id), &payload); err != nil {
		return bankroll.Quote{}, lookupError(pair, err)
	}

	value, err := jsonpath.Get(lastPath, payload)
	if err != nil {
		return bankroll.Quote{}, fmt.Errorf("%s: %q: %w", pair, lastPath, err)
	}
	// jsonpath may wrap a slice-selector result in a one-element list.
	if list, ok := value.([]any); ok && len(list) > 0 {
		value = list[0]
	}
	rate, ok := value.(float64)
	if !ok {
		return bankroll.Quote{}, fmt.Errorf("%s: %q is not a number: %v", pair, lastPath, value)
	}
	return bankroll.Quote{Last: bankroll.C(rate, pair.Currency())}, nil
}

// priceField reads one price out of the refresh payload, tolerating its
// format quirks. The zero Cash value means the field is absent.
func priceField(payload map[string]any, field string) bankroll.Cash {
	value, ok := payload[field]
	if !ok {
		return bankroll.Cash{}
	}
	switch v := value.(type) {
	case float64:
		if v == 0 {
			return bankroll.Cash{}
		}
		return bankroll.C(v, "EUR")
	case string:
		if v == "./." {
			return bankroll.Cash{}
		}
		// Sometimes the value arrives as a localized string ("1 234,56").
		v = strings.ReplaceAll(v, " ", "")
		v = strings.ReplaceAll(v, " ", "")
		v = strings.ReplaceAll(v, ",", ".")
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f == 0 {
			return bankroll.Cash{}
		}
		return bankroll.C(f, "EUR")
	default:
		return bankroll.Cash{}
	}
}

// getJSON fetches addr and decodes the JSON body.
func (p *Provider) getJSON(ctx context.Context, addr string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", resp.Status, bankroll.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", addr, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// lookupError normalizes transport failures: a deadline becomes
// ErrQuoteTimeout so the valuation can report it as such.
func lookupError(instrument bankroll.Instrument, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", instrument, bankroll.ErrQuoteTimeout)
	}
	return fmt.Errorf("%s: %w", instrument, err)
}
