package bankroll

import (
	"context"
	"fmt"
)

// Quote is a point-in-time market observation for one instrument. Any of the
// fields may be missing; all present fields share one currency.
type Quote struct {
	Bid   Cash
	Ask   Cash
	Last  Cash
	Close Cash
}

// NewQuote validates a quote: present prices must share one currency and the
// ask must be at least the bid.
func NewQuote(bid, ask, last, close Cash) (Quote, error) {
	q := Quote{Bid: bid, Ask: ask, Last: last, Close: close}
	cur := ""
	for _, c := range []Cash{bid, ask, last, close} {
		if c.Currency() == "" {
			continue
		}
		if cur == "" {
			cur = c.Currency()
			continue
		}
		if c.Currency() != cur {
			return Quote{}, fmt.Errorf("currencies in a quote must match, got %s and %s: %w",
				cur, c.Currency(), ErrCurrencyMismatch)
		}
	}
	if bid.Currency() != "" && ask.Currency() != "" {
		if cmp, _ := ask.Cmp(bid); cmp < 0 {
			return Quote{}, fmt.Errorf("expected ask %s to be at least bid %s", ask, bid)
		}
	}
	return q, nil
}

// Midpoint is the bid/ask midpoint, or whichever side is present.
// The zero Cash value means no midpoint is available.
func (q Quote) Midpoint() Cash {
	if q.Bid.Currency() != "" && q.Ask.Currency() != "" {
		sum, _ := q.Bid.Add(q.Ask)
		return sum.Div(Q(2))
	}
	if q.Bid.Currency() != "" {
		return q.Bid
	}
	return q.Ask
}

// Market is the best available estimate of current market price:
// midpoint, then last, then close.
func (q Quote) Market() Cash {
	if mid := q.Midpoint(); mid.Currency() != "" {
		return mid
	}
	if q.Last.Currency() != "" {
		return q.Last
	}
	return q.Close
}

// priceFor selects the price relevant to a position of the given sign.
// A long position is worth what the market pays right now (bid first);
// a short position costs what the market asks to close it (ask first).
func (q Quote) priceFor(quantity Quantity) Cash {
	var order []Cash
	if quantity.IsNegative() {
		order = []Cash{q.Ask, q.Last, q.Bid, q.Close}
	} else {
		order = []Cash{q.Bid, q.Last, q.Ask, q.Close}
	}
	for _, c := range order {
		if c.Currency() != "" {
			return c
		}
	}
	return Cash{}
}

// QuoteProvider is the price-lookup capability: given an instrument, return
// a current quote or fail. Implementations must be safe for concurrent use;
// the valuation engine issues independent lookups in parallel. Failures are
// reported with ErrNoQuote, ErrQuoteTimeout or ErrRateLimited (possibly
// wrapped) and are always recoverable as an unknown value.
type QuoteProvider interface {
	Quote(ctx context.Context, instrument Instrument) (Quote, error)
}

// QuoteFunc adapts a function to the QuoteProvider interface.
type QuoteFunc func(ctx context.Context, instrument Instrument) (Quote, error)

func (f QuoteFunc) Quote(ctx context.Context, instrument Instrument) (Quote, error) {
	return f(ctx, instrument)
}
