package bankroll

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PositionValue is the mark-to-market result for one position. A position
// whose price or exchange rate could not be obtained is flagged unknown and
// carries the reason; its value is never coerced to zero.
type PositionValue struct {
	Position Position
	Price    Cash  // unit price in the instrument currency, zero when unknown
	Value    Cash  // market value in the reporting currency, zero when unknown
	Err      error // reason the value is unknown, nil when known
}

// Known reports whether the position could be valued.
func (v PositionValue) Known() bool { return v.Err == nil }

// MarshalJSON encodes the row, writing "unknown" rather than a zero value
// for positions that could not be priced.
func (v PositionValue) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("instrument", v.Position.Instrument)
	w.Append("quantity", v.Position.Quantity)
	if v.Position.HasBasis() {
		w.Append("costBasis", v.Position.CostBasis)
	}
	if v.Known() {
		w.Append("price", v.Price)
		w.Append("value", v.Value)
	} else {
		w.Append("value", "unknown")
		w.Append("reason", v.Err.Error())
	}
	return w.MarshalJSON()
}

// ValuationReport is the consolidated mark-to-market view of a deduplicated
// position list. The total covers known rows only; Unknown always lists what
// was excluded so a consumer can see precisely what the total omits.
type ValuationReport struct {
	Currency string
	Time     time.Time
	Rows     []PositionValue
	Total    Cash
	Unknown  []Instrument
}

// lookup is the settled outcome of one concurrent quote request.
type lookup struct {
	quote Quote
	err   error
}

// Value computes the mark-to-market value of deduplicated positions in the
// target currency.
//
// One quote is requested per distinct instrument and one per required
// currency pair, concurrently, bounded by settings.Concurrency. Each lookup
// carries its own timeout: a stalled request degrades to an unknown value
// for the affected rows without blocking the others. Cancelling ctx abandons
// in-flight lookups; rows whose lookups had already settled are still valued.
func Value(ctx context.Context, positions []Position, provider QuoteProvider, settings Settings) (*ValuationReport, error) {
	target := settings.TargetCurrency
	if !ValidCurrency(target) {
		return nil, fmt.Errorf("invalid target currency %q", target)
	}

	// Instruments to price, and the currency pairs needed to convert them.
	var requests []Instrument
	seen := make(map[string]bool)
	policy := settings.Merge.Symbols
	request := func(i Instrument) {
		key := i.Key(policy)
		if !seen[key] {
			seen[key] = true
			requests = append(requests, i)
		}
	}
	for _, p := range positions {
		if p.Instrument.Kind() != KindCash {
			request(p.Instrument)
		}
		if cur := p.Instrument.Currency(); cur != target {
			pair, err := NewForex(cur, target)
			if err != nil {
				return nil, err
			}
			request(pair)
		}
	}

	results := make(map[string]lookup, len(requests))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	if settings.Concurrency > 0 {
		eg.SetLimit(settings.Concurrency)
	}
	for _, instrument := range requests {
		eg.Go(func() error {
			lctx := gctx
			if settings.QuoteTimeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(gctx, settings.QuoteTimeout)
				defer cancel()
			}
			quote, err := provider.Quote(lctx, instrument)
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%s: %w", instrument, ErrQuoteTimeout)
			}
			mu.Lock()
			results[instrument.Key(policy)] = lookup{quote: quote, err: err}
			mu.Unlock()
			// Lookup failures are per-row outcomes, never fatal to the run.
			return nil
		})
	}
	_ = eg.Wait()

	// Single-threaded reduction: join settled lookups back by instrument key.
	settled := func(i Instrument) lookup {
		if l, ok := results[i.Key(policy)]; ok {
			return l
		}
		// The lookup never settled: the run was cancelled before it fired.
		reason := context.Cause(ctx)
		if reason == nil {
			reason = ErrNoQuote
		}
		return lookup{err: fmt.Errorf("%s: %w", i, reason)}
	}

	report := &ValuationReport{
		Currency: target,
		Time:     time.Now(),
		Rows:     make([]PositionValue, 0, len(positions)),
		Total:    C(0, target),
	}

	for _, p := range positions {
		row := PositionValue{Position: p}

		// Unit price in the instrument currency. Cash is its own unit price.
		if p.Instrument.Kind() == KindCash {
			row.Price = C(1, p.Instrument.Currency())
		} else {
			l := settled(p.Instrument)
			if l.err != nil {
				row.Err = l.err
				report.Rows = append(report.Rows, row)
				continue
			}
			row.Price = l.quote.priceFor(p.Quantity)
			if row.Price.Currency() == "" {
				row.Err = fmt.Errorf("%s: empty quote: %w", p.Instrument, ErrNoQuote)
				report.Rows = append(report.Rows, row)
				continue
			}
		}

		native := row.Price.Mul(p.Quantity).Mul(Q(p.Instrument.Multiplier()))

		// Convert to the reporting currency. A missing exchange rate is the
		// same unknown outcome as a missing security price.
		if native.Currency() != target {
			pair, _ := NewForex(native.Currency(), target)
			l := settled(pair)
			if l.err != nil {
				row.Err = l.err
				report.Rows = append(report.Rows, row)
				continue
			}
			rate := l.quote.Market()
			if rate.Currency() == "" {
				row.Err = fmt.Errorf("%s: empty quote: %w", pair, ErrNoQuote)
				report.Rows = append(report.Rows, row)
				continue
			}
			row.Value = rate.Mul(Q(native.Amount()))
		} else {
			row.Value = native
		}

		total, err := report.Total.Add(row.Value)
		if err != nil {
			return nil, err
		}
		report.Total = total
		report.Rows = append(report.Rows, row)
	}

	for _, row := range report.Rows {
		if !row.Known() {
			report.Unknown = append(report.Unknown, row.Position.Instrument)
		}
	}
	slices.SortFunc(report.Unknown, Instrument.Compare)

	return report, nil
}
