package bankroll

import "fmt"

// Position is a held quantity of one instrument, as reported by one source.
// The instrument is carried by value: positions are compared and merged by
// what they describe, never by source-provided identity.
type Position struct {
	Instrument Instrument
	Quantity   Quantity // signed: positive long, negative short
	CostBasis  Cash     // zero value when the source did not report one
	Source     string
}

// NewPosition validates and builds a position record.
func NewPosition(instrument Instrument, quantity Quantity, costBasis Cash, source string) (Position, error) {
	if costBasis.Currency() != "" && costBasis.Currency() != instrument.Currency() {
		return Position{}, fmt.Errorf("cost basis %s of %s must be in the instrument currency %s",
			costBasis, instrument, instrument.Currency())
	}
	return Position{Instrument: instrument, Quantity: quantity, CostBasis: costBasis, Source: source}, nil
}

// HasBasis reports whether the source reported a cost basis.
func (p Position) HasBasis() bool { return p.CostBasis.Currency() != "" }

// AveragePrice returns the per-unit cost of the position, accounting for the
// contract multiplier. Zero-quantity positions have a zero average price.
func (p Position) AveragePrice() Cash {
	if p.Quantity.IsZero() || !p.HasBasis() {
		return C(0, p.Instrument.Currency())
	}
	return p.CostBasis.Div(p.Quantity).Div(Q(p.Instrument.Multiplier()))
}

// Combine merges two positions in the same instrument by summing quantities
// and cost bases. Cost basis summation is what makes the merged basis a
// quantity-weighted average of the inputs. A basis reported by only one side
// is kept as a partial basis.
func (p Position) Combine(o Position) (Position, error) {
	return p.CombineUnder(o, SymbolPolicy{})
}

// CombineUnder is Combine with instrument identity decided under a symbol
// policy, so that separator variants of one security ("BRK.B", "BRK B")
// merge. The receiver's instrument is kept as the canonical one. The zero
// policy normalizes nothing and requires exact equality.
func (p Position) CombineUnder(o Position, symbols SymbolPolicy) (Position, error) {
	if p.Instrument.Key(symbols) != o.Instrument.Key(symbols) {
		return Position{}, fmt.Errorf("cannot combine positions in different instruments: %s and %s",
			p.Instrument, o.Instrument)
	}
	merged := Position{
		Instrument: p.Instrument,
		Quantity:   p.Quantity.Add(o.Quantity),
		Source:     p.Source,
	}
	if o.Source != p.Source {
		merged.Source = p.Source + "+" + o.Source
	}
	switch {
	case p.HasBasis() && o.HasBasis():
		basis, err := p.CostBasis.Add(o.CostBasis)
		if err != nil {
			return Position{}, err
		}
		merged.CostBasis = basis
	case p.HasBasis():
		merged.CostBasis = p.CostBasis
	case o.HasBasis():
		merged.CostBasis = o.CostBasis
	}
	return merged, nil
}

// String renders the position for logs and debugging.
func (p Position) String() string {
	return fmt.Sprintf("%-21s %14s @ %s", p.Instrument, p.Quantity, p.AveragePrice())
}

// MarshalJSON encodes the position for report output.
func (p Position) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("instrument", p.Instrument)
	w.Append("quantity", p.Quantity)
	if p.HasBasis() {
		w.Append("costBasis", p.CostBasis)
	}
	w.Optional("source", p.Source)
	return w.MarshalJSON()
}
