package bankroll

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bankroll-py/bankroll/date"
	"github.com/shopspring/decimal"
)

// Kind identifies the class of a tradable instrument.
type Kind string

const (
	KindStock        Kind = "stock" // also used for ETFs
	KindBond         Kind = "bond"
	KindOption       Kind = "option"
	KindFutureOption Kind = "future-option"
	KindFuture       Kind = "future"
	KindForex        Kind = "forex"
	KindCash         Kind = "cash"
	KindUnknown      Kind = "unknown"
)

// kindRank gives kinds a stable order for sorting instruments.
func kindRank(k Kind) int {
	switch k {
	case KindStock:
		return 0
	case KindBond:
		return 1
	case KindOption:
		return 2
	case KindFutureOption:
		return 3
	case KindFuture:
		return 4
	case KindForex:
		return 5
	case KindCash:
		return 6
	default:
		return 7
	}
}

// OptionType distinguishes puts from calls, using the OCC letter codes.
type OptionType string

const (
	Call OptionType = "C"
	Put  OptionType = "P"
)

// cusipRegex matches a bond CUSIP: 3 digits, 5 alphanumerics, 1 check digit.
var cusipRegex = regexp.MustCompile(`^[0-9]{3}[0-9A-Z]{5}[0-9]$`)

// ValidBondSymbol reports whether symbol looks like a bond CUSIP.
func ValidBondSymbol(symbol string) bool { return cusipRegex.MatchString(symbol) }

// Instrument is the canonical identity of a tradable security or currency.
// It is a value type: two instruments describe the same security iff all
// their fields match, and that equality is the deduplication key. Instruments
// built through the constructors are always well formed.
type Instrument struct {
	kind       Kind
	symbol     string
	cur        string
	multiplier decimal.Decimal

	// Derivative fields, zero-valued for non-derivative kinds.
	underlying string
	optType    OptionType
	expiration date.Date
	strike     decimal.Decimal
}

func (i Instrument) Kind() Kind                  { return i.kind }
func (i Instrument) Symbol() string              { return i.symbol }
func (i Instrument) Currency() string            { return i.cur }
func (i Instrument) Multiplier() decimal.Decimal { return i.multiplier }
func (i Instrument) Underlying() string          { return i.underlying }
func (i Instrument) OptionType() OptionType      { return i.optType }
func (i Instrument) Expiration() date.Date       { return i.expiration }
func (i Instrument) Strike() decimal.Decimal     { return i.strike }

// String returns the instrument's symbol.
func (i Instrument) String() string { return i.symbol }

// newInstrument validates the fields shared by every kind.
func newInstrument(kind Kind, symbol, currency string, multiplier decimal.Decimal) (Instrument, error) {
	if symbol == "" {
		return Instrument{}, &MalformedInstrumentError{Reason: "empty symbol"}
	}
	if !ValidCurrency(currency) {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: fmt.Sprintf("unknown currency %q", currency)}
	}
	if !multiplier.IsPositive() {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: fmt.Sprintf("multiplier %s is not positive", multiplier)}
	}
	return Instrument{kind: kind, symbol: strings.TrimSpace(symbol), cur: currency, multiplier: multiplier}, nil
}

// NewStock builds a stock or ETF instrument.
func NewStock(symbol, currency string) (Instrument, error) {
	return newInstrument(KindStock, symbol, currency, decimal.NewFromInt(1))
}

// NewBond builds a bond instrument after validating the CUSIP format.
func NewBond(symbol, currency string) (Instrument, error) {
	if !ValidBondSymbol(symbol) {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: "not a bond CUSIP"}
	}
	return NewBondLoose(symbol, currency)
}

// NewBondLoose builds a bond instrument without CUSIP validation, for
// sources that report bonds under free-form names.
func NewBondLoose(symbol, currency string) (Instrument, error) {
	return newInstrument(KindBond, symbol, currency, decimal.NewFromInt(1))
}

// NewOption builds an equity option. When symbol is empty, the OCC symbol is
// synthesized from the contract fields
// (https://en.wikipedia.org/wiki/Option_symbol).
func NewOption(symbol, underlying, currency string, typ OptionType, expiration date.Date, strike, multiplier decimal.Decimal) (Instrument, error) {
	if underlying == "" {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: "option requires an underlying symbol"}
	}
	if typ != Call && typ != Put {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: fmt.Sprintf("option type must be C or P, got %q", typ)}
	}
	if expiration.IsZero() {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: "option requires an expiration date"}
	}
	if !strike.IsPositive() {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: fmt.Sprintf("strike %s is not positive", strike)}
	}
	if symbol == "" {
		symbol = occSymbol(underlying, typ, expiration, strike)
	}
	i, err := newInstrument(KindOption, symbol, currency, multiplier)
	if err != nil {
		return Instrument{}, err
	}
	i.underlying, i.optType, i.expiration, i.strike = underlying, typ, expiration, strike
	return i, nil
}

// NewFutureOption builds an option on a future. Unlike equity options the
// symbol and multiplier are always source-supplied.
func NewFutureOption(symbol, underlying, currency string, typ OptionType, expiration date.Date, strike, multiplier decimal.Decimal) (Instrument, error) {
	i, err := NewOption(symbol, underlying, currency, typ, expiration, strike, multiplier)
	if err != nil {
		return Instrument{}, err
	}
	i.kind = KindFutureOption
	return i, nil
}

// NewFuture builds a futures contract.
func NewFuture(symbol, currency string, multiplier decimal.Decimal, expiration date.Date) (Instrument, error) {
	if expiration.IsZero() {
		return Instrument{}, &MalformedInstrumentError{Symbol: symbol, Reason: "future requires an expiration date"}
	}
	i, err := newInstrument(KindFuture, symbol, currency, multiplier)
	if err != nil {
		return Instrument{}, err
	}
	i.expiration = expiration
	return i, nil
}

// NewForex builds a currency-pair instrument priced in the quote currency.
// The symbol follows the FX market convention, base then quote ("EURUSD").
func NewForex(base, quote string) (Instrument, error) {
	if base == quote {
		return Instrument{}, &MalformedInstrumentError{Symbol: base + quote, Reason: "forex pair requires two different currencies"}
	}
	if !ValidCurrency(base) {
		return Instrument{}, &MalformedInstrumentError{Symbol: base + quote, Reason: fmt.Sprintf("unknown base currency %q", base)}
	}
	i, err := newInstrument(KindForex, base+quote, quote, decimal.NewFromInt(1))
	if err != nil {
		return Instrument{}, err
	}
	i.underlying = base
	return i, nil
}

// NewCash builds the instrument representing a plain currency holding.
func NewCash(currency string) (Instrument, error) {
	return newInstrument(KindCash, currency, currency, decimal.NewFromInt(1))
}

// occSymbol synthesizes the standard OCC option symbol, e.g.
// "AAPL  250117C00150000".
func occSymbol(underlying string, typ OptionType, expiration date.Date, strike decimal.Decimal) string {
	milli := strike.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
	return fmt.Sprintf("%-6s%02d%02d%02d%s%08d",
		underlying, expiration.Year()%100, int(expiration.Month()), expiration.Day(), typ, milli)
}

// Equal reports whether two instruments describe the same security:
// every field must match.
func (i Instrument) Equal(o Instrument) bool {
	return i.kind == o.kind &&
		i.symbol == o.symbol &&
		i.cur == o.cur &&
		i.multiplier.Equal(o.multiplier) &&
		i.underlying == o.underlying &&
		i.optType == o.optType &&
		i.expiration == o.expiration &&
		i.strike.Equal(o.strike)
}

// Compare orders instruments by the composite key
// (kind, symbol, currency, underlying, option type, expiration, strike,
// multiplier). The order is total and deterministic, used for stable report
// output.
func (i Instrument) Compare(o Instrument) int {
	if c := kindRank(i.kind) - kindRank(o.kind); c != 0 {
		return c
	}
	if c := strings.Compare(i.symbol, o.symbol); c != 0 {
		return c
	}
	if c := strings.Compare(i.cur, o.cur); c != 0 {
		return c
	}
	if c := strings.Compare(i.underlying, o.underlying); c != 0 {
		return c
	}
	if c := strings.Compare(string(i.optType), string(o.optType)); c != 0 {
		return c
	}
	if c := i.expiration.Compare(o.expiration); c != 0 {
		return c
	}
	if c := i.strike.Cmp(o.strike); c != 0 {
		return c
	}
	return i.multiplier.Cmp(o.multiplier)
}

// Key returns a canonical string key for map grouping. Two instruments have
// the same key iff they are Equal after applying the symbol policy.
func (i Instrument) Key(policy SymbolPolicy) string {
	return strings.Join([]string{
		string(i.kind),
		policy.Normalize(i.symbol),
		i.cur,
		i.multiplier.String(),
		policy.Normalize(i.underlying),
		string(i.optType),
		i.expiration.String(),
		i.strike.String(),
	}, "|")
}

// MarshalJSON encodes the instrument, omitting fields irrelevant to its kind.
func (i Instrument) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("kind", i.kind)
	w.Append("symbol", i.symbol)
	w.Append("currency", i.cur)
	if !i.multiplier.Equal(decimal.NewFromInt(1)) {
		w.Append("multiplier", i.multiplier)
	}
	w.Optional("underlying", i.underlying)
	w.Optional("optionType", i.optType)
	if !i.expiration.IsZero() {
		w.Append("expiration", i.expiration)
	}
	if !i.strike.IsZero() {
		w.Append("strike", i.strike)
	}
	return w.MarshalJSON()
}

// symbolSeparators matches the characters brokers disagree on when writing
// multi-class share symbols ("BRK.B", "BRK B", "BRK/B").
var symbolSeparators = regexp.MustCompile(`[.\s/]`)

// SymbolPolicy is the configurable symbol normalization applied uniformly
// before instruments are compared across sources. The engine never guesses
// beyond the declared policy: residual mismatches are the user's to fix.
type SymbolPolicy struct {
	// CaseFold upper-cases symbols before comparison.
	CaseFold bool
	// StripSeparators removes '.', '/' and spaces from symbols.
	StripSeparators bool
	// StripSuffixes removes trailing exchange suffixes like ".TO".
	StripSuffixes []string
}

// DefaultSymbolPolicy strips separators only, matching how most brokerages
// export multi-class share symbols.
func DefaultSymbolPolicy() SymbolPolicy {
	return SymbolPolicy{StripSeparators: true}
}

// Normalize applies the policy to one symbol.
func (p SymbolPolicy) Normalize(symbol string) string {
	for _, suffix := range p.StripSuffixes {
		symbol = strings.TrimSuffix(symbol, suffix)
	}
	if p.StripSeparators {
		symbol = symbolSeparators.ReplaceAllString(symbol, "")
	}
	if p.CaseFold {
		symbol = strings.ToUpper(symbol)
	}
	return symbol
}
