package bankroll

import (
	"errors"
	"fmt"
)

// Quote lookup failures. They are always recoverable: a valuation degrades
// the affected position to an unknown value instead of failing the run.
var (
	// ErrNoQuote reports that the market data source has no quote for the
	// requested instrument.
	ErrNoQuote = errors.New("no quote available")

	// ErrQuoteTimeout reports that a quote lookup did not complete within
	// the configured per-lookup timeout.
	ErrQuoteTimeout = errors.New("quote lookup timed out")

	// ErrRateLimited reports that the market data source refused the lookup
	// because of rate limiting.
	ErrRateLimited = errors.New("quote lookup rate limited")
)

// ErrCurrencyMismatch reports an arithmetic operation between two Cash
// values of different currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// MalformedInstrumentError reports an instrument that could not be built
// from source data because required fields are missing or invalid.
type MalformedInstrumentError struct {
	Symbol string // the offending symbol, possibly empty
	Reason string
}

func (e *MalformedInstrumentError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("malformed instrument: %s", e.Reason)
	}
	return fmt.Sprintf("malformed instrument %q: %s", e.Symbol, e.Reason)
}

// ConflictingPositionDataError reports that two sources declared as the same
// underlying account disagree about a position beyond the configured
// tolerance. It is always surfaced to the caller: picking a winner silently
// would mask a data-quality or configuration problem.
type ConflictingPositionDataError struct {
	Instrument Instrument
	Sources    []string
	Quantities []Quantity
}

func (e *ConflictingPositionDataError) Error() string {
	return fmt.Sprintf("conflicting position data for %s: sources %v report quantities %v",
		e.Instrument.Symbol(), e.Sources, e.Quantities)
}

// IngestionError reports a source adapter failure, attributed to the source
// that produced it. Fatal in strict mode; skipped and reported in lenient
// mode.
type IngestionError struct {
	Source string
	Record string // offending record context, e.g. a CSV row, possibly empty
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("ingestion failed for source %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ingestion failed for source %q at %q: %v", e.Source, e.Record, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
