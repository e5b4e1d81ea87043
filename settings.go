package bankroll

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the resolved configuration consumed by the engine. The engine
// never reads configuration storage; the caller (CLI, notebook) resolves
// files and flags into this value.
type Settings struct {
	// TargetCurrency is the reporting currency for aggregate valuation.
	TargetCurrency string

	// Concurrency bounds the number of in-flight quote lookups.
	Concurrency int

	// QuoteTimeout is the per-lookup deadline. A lookup that exceeds it
	// degrades to an unknown value instead of stalling the valuation.
	QuoteTimeout time.Duration

	// Merge declares which sources observe the same underlying account and
	// how much same-account quantities may diverge before it is a conflict.
	Merge MergePolicy

	// Lenient makes ingestion skip-and-report malformed records instead of
	// failing the run.
	Lenient bool
}

// DefaultSettings returns the engine defaults: USD reporting, 8 concurrent
// lookups, 10s per lookup, strict ingestion.
func DefaultSettings() Settings {
	return Settings{
		TargetCurrency: "USD",
		Concurrency:    8,
		QuoteTimeout:   10 * time.Second,
		Merge:          DefaultMergePolicy(),
	}
}

// SourceGroup declares that a set of sources observe the same underlying
// account, ranked by authority: the first source present wins during
// deduplication (e.g. a live API ahead of a stale CSV export of the same
// account).
type SourceGroup struct {
	Sources []string
}

// rank returns the authority rank of a source within the group, or -1.
func (g SourceGroup) rank(source string) int {
	for i, s := range g.Sources {
		if s == source {
			return i
		}
	}
	return -1
}

// MergePolicy configures the deduplication engine. Sources not named in any
// group are treated as distinct accounts whose holdings add up.
type MergePolicy struct {
	Groups []SourceGroup

	// Tolerance is the relative quantity divergence allowed between two
	// sources declared as the same account before the engine reports a
	// conflict. Zero means exact agreement is required.
	Tolerance decimal.Decimal

	// Symbols is the normalization applied before instruments are compared
	// across sources.
	Symbols SymbolPolicy
}

// defaultTolerance allows same-account quantities to diverge by 0.1%,
// absorbing rounding differences between export formats while still
// surfacing materially different holdings.
var defaultTolerance = decimal.New(1, -3)

// DefaultMergePolicy treats every source as a distinct account and applies
// the default symbol normalization.
func DefaultMergePolicy() MergePolicy {
	return MergePolicy{Tolerance: defaultTolerance, Symbols: DefaultSymbolPolicy()}
}

// groupOf returns a stable identifier for the account a source observes.
// Ungrouped sources each form their own account.
func (p MergePolicy) groupOf(source string) (id string, group SourceGroup, grouped bool) {
	for i, g := range p.Groups {
		if g.rank(source) >= 0 {
			return "group:" + strconv.Itoa(i), g, true
		}
	}
	return "source:" + source, SourceGroup{}, false
}
