package bankroll

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DeduplicatePositions collapses an unordered set of per-source position
// records into exactly one position per distinct instrument.
//
// Records are grouped by canonical instrument equality after the policy's
// symbol normalization. Within an instrument:
//   - sources declared as the same underlying account are collapsed to the
//     most authoritative source's record, after checking that the others
//     agree within the policy tolerance;
//   - sources observing distinct accounts are summed, which also makes the
//     merged cost basis a quantity-weighted average.
//
// Positions whose merged quantity is exactly zero carry no information and
// are dropped. The result is sorted by instrument order, and the operation
// is idempotent.
func DeduplicatePositions(positions []Position, policy MergePolicy) ([]Position, error) {
	type bucket struct {
		instrument Instrument
		positions  []Position
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)
	for _, p := range positions {
		key := p.Instrument.Key(policy.Symbols)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{instrument: p.Instrument}
			buckets[key] = b
			order = append(order, key)
		}
		b.positions = append(b.positions, p)
	}

	merged := make([]Position, 0, len(buckets))
	for _, key := range order {
		b := buckets[key]
		m, err := mergeInstrumentGroup(b.positions, policy)
		if err != nil {
			return nil, err
		}
		if m.Quantity.IsZero() {
			continue
		}
		merged = append(merged, m)
	}

	slices.SortFunc(merged, func(a, b Position) int {
		return a.Instrument.Compare(b.Instrument)
	})
	return merged, nil
}

// mergeInstrumentGroup merges all records for one instrument.
func mergeInstrumentGroup(group []Position, policy MergePolicy) (Position, error) {
	// First collapse same-account observations, then sum across accounts.
	type account struct {
		group     SourceGroup
		grouped   bool
		bySource  map[string]Position
		srcsOrder []string
	}
	accounts := make(map[string]*account)
	order := make([]string, 0)
	for _, p := range group {
		id, g, grouped := policy.groupOf(p.Source)
		a, ok := accounts[id]
		if !ok {
			a = &account{group: g, grouped: grouped, bySource: make(map[string]Position)}
			accounts[id] = a
			order = append(order, id)
		}
		if existing, ok := a.bySource[p.Source]; ok {
			// One source may legitimately report several lots of the same
			// instrument; they add up before any cross-source comparison.
			combined, err := existing.CombineUnder(p, policy.Symbols)
			if err != nil {
				return Position{}, err
			}
			a.bySource[p.Source] = combined
		} else {
			a.bySource[p.Source] = p
			a.srcsOrder = append(a.srcsOrder, p.Source)
		}
	}

	var result Position
	for i, id := range order {
		a := accounts[id]
		p, err := collapseAccount(a.bySource, a.srcsOrder, a.group, a.grouped, policy)
		if err != nil {
			return Position{}, err
		}
		if i == 0 {
			result = p
			continue
		}
		result, err = result.CombineUnder(p, policy.Symbols)
		if err != nil {
			return Position{}, err
		}
	}
	return result, nil
}

// collapseAccount resolves the records that observe one underlying account.
// The most authoritative source wins; the others must agree within the
// tolerance or the conflict is surfaced to the caller.
func collapseAccount(bySource map[string]Position, sources []string, group SourceGroup, grouped bool, policy MergePolicy) (Position, error) {
	if len(bySource) == 1 {
		return bySource[sources[0]], nil
	}
	if !grouped {
		// Cannot happen: ungrouped sources form single-source accounts.
		return Position{}, fmt.Errorf("internal: %d sources in an ungrouped account", len(bySource))
	}

	slices.SortFunc(sources, func(a, b string) int { return group.rank(a) - group.rank(b) })
	winner := bySource[sources[0]]

	for _, src := range sources[1:] {
		other := bySource[src]
		if !quantitiesAgree(winner.Quantity, other.Quantity, policy) {
			return Position{}, &ConflictingPositionDataError{
				Instrument: winner.Instrument,
				Sources:    sources,
				Quantities: quantitiesOf(bySource, sources),
			}
		}
	}
	return winner, nil
}

// quantitiesAgree applies the relative tolerance: two observations of the
// same account agree when their difference is within tolerance of the larger
// magnitude.
func quantitiesAgree(a, b Quantity, policy MergePolicy) bool {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return true
	}
	larger := a.Abs()
	if b.Abs().GreaterThan(larger) {
		larger = b.Abs()
	}
	allowed := larger.Mul(Q(policy.Tolerance))
	return !diff.GreaterThan(allowed)
}

func quantitiesOf(bySource map[string]Position, sources []string) []Quantity {
	quantities := make([]Quantity, 0, len(sources))
	for _, src := range sources {
		quantities = append(quantities, bySource[src].Quantity)
	}
	return quantities
}

// DeduplicateTrades drops trades that are value-identical to ones already
// reported by another source observing the same account. The collapse is a
// multiset intersection per source group: a fingerprint reported n times by
// one source and m times by another yields max(n, m) records, so two
// genuinely distinct same-source fills at the same price and time both
// survive. Trades from distinct accounts are never collapsed, even when
// identical.
func DeduplicateTrades(trades []Trade, policy MergePolicy) []Trade {
	return dedupeWithinGroups(trades, func(t Trade) (fp, source string, grouped bool) {
		id, _, grouped := policy.groupOf(t.Source)
		fp = strings.Join([]string{
			id,
			t.Instrument.Key(policy.Symbols),
			t.Quantity.String(),
			t.Price.Currency(), t.Price.Amount().String(),
			t.Fees.Amount().String(),
			t.Time.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%d", t.Flags),
		}, "|")
		return fp, t.Source, grouped
	})
}

// DeduplicateCashEvents is the cash-event analogue of DeduplicateTrades.
func DeduplicateCashEvents(events []CashEvent, policy MergePolicy) []CashEvent {
	return dedupeWithinGroups(events, func(e CashEvent) (fp, source string, grouped bool) {
		id, _, grouped := policy.groupOf(e.Source)
		fp = strings.Join([]string{
			id,
			e.Amount.Currency(), e.Amount.Amount().String(),
			e.Time.UTC().Format(time.RFC3339Nano),
			e.Description,
		}, "|")
		return fp, e.Source, grouped
	})
}

// dedupeWithinGroups keeps, for every value fingerprint inside a declared
// source group, as many copies as the single source reporting it most
// often. Records outside any group pass through untouched. Input order is
// preserved.
func dedupeWithinGroups[T any](items []T, key func(T) (fp, source string, grouped bool)) []T {
	counts := make(map[string]map[string]int)
	for _, item := range items {
		fp, source, grouped := key(item)
		if !grouped {
			continue
		}
		bySource, ok := counts[fp]
		if !ok {
			bySource = make(map[string]int)
			counts[fp] = bySource
		}
		bySource[source]++
	}

	needed := make(map[string]int, len(counts))
	for fp, bySource := range counts {
		for _, n := range bySource {
			if n > needed[fp] {
				needed[fp] = n
			}
		}
	}

	out := make([]T, 0, len(items))
	kept := make(map[string]int)
	for _, item := range items {
		fp, _, grouped := key(item)
		if !grouped {
			out = append(out, item)
			continue
		}
		if kept[fp] >= needed[fp] {
			continue
		}
		kept[fp]++
		out = append(out, item)
	}
	return out
}
