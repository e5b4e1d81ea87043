package bankroll

import (
	"slices"
	"strings"
)

// AccountBalance holds the uninvested cash of an account, one entry per
// currency. Cash invested in money market funds that shows up as a position
// is not part of the balance. Zero entries are pruned.
type AccountBalance struct {
	cash map[string]Cash
}

// NewAccountBalance builds a balance from per-currency entries.
func NewAccountBalance(entries ...Cash) AccountBalance {
	b := AccountBalance{cash: make(map[string]Cash)}
	for _, e := range entries {
		b = b.Add(e)
	}
	return b
}

// Add returns a new balance with the entry added to its currency bucket.
func (b AccountBalance) Add(entry Cash) AccountBalance {
	merged := make(map[string]Cash, len(b.cash)+1)
	for cur, c := range b.cash {
		merged[cur] = c
	}
	if existing, ok := merged[entry.Currency()]; ok {
		sum, _ := existing.Add(entry) // same bucket, same currency
		merged[entry.Currency()] = sum
	} else {
		merged[entry.Currency()] = entry
	}
	if merged[entry.Currency()].IsZero() {
		delete(merged, entry.Currency())
	}
	return AccountBalance{cash: merged}
}

// Merge combines two balances currency by currency.
func (b AccountBalance) Merge(o AccountBalance) AccountBalance {
	merged := b
	for _, c := range o.cash {
		merged = merged.Add(c)
	}
	return merged
}

// Get returns the balance in one currency, zero if absent.
func (b AccountBalance) Get(currency string) Cash {
	if c, ok := b.cash[currency]; ok {
		return c
	}
	return C(0, currency)
}

// Currencies lists the held currencies in a deterministic order.
func (b AccountBalance) Currencies() []string {
	currencies := make([]string, 0, len(b.cash))
	for cur := range b.cash {
		currencies = append(currencies, cur)
	}
	slices.SortFunc(currencies, strings.Compare)
	return currencies
}

// Entries lists the non-zero cash entries sorted by currency.
func (b AccountBalance) Entries() []Cash {
	entries := make([]Cash, 0, len(b.cash))
	for _, cur := range b.Currencies() {
		entries = append(entries, b.cash[cur])
	}
	return entries
}

func (b AccountBalance) String() string {
	parts := make([]string, 0, len(b.cash))
	for _, e := range b.Entries() {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}
