// Package bankroll unifies investment data scattered across brokerage
// accounts into one consistent view: deduplicated positions, merged trade
// and cash activity, per-currency balances, and a mark-to-market valuation
// in a single reporting currency.
//
// Data enters through AccountData sources, one per broker. Subpackages
// provide sources for downloaded CSV exports (fidelity, schwab) and quote
// providers for pricing (tradegate, fixed). The Aggregator orchestrates
// them: it fetches every source, merges and deduplicates what they report,
// and values the result through a QuoteProvider.
//
// Two sources may observe the same underlying account, such as a live
// connection and a stale CSV export of it. Settings declare such sources as
// a group, ranked by authority, and deduplication keeps the most
// authoritative observation instead of double counting. Sources outside any
// group are distinct accounts whose holdings add up. When grouped sources
// disagree beyond the configured tolerance the engine refuses to guess and
// reports the conflict.
//
// All amounts are exact decimals. Arithmetic across currencies is an error;
// conversion happens only during valuation, through explicitly fetched
// exchange rates. A position whose price or rate cannot be obtained is
// reported as unknown and excluded from the total, never silently valued at
// zero.
package bankroll
