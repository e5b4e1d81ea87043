// Package renderer turns aggregated portfolio data into markdown reports.
package renderer

import (
	"fmt"
	"strings"

	"github.com/bankroll-py/bankroll"
)

// PositionsMarkdown renders deduplicated positions as a markdown table.
func PositionsMarkdown(positions []bankroll.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Positions\n\n")
	if len(positions) == 0 {
		fmt.Fprintln(&b, "No open positions.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Instrument | Kind | Quantity | Avg Price | Cost Basis | Source |")
	fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|:---|")
	for _, p := range positions {
		avg, basis := "", ""
		if p.HasBasis() {
			avg = p.AveragePrice().String()
			basis = p.CostBasis.String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			p.Instrument.Symbol(),
			p.Instrument.Kind(),
			p.Quantity,
			avg,
			basis,
			p.Source,
		)
	}
	return b.String()
}

// TradesMarkdown renders trades, oldest first, as a markdown table.
func TradesMarkdown(trades []bankroll.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Trades\n\n")
	if len(trades) == 0 {
		fmt.Fprintln(&b, "No trades.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Date | Action | Instrument | Quantity | Price | Fees | Proceeds | Source |")
	fmt.Fprintln(&b, "|:---|:---|:---|---:|---:|---:|---:|:---|")
	for _, t := range trades {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			t.Time.Format("2006-01-02"),
			tradeAction(t),
			t.Instrument.Symbol(),
			t.Quantity.Abs(),
			t.Price,
			t.Fees,
			t.Proceeds(),
			t.Source,
		)
	}
	return b.String()
}

func tradeAction(t bankroll.Trade) string {
	switch {
	case t.Flags&bankroll.TradeExpired != 0:
		return "Expire"
	case t.Flags&bankroll.TradeAssignedOrExercised != 0:
		return "Assign/Exercise"
	case t.Flags&bankroll.TradeDRIP != 0:
		return "Reinvest"
	case t.Quantity.IsNegative():
		return "Sell"
	default:
		return "Buy"
	}
}

// CashEventsMarkdown renders dividends, interest and fees as a markdown table.
func CashEventsMarkdown(events []bankroll.CashEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cash Events\n\n")
	if len(events) == 0 {
		fmt.Fprintln(&b, "No cash events.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Date | Instrument | Amount | Description | Source |")
	fmt.Fprintln(&b, "|:---|:---|---:|:---|:---|")
	for _, e := range events {
		symbol := ""
		if e.Attributed() {
			symbol = e.Instrument.Symbol()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			e.Time.Format("2006-01-02"),
			symbol,
			e.Amount,
			e.Description,
			e.Source,
		)
	}
	return b.String()
}

// BalanceMarkdown renders per-currency cash balances as a markdown table.
func BalanceMarkdown(balance bankroll.AccountBalance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cash Balance\n\n")
	entries := balance.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(&b, "No cash balances.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Currency | Balance |")
	fmt.Fprintln(&b, "|:---|---:|")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s |\n", e.Currency(), e)
	}
	return b.String()
}

// ValuationMarkdown renders a mark-to-market report. Rows that could not be
// valued are listed with the reason instead of a number, and the total line
// names the instruments it excludes.
func ValuationMarkdown(report *bankroll.ValuationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio Value (%s)\n\n", report.Currency)
	fmt.Fprintln(&b, "| Instrument | Quantity | Price | Value |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|")
	for _, row := range report.Rows {
		if row.Known() {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				row.Position.Instrument.Symbol(),
				row.Position.Quantity,
				row.Price,
				row.Value,
			)
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | | unknown: %s |\n",
			row.Position.Instrument.Symbol(),
			row.Position.Quantity,
			row.Err,
		)
	}
	fmt.Fprintf(&b, "\n**Total: %s**\n", report.Total)
	if len(report.Unknown) > 0 {
		symbols := make([]string, 0, len(report.Unknown))
		for _, i := range report.Unknown {
			symbols = append(symbols, i.Symbol())
		}
		fmt.Fprintf(&b, "\nExcluded from total: %s\n", strings.Join(symbols, ", "))
	}
	return b.String()
}
