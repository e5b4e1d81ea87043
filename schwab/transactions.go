package schwab

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bankroll-py/bankroll"
	"github.com/bankroll-py/bankroll/csvtools"
)

// transactionRow mirrors the 8 data columns of the transactions export.
type transactionRow struct {
	date     string
	action   string
	symbol   string
	desc     string
	quantity string
	price    string
	fees     string
	amount   string
}

const transactionColumns = 8

func makeTransactionRow(r []string) transactionRow {
	return transactionRow{
		date: r[0], action: r[1], symbol: r[2], desc: r[3],
		quantity: r[4], price: r[5], fees: r[6], amount: r[7],
	}
}

// tradeFlagsByAction maps the actions that move securities.
var tradeFlagsByAction = map[string]bankroll.TradeFlags{
	"Buy":                  bankroll.TradeOpen,
	"Sell Short":           bankroll.TradeOpen,
	"Buy to Open":          bankroll.TradeOpen,
	"Sell to Open":         bankroll.TradeOpen,
	"Reinvest Shares":      bankroll.TradeOpen | bankroll.TradeDRIP,
	"Sell":                 bankroll.TradeClose,
	"Buy to Close":         bankroll.TradeClose,
	"Sell to Close":        bankroll.TradeClose,
	"Assigned":             bankroll.TradeClose | bankroll.TradeAssignedOrExercised,
	"Exchange or Exercise": bankroll.TradeClose | bankroll.TradeAssignedOrExercised,
	"Expired":              bankroll.TradeClose | bankroll.TradeExpired,
}

// cashEventActions maps the actions that move cash, attributed to a security
// when the row names one.
var cashEventActions = map[string]bool{
	"Cash Dividend":     true,
	"Reinvest Dividend": true,
	"Credit Interest":   true,
	"Margin Interest":   true,
	"Service Fee":       true,
}

// ignoredActions neither move securities nor carry reportable cash flow.
var ignoredActions = map[string]bool{
	"Wire Funds":                  true,
	"Wire Funds Received":         true,
	"MoneyLink Transfer":          true,
	"MoneyLink Deposit":           true,
	"Long Term Cap Gain Reinvest": true,
	"ATM Withdrawal":              true,
	"Schwab ATM Rebate":           true,
	"Journal":                     true,
	"Misc Cash Entry":             true,
	"Security Transfer":           true,
}

func parseTransactionsFile(path string, lenient bool) ([]bankroll.Trade, []bankroll.CashEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}
	defer f.Close()

	rows, err := readRows(f, transactionColumns, "Date")
	if err != nil {
		return nil, nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}

	// Inbound security transfers are needed later to recognize restricted
	// stock sales recorded as short sales.
	var transfers []bankroll.Trade
	for _, r := range rows {
		row := makeTransactionRow(r)
		if row.action != "Security Transfer" || row.quantity == "" {
			continue
		}
		qty, err := csvtools.ParseDecimal(row.quantity)
		if err != nil || !qty.IsPositive() {
			continue
		}
		t, err := parseTrade(row, bankroll.TradeOpen)
		if err == nil {
			transfers = append(transfers, t)
		}
	}

	var trades []bankroll.Trade
	var events []bankroll.CashEvent
	for _, r := range rows {
		row := makeTransactionRow(r)
		switch {
		case cashEventActions[row.action]:
			event, err := parseCashEvent(row)
			if err != nil {
				err = &bankroll.IngestionError{Source: SourceName, Record: strings.Join(r, ","), Err: err}
				if lenient {
					continue
				}
				return nil, nil, err
			}
			events = append(events, event)
		case ignoredActions[row.action]:
			continue
		default:
			flags, ok := tradeFlagsByAction[row.action]
			if !ok {
				err := &bankroll.IngestionError{
					Source: SourceName, Record: strings.Join(r, ","),
					Err: fmt.Errorf("unrecognized action %q", row.action),
				}
				if lenient {
					continue
				}
				return nil, nil, err
			}
			trade, err := parseTrade(row, flags)
			if err != nil {
				err = &bankroll.IngestionError{Source: SourceName, Record: strings.Join(r, ","), Err: err}
				if lenient {
					continue
				}
				return nil, nil, err
			}
			trades = append(trades, trade)
		}
	}

	return fixUpShortSales(trades, transfers), events, nil
}

func parseTrade(row transactionRow, flags bankroll.TradeFlags) (bankroll.Trade, error) {
	quantity, err := csvtools.ParseDecimal(row.quantity)
	if err != nil {
		return bankroll.Trade{}, fmt.Errorf("quantity: %w", err)
	}
	// The export reports all quantities as positive; sells go negative.
	if strings.HasPrefix(row.action, "Sell") {
		quantity = quantity.Neg()
	}
	price := decimal.Zero
	if row.price != "" {
		if price, err = csvtools.ParseDecimal(row.price); err != nil {
			return bankroll.Trade{}, fmt.Errorf("price: %w", err)
		}
	}
	fees := decimal.Zero
	if row.fees != "" {
		if fees, err = csvtools.ParseDecimal(row.fees); err != nil {
			return bankroll.Trade{}, fmt.Errorf("fees: %w", err)
		}
	}
	instrument, err := guessInstrument(row.symbol)
	if err != nil {
		return bankroll.Trade{}, err
	}
	at, err := parseTransactionDate(row.date)
	if err != nil {
		return bankroll.Trade{}, err
	}
	return bankroll.NewTrade(instrument, bankroll.Q(quantity),
		bankroll.C(price, "USD"), bankroll.C(fees, "USD"), at, flags, SourceName)
}

func parseCashEvent(row transactionRow) (bankroll.CashEvent, error) {
	amount, err := csvtools.ParseDecimal(row.amount)
	if err != nil {
		return bankroll.CashEvent{}, fmt.Errorf("amount: %w", err)
	}
	at, err := parseTransactionDate(row.date)
	if err != nil {
		return bankroll.CashEvent{}, err
	}
	event := bankroll.CashEvent{
		Amount:      bankroll.C(amount, "USD"),
		Time:        at,
		Description: row.action,
		Source:      SourceName,
	}
	if strings.HasSuffix(row.action, "Dividend") && row.symbol != "" {
		stock, err := bankroll.NewStock(row.symbol, "USD")
		if err != nil {
			return bankroll.CashEvent{}, err
		}
		event.Instrument = stock
	}
	return event, nil
}

// guessInstrument resolves a transaction symbol: option notation first, then
// bond CUSIPs, and a stock otherwise.
func guessInstrument(symbol string) (bankroll.Instrument, error) {
	switch {
	case strings.HasSuffix(symbol, " C") || strings.HasSuffix(symbol, " P"):
		return parseOptionSymbol(symbol, "USD")
	case bankroll.ValidBondSymbol(symbol):
		return bankroll.NewBond(symbol, "USD")
	default:
		return bankroll.NewStock(symbol, "USD")
	}
}

// fixUpShortSales reexamines the trades oldest-first and fixes the flags the
// export gets wrong:
//   - a buy following a short sale closes the short, it does not open;
//   - a short sale matched by a later inbound security transfer is a
//     restricted stock sale, which also closes a position.
func fixUpShortSales(trades []bankroll.Trade, transfers []bankroll.Trade) []bankroll.Trade {
	running := make(map[string]decimal.Decimal)

	// The export is newest-first; walk oldest-first to track positions.
	out := make([]bankroll.Trade, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		symbol := t.Instrument.Symbol()
		pos := running[symbol]
		running[symbol] = pos.Add(t.Quantity.Decimal())

		q := t.Quantity.Decimal()
		switch {
		case pos.IsNegative() && q.IsPositive() && q.LessThanOrEqual(pos.Abs()) && t.Flags&bankroll.TradeOpen != 0:
			t.Flags = (t.Flags &^ bankroll.TradeOpen) | bankroll.TradeClose
		case q.IsNegative() && t.Flags&bankroll.TradeOpen != 0 && hasMatchingTransfer(t, transfers):
			t.Flags = (t.Flags &^ bankroll.TradeOpen) | bankroll.TradeClose
		}
		out = append(out, t)
	}
	return out
}

func hasMatchingTransfer(t bankroll.Trade, transfers []bankroll.Trade) bool {
	for _, tr := range transfers {
		if !tr.Time.Before(t.Time) &&
			tr.Instrument.Symbol() == t.Instrument.Symbol() &&
			tr.Quantity.Equal(t.Quantity.Abs()) {
			return true
		}
	}
	return false
}
