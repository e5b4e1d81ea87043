package fidelity

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankroll-py/bankroll"
	"github.com/bankroll-py/bankroll/csvtools"
	"github.com/bankroll-py/bankroll/date"
)

// transactionRow mirrors the 17 columns of the transactions export.
type transactionRow struct {
	date        string
	action      string
	symbol      string
	description string
	quantity    string
	currency    string
	price       string
	commission  string
	fees        string
	amount      string
}

const transactionColumns = 17

func makeTransactionRow(r []string) transactionRow {
	return transactionRow{
		date: r[0], action: r[2], symbol: r[3], description: r[4],
		quantity: r[8], currency: r[9], price: r[10],
		commission: r[12], fees: r[13], amount: r[15],
	}
}

// activityRecord is either a trade or a cash event; exactly one is set.
type activityRecord struct {
	trade *bankroll.Trade
	event *bankroll.CashEvent
}

func parseTransactionsFile(path string, lenient bool) ([]bankroll.Trade, []bankroll.CashEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}
	defer f.Close()

	criterion := csvtools.Criterion{
		Start:   []string{"Run Date", "Account", "Action"},
		Columns: transactionColumns,
	}
	sections, err := csvtools.ParseSections(f, criterion)
	if err != nil {
		return nil, nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}
	if len(sections) == 0 {
		return nil, nil, nil
	}

	records, err := csvtools.Lenient(sections[0].Rows, func(r []string) (activityRecord, error) {
		rec, err := parseTransaction(makeTransactionRow(r))
		if err != nil {
			return activityRecord{}, &bankroll.IngestionError{
				Source: SourceName, Record: strings.Join(r, ","), Err: err,
			}
		}
		return rec, nil
	}, lenient)
	if err != nil {
		return nil, nil, err
	}

	var trades []bankroll.Trade
	var events []bankroll.CashEvent
	for _, rec := range records {
		switch {
		case rec.trade != nil:
			trades = append(trades, *rec.trade)
		case rec.event != nil:
			events = append(events, *rec.event)
		}
	}
	return trades, events, nil
}

// parseTransaction classifies one row by its action text. Actions that move
// securities become trades, dividends become attributed cash events, and
// everything else (transfers, interest postings) is ignored.
func parseTransaction(row transactionRow) (activityRecord, error) {
	currency := row.currency
	if currency == "" {
		currency = "USD"
	}

	if row.action == "DIVIDEND RECEIVED" {
		stock, err := bankroll.NewStock(row.symbol, currency)
		if err != nil {
			return activityRecord{}, err
		}
		amount, err := csvtools.ParseDecimal(row.amount)
		if err != nil {
			return activityRecord{}, fmt.Errorf("amount: %w", err)
		}
		at, err := parseRunDate(row.date)
		if err != nil {
			return activityRecord{}, err
		}
		return activityRecord{event: &bankroll.CashEvent{
			Amount:      bankroll.C(amount, currency),
			Time:        at,
			Description: row.action,
			Source:      SourceName,
			Instrument:  stock,
		}}, nil
	}

	var flags bankroll.TradeFlags
	switch {
	case strings.HasPrefix(row.action, "YOU BOUGHT"):
		flags = bankroll.TradeOpen
	case strings.HasPrefix(row.action, "YOU SOLD"):
		flags = bankroll.TradeClose
	case strings.HasPrefix(row.action, "REINVESTMENT"):
		flags = bankroll.TradeOpen | bankroll.TradeDRIP
	default:
		return activityRecord{}, nil
	}

	instrument, err := guessInstrument(row.symbol, currency)
	if err != nil {
		return activityRecord{}, err
	}
	quantity, err := csvtools.ParseDecimal(row.quantity)
	if err != nil {
		return activityRecord{}, fmt.Errorf("quantity: %w", err)
	}
	price := decimal.Zero
	if row.price != "" {
		if price, err = csvtools.ParseDecimal(row.price); err != nil {
			return activityRecord{}, fmt.Errorf("price: %w", err)
		}
	}

	// Total fees are commission plus fees; the export splits them.
	fees := decimal.Zero
	for _, s := range []string{row.commission, row.fees} {
		if s == "" {
			continue
		}
		v, err := csvtools.ParseDecimal(s)
		if err != nil {
			return activityRecord{}, fmt.Errorf("fees: %w", err)
		}
		fees = fees.Add(v)
	}

	at, err := parseRunDate(row.date)
	if err != nil {
		return activityRecord{}, err
	}
	trade, err := bankroll.NewTrade(instrument, bankroll.Q(quantity),
		bankroll.C(price, currency), bankroll.C(fees, currency), at, flags, SourceName)
	if err != nil {
		return activityRecord{}, err
	}
	return activityRecord{trade: &trade}, nil
}

// optionSymbol matches the transaction-side option notation, e.g.
// "-AAPL250117C150".
var optionSymbol = regexp.MustCompile(`^-([A-Z]+)(\d{6})(C|P)([0-9.]+)$`)

// looksLikeOption is a cheaper pre-check for guessing, tolerating symbols
// without the leading dash.
var looksLikeOption = regexp.MustCompile(`[0-9]+(C|P)[0-9.]+$`)

// guessInstrument resolves a transaction symbol to an instrument: option
// notation first, then bond CUSIPs, and a stock otherwise.
func guessInstrument(symbol, currency string) (bankroll.Instrument, error) {
	switch {
	case looksLikeOption.MatchString(symbol):
		return parseOptionSymbol(symbol, currency)
	case bankroll.ValidBondSymbol(symbol):
		return bankroll.NewBond(symbol, currency)
	default:
		return bankroll.NewStock(symbol, currency)
	}
}

func parseOptionSymbol(symbol, currency string) (bankroll.Instrument, error) {
	m := optionSymbol.FindStringSubmatch(symbol)
	if m == nil {
		return bankroll.Instrument{}, fmt.Errorf("unparseable option symbol %q", symbol)
	}
	typ := bankroll.Call
	if m[3] == "P" {
		typ = bankroll.Put
	}
	expiration, err := parseCompactDate(m[2])
	if err != nil {
		return bankroll.Instrument{}, err
	}
	strike, err := decimal.NewFromString(m[4])
	if err != nil {
		return bankroll.Instrument{}, fmt.Errorf("strike: %w", err)
	}
	return bankroll.NewOption("", m[1], currency, typ, expiration, strike, decimal.NewFromInt(100))
}

// parseCompactDate parses the YYMMDD expiration notation.
func parseCompactDate(s string) (date.Date, error) {
	yy, _ := strconv.Atoi(s[0:2])
	mm, _ := strconv.Atoi(s[2:4])
	dd, _ := strconv.Atoi(s[4:6])
	if mm < 1 || mm > 12 {
		return date.Date{}, fmt.Errorf("invalid expiration %q", s)
	}
	return date.New(2000+yy, time.Month(mm), dd), nil
}

// parseRunDate parses the MM/DD/YYYY run date of the export.
func parseRunDate(s string) (time.Time, error) {
	t, err := time.Parse("01/02/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("run date: %w", err)
	}
	return t, nil
}
