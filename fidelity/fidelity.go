// Package fidelity ingests the CSV exports of a Fidelity brokerage account.
//
// Fidelity offers two relevant exports: a positions file with per-type
// sections (Stocks, Bonds, Options) and a flat transactions file. Both are
// USD only.
package fidelity

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankroll-py/bankroll"
	"github.com/bankroll-py/bankroll/csvtools"
	"github.com/bankroll-py/bankroll/date"
)

// SourceName tags every record produced by this adapter.
const SourceName = "fidelity"

// Account reads a Fidelity account from its exported files. Either path may
// be empty when only one export is available. Parsing is done once and
// memoized; Account is safe for concurrent use.
type Account struct {
	positionsPath    string
	transactionsPath string
	lenient          bool

	posOnce   sync.Once
	positions []bankroll.Position
	posErr    error

	txOnce sync.Once
	trades []bankroll.Trade
	events []bankroll.CashEvent
	txErr  error
}

var _ bankroll.AccountData = (*Account)(nil)

// NewAccount builds an account over the given export files. In lenient mode
// malformed rows are logged and skipped instead of failing the parse.
func NewAccount(positionsPath, transactionsPath string, lenient bool) *Account {
	return &Account{positionsPath: positionsPath, transactionsPath: transactionsPath, lenient: lenient}
}

func (a *Account) Name() string { return SourceName }

func (a *Account) Positions(ctx context.Context) ([]bankroll.Position, error) {
	a.posOnce.Do(func() {
		if a.positionsPath == "" {
			return
		}
		a.positions, a.posErr = parsePositionsFile(a.positionsPath, a.lenient)
	})
	return a.positions, a.posErr
}

func (a *Account) Trades(ctx context.Context) ([]bankroll.Trade, error) {
	a.loadTransactions()
	return a.trades, a.txErr
}

func (a *Account) CashEvents(ctx context.Context) ([]bankroll.CashEvent, error) {
	a.loadTransactions()
	return a.events, a.txErr
}

// Balance returns an empty balance: the Fidelity exports carry no cash rows,
// uninvested cash shows up as money market fund positions instead.
func (a *Account) Balance(ctx context.Context) (bankroll.AccountBalance, error) {
	return bankroll.NewAccountBalance(), nil
}

func (a *Account) loadTransactions() {
	a.txOnce.Do(func() {
		if a.transactionsPath == "" {
			return
		}
		a.trades, a.events, a.txErr = parseTransactionsFile(a.transactionsPath, a.lenient)
	})
}

// positionRow is the leading columns of one row of the positions export.
type positionRow struct {
	symbol      string
	description string
	quantity    string
	costBasis   string
}

const positionColumns = 7

func makePositionRow(r []string) positionRow {
	return positionRow{symbol: r[0], description: r[1], quantity: r[2], costBasis: r[6]}
}

func parsePositionsFile(path string, lenient bool) ([]bankroll.Position, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}
	defer f.Close()

	stocks := csvtools.Criterion{Start: []string{"Stocks"}, End: []string{""}, Columns: positionColumns}
	bonds := csvtools.Criterion{Start: []string{"Bonds"}, End: []string{""}, Columns: positionColumns}
	options := csvtools.Criterion{Start: []string{"Options"}, End: []string{"", ""}, Columns: positionColumns}

	sections, err := csvtools.ParseSections(f, stocks, bonds, options)
	if err != nil {
		return nil, &bankroll.IngestionError{Source: SourceName, Err: err}
	}

	var positions []bankroll.Position
	for _, sec := range sections {
		instrumentFor := stockInstrument
		switch {
		case sec.Criterion.Start[0] == "Bonds":
			instrumentFor = bondInstrument
		case sec.Criterion.Start[0] == "Options":
			instrumentFor = optionInstrument
		}

		rows := dataRows(sec.Rows)
		parsed, err := csvtools.Lenient(rows, func(r []string) (bankroll.Position, error) {
			p, err := parsePosition(makePositionRow(r), instrumentFor)
			if err != nil {
				return bankroll.Position{}, &bankroll.IngestionError{
					Source: SourceName, Record: strings.Join(r, ","), Err: err,
				}
			}
			return p, nil
		}, lenient)
		if err != nil {
			return nil, err
		}
		positions = append(positions, parsed...)
	}
	return positions, nil
}

// dataRows drops the per-section column header row.
func dataRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		if len(r) > 0 && r[0] == "Symbol" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func parsePosition(row positionRow, instrumentFor func(positionRow) (bankroll.Instrument, error)) (bankroll.Position, error) {
	instrument, err := instrumentFor(row)
	if err != nil {
		return bankroll.Position{}, err
	}
	quantity, err := csvtools.ParseDecimal(row.quantity)
	if err != nil {
		return bankroll.Position{}, fmt.Errorf("quantity: %w", err)
	}
	basis := bankroll.Cash{}
	if row.costBasis != "" {
		amount, err := csvtools.ParseDecimal(row.costBasis)
		if err != nil {
			return bankroll.Position{}, fmt.Errorf("cost basis: %w", err)
		}
		basis = bankroll.C(amount, "USD")
	}
	return bankroll.NewPosition(instrument, bankroll.Q(quantity), basis, SourceName)
}

func stockInstrument(row positionRow) (bankroll.Instrument, error) {
	return bankroll.NewStock(row.symbol, "USD")
}

func bondInstrument(row positionRow) (bankroll.Instrument, error) {
	return bankroll.NewBondLoose(row.symbol, "USD")
}

// optionDescription matches descriptions like
// "CALL (AAPL) APPLE INC JAN 17 25 $150 (100 SHS)".
var optionDescription = regexp.MustCompile(
	`^(CALL|PUT) \(([A-Z]+)\) .+ ([A-Z]{3}) (\d{2}) (\d{2}) \$([0-9.]+) \(100 SHS\)$`)

var monthsByAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

func optionInstrument(row positionRow) (bankroll.Instrument, error) {
	m := optionDescription.FindStringSubmatch(row.description)
	if m == nil {
		return bankroll.Instrument{}, fmt.Errorf("unparseable option description %q", row.description)
	}
	typ := bankroll.Call
	if m[1] == "PUT" {
		typ = bankroll.Put
	}
	month, ok := monthsByAbbrev[m[3]]
	if !ok {
		return bankroll.Instrument{}, fmt.Errorf("unknown month %q in option description", m[3])
	}
	day, _ := strconv.Atoi(m[4])
	yy, _ := strconv.Atoi(m[5])
	year := 2000 + yy
	strike, err := decimal.NewFromString(m[6])
	if err != nil {
		return bankroll.Instrument{}, fmt.Errorf("strike: %w", err)
	}
	return bankroll.NewOption("", m[2], "USD", typ, date.New(year, month, day), strike, decimal.NewFromInt(100))
}
