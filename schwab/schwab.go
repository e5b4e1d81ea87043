// Package schwab ingests the CSV exports of a Charles Schwab brokerage
// account. The positions export is a flat table with summary rows mixed in;
// the transactions export is a flat, newest-first table. Both are USD only.
package schwab

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
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
const SourceName = "schwab"

// Account reads a Schwab account from its exported files. Either path may be
// empty when only one export is available. Parsing is done once and
// memoized; Account is safe for concurrent use.
type Account struct {
	positionsPath    string
	transactionsPath string
	lenient          bool

	posOnce   sync.Once
	positions []bankroll.Position
	balance   bankroll.AccountBalance
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
	a.loadPositions()
	return a.positions, a.posErr
}

// Balance returns the uninvested cash, read from the "Cash & Money Market"
// summary row of the positions export.
func (a *Account) Balance(ctx context.Context) (bankroll.AccountBalance, error) {
	a.loadPositions()
	return a.balance, a.posErr
}

func (a *Account) Trades(ctx context.Context) ([]bankroll.Trade, error) {
	a.loadTransactions()
	return a.trades, a.txErr
}

func (a *Account) CashEvents(ctx context.Context) ([]bankroll.CashEvent, error) {
	a.loadTransactions()
	return a.events, a.txErr
}

func (a *Account) loadPositions() {
	a.posOnce.Do(func() {
		a.balance = bankroll.NewAccountBalance()
		if a.positionsPath == "" {
			return
		}
		a.positions, a.balance, a.posErr = parsePositionsFile(a.positionsPath, a.lenient)
	})
}

func (a *Account) loadTransactions() {
	a.txOnce.Do(func() {
		if a.transactionsPath == "" {
			return
		}
		a.trades, a.events, a.txErr = parseTransactionsFile(a.transactionsPath, a.lenient)
	})
}

// positionRow is the subset of the 22 position export columns we read.
type positionRow struct {
	symbol       string
	quantity     string
	marketValue  string
	costBasis    string
	securityType string
}

const positionColumns = 22

func makePositionRow(r []string) positionRow {
	return positionRow{symbol: r[0], quantity: r[2], marketValue: r[6], costBasis: r[9], securityType: r[21]}
}

// summaryRow matches the non-holding rows of the positions export.
var summaryRow = regexp.MustCompile(`^(Futures |Cash & Money Market|Account Total)`)

func parsePositionsFile(path string, lenient bool) ([]bankroll.Position, bankroll.AccountBalance, error) {
	balance := bankroll.NewAccountBalance()
	f, err := os.Open(path)
	if err != nil {
		return nil, balance, &bankroll.IngestionError{Source: SourceName, Err: err}
	}
	defer f.Close()

	rows, err := readRows(f, positionColumns, "Symbol")
	if err != nil {
		return nil, balance, &bankroll.IngestionError{Source: SourceName, Err: err}
	}

	var positions []bankroll.Position
	for _, r := range rows {
		row := makePositionRow(r)
		if strings.HasPrefix(row.symbol, "Cash & Money Market") {
			cash, err := csvtools.ParseDecimal(row.marketValue)
			if err != nil {
				return nil, balance, &bankroll.IngestionError{
					Source: SourceName, Record: strings.Join(r, ","), Err: fmt.Errorf("cash balance: %w", err),
				}
			}
			balance = balance.Add(bankroll.C(cash, "USD"))
			continue
		}
		if summaryRow.MatchString(row.symbol) {
			continue
		}

		parsed, err := csvtools.Lenient([][]string{r}, func(r []string) (bankroll.Position, error) {
			p, err := parsePosition(makePositionRow(r))
			if err != nil {
				return bankroll.Position{}, &bankroll.IngestionError{
					Source: SourceName, Record: strings.Join(r, ","), Err: err,
				}
			}
			return p, nil
		}, lenient)
		if err != nil {
			return nil, balance, err
		}
		positions = append(positions, parsed...)
	}
	return positions, balance, nil
}

// readRows reads a flat export, dropping header rows (recognized by their
// first cell) and rows too narrow to be data. Wider rows are truncated:
// Schwab appends a trailing empty column.
func readRows(r io.Reader, columns int, headerCell string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < columns || rec[0] == headerCell {
			continue
		}
		rows = append(rows, rec[:columns])
	}
	return rows, nil
}

func parsePosition(row positionRow) (bankroll.Position, error) {
	instrument, err := positionInstrument(row)
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

func positionInstrument(row positionRow) (bankroll.Instrument, error) {
	switch {
	case strings.HasPrefix(row.securityType, "Equity"), strings.HasPrefix(row.securityType, "ETFs"):
		return bankroll.NewStock(row.symbol, "USD")
	case strings.HasPrefix(row.securityType, "Option"):
		return parseOptionSymbol(row.symbol, "USD")
	case strings.HasPrefix(row.securityType, "Fixed Income"):
		return bankroll.NewBondLoose(row.symbol, "USD")
	default:
		return bankroll.Instrument{}, fmt.Errorf("unrecognized security type %q", row.securityType)
	}
}

// optionSymbol matches Schwab's option notation, e.g.
// "AAPL 01/17/2025 150.00 C".
var optionSymbol = regexp.MustCompile(`^([A-Z0-9/]+) (\d{2})/(\d{2})/(\d{4}) ([0-9.]+) (P|C)$`)

func parseOptionSymbol(symbol, currency string) (bankroll.Instrument, error) {
	m := optionSymbol.FindStringSubmatch(symbol)
	if m == nil {
		return bankroll.Instrument{}, fmt.Errorf("unparseable option symbol %q", symbol)
	}
	typ := bankroll.Call
	if m[6] == "P" {
		typ = bankroll.Put
	}
	mm, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])
	yyyy, _ := strconv.Atoi(m[4])
	strike, err := decimal.NewFromString(m[5])
	if err != nil {
		return bankroll.Instrument{}, fmt.Errorf("strike: %w", err)
	}
	return bankroll.NewOption("", m[1], currency, typ, date.New(yyyy, time.Month(mm), dd), strike, decimal.NewFromInt(100))
}

// parseTransactionDate parses the export date, tolerating the
// "MM/DD/YYYY as of MM/DD/YYYY" form used for adjusted entries.
func parseTransactionDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("01/02/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date: %w", err)
	}
	return t, nil
}
