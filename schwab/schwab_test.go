package schwab

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bankroll-py/bankroll"
)

// positionRowCSV builds a full-width positions row from the columns our
// parser reads, padding the rest.
func positionRowCSV(symbol, quantity, marketValue, costBasis, securityType string) string {
	cells := make([]string, 23)
	cells[0], cells[2], cells[6], cells[9], cells[21] = symbol, quantity, marketValue, costBasis, securityType
	for i, c := range cells {
		if strings.Contains(c, ",") {
			cells[i] = `"` + c + `"`
		}
	}
	return strings.Join(cells, ",")
}

func writeExport(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePositions(t *testing.T) {
	path := writeExport(t, "positions.csv",
		`"Positions for account ...1234 as of 09:00 PM ET"`,
		"",
		"Symbol,Description,Quantity"+strings.Repeat(",", 20),
		positionRowCSV("AAPL", "10", "$1,500.00", "$1,200.00", "Equity"),
		positionRowCSV("AAPL 01/17/2025 150.00 C", "2", "$700.00", "$600.00", "Option"),
		positionRowCSV("912810SU3", "2", "$199.00", "N/A", "Fixed Income"),
		positionRowCSV("Cash & Money Market", "N/A", "$2,500.00", "N/A", "Cash"),
		positionRowCSV("Account Total", "N/A", "$4,899.00", "N/A", ""),
	)
	account := NewAccount(path, "", false)

	positions, err := account.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions(): %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("got %d positions, want 3: %v", len(positions), positions)
	}
	if positions[0].Instrument.Kind() != bankroll.KindStock || !positions[0].CostBasis.Equal(bankroll.C(1200, "USD")) {
		t.Errorf("first position = %v", positions[0])
	}
	option := positions[1].Instrument
	if option.Kind() != bankroll.KindOption || option.Underlying() != "AAPL" || option.OptionType() != bankroll.Call {
		t.Errorf("option = %v", option)
	}
	if option.Symbol() != "AAPL  250117C00150000" {
		t.Errorf("option symbol = %q", option.Symbol())
	}
	if positions[2].Instrument.Kind() != bankroll.KindBond {
		t.Errorf("third position = %v, want the bond", positions[2].Instrument)
	}

	balance, err := account.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance(): %v", err)
	}
	if got := balance.Get("USD"); !got.Equal(bankroll.C(2500, "USD")) {
		t.Errorf("cash balance = %s, want $2,500.00", got)
	}
}

func TestParseTransactions(t *testing.T) {
	path := writeExport(t, "transactions.csv",
		`Date,Action,Symbol,Description,Quantity,Price,Fees & Comm,Amount,`,
		`01/05/2024,Buy,AAPL,APPLE INC,10,$150.00,$4.95,"-$1,504.95",`,
		`01/04/2024,Cash Dividend,MSFT,MICROSOFT CORP,,,,$12.34,`,
		`01/03/2024,Sell Short,AAPL,APPLE INC,10,$140.00,$4.95,"$1,395.05",`,
		`01/02/2024,Service Fee,,ACCOUNT FEE,,,,-$25.00,`,
		`01/01/2024,Wire Funds Received,,WIRE,,,,$5,000.00,`,
	)
	account := NewAccount("", path, false)

	trades, err := account.Trades(context.Background())
	if err != nil {
		t.Fatalf("Trades(): %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2: %v", len(trades), trades)
	}

	// Trades come back oldest-first after the short sale fixup.
	short := trades[0]
	if !short.Quantity.Equal(bankroll.Q(-10)) || short.Flags != bankroll.TradeOpen {
		t.Errorf("short sale = %v, want -10 opening", short)
	}
	cover := trades[1]
	if !cover.Quantity.Equal(bankroll.Q(10)) {
		t.Errorf("cover = %v, want quantity 10", cover)
	}
	// The buy after a short sale closes the position despite its action text.
	if cover.Flags != bankroll.TradeClose {
		t.Errorf("cover flags = %v, want TradeClose", cover.Flags)
	}

	events, err := account.CashEvents(context.Background())
	if err != nil {
		t.Fatalf("CashEvents(): %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d cash events, want the dividend and the fee: %v", len(events), events)
	}
	dividend := events[0]
	if !dividend.Attributed() || dividend.Instrument.Symbol() != "MSFT" {
		t.Errorf("dividend = %v, want attribution to MSFT", dividend)
	}
	fee := events[1]
	if fee.Attributed() || !fee.Amount.Equal(bankroll.C(-25, "USD")) {
		t.Errorf("fee = %v, want an unattributed -$25.00", fee)
	}
}

func TestParseTransactionsUnknownAction(t *testing.T) {
	path := writeExport(t, "transactions.csv",
		`Date,Action,Symbol,Description,Quantity,Price,Fees & Comm,Amount,`,
		`01/05/2024,Teleport Shares,AAPL,APPLE INC,10,$150.00,,,`,
	)
	if _, err := NewAccount("", path, false).Trades(context.Background()); err == nil {
		t.Error("strict parse accepted an unknown action")
	}

	trades, err := NewAccount("", path, true).Trades(context.Background())
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("lenient parse kept %d trades", len(trades))
	}
}

func TestOptionSymbolRoundTrip(t *testing.T) {
	instrument, err := parseOptionSymbol("SPY 03/21/2025 420.00 P", "USD")
	if err != nil {
		t.Fatalf("parseOptionSymbol(): %v", err)
	}
	if instrument.Underlying() != "SPY" || instrument.OptionType() != bankroll.Put {
		t.Errorf("contract = %v", instrument)
	}
	if instrument.Expiration().String() != "2025-03-21" {
		t.Errorf("expiration = %s", instrument.Expiration())
	}

	if _, err := parseOptionSymbol("AAPL", "USD"); err == nil {
		t.Error("parseOptionSymbol accepted a bare stock symbol")
	}
}
