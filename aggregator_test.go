package bankroll

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeAccount is an in-memory AccountData for orchestration tests.
type fakeAccount struct {
	name      string
	positions []Position
	trades    []Trade
	events    []CashEvent
	balance   AccountBalance
	err       error
	provider  QuoteProvider
}

func (f *fakeAccount) Name() string { return f.name }

func (f *fakeAccount) Positions(ctx context.Context) ([]Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.positions, nil
}

func (f *fakeAccount) Trades(ctx context.Context) ([]Trade, error)         { return f.trades, nil }
func (f *fakeAccount) CashEvents(ctx context.Context) ([]CashEvent, error) { return f.events, nil }
func (f *fakeAccount) Balance(ctx context.Context) (AccountBalance, error) { return f.balance, nil }

func (f *fakeAccount) QuoteProvider() QuoteProvider { return f.provider }

func trade(t *testing.T, symbol string, quantity float64, price float64, at time.Time, source string) Trade {
	t.Helper()
	tr, err := NewTrade(mustStock(t, symbol, "USD"), Q(quantity), C(price, "USD"), Cash{}, at, TradeOpen, source)
	if err != nil {
		t.Fatalf("NewTrade(%q): %v", symbol, err)
	}
	return tr
}

func TestAggregatorUnifiesSources(t *testing.T) {
	a := &fakeAccount{
		name:      "broker-a",
		positions: []Position{position(t, "AAPL", 10, "broker-a")},
		balance:   NewAccountBalance(C(100, "USD")),
	}
	b := &fakeAccount{
		name:      "broker-b",
		positions: []Position{position(t, "AAPL", 5, "broker-b")},
		balance:   NewAccountBalance(C(50, "USD"), C(20, "EUR")),
	}

	agg := NewAggregator(DefaultSettings(), a, b)
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load(): %v", err)
	}

	positions := agg.Positions()
	if len(positions) != 1 || !positions[0].Quantity.Equal(Q(15)) {
		t.Errorf("positions = %v, want one AAPL position of 15", positions)
	}
	if got := agg.Balance().Get("USD"); !got.Equal(C(150, "USD")) {
		t.Errorf("USD balance = %s, want $150.00", got)
	}
	if got := agg.Balance().Get("EUR"); !got.Equal(C(20, "EUR")) {
		t.Errorf("EUR balance = %s, want €20.00", got)
	}
}

func TestAggregatorStrictFailure(t *testing.T) {
	broken := &fakeAccount{name: "broken", err: errors.New("malformed export")}
	agg := NewAggregator(DefaultSettings(), broken)

	err := agg.Load(context.Background())
	var ingestion *IngestionError
	if !errors.As(err, &ingestion) {
		t.Fatalf("error = %v, want *IngestionError", err)
	}
	if ingestion.Source != "broken" {
		t.Errorf("error attributed to %q, want %q", ingestion.Source, "broken")
	}
}

func TestAggregatorLenientSkipsFailedSource(t *testing.T) {
	good := &fakeAccount{
		name:      "good",
		positions: []Position{position(t, "AAPL", 10, "good")},
	}
	broken := &fakeAccount{name: "broken", err: errors.New("malformed export")}

	settings := DefaultSettings()
	settings.Lenient = true
	agg := NewAggregator(settings, good, broken)
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load() in lenient mode: %v", err)
	}

	if len(agg.Positions()) != 1 {
		t.Errorf("positions = %v, want the good source's data", agg.Positions())
	}
	if len(agg.Warnings()) != 1 {
		t.Fatalf("warnings = %v, want the skipped source's failure", agg.Warnings())
	}
	var ingestion *IngestionError
	if !errors.As(agg.Warnings()[0], &ingestion) || ingestion.Source != "broken" {
		t.Errorf("warning = %v, want an *IngestionError for %q", agg.Warnings()[0], "broken")
	}
}

func TestAggregatorConflictAlwaysFatal(t *testing.T) {
	a := &fakeAccount{name: "api", positions: []Position{position(t, "AAPL", 10, "api")}}
	b := &fakeAccount{name: "csv", positions: []Position{position(t, "AAPL", 7, "csv")}}

	settings := DefaultSettings()
	settings.Lenient = true
	settings.Merge = overlapPolicy()
	agg := NewAggregator(settings, a, b)

	err := agg.Load(context.Background())
	var conflict *ConflictingPositionDataError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want conflicting data to stay fatal in lenient mode", err)
	}
}

func TestAggregatorSortsActivity(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	a := &fakeAccount{
		name:   "broker-a",
		trades: []Trade{trade(t, "AAPL", 10, 150, day(3), "broker-a"), trade(t, "MSFT", 2, 400, day(1), "broker-a")},
	}
	b := &fakeAccount{
		name:   "broker-b",
		trades: []Trade{trade(t, "GOOG", 1, 140, day(2), "broker-b")},
	}

	agg := NewAggregator(DefaultSettings(), a, b)
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load(): %v", err)
	}

	want := []string{"MSFT", "GOOG", "AAPL"}
	trades := agg.Trades()
	if len(trades) != len(want) {
		t.Fatalf("got %d trades, want %d", len(trades), len(want))
	}
	for i, symbol := range want {
		if trades[i].Instrument.Symbol() != symbol {
			t.Errorf("trade %d = %v, want %s", i, trades[i].Instrument, symbol)
		}
	}
}

func TestAggregatorDropsDuplicateTrades(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &fakeAccount{name: "api", trades: []Trade{trade(t, "AAPL", 10, 150, at, "api")}}
	b := &fakeAccount{name: "csv", trades: []Trade{trade(t, "AAPL", 10, 150, at, "csv")}}

	settings := DefaultSettings()
	settings.Merge = overlapPolicy()
	agg := NewAggregator(settings, a, b)
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if len(agg.Trades()) != 1 {
		t.Errorf("got %d trades, want the same-account duplicate collapsed to 1", len(agg.Trades()))
	}
}

func TestAggregatorPicksSourceProvider(t *testing.T) {
	provider := tableProvider(map[string]Quote{"AAPL": bidQuote(t, 150, "USD")})
	live := &fakeAccount{
		name:      "live",
		positions: []Position{position(t, "AAPL", 10, "live")},
		provider:  provider,
	}

	agg := NewAggregator(DefaultSettings(), live)
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if agg.QuoteProvider() == nil {
		t.Fatal("expected the source's provider to be adopted")
	}

	report, err := agg.Value(context.Background())
	if err != nil {
		t.Fatalf("Value(): %v", err)
	}
	if !report.Total.Equal(C(1500, "USD")) {
		t.Errorf("total = %s, want $1,500.00", report.Total)
	}
}

func TestAggregatorValueWithoutProvider(t *testing.T) {
	agg := NewAggregator(DefaultSettings(), &fakeAccount{name: "plain"})
	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if _, err := agg.Value(context.Background()); err == nil {
		t.Error("expected an error when no market data provider is configured")
	}
}
