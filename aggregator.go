package bankroll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AccountData offers the canonical records of one brokerage source,
// initialized either with data (an exported file) or with a mechanism to get
// it (a live connection). Implementations are encouraged to memoize.
type AccountData interface {
	// Name returns the source tag attached to every record.
	Name() string
	// Positions returns the positions currently held.
	Positions(ctx context.Context) ([]Position, error)
	// Trades returns historical trade activity.
	Trades(ctx context.Context) ([]Trade, error)
	// CashEvents returns dividend, interest and transfer activity.
	CashEvents(ctx context.Context) ([]CashEvent, error)
	// Balance returns the uninvested cash in the account.
	Balance(ctx context.Context) (AccountBalance, error)
}

// QuoteSource is implemented by sources that also offer market data, such as
// a live brokerage connection.
type QuoteSource interface {
	QuoteProvider() QuoteProvider
}

// Aggregator orchestrates source fetching, deduplication and valuation, and
// presents the unified portfolio views. It performs no business logic beyond
// orchestration and sorting.
type Aggregator struct {
	settings Settings
	sources  []AccountData

	positions []Position
	trades    []Trade
	events    []CashEvent
	balance   AccountBalance
	provider  QuoteProvider
	warnings  []error
}

// NewAggregator builds an aggregator over the configured sources.
func NewAggregator(settings Settings, sources ...AccountData) *Aggregator {
	return &Aggregator{settings: settings, sources: sources}
}

// sourceData is the raw outcome of fetching one source.
type sourceData struct {
	positions []Position
	trades    []Trade
	events    []CashEvent
	balance   AccountBalance
}

// Load fetches every configured source, deduplicates positions across them,
// and sorts the unified views. Sources share no state and are fetched
// concurrently.
//
// A source failure is an IngestionError attributed to the source. In strict
// mode it is fatal; in lenient mode the source is skipped and the failure is
// recorded in Warnings alongside the partial result. Conflicting position
// data is always fatal: it indicates a configuration or data-quality problem
// the user must fix.
func (a *Aggregator) Load(ctx context.Context) error {
	gathered := make([]*sourceData, len(a.sources))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		eg.Go(func() error {
			data, err := fetchSource(gctx, src)
			if err != nil {
				ierr := err
				var asIngestion *IngestionError
				if !errors.As(err, &asIngestion) {
					ierr = &IngestionError{Source: src.Name(), Err: err}
				}
				if !a.settings.Lenient {
					return ierr
				}
				log.Printf("warning: skipping source %q: %v", src.Name(), err)
				mu.Lock()
				a.warnings = append(a.warnings, ierr)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			gathered[i] = data
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// Single-threaded merge of the gathered collections.
	var positions []Position
	a.trades, a.events = nil, nil
	a.balance = NewAccountBalance()
	for i, data := range gathered {
		if data == nil {
			continue
		}
		positions = append(positions, data.positions...)
		a.trades = append(a.trades, data.trades...)
		a.events = append(a.events, data.events...)
		a.balance = a.balance.Merge(data.balance)
		if a.provider == nil {
			if qs, ok := a.sources[i].(QuoteSource); ok {
				a.provider = qs.QuoteProvider()
			}
		}
	}

	deduped, err := DeduplicatePositions(positions, a.settings.Merge)
	if err != nil {
		return err
	}
	a.positions = deduped

	a.trades = DeduplicateTrades(a.trades, a.settings.Merge)
	slices.SortFunc(a.trades, func(x, y Trade) int {
		if c := x.Time.Compare(y.Time); c != 0 {
			return c
		}
		return strings.Compare(x.Source, y.Source)
	})

	a.events = DeduplicateCashEvents(a.events, a.settings.Merge)
	slices.SortFunc(a.events, func(x, y CashEvent) int {
		if c := x.Time.Compare(y.Time); c != 0 {
			return c
		}
		return strings.Compare(x.Source, y.Source)
	})

	return nil
}

func fetchSource(ctx context.Context, src AccountData) (*sourceData, error) {
	positions, err := src.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	trades, err := src.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	events, err := src.CashEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("cash events: %w", err)
	}
	balance, err := src.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return &sourceData{positions: positions, trades: trades, events: events, balance: balance}, nil
}

// Positions returns the deduplicated positions in instrument order.
func (a *Aggregator) Positions() []Position { return a.positions }

// Trades returns the unified trades ordered by time then source.
func (a *Aggregator) Trades() []Trade { return a.trades }

// CashEvents returns the unified cash events ordered by time then source.
func (a *Aggregator) CashEvents() []CashEvent { return a.events }

// Balance returns the combined uninvested cash across sources.
func (a *Aggregator) Balance() AccountBalance { return a.balance }

// Warnings returns the ingestion failures skipped in lenient mode.
func (a *Aggregator) Warnings() []error { return a.warnings }

// SetQuoteProvider overrides the market data capability, taking precedence
// over any provider offered by a source.
func (a *Aggregator) SetQuoteProvider(p QuoteProvider) { a.provider = p }

// QuoteProvider returns the market data capability in use: an explicit
// provider set with SetQuoteProvider, or the first source offering one.
func (a *Aggregator) QuoteProvider() QuoteProvider { return a.provider }

// Value computes the mark-to-market valuation of the aggregated positions.
func (a *Aggregator) Value(ctx context.Context) (*ValuationReport, error) {
	if a.provider == nil {
		return nil, errors.New("no market data provider configured")
	}
	return Value(ctx, a.positions, a.provider, a.settings)
}
