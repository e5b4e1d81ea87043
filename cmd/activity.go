package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bankroll-py/bankroll/renderer"
	"github.com/google/subcommands"
)

// activityCmd holds the flags for the 'activity' subcommand.
type activityCmd struct {
	tradesOnly bool
	eventsOnly bool
}

func (*activityCmd) Name() string     { return "activity" }
func (*activityCmd) Synopsis() string { return "display trades and cash events across all accounts" }
func (*activityCmd) Usage() string {
	return `bkr activity [-trades] [-events]

  Displays the trade history and cash events (dividends, interest, fees)
  of all configured accounts, oldest first.
`
}

func (c *activityCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.tradesOnly, "trades", false, "show trades only")
	f.BoolVar(&c.eventsOnly, "events", false, "show cash events only")
}

func (c *activityCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.tradesOnly && c.eventsOnly {
		fmt.Fprintln(os.Stderr, "-trades and -events are mutually exclusive")
		return subcommands.ExitUsageError
	}

	agg, err := loadAggregator(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading accounts: %v\n", err)
		return subcommands.ExitFailure
	}

	if !c.eventsOnly {
		printMarkdown(renderer.TradesMarkdown(agg.Trades()))
	}
	if !c.tradesOnly {
		printMarkdown(renderer.CashEventsMarkdown(agg.CashEvents()))
	}
	return subcommands.ExitSuccess
}
