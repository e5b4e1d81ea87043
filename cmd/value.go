package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bankroll-py/bankroll"
	"github.com/bankroll-py/bankroll/renderer"
	"github.com/google/subcommands"
)

// valueCmd holds the flags for the 'value' subcommand.
type valueCmd struct {
	currency string
	timeout  time.Duration
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "display the mark-to-market value of all positions" }
func (*valueCmd) Usage() string {
	return `bkr value [-c <currency>] [-t <timeout>]

  Prices every deduplicated position with the configured quote provider and
  displays the portfolio value in the reporting currency. Positions that
  cannot be priced are listed as unknown and excluded from the total.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "reporting currency, overrides the configured one")
	f.DurationVar(&c.timeout, "t", 0, "per-quote timeout, overrides the configured one")
}

func (c *valueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.currency != "" && !bankroll.ValidCurrency(c.currency) {
		fmt.Fprintf(os.Stderr, "Unknown currency %q\n", c.currency)
		return subcommands.ExitUsageError
	}

	agg, err := loadAggregator(ctx, func(s *bankroll.Settings) {
		if c.currency != "" {
			s.TargetCurrency = c.currency
		}
		if c.timeout > 0 {
			s.QuoteTimeout = c.timeout
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading accounts: %v\n", err)
		return subcommands.ExitFailure
	}

	report, err := agg.Value(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing positions: %v\n", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.ValuationMarkdown(report))
	return subcommands.ExitSuccess
}
