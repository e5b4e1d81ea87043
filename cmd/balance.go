package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bankroll-py/bankroll/renderer"
	"github.com/google/subcommands"
)

type balanceCmd struct{}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "display cash balances per currency" }
func (*balanceCmd) Usage() string {
	return `bkr balance

  Displays the combined cash balances of all configured accounts, one row
  per currency.
`
}

func (*balanceCmd) SetFlags(f *flag.FlagSet) {}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	agg, err := loadAggregator(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading accounts: %v\n", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.BalanceMarkdown(agg.Balance()))
	return subcommands.ExitSuccess
}
