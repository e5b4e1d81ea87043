// Package cmd implements the CLI application to inspect aggregated
// brokerage accounts.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bankroll-py/bankroll"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package calls Register() to install them, then Execute() runs the
// user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&positionsCmd{}, "reports")
	c.Register(&activityCmd{}, "reports")
	c.Register(&balanceCmd{}, "reports")
	c.Register(&valueCmd{}, "reports")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "bankroll.yaml", "Path to the configuration file declaring accounts and quote providers")

// loadAggregator resolves the configuration file into an aggregator with all
// configured sources ingested. Subcommand flags that override config values
// are applied as settings tweaks.
func loadAggregator(ctx context.Context, tweaks ...func(*bankroll.Settings)) (*bankroll.Aggregator, error) {
	cfg, err := LoadConfig(*configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config %q: %w", *configFile, err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	for _, tweak := range tweaks {
		tweak(&settings)
	}
	sources, err := cfg.Accounts(settings)
	if err != nil {
		return nil, err
	}
	agg := bankroll.NewAggregator(settings, sources...)
	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}
	if provider != nil {
		agg.SetQuoteProvider(provider)
	}
	if err := agg.Load(ctx); err != nil {
		return nil, err
	}
	for _, w := range agg.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	return agg, nil
}

// printMarkdown renders a markdown report to the terminal, falling back to
// the raw text when the terminal renderer cannot be built.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
