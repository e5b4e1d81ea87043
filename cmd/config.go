package cmd

import (
	"fmt"
	"time"

	"github.com/bankroll-py/bankroll"
	"github.com/bankroll-py/bankroll/fidelity"
	"github.com/bankroll-py/bankroll/fixed"
	"github.com/bankroll-py/bankroll/schwab"
	"github.com/bankroll-py/bankroll/tradegate"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ExportConfig points at a broker's downloaded CSV exports.
type ExportConfig struct {
	Positions    string `mapstructure:"positions"`
	Transactions string `mapstructure:"transactions"`
}

// CashConfig is an amount plus currency as written in the config file.
type CashConfig struct {
	Amount   float64 `mapstructure:"amount"`
	Currency string  `mapstructure:"currency"`
}

// QuotesConfig selects and parametrizes the quote provider.
type QuotesConfig struct {
	// Provider is "tradegate", "fixed", or empty for none.
	Provider string `mapstructure:"provider"`

	// ISINs maps symbols to ISINs for the tradegate provider.
	ISINs map[string]string `mapstructure:"isins"`

	// Prices and Rates seed the fixed provider. Rates are keyed by the
	// foreign currency and quoted in the reporting currency.
	Prices map[string]CashConfig `mapstructure:"prices"`
	Rates  map[string]CashConfig `mapstructure:"rates"`
}

// Config mirrors the configuration file. It is resolved into a
// bankroll.Settings value plus constructed sources and providers; the engine
// never reads the file itself.
type Config struct {
	Currency    string        `mapstructure:"currency"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Lenient     bool          `mapstructure:"lenient"`

	// Tolerance is the relative same-account quantity divergence allowed
	// before deduplication reports a conflict, e.g. "0.001" for 0.1%.
	Tolerance string `mapstructure:"tolerance"`

	// Groups lists sources that observe the same underlying account, most
	// authoritative first.
	Groups [][]string `mapstructure:"groups"`

	Fidelity *ExportConfig `mapstructure:"fidelity"`
	Schwab   *ExportConfig `mapstructure:"schwab"`

	Quotes QuotesConfig `mapstructure:"quotes"`
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Settings resolves the file values into engine settings, applying defaults
// for anything left unset.
func (c *Config) Settings() (bankroll.Settings, error) {
	s := bankroll.DefaultSettings()
	if c.Currency != "" {
		if !bankroll.ValidCurrency(c.Currency) {
			return s, fmt.Errorf("unknown reporting currency %q", c.Currency)
		}
		s.TargetCurrency = c.Currency
	}
	if c.Concurrency > 0 {
		s.Concurrency = c.Concurrency
	}
	if c.Timeout > 0 {
		s.QuoteTimeout = c.Timeout
	}
	s.Lenient = c.Lenient
	if c.Tolerance != "" {
		tol, err := decimal.NewFromString(c.Tolerance)
		if err != nil {
			return s, fmt.Errorf("parsing tolerance %q: %w", c.Tolerance, err)
		}
		s.Merge.Tolerance = tol
	}
	for _, sources := range c.Groups {
		s.Merge.Groups = append(s.Merge.Groups, bankroll.SourceGroup{Sources: sources})
	}
	return s, nil
}

// Accounts constructs a source per configured broker export.
func (c *Config) Accounts(settings bankroll.Settings) ([]bankroll.AccountData, error) {
	var sources []bankroll.AccountData
	if c.Fidelity != nil {
		sources = append(sources, fidelity.NewAccount(c.Fidelity.Positions, c.Fidelity.Transactions, settings.Lenient))
	}
	if c.Schwab != nil {
		sources = append(sources, schwab.NewAccount(c.Schwab.Positions, c.Schwab.Transactions, settings.Lenient))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	return sources, nil
}

// Provider constructs the configured quote provider, or nil when the config
// declares none.
func (c *Config) Provider() (bankroll.QuoteProvider, error) {
	switch c.Quotes.Provider {
	case "":
		return nil, nil
	case "tradegate":
		return tradegate.New(c.Quotes.ISINs), nil
	case "fixed":
		return fixedProvider(c.Quotes)
	default:
		return nil, fmt.Errorf("unknown quote provider %q", c.Quotes.Provider)
	}
}

func fixedProvider(q QuotesConfig) (*fixed.Provider, error) {
	p := fixed.New()
	for symbol, price := range q.Prices {
		instrument, err := bankroll.NewStock(symbol, price.Currency)
		if err != nil {
			return nil, fmt.Errorf("configuring price for %q: %w", symbol, err)
		}
		p.SetPrice(instrument, bankroll.C(price.Amount, price.Currency))
	}
	for base, rate := range q.Rates {
		if err := p.SetRate(base, bankroll.C(rate.Amount, rate.Currency)); err != nil {
			return nil, fmt.Errorf("configuring rate for %q: %w", base, err)
		}
	}
	return p, nil
}
