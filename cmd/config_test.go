package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const configYAML = `currency: EUR
concurrency: 4
timeout: 2s
lenient: true
tolerance: "0.01"
groups:
  - [fidelity, schwab]
fidelity:
  positions: fid_positions.csv
  transactions: fid_transactions.csv
schwab:
  positions: schwab_positions.csv
  transactions: schwab_transactions.csv
quotes:
  provider: fixed
  prices:
    AAPL: {amount: 150, currency: USD}
  rates:
    USD: {amount: 0.92, currency: EUR}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bankroll.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, configYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings.TargetCurrency != "EUR" {
		t.Errorf("TargetCurrency = %q, want EUR", settings.TargetCurrency)
	}
	if settings.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", settings.Concurrency)
	}
	if settings.QuoteTimeout != 2*time.Second {
		t.Errorf("QuoteTimeout = %v, want 2s", settings.QuoteTimeout)
	}
	if !settings.Lenient {
		t.Error("Lenient not set")
	}
	if want := decimal.RequireFromString("0.01"); !settings.Merge.Tolerance.Equal(want) {
		t.Errorf("Tolerance = %s, want %s", settings.Merge.Tolerance, want)
	}
	if len(settings.Merge.Groups) != 1 || len(settings.Merge.Groups[0].Sources) != 2 {
		t.Errorf("Groups = %+v, want one group of two sources", settings.Merge.Groups)
	}

	sources, err := cfg.Accounts(settings)
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Name() != "fidelity" || sources[1].Name() != "schwab" {
		t.Errorf("source names = %q, %q", sources[0].Name(), sources[1].Name())
	}

	provider, err := cfg.Provider()
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a fixed provider")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "fidelity:\n  positions: p.csv\n  transactions: t.csv\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings.TargetCurrency != "USD" {
		t.Errorf("TargetCurrency = %q, want USD default", settings.TargetCurrency)
	}
	if settings.Lenient {
		t.Error("Lenient should default to false")
	}
	provider, err := cfg.Provider()
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if provider != nil {
		t.Error("expected no provider when unconfigured")
	}
}

func TestConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad currency", "currency: DOLLARS\n"},
		{"bad tolerance", "tolerance: lots\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tc.yaml))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if _, err := cfg.Settings(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConfigUnknownProvider(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "quotes:\n  provider: ouija\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := cfg.Provider(); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}
