package fixed

import (
	"context"
	"errors"
	"testing"

	"github.com/bankroll-py/bankroll"
)

func TestProvider(t *testing.T) {
	aapl, err := bankroll.NewStock("AAPL", "USD")
	if err != nil {
		t.Fatal(err)
	}
	p := New()
	p.SetPrice(aapl, bankroll.C(150, "USD"))
	if err := p.SetRate("EUR", bankroll.C(1.1, "USD")); err != nil {
		t.Fatal(err)
	}

	quote, err := p.Quote(context.Background(), aapl)
	if err != nil {
		t.Fatalf("Quote(): %v", err)
	}
	if !quote.Market().Equal(bankroll.C(150, "USD")) {
		t.Errorf("price = %s, want $150.00", quote.Market())
	}

	pair, err := bankroll.NewForex("EUR", "USD")
	if err != nil {
		t.Fatal(err)
	}
	rate, err := p.Quote(context.Background(), pair)
	if err != nil {
		t.Fatalf("Quote(pair): %v", err)
	}
	if !rate.Market().Equal(bankroll.C(1.1, "USD")) {
		t.Errorf("rate = %s, want $1.10", rate.Market())
	}

	other, err := bankroll.NewStock("MSFT", "USD")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Quote(context.Background(), other); !errors.Is(err, bankroll.ErrNoQuote) {
		t.Errorf("error = %v, want ErrNoQuote", err)
	}
}

func TestProviderNormalizesSymbols(t *testing.T) {
	dotted, err := bankroll.NewStock("BRK.B", "USD")
	if err != nil {
		t.Fatal(err)
	}
	spaced, err := bankroll.NewStock("BRK B", "USD")
	if err != nil {
		t.Fatal(err)
	}

	p := New()
	p.SetPrice(dotted, bankroll.C(400, "USD"))
	quote, err := p.Quote(context.Background(), spaced)
	if err != nil {
		t.Fatalf("Quote(): %v", err)
	}
	if !quote.Market().Equal(bankroll.C(400, "USD")) {
		t.Errorf("price = %s, want separator variants to share one key", quote.Market())
	}
}
