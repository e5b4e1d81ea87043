package bankroll

import (
	"fmt"
	"time"
)

// TradeFlags qualify how a trade changed the account.
type TradeFlags uint8

const (
	TradeOpen TradeFlags = 1 << iota
	TradeClose
	TradeDRIP // dividend reinvestment
	TradeExpired
	TradeAssignedOrExercised // quantity sign indicates which
)

// validTradeFlags enumerates the flag combinations a trade may carry.
var validTradeFlags = []TradeFlags{
	TradeOpen,
	TradeClose,
	TradeOpen | TradeDRIP,
	TradeOpen | TradeAssignedOrExercised,
	TradeClose | TradeExpired,
	TradeClose | TradeAssignedOrExercised,
}

// Trade is a single execution: an append-only fact used for activity
// reports, never for position totals.
type Trade struct {
	Instrument Instrument
	Quantity   Quantity // signed: positive buys, negative sells
	Price      Cash     // per unit, before the contract multiplier
	Fees       Cash
	Time       time.Time
	Flags      TradeFlags
	Source     string
}

// NewTrade validates and builds a trade record.
func NewTrade(instrument Instrument, quantity Quantity, price, fees Cash, at time.Time, flags TradeFlags, source string) (Trade, error) {
	if price.Currency() != instrument.Currency() {
		return Trade{}, fmt.Errorf("trade price %s for %s must be in the instrument currency %s",
			price, instrument, instrument.Currency())
	}
	if fees.Currency() != "" && fees.Currency() != price.Currency() {
		return Trade{}, fmt.Errorf("trade fees %s for %s must match the price currency %s",
			fees, instrument, price.Currency())
	}
	valid := false
	for _, f := range validTradeFlags {
		if flags == f {
			valid = true
			break
		}
	}
	if !valid {
		return Trade{}, fmt.Errorf("invalid combination of trade flags: %b", flags)
	}
	if fees.Currency() == "" {
		fees = C(0, price.Currency())
	}
	return Trade{Instrument: instrument, Quantity: quantity, Price: price, Fees: fees, Time: at, Flags: flags, Source: source}, nil
}

// Amount is the gross cash impact of the trade: negative for buys,
// positive for sells, including the contract multiplier.
func (t Trade) Amount() Cash {
	return t.Price.Mul(t.Quantity).Mul(Q(t.Instrument.Multiplier())).Neg()
}

// Proceeds is the net cash impact after fees.
func (t Trade) Proceeds() Cash {
	net, _ := t.Amount().Sub(t.Fees) // currencies verified at construction
	return net
}

func (t Trade) String() string {
	action := "Buy "
	if t.Quantity.IsNegative() {
		action = "Sell"
	}
	return fmt.Sprintf("%s %s %9s %-21s @ %s", t.Time.Format("2006-01-02"), action, t.Quantity.Abs(), t.Instrument, t.Price)
}

// CashEvent is a cash movement such as a dividend, interest payment, deposit
// or withdrawal. Events are append-only facts, aggregated for reporting only.
type CashEvent struct {
	Amount      Cash
	Time        time.Time
	Description string
	Source      string

	// Instrument attributes the payment to a security when the source
	// reports one (dividends, bond interest). Zero value when unattributed.
	Instrument Instrument
}

// Attributed reports whether the event references a security.
func (e CashEvent) Attributed() bool { return e.Instrument.Kind() != "" }

func (e CashEvent) String() string {
	if e.Attributed() {
		return fmt.Sprintf("%s %-21s %s (%s)", e.Time.Format("2006-01-02"), e.Instrument, e.Amount, e.Description)
	}
	return fmt.Sprintf("%s %-21s %s (%s)", e.Time.Format("2006-01-02"), "", e.Amount, e.Description)
}
