package bankroll

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Cash represents an amount of one currency.
type Cash struct {
	amount decimal.Decimal // in major units
	cur    string
}

// C builds a Cash amount in the given ISO 4217 currency.
func C[T float32 | float64 | int | int32 | int64 | decimal.Decimal](amount T, currency string) Cash {
	return Cash{amount: newDecimal(amount), cur: currency}
}

// ValidCurrency reports whether code is a known ISO 4217 currency code.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// currency returns the go-money currency metadata, never nil.
func (c Cash) currency() money.Currency {
	return *money.New(0, c.cur).Currency()
}

// Currency returns the ISO currency code.
func (c Cash) Currency() string { return c.cur }

// Amount returns the amount in major units.
func (c Cash) Amount() decimal.Decimal { return c.amount }

func (c Cash) IsZero() bool     { return c.amount.IsZero() }
func (c Cash) IsPositive() bool { return c.amount.IsPositive() }
func (c Cash) IsNegative() bool { return c.amount.IsNegative() }
func (c Cash) Neg() Cash        { return Cash{amount: c.amount.Neg(), cur: c.cur} }
func (c Cash) Abs() Cash        { return Cash{amount: c.amount.Abs(), cur: c.cur} }

// Equal reports value equality: same currency and same amount.
func (c Cash) Equal(o Cash) bool { return c.cur == o.cur && c.amount.Equal(o.amount) }

// Mul scales the amount by a quantity, keeping the currency.
func (c Cash) Mul(q Quantity) Cash { return Cash{amount: c.amount.Mul(q.value), cur: c.cur} }

// Div divides the amount by a quantity, keeping the currency.
func (c Cash) Div(q Quantity) Cash { return Cash{amount: c.amount.Div(q.value), cur: c.cur} }

// MulDec scales the amount by a bare decimal, e.g. a contract multiplier.
func (c Cash) MulDec(d decimal.Decimal) Cash {
	return Cash{amount: c.amount.Mul(d), cur: c.cur}
}

// Add returns c+o. Amounts in different currencies cannot be summed and
// yield ErrCurrencyMismatch instead of a silently wrong total.
func (c Cash) Add(o Cash) (Cash, error) {
	if c.cur != o.cur {
		return Cash{}, fmt.Errorf("cannot add %s to %s: %w", o.cur, c.cur, ErrCurrencyMismatch)
	}
	return Cash{amount: c.amount.Add(o.amount), cur: c.cur}, nil
}

// Sub returns c-o with the same currency contract as Add.
func (c Cash) Sub(o Cash) (Cash, error) {
	if c.cur != o.cur {
		return Cash{}, fmt.Errorf("cannot subtract %s from %s: %w", o.cur, c.cur, ErrCurrencyMismatch)
	}
	return Cash{amount: c.amount.Sub(o.amount), cur: c.cur}, nil
}

// Cmp compares two amounts of the same currency, returning -1, 0 or 1.
func (c Cash) Cmp(o Cash) (int, error) {
	if c.cur != o.cur {
		return 0, fmt.Errorf("cannot compare %s with %s: %w", c.cur, o.cur, ErrCurrencyMismatch)
	}
	return c.amount.Cmp(o.amount), nil
}

// SumCash sums amounts that must all share one currency.
// Summing an empty slice yields the zero Cash value.
func SumCash(amounts ...Cash) (Cash, error) {
	var total Cash
	for i, a := range amounts {
		if i == 0 {
			total = a
			continue
		}
		var err error
		total, err = total.Add(a)
		if err != nil {
			return Cash{}, err
		}
	}
	return total, nil
}

// String formats the amount with its currency symbol, e.g. "$1,234.56".
func (c Cash) String() string {
	cur := c.currency()
	minor := c.amount.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// MarshalJSON encodes the amount rounded to the currency's fraction.
func (c Cash) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", c.cur)
	w.Append("amount", c.amount.Round(int32(c.currency().Fraction)))
	return w.MarshalJSON()
}
