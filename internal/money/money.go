// Package money holds fixed-point currency amounts and tax rates.
//
// Amounts are kept at two fractional digits and rates at four. Products of
// an amount and a rate are rounded half-up back to two digits immediately,
// so per-line tax matches what a printed invoice shows.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Scale     = 2
	RateScale = 4
)

var ErrInvalidAmount = errors.New("invalid money amount")

// Money is an amount in the store currency at scale 2. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

func Zero() Money { return Money{} }

func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func Sum(values ...Money) Money {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func Max(a, b Money) Money {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func Min(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// MulQty multiplies by a whole quantity. The result is exact.
func (m Money) MulQty(qty int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(qty))}
}

// MulRate applies a rate and rounds half-up to scale 2.
func (m Money) MulRate(r Rate) Money {
	return Money{d: m.d.Mul(r.d).Round(Scale)}
}

// Div divides by a count, rounding half-up to scale 2. Division by zero yields zero.
func (m Money) Div(n int64) Money {
	if n == 0 {
		return Zero()
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(n), Scale)}
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return m.d.Shift(Scale).Round(0).IntPart()
}

func (m Money) String() string { return m.d.StringFixed(Scale) }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	*m = FromDecimal(d)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*m = FromDecimal(d)
	return nil
}

// Rate is a decimal fraction at scale 4, e.g. 0.0800 for 8% tax.
type Rate struct {
	d decimal.Decimal
}

func RateFromDecimal(d decimal.Decimal) Rate {
	return Rate{d: d.Round(RateScale)}
}

func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate %q", s)
	}
	return RateFromDecimal(d), nil
}

func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) Cmp(o Rate) int { return r.d.Cmp(o.d) }
func (r Rate) Equal(o Rate) bool { return r.d.Equal(o.d) }
func (r Rate) IsNegative() bool { return r.d.IsNegative() }
func (r Rate) Decimal() decimal.Decimal { return r.d }
func (r Rate) String() string { return r.d.StringFixed(RateScale) }

// Valid reports whether the rate is a fraction in [0, 1].
func (r Rate) Valid() bool {
	return !r.d.IsNegative() && r.d.Cmp(decimal.NewFromInt(1)) <= 0
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid rate: %s", string(data))
	}
	*r = RateFromDecimal(d)
	return nil
}

func (r Rate) Value() (driver.Value, error) {
	return r.String(), nil
}

func (r *Rate) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*r = RateFromDecimal(d)
	return nil
}
