package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a signed amount of money in the smallest currency unit.
type Cents int64

var hundred = decimal.NewFromInt(100)

// ParseCents parses a decimal string such as "12.34" or "-5".
// More than two fractional digits is rejected rather than rounded.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal amount in currency units to cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", d.String())
	}
	return Cents(d.Mul(hundred).IntPart()), nil
}

// CentsFromFloat rounds a float amount, as delivered by aggregators, to the nearest cent.
func CentsFromFloat(f float64) Cents {
	return Cents(decimal.NewFromFloat(f).Round(2).Mul(hundred).IntPart())
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

func MinCents(a Cents, rest ...Cents) Cents {
	m := a
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}

func MaxCents(a Cents, rest ...Cents) Cents {
	m := a
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	v, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
