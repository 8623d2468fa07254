// Package money provides a fixed-point decimal amount with a scale of
// two, used for every monetary value in the bill order service. Amounts
// are always materialized with exactly two fractional digits and never
// pass through binary floating point.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

const scale = 2

// MaxAmount is the largest representable amount, matching the
// DECIMAL(10,2) column backing it.
var MaxAmount = decimal.RequireFromString("99999999.99")

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

var (
	ErrInvalidFormat = errors.New("invalid amount format")
	ErrOutOfRange    = errors.New("amount out of range")
)

// Money is an exact decimal amount with two fractional digits.
// The zero value is 0.00.
type Money struct {
	amount decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// Parse converts a canonical decimal string into Money. It accepts only
// non-negative values of the form digits(.digits{1,2})? up to
// 99,999,999.99. Signs, exponents and thousands separators are rejected.
func Parse(s string) (Money, error) {
	if !amountPattern.MatchString(s) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if d.GreaterThan(MaxAmount) {
		return Money{}, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	return Money{amount: d}, nil
}

// MustParse is Parse for trusted literals, panicking on error.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other with exact decimal addition.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// MulInt returns m multiplied by an integer quantity, rounded half-up
// to two decimal places.
func (m Money) MulInt(n int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(n)).Round(scale)}
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal reports exact decimal equality.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is 0.00.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// String returns the canonical representation with exactly two
// fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(scale)
}

// MarshalJSON encodes the amount as a canonical decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a canonical decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, data)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer, storing the canonical string so the
// column holds an exact decimal.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for decimal columns across the supported
// dialects. Database values are trusted, so scanning does not enforce
// the Parse format.
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	switch v := value.(type) {
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	case int64:
		*m = Money{amount: decimal.NewFromInt(v)}
		return nil
	case float64:
		*m = Money{amount: decimal.NewFromFloat(v).Round(scale)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Money", value)
	}
}

func (m *Money) scanString(s string) error {
	if s == "" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = Money{amount: d}
	return nil
}

// GormDataType maps Money to a decimal column.
func (Money) GormDataType() string {
	return "decimal(10,2)"
}

// Sum adds all amounts with exact decimal accumulation.
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
