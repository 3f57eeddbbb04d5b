package mataresit

import (
	"github.com/shopspring/decimal"
)

// Amount is a monetary value. It is encoded as a bare JSON number and decodes
// from either a JSON number or a numeric string.
type Amount struct {
	decimal.Decimal
}

// NewAmount returns an Amount for f.
func NewAmount(f float64) Amount {
	return Amount{decimal.NewFromFloat(f)}
}

// ParseAmount parses a decimal string such as "15.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d}, nil
}

// MustParseAmount is like ParseAmount but panics on invalid input.
func MustParseAmount(s string) Amount {
	return Amount{decimal.RequireFromString(s)}
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{a.Decimal.Add(b.Decimal)}
}

// Equal reports whether a and b represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

// String returns the amount with two decimal places.
func (a Amount) String() string {
	return a.Decimal.StringFixed(2)
}
