package shared

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount expressed in minor currency units (hundredths).
type Money int64

// BasisPoints expresses a percentage with two decimals, 1500 == 15.00%.
type BasisPoints int64

var hundred = decimal.NewFromInt(100)

// ParseMoney converts decimal text such as "12.5" into minor units, rounding half away from zero.
func ParseMoney(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: amount required", ErrInvalidInput)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, raw)
	}
	return MoneyFromDecimal(d), nil
}

// MoneyFromDecimal rounds a decimal amount to minor units.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// Decimal returns the amount as a decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Mul multiplies the amount by an integer quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// Percent applies a basis point rate, rounding half away from zero.
func (m Money) Percent(rate BasisPoints) Money {
	v := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(int64(rate))).Div(decimal.NewFromInt(10000))
	return Money(v.Round(0).IntPart())
}

// Whole returns the integral major-unit part, truncated toward zero.
func (m Money) Whole() int64 {
	return int64(m) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Format renders the amount with locale digit grouping followed by the currency code.
func (m Money) Format(tag language.Tag, currency string) string {
	p := message.NewPrinter(tag)
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	out := sign + p.Sprintf("%d", v/100) + fmt.Sprintf(".%02d", v%100)
	if currency != "" {
		out += " " + currency
	}
	return out
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("%w: amount %s is not a number", ErrInvalidInput, string(data))
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// ParsePercent converts "15" or "12.5" into basis points.
func ParsePercent(raw string) (BasisPoints, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a percentage", ErrInvalidInput, raw)
	}
	return BasisPointsFromDecimal(d), nil
}

// BasisPointsFromDecimal converts a percentage value into basis points.
func BasisPointsFromDecimal(d decimal.Decimal) BasisPoints {
	return BasisPoints(d.Mul(hundred).Round(0).IntPart())
}

func (b BasisPoints) String() string {
	return decimal.New(int64(b), -2).String()
}

// MarshalJSON encodes the rate as a plain percentage number.
func (b BasisPoints) MarshalJSON() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts a percentage as JSON number or string.
func (b *BasisPoints) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("%w: percentage %s is not a number", ErrInvalidInput, string(data))
	}
	*b = BasisPointsFromDecimal(d)
	return nil
}
