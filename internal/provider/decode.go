package provider

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimal parses a required numeric field of an upstream payload.
func ParseDecimal(src Source, field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &QuoteParseError{Source: src, Field: field, Err: ErrMissingField}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &QuoteParseError{Source: src, Field: field, Err: err}
	}
	return d, nil
}

// ParseOptionalDecimal is like ParseDecimal but an absent value yields zero.
func ParseOptionalDecimal(src Source, field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return ParseDecimal(src, field, raw)
}

// ChangePercent returns (last-open)/open*100, or zero when open is zero.
func ChangePercent(last, open decimal.Decimal) decimal.Decimal {
	if open.IsZero() {
		return decimal.Zero
	}
	return last.Sub(open).Div(open).Mul(hundred)
}
