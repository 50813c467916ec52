package helpers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount parsing errors.
var (
	ErrEmptyAmount    = errors.New("empty amount")
	ErrNegativeAmount = errors.New("negative amount")
	ErrAmountScale    = errors.New("too many decimal places")
	ErrAmountOverflow = errors.New("amount overflow")
)

// FormatAmount formats an amount in base units as a fixed-scale decimal string.
// For example, FormatAmount(150000000, 8) returns "1.50000000".
func FormatAmount(amount int64, decimals uint8) string {
	return decimal.New(amount, -int32(decimals)).StringFixed(int32(decimals))
}

// ParseAmount parses a human decimal string into base units. Inputs with more
// fractional digits than decimals are rejected rather than rounded.
func ParseAmount(s string, decimals uint8) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegativeAmount, s)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s (max %d)", ErrAmountScale, s, decimals)
	}

	bi := scaled.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, s)
	}
	return bi.Int64(), nil
}
