// Package units converts between human-readable decimal amounts and raw
// integer token units. All arithmetic is exact; floating point is only used to
// feed metrics gauges.
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the token decimal counts accepted by ToRaw.
const MaxDecimals = 36

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a base-10 decimal string such as "100" or "0.5".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ToRaw returns amount * 10^decimals rounded to the nearest integer, with
// halves rounded away from zero.
func ToRaw(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals out of range: %d", decimals)
	}
	return amount.Shift(decimals).Round(0).BigInt(), nil
}

// FromRaw returns raw / 10^decimals without loss.
func FromRaw(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// Format renders raw units with exactly places fractional digits, truncating
// extra precision instead of rounding it.
func Format(raw *big.Int, decimals, places int32) string {
	return FromRaw(raw, decimals).Truncate(places).StringFixed(places)
}

// Float converts a base-10 raw amount string to a float for gauges.
func Float(raw string, decimals int32) float64 {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0
	}
	f, _ := FromRaw(n, decimals).Float64()
	return f
}
