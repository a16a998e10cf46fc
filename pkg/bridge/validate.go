package bridge

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/socchain/faucet/pkg/units"
	"github.com/socchain/faucet/pkg/utils"
)

var (
	minAmount = decimal.RequireFromString("0.0000001")
	maxAmount = decimal.NewFromInt(1_000_000)
)

// Request is a bridge deposit on behalf of the key holder.
type Request struct {
	PrivateKey    string `json:"privateKey"`
	Amount        string `json:"amount"`
	TargetAddress string `json:"targetAddress"`
}

// ValidatePrivateKey checks the 0x + 64 hex form.
func ValidatePrivateKey(key string) error {
	if !utils.IsPrivateKey(key) {
		return &ValidationError{Field: "privateKey", Message: "must be 0x followed by 64 hex characters"}
	}
	return nil
}

// ValidateAmount parses a decimal amount within the accepted range.
func ValidateAmount(s string) (decimal.Decimal, error) {
	d, err := units.ParseAmount(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Message: "not a decimal number"}
	}
	if d.LessThan(minAmount) || d.GreaterThan(maxAmount) {
		return decimal.Decimal{}, &ValidationError{
			Field:   "amount",
			Message: "must be between " + minAmount.String() + " and " + maxAmount.String(),
		}
	}
	return d, nil
}

func ValidateTarget(addr string) error {
	if !utils.IsAddress(addr) {
		return &ValidationError{Field: "targetAddress", Message: "must be 0x followed by 40 hex characters"}
	}
	return nil
}

// Validate checks every field and returns the parsed amount.
func (r Request) Validate() (decimal.Decimal, error) {
	if err := ValidatePrivateKey(r.PrivateKey); err != nil {
		return decimal.Decimal{}, err
	}
	amount, err := ValidateAmount(r.Amount)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := ValidateTarget(r.TargetAddress); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}
