package deployer

import (
	"fmt"
	"math/big"
)

// TokenDecimals is the number of decimal places in the token's
// minimal base unit, matching the contract's fixed 18-decimal layout.
const TokenDecimals = 18

// baseUnitScale is 10^18, the number of base units per whole token.
var baseUnitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ToMinimalUnits converts a whole-unit token quantity to the
// contract's minimal base-unit representation: wholeUnits * 10^18,
// computed with exact integer multiplication. Floating point is never
// involved, so arbitrarily large supplies convert without precision
// loss.
func ToMinimalUnits(wholeUnits *big.Int) (*big.Int, error) {
	if wholeUnits == nil {
		return nil, fmt.Errorf("whole-unit quantity is nil")
	}
	if wholeUnits.Sign() < 0 {
		return nil, fmt.Errorf("whole-unit quantity must not be negative: %s", wholeUnits)
	}
	return new(big.Int).Mul(wholeUnits, baseUnitScale), nil
}

// ParseWholeUnits parses a decimal string as a whole-unit quantity.
// Fractional or otherwise non-integer input is rejected; this is the
// single entry point for supply values arriving as text.
func ParseWholeUnits(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a whole number: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("must not be negative: %q", s)
	}
	return v, nil
}
