package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// AmountBits is the width of every balance, price and payment.
const AmountBits = 128

var (
	// MaxAmount is the largest representable amount (2^128 - 1).
	MaxAmount = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), AmountBits), uint256.NewInt(1))

	// ErrAmountOverflow reports arithmetic that left the 128-bit range.
	ErrAmountOverflow = errors.New("amount exceeds 128 bits")
)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// CloneAmount copies v, treating nil as zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// CheckAmount verifies that v fits in 128 bits.
func CheckAmount(v *uint256.Int) error {
	if v != nil && v.BitLen() > AmountBits {
		return ErrAmountOverflow
	}
	return nil
}

// AddAmounts returns a+b, failing when the sum exceeds 128 bits.
func AddAmounts(a, b *uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(CloneAmount(a), CloneAmount(b))
	if err := CheckAmount(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// ParseAmount decodes a base-10 amount. The empty string is zero.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if err := CheckAmount(v); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}

// FormatAmount renders v in base 10, treating nil as zero.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
