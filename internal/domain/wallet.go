package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WalletState is the derived view of a player's token balance. The chain is
// the source of truth; this is refreshed, never edited.
type WalletState struct {
	Address        string    `json:"address,omitempty"`
	BalanceDisplay string    `json:"balance,omitempty"`
	TokenSymbol    string    `json:"symbol"`
	Decimals       int       `json:"decimals"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

// FormatUnits renders a base-unit amount with the given number of decimals.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseUnits converts a decimal display amount into base units. The amount
// must be positive and have no more fractional digits than decimals.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("invalid amount %q: must be positive", amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// TruncateAddress shortens an address to its first eight characters for
// user-facing hints ("0x1a2b3c...").
func TruncateAddress(addr string) string {
	addr = strings.ToLower(addr)
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8] + "..."
}
