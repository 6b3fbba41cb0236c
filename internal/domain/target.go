package domain

import (
	"context"
	"errors"
	"math/big"
)

// Rarity is the collectible tier of a target, 0 (most common) to 4.
type Rarity int

var rarityNames = map[Rarity]string{
	0: "Capy Bebe",
	1: "Capy Explorador",
	2: "Capy Sabio",
	3: "Capy Legendario",
	4: "Capy Dorado",
}

// Name returns the display name of the rarity tier.
func (r Rarity) Name() string {
	if n, ok := rarityNames[r]; ok {
		return n
	}
	return "Capy"
}

// ClaimTarget is a claimable collectible pinned to a physical location.
type ClaimTarget struct {
	TokenID   string     `json:"token_id"`
	Location  Coordinate `json:"location"`
	Rarity    Rarity     `json:"rarity"`
	PlaceName string     `json:"place_name,omitempty"`
}

// TokenIDInt converts the opaque token id to the uint256 contract argument.
func (t ClaimTarget) TokenIDInt() (*big.Int, error) {
	id, ok := new(big.Int).SetString(t.TokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, errors.New("token id is not a non-negative integer: " + t.TokenID)
	}
	return id, nil
}

// ErrTargetNotFound is returned by a TargetSource for unknown token ids.
var ErrTargetNotFound = errors.New("claim target not found")

// TargetSource supplies the read-only list of claimable targets.
type TargetSource interface {
	Targets(ctx context.Context) ([]ClaimTarget, error)
	Target(ctx context.Context, tokenID string) (ClaimTarget, error)
}
