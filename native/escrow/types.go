package escrow

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

// MaxTokenIDLength bounds token identifiers accepted by the registry.
const MaxTokenIDLength = 256

// Asset captures the listing state and provenance of one custodial token.
// LastOwner is paid on the next sale; LastUser is whoever most recently
// listed or bought it. Active is true while the listing is purchasable and
// becomes false exactly once, when the token is bought.
type Asset struct {
	TokenID   string
	Price     *uint256.Int
	InitTime  uint64
	LastTime  uint64
	LastOwner types.AccountID
	LastUser  types.AccountID
	Active    bool
}

// Clone returns a deep copy of the asset object so callers can safely mutate
// the copy without affecting the stored instance.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Price = types.CloneAmount(a.Price)
	return &clone
}

// NormalizeTokenID trims the identifier and checks its bounds. Token ids are
// case sensitive.
func NormalizeTokenID(tokenID string) (string, error) {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return "", fmt.Errorf("%w: must not be empty", ErrInvalidTokenID)
	}
	if len(trimmed) > MaxTokenIDLength {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrInvalidTokenID, MaxTokenIDLength)
	}
	return trimmed, nil
}

// SanitizeAsset validates and normalises the supplied asset, returning a
// cloned instance with a non-nil price. The original is not mutated.
func SanitizeAsset(a *Asset) (*Asset, error) {
	if a == nil {
		return nil, fmt.Errorf("nil asset")
	}
	clone := a.Clone()
	tokenID, err := NormalizeTokenID(clone.TokenID)
	if err != nil {
		return nil, err
	}
	clone.TokenID = tokenID
	if err := types.CheckAmount(clone.Price); err != nil {
		return nil, fmt.Errorf("asset %s price: %w", tokenID, err)
	}
	if clone.LastOwner.Empty() || clone.LastUser.Empty() {
		return nil, fmt.Errorf("asset %s: owner and user must be set", tokenID)
	}
	if clone.LastTime < clone.InitTime {
		return nil, fmt.Errorf("asset %s: last time precedes init time", tokenID)
	}
	return clone, nil
}
