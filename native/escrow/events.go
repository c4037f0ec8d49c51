package escrow

import (
	"strconv"

	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

const (
	EventTypeAssetListed = "escrow.asset.listed"
	EventTypeAssetSold   = "escrow.asset.sold"
)

// NewListedEvent returns the canonical payload for a new listing.
func NewListedEvent(a *Asset) *types.Event {
	return newAssetEvent(EventTypeAssetListed, a, nil)
}

// NewSoldEvent returns the canonical payload for a purchase. paid is the
// payment attached by the buyer.
func NewSoldEvent(a *Asset, paid *uint256.Int) *types.Event {
	return newAssetEvent(EventTypeAssetSold, a, paid)
}

func newAssetEvent(eventType string, a *Asset, paid *uint256.Int) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeAsset(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["tokenId"] = sanitized.TokenID
	attrs["price"] = types.FormatAmount(sanitized.Price)
	attrs["lastOwner"] = sanitized.LastOwner.String()
	attrs["lastUser"] = sanitized.LastUser.String()
	attrs["initTime"] = strconv.FormatUint(sanitized.InitTime, 10)
	attrs["lastTime"] = strconv.FormatUint(sanitized.LastTime, 10)
	attrs["active"] = strconv.FormatBool(sanitized.Active)
	if paid != nil {
		attrs["paid"] = types.FormatAmount(paid)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
