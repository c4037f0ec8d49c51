package ledger

import (
	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

// Account is the custodial balance record of one registered identity.
type Account struct {
	ID      types.AccountID
	Balance *uint256.Int
	// AssetIDs lists the token ids this account has placed for sale, in
	// listing order.
	AssetIDs []string
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		ID:       a.ID,
		Balance:  types.CloneAmount(a.Balance),
		AssetIDs: append([]string(nil), a.AssetIDs...),
	}
}

// HasAsset reports whether tokenID is already tracked.
func (a *Account) HasAsset(tokenID string) bool {
	if a == nil {
		return false
	}
	for _, id := range a.AssetIDs {
		if id == tokenID {
			return true
		}
	}
	return false
}
