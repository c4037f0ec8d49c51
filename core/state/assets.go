package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"assetescrow/native/escrow"
)

// AssetGet loads the asset stored under tokenID.
func (m *Manager) AssetGet(tokenID string) (*escrow.Asset, bool, error) {
	if tokenID == "" {
		return nil, false, fmt.Errorf("state: token id required")
	}
	asset := new(escrow.Asset)
	ok, err := m.assets.Get([]byte(tokenID), asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return asset, true, nil
}

// AssetInsert stores a newly listed asset and bumps the asset counter.
func (m *Manager) AssetInsert(asset *escrow.Asset) error {
	sanitized, err := escrow.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	if exists, err := m.assets.Has([]byte(sanitized.TokenID)); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("state: asset %s already stored", sanitized.TokenID)
	}
	if _, err := m.bumpCounter(counterAssets); err != nil {
		return err
	}
	return m.assets.Put([]byte(sanitized.TokenID), sanitized)
}

// AssetPut overwrites an existing asset.
func (m *Manager) AssetPut(asset *escrow.Asset) error {
	sanitized, err := escrow.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	if exists, err := m.assets.Has([]byte(sanitized.TokenID)); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("state: asset %s not stored", sanitized.TokenID)
	}
	return m.assets.Put([]byte(sanitized.TokenID), sanitized)
}

// Assets returns every stored asset ordered by token id.
func (m *Manager) Assets() ([]*escrow.Asset, error) {
	out := make([]*escrow.Asset, 0)
	err := m.assets.Iterate(func(_, value []byte) error {
		asset := new(escrow.Asset)
		if err := rlp.DecodeBytes(value, asset); err != nil {
			return fmt.Errorf("state: assets: decode: %w", err)
		}
		out = append(out, asset)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
