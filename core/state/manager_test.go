package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"assetescrow/core/types"
	"assetescrow/native/escrow"
	"assetescrow/native/ledger"
	"assetescrow/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := NewManager(db)
	require.NoError(t, err)
	return mgr, db
}

func testAsset(tokenID string, owner types.AccountID) *escrow.Asset {
	return &escrow.Asset{
		TokenID:   tokenID,
		Price:     uint256.NewInt(50),
		InitTime:  100,
		LastTime:  100,
		LastOwner: owner,
		LastUser:  owner,
		Active:    true,
	}
}

func TestManagerDefaultsToGenesisVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.Equal(t, GenesisVersion, mgr.CurrentVersion())
	major, minor, patch := mgr.CurrentVersion().Triple()
	require.Equal(t, [3]uint8{0, 0, 1}, [3]uint8{major, minor, patch})
	require.Equal(t, "0.0.1", mgr.CurrentVersion().String())
}

func TestManagerLedgerRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	alice := &ledger.Account{ID: "alice", Balance: uint256.NewInt(100)}
	bob := &ledger.Account{ID: "bob", Balance: uint256.NewInt(0)}
	require.NoError(t, mgr.LedgerAccountInsert(alice))
	require.NoError(t, mgr.LedgerAccountInsert(bob))
	require.Error(t, mgr.LedgerAccountInsert(alice))

	count, err := mgr.UserCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	stored, ok, err := mgr.LedgerAccountGet("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", stored.Balance.Dec())
	require.Empty(t, stored.AssetIDs)

	stored.Balance = uint256.NewInt(7)
	stored.AssetIDs = []string{"T1"}
	require.NoError(t, mgr.LedgerAccountPut(stored))
	require.Error(t, mgr.LedgerAccountPut(&ledger.Account{ID: "carol", Balance: uint256.NewInt(1)}))

	all, err := mgr.LedgerAccounts()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, types.AccountID("alice"), all[0].ID)
	require.Equal(t, []string{"T1"}, all[0].AssetIDs)
	require.Equal(t, types.AccountID("bob"), all[1].ID)

	_, ok, err = mgr.LedgerAccountGet("carol")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerAssetsRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.AssetInsert(testAsset("T2", "alice")))
	require.NoError(t, mgr.AssetInsert(testAsset("T1", "bob")))
	require.Error(t, mgr.AssetInsert(testAsset("T1", "bob")))

	asset, ok, err := mgr.AssetGet("T1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.AccountID("bob"), asset.LastOwner)
	require.True(t, asset.Active)

	asset.Active = false
	asset.LastUser = "carol"
	asset.LastTime = 200
	require.NoError(t, mgr.AssetPut(asset))
	require.Error(t, mgr.AssetPut(testAsset("T9", "alice")))

	all, err := mgr.Assets()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "T1", all[0].TokenID)
	require.False(t, all[0].Active)
	require.Equal(t, types.AccountID("carol"), all[0].LastUser)
	require.Equal(t, "T2", all[1].TokenID)

	count, err := mgr.AssetCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestManagerResetRekeysCollections(t *testing.T) {
	mgr, db := newTestManager(t)
	require.NoError(t, mgr.LedgerAccountInsert(&ledger.Account{ID: "alice", Balance: uint256.NewInt(5)}))
	require.NoError(t, mgr.AssetInsert(testAsset("T1", "alice")))

	require.NoError(t, mgr.Reset())
	require.Equal(t, Version{0, 0, 2}, mgr.CurrentVersion())

	users, err := mgr.LedgerAccounts()
	require.NoError(t, err)
	require.Empty(t, users)
	assets, err := mgr.Assets()
	require.NoError(t, err)
	require.Empty(t, assets)
	count, err := mgr.UserCount()
	require.NoError(t, err)
	require.Zero(t, count)

	// The version survives reopening.
	reopened, err := NewManager(db)
	require.NoError(t, err)
	require.Equal(t, Version{0, 0, 2}, reopened.CurrentVersion())

	// Old bytes remain readable under the previous namespace.
	old := NewManagerAt(db, GenesisVersion)
	acc, ok, err := old.LedgerAccountGet("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "5", acc.Balance.Dec())
}

func TestManagerResetWithMigrator(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LedgerAccountInsert(&ledger.Account{ID: "alice", Balance: uint256.NewInt(5)}))
	require.NoError(t, mgr.LedgerAccountInsert(&ledger.Account{ID: "bob", Balance: uint256.NewInt(0)}))

	err := mgr.ResetWith(func(old, next *Manager) error {
		accounts, err := old.LedgerAccounts()
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			if acc.Balance.IsZero() {
				continue
			}
			if err := next.LedgerAccountInsert(acc); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	accounts, err := mgr.LedgerAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, types.AccountID("alice"), accounts[0].ID)
}

func TestManagerUpgradesLegacyRecords(t *testing.T) {
	mgr, _ := newTestManager(t)
	legacy, err := ledger.EncodeVersioned(&ledger.AccountV1{ID: "legacy", Balance: uint256.NewInt(9)})
	require.NoError(t, err)
	require.NoError(t, mgr.indexes.Put([]byte("legacy"), uint64(0)))
	require.NoError(t, mgr.users.PutRaw(seqKey(0), legacy))

	acc, ok, err := mgr.LedgerAccountGet("legacy")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "9", acc.Balance.Dec())
	require.NotNil(t, acc.AssetIDs)
	require.Empty(t, acc.AssetIDs)
}

func TestNamespaceDependsOnPatch(t *testing.T) {
	a := Namespace(CollectionUsers, Version{0, 0, 1})
	b := Namespace(CollectionUsers, Version{0, 0, 2})
	c := Namespace(CollectionUsers, Version{1, 0, 1})
	require.NotEqual(t, a, b)
	require.Equal(t, a, c)
	require.Len(t, a, 32)

	_, err := NewManagerAt(storage.NewMemDB(), GenesisVersion).Collection("nope")
	require.Error(t, err)
}

func TestVersionIncExhausted(t *testing.T) {
	v := Version{Patch: 255}
	require.ErrorIs(t, v.Inc(), ErrVersionExhausted)
}
