package escrow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"assetescrow/core/events"
	"assetescrow/core/runtime"
	"assetescrow/core/types"
	"assetescrow/native/transfer"
)

type mockState struct {
	assets map[string]*Asset
}

func newMockState() *mockState { return &mockState{assets: make(map[string]*Asset)} }

func (m *mockState) AssetGet(tokenID string) (*Asset, bool, error) {
	a, ok := m.assets[tokenID]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) AssetInsert(a *Asset) error {
	if _, ok := m.assets[a.TokenID]; ok {
		return errors.New("duplicate")
	}
	m.assets[a.TokenID] = a.Clone()
	return nil
}

func (m *mockState) AssetPut(a *Asset) error {
	if _, ok := m.assets[a.TokenID]; !ok {
		return errors.New("missing")
	}
	m.assets[a.TokenID] = a.Clone()
	return nil
}

func (m *mockState) Assets() ([]*Asset, error) {
	ids := make([]string, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.assets[id].Clone())
	}
	return out, nil
}

type stubRegistry struct {
	err error
}

func (s *stubRegistry) Transfer(context.Context, types.AccountID, transfer.Request) error {
	return s.err
}

type trackerFunc func(types.AccountID, string) error

func (f trackerFunc) TrackAsset(id types.AccountID, tokenID string) error { return f(id, tokenID) }

type gateFunc func(string) error

func (f gateFunc) CheckPurchasable(tokenID string) error { return f(tokenID) }

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

type fixture struct {
	engine   *Engine
	state    *mockState
	registry *stubRegistry
	emitter  *captureEmitter
}

func newFixture() *fixture {
	f := &fixture{state: newMockState(), registry: &stubRegistry{}, emitter: &captureEmitter{}}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetTransferer(transfer.NewCoordinator("nft.registry", f.registry))
	f.engine.SetEmitter(f.emitter)
	return f
}

func newCall(caller types.AccountID, deposit uint64, ts uint64) *runtime.Call {
	return runtime.NewCall(caller, "escrow", uint256.NewInt(deposit), ts)
}

func TestListAssetRecordsActiveListing(t *testing.T) {
	f := newFixture()
	var tracked []string
	f.engine.SetTracker(trackerFunc(func(id types.AccountID, tokenID string) error {
		tracked = append(tracked, id.String()+":"+tokenID)
		return nil
	}))
	approval := uint64(3)
	call := newCall("alice", 1, 100)

	asset, err := f.engine.ListAsset(call, " T1 ", uint256.NewInt(50), ListParams{ApprovalID: &approval})
	require.NoError(t, err)
	require.Equal(t, "T1", asset.TokenID)
	require.True(t, asset.Active)
	require.Equal(t, types.AccountID("alice"), asset.LastOwner)
	require.Equal(t, types.AccountID("alice"), asset.LastUser)
	require.Equal(t, uint64(100), asset.InitTime)
	require.Equal(t, uint64(100), asset.LastTime)
	require.Equal(t, []string{"alice:T1"}, tracked)

	promises := call.Promises()
	require.Len(t, promises, 1)
	require.Equal(t, runtime.KindCrossCall, promises[0].Kind)
	require.Equal(t, types.AccountID("nft.registry"), promises[0].Receiver)
	require.Equal(t, "T1", promises[0].TokenID)
	require.Equal(t, "1", promises[0].Amount.Dec())

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, EventTypeAssetListed, f.emitter.events[0].EventType())
	require.Equal(t, "50", f.emitter.events[0].Event().Attr("price"))
}

func TestListAssetRejectsDuplicate(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ListAsset(newCall("alice", 0, 100), "T1", uint256.NewInt(50), ListParams{})
	require.NoError(t, err)

	again := newCall("bob", 0, 200)
	_, err = f.engine.ListAsset(again, "T1", uint256.NewInt(1), ListParams{})
	require.ErrorIs(t, err, ErrAlreadyListed)
	require.Empty(t, again.Promises())

	stored, err := f.engine.Asset("T1")
	require.NoError(t, err)
	require.Equal(t, "50", stored.Price.Dec())
	require.Equal(t, types.AccountID("alice"), stored.LastOwner)
	require.Equal(t, uint64(100), stored.LastTime)
}

func TestListAssetValidatesInput(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ListAsset(newCall("alice", 0, 1), "  ", uint256.NewInt(1), ListParams{})
	require.ErrorIs(t, err, ErrInvalidTokenID)
	_, err = f.engine.ListAsset(newCall("alice", 0, 1), strings.Repeat("x", MaxTokenIDLength+1), uint256.NewInt(1), ListParams{})
	require.ErrorIs(t, err, ErrInvalidTokenID)

	tooBig := new(uint256.Int).Add(types.MaxAmount, uint256.NewInt(1))
	_, err = f.engine.ListAsset(newCall("alice", 0, 1), "T1", tooBig, ListParams{})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewEngine().ListAsset(newCall("alice", 0, 1), "T1", uint256.NewInt(1), ListParams{})
	require.ErrorIs(t, err, errNilState)
}

func TestBuyAssetGating(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ListAsset(newCall("alice", 0, 100), "T1", uint256.NewInt(50), ListParams{})
	require.NoError(t, err)

	_, err = f.engine.BuyAsset(newCall("bob", 60, 200), "T9")
	require.ErrorIs(t, err, ErrNotListed)

	short := newCall("bob", 49, 200)
	_, err = f.engine.BuyAsset(short, "T1")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, short.Promises())

	buy := newCall("bob", 60, 200)
	asset, err := f.engine.BuyAsset(buy, "T1")
	require.NoError(t, err)
	require.False(t, asset.Active)
	require.Equal(t, types.AccountID("bob"), asset.LastUser)
	require.Equal(t, uint64(200), asset.LastTime)
	require.Equal(t, "50", asset.Price.Dec())
	require.Equal(t, types.AccountID("alice"), asset.LastOwner)
	require.Equal(t, uint64(100), asset.InitTime)

	promises := buy.Promises()
	require.Len(t, promises, 2)
	require.Equal(t, runtime.KindCrossCall, promises[0].Kind)
	require.Equal(t, "60", promises[0].Amount.Dec())
	require.Equal(t, runtime.KindNativeTransfer, promises[1].Kind)
	require.Equal(t, types.AccountID("alice"), promises[1].Receiver)
	require.Equal(t, "50", promises[1].Amount.Dec())

	_, err = f.engine.BuyAsset(newCall("carol", 100, 300), "T1")
	require.ErrorIs(t, err, ErrNotActive)

	sold := f.emitter.events[len(f.emitter.events)-1].Event()
	require.Equal(t, EventTypeAssetSold, sold.Type)
	require.Equal(t, "60", sold.Attr("paid"))
	require.Equal(t, "false", sold.Attr("active"))
}

func TestBuyAssetExactPrice(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ListAsset(newCall("alice", 0, 1), "T1", uint256.NewInt(50), ListParams{})
	require.NoError(t, err)
	_, err = f.engine.BuyAsset(newCall("bob", 50, 2), "T1")
	require.NoError(t, err)
}

func TestBuyAssetRespectsPhaseGate(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ListAsset(newCall("alice", 0, 1), "T1", uint256.NewInt(5), ListParams{})
	require.NoError(t, err)

	f.engine.SetPhaseGate(gateFunc(func(string) error { return transfer.ErrTransferPending }))
	_, err = f.engine.BuyAsset(newCall("bob", 5, 2), "T1")
	require.ErrorIs(t, err, ErrCustodyUnsettled)

	asset, err := f.engine.Asset("T1")
	require.NoError(t, err)
	require.True(t, asset.Active)

	f.engine.SetPhaseGate(nil)
	_, err = f.engine.BuyAsset(newCall("bob", 5, 2), "T1")
	require.NoError(t, err)
}

func TestListingIsVisibleBeforeTransferResolves(t *testing.T) {
	f := newFixture()
	f.registry.err = errors.New("not approved")
	call := newCall("alice", 0, 1)
	_, err := f.engine.ListAsset(call, "T1", uint256.NewInt(5), ListParams{})
	require.NoError(t, err)

	promise := call.Promises()[0]
	require.False(t, promise.Then(promise.Run(context.Background())))

	asset, err := f.engine.Asset("T1")
	require.NoError(t, err)
	require.True(t, asset.Active)
}

func TestAssetsOrderedByTokenID(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"b", "c", "a"} {
		_, err := f.engine.ListAsset(newCall("alice", 0, 1), id, uint256.NewInt(1), ListParams{})
		require.NoError(t, err)
	}
	assets, err := f.engine.Assets()
	require.NoError(t, err)
	require.Len(t, assets, 3)
	require.Equal(t, "a", assets[0].TokenID)
	require.Equal(t, "c", assets[2].TokenID)

	_, err = f.engine.Asset("zzz")
	require.ErrorIs(t, err, ErrNotFound)
}
