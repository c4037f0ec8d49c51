package transfer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"assetescrow/core/runtime"
	"assetescrow/core/types"
)

type fakeRegistry struct {
	mu     sync.Mutex
	err    error
	calls  []Request
	sender []types.AccountID
}

func (f *fakeRegistry) Transfer(_ context.Context, sender types.AccountID, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	f.sender = append(f.sender, sender)
	return f.err
}

func runPromise(t *testing.T, p *runtime.Promise) bool {
	t.Helper()
	outcome := p.Run(context.Background())
	return p.Then(outcome)
}

func TestTransferSchedulesSingleCrossCall(t *testing.T) {
	reg := &fakeRegistry{}
	coord := NewCoordinator("nft.registry", reg)
	call := runtime.NewCall("alice", "escrow", uint256.NewInt(1), 10)
	approval := uint64(7)
	memo := "listing"

	promise, err := coord.Transfer(call, Request{
		ReceiverID: "escrow",
		TokenID:    "T1",
		ApprovalID: &approval,
		Memo:       &memo,
		Deposit:    uint256.NewInt(1),
	})
	require.NoError(t, err)
	require.Len(t, call.Promises(), 1)
	require.Equal(t, runtime.KindCrossCall, promise.Kind)
	require.Equal(t, types.AccountID("nft.registry"), promise.Receiver)
	require.Equal(t, MethodTransfer, promise.Method)
	require.Equal(t, DefaultGas, promise.Gas)
	require.Equal(t, "1", promise.Amount.Dec())

	// Nothing reaches the registry until the promise runs.
	require.Empty(t, reg.calls)
	require.True(t, runPromise(t, promise))
	require.Len(t, reg.calls, 1)
	require.Equal(t, types.AccountID("escrow"), reg.sender[0])
	require.Equal(t, uint64(7), *reg.calls[0].ApprovalID)
	require.Equal(t, "listing", *reg.calls[0].Memo)
}

func TestTransferValidatesRequest(t *testing.T) {
	coord := NewCoordinator("nft.registry", &fakeRegistry{})
	call := runtime.NewCall("alice", "escrow", nil, 1)
	_, err := coord.Transfer(call, Request{TokenID: "T1"})
	require.Error(t, err)
	_, err = coord.Transfer(call, Request{ReceiverID: "bob"})
	require.Error(t, err)
	_, err = coord.Transfer(nil, Request{ReceiverID: "bob", TokenID: "T1"})
	require.Error(t, err)
	_, err = NewCoordinator("nft.registry", nil).Transfer(call, Request{ReceiverID: "bob", TokenID: "T1"})
	require.Error(t, err)
	require.Empty(t, call.Promises())
}

func TestResolveLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	coord := NewCoordinator("nft.registry", &fakeRegistry{err: errors.New("token locked")})
	coord.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	call := runtime.NewCall("bob", "escrow", nil, 1)
	promise, err := coord.Transfer(call, Request{ReceiverID: "bob", TokenID: "T1"})
	require.NoError(t, err)

	require.False(t, runPromise(t, promise))
	require.Contains(t, buf.String(), "ownership transfer failed")
	require.Contains(t, buf.String(), "token locked")
	require.Contains(t, buf.String(), ErrExternalCallFailed.Error())
}

func TestSetGas(t *testing.T) {
	coord := NewCoordinator("nft.registry", &fakeRegistry{})
	coord.SetGas(3 * TeraGas)
	require.Equal(t, 3*TeraGas, coord.Gas())
	coord.SetGas(0)
	require.Equal(t, DefaultGas, coord.Gas())
	require.Equal(t, uint64(5_000_000_000_000), DefaultGas)
}

func TestPhaseBookFollowsLatestTransfer(t *testing.T) {
	reg := &fakeRegistry{}
	book := NewPhaseBook()
	coord := NewCoordinator("nft.registry", reg)
	coord.SetObserver(book)

	list := runtime.NewCall("alice", "escrow", nil, 1)
	listing, err := coord.Transfer(list, Request{ReceiverID: "escrow", TokenID: "T1"})
	require.NoError(t, err)
	require.Equal(t, PhaseUnknown, book.Phase("T1"))

	list.Committed()
	require.Equal(t, PhasePending, book.Phase("T1"))
	require.ErrorIs(t, book.CheckPurchasable("T1"), ErrTransferPending)

	reg.err = errors.New("not approved")
	require.False(t, runPromise(t, listing))
	require.Equal(t, PhaseFailed, book.Phase("T1"))
	require.ErrorIs(t, book.CheckPurchasable("T1"), ErrTransferFailed)
	rec, ok := book.Lookup("T1")
	require.True(t, ok)
	require.Contains(t, rec.Error, "not approved")

	reg.err = nil
	buy := runtime.NewCall("bob", "escrow", nil, 2)
	purchase, err := coord.Transfer(buy, Request{ReceiverID: "bob", TokenID: "T1"})
	require.NoError(t, err)
	buy.Committed()
	require.True(t, runPromise(t, purchase))
	require.Equal(t, PhaseConfirmed, book.Phase("T1"))
	require.NoError(t, book.CheckPurchasable("T1"))

	// A stale resolution of an older transfer is ignored.
	book.Resolved(uuid.New(), "T1", errors.New("late"))
	require.Equal(t, PhaseConfirmed, book.Phase("T1"))

	book.Reset()
	require.Equal(t, PhaseUnknown, book.Phase("T1"))
	require.NoError(t, book.CheckPurchasable("T1"))
}

func TestRevertedCallNeverReachesObserver(t *testing.T) {
	book := NewPhaseBook()
	coord := NewCoordinator("nft.registry", &fakeRegistry{})
	coord.SetObserver(book)
	call := runtime.NewCall("alice", "escrow", nil, 1)
	_, err := coord.Transfer(call, Request{ReceiverID: "escrow", TokenID: "T1"})
	require.NoError(t, err)
	call.Discard()
	call.Committed()
	_, ok := book.Lookup("T1")
	require.False(t, ok)
}
