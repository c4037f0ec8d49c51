package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

const (
	// TypeNativeTransfer is emitted when a native-currency payment is
	// scheduled by a committed call.
	TypeNativeTransfer = "transfer.native"
	// TypeTransferResolved is emitted by the continuation of a custody
	// transfer once the registry outcome is known.
	TypeTransferResolved = "transfer.resolved"
	// TypeStateReset is emitted after every administrative reset.
	TypeStateReset = "state.reset"
)

type NativeTransfer struct {
	To     types.AccountID
	Amount *uint256.Int
	Reason string
}

func (NativeTransfer) EventType() string { return TypeNativeTransfer }

func (e NativeTransfer) Event() *types.Event {
	attrs := map[string]string{
		"to":     e.To.String(),
		"amount": types.FormatAmount(e.Amount),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeNativeTransfer, Attributes: attrs}
}

type TransferResolved struct {
	PromiseID string
	TokenID   string
	Receiver  types.AccountID
	Success   bool
	Error     string
}

func (TransferResolved) EventType() string { return TypeTransferResolved }

func (e TransferResolved) Event() *types.Event {
	attrs := map[string]string{
		"promiseId": e.PromiseID,
		"tokenId":   e.TokenID,
		"receiver":  e.Receiver.String(),
		"success":   strconv.FormatBool(e.Success),
	}
	if e.Error != "" {
		attrs["error"] = e.Error
	}
	return &types.Event{Type: TypeTransferResolved, Attributes: attrs}
}

type StateReset struct {
	Caller  types.AccountID
	Version string
}

func (StateReset) EventType() string { return TypeStateReset }

func (e StateReset) Event() *types.Event {
	return &types.Event{Type: TypeStateReset, Attributes: map[string]string{
		"caller":  e.Caller.String(),
		"version": e.Version,
	}}
}
