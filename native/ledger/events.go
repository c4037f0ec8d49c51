package ledger

import (
	"strconv"

	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

const (
	EventTypeRegistered = "ledger.registered"
	EventTypeDeposited  = "ledger.deposited"
	EventTypeWithdrawn  = "ledger.withdrawn"
)

// NewRegisteredEvent returns the payload emitted when an account opens.
func NewRegisteredEvent(acc *Account) *types.Event {
	attrs := map[string]string{}
	if acc != nil {
		attrs["account"] = acc.ID.String()
		attrs["balance"] = types.FormatAmount(acc.Balance)
		attrs["assets"] = strconv.Itoa(len(acc.AssetIDs))
	}
	return &types.Event{Type: EventTypeRegistered, Attributes: attrs}
}

// NewDepositedEvent returns the payload emitted after a deposit.
func NewDepositedEvent(id types.AccountID, amount, balance *uint256.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"account": id.String(),
		"amount":  types.FormatAmount(amount),
		"balance": types.FormatAmount(balance),
	}}
}

// NewWithdrawnEvent returns the payload emitted when a balance is paid out.
func NewWithdrawnEvent(id types.AccountID, amount *uint256.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdrawn, Attributes: map[string]string{
		"account": id.String(),
		"amount":  types.FormatAmount(amount),
	}}
}
