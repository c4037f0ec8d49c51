package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

// Bank settles native-currency transfers issued by the contract.
type Bank interface {
	Credit(to types.AccountID, amount *uint256.Int) error
}

// NativeBank is an in-memory record of native currency paid out by the
// contract. Nothing in the contract reads it back.
type NativeBank struct {
	mu       sync.RWMutex
	balances map[types.AccountID]*uint256.Int
}

// NewNativeBank returns an empty bank.
func NewNativeBank() *NativeBank {
	return &NativeBank{balances: make(map[types.AccountID]*uint256.Int)}
}

// Credit adds amount to the balance of to.
func (b *NativeBank) Credit(to types.AccountID, amount *uint256.Int) error {
	if to.Empty() {
		return fmt.Errorf("bank: receiver required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sum, err := types.AddAmounts(b.balances[to], amount)
	if err != nil {
		return fmt.Errorf("bank: credit %s: %w", to, err)
	}
	b.balances[to] = sum
	return nil
}

// BalanceOf returns the native balance credited to id.
func (b *NativeBank) BalanceOf(id types.AccountID) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return types.CloneAmount(b.balances[id])
}

// Accounts lists every credited account in lexical order.
func (b *NativeBank) Accounts() []types.AccountID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.AccountID, 0, len(b.balances))
	for id := range b.balances {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
