package state

import (
	"fmt"

	"assetescrow/core/types"
	"assetescrow/native/ledger"
)

func (m *Manager) ledgerSeq(id types.AccountID) (uint64, bool, error) {
	var seq uint64
	ok, err := m.indexes.Get([]byte(id), &seq)
	if err != nil {
		return 0, false, err
	}
	return seq, ok, nil
}

func (m *Manager) loadLedgerRecord(seq uint64) (*ledger.Account, error) {
	raw, ok, err := m.users.GetRaw(seqKey(seq))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state: account record %d missing", seq)
	}
	rec, err := ledger.DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	return rec.Latest(), nil
}

func (m *Manager) writeLedgerRecord(seq uint64, acc *ledger.Account) error {
	if err := types.CheckAmount(acc.Balance); err != nil {
		return fmt.Errorf("state: account %s: %w", acc.ID, err)
	}
	encoded, err := ledger.EncodeAccount(acc)
	if err != nil {
		return err
	}
	return m.users.PutRaw(seqKey(seq), encoded)
}

// LedgerAccountGet loads the account registered under id.
func (m *Manager) LedgerAccountGet(id types.AccountID) (*ledger.Account, bool, error) {
	seq, ok, err := m.ledgerSeq(id)
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := m.loadLedgerRecord(seq)
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// LedgerAccountInsert registers a new account at the next sequence number and
// bumps the registered-account counter.
func (m *Manager) LedgerAccountInsert(acc *ledger.Account) error {
	if acc == nil || acc.ID.Empty() {
		return fmt.Errorf("state: account id required")
	}
	if _, exists, err := m.ledgerSeq(acc.ID); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("state: account %s already indexed", acc.ID)
	}
	seq, err := m.bumpCounter(counterUsers)
	if err != nil {
		return err
	}
	if err := m.indexes.Put([]byte(acc.ID), seq); err != nil {
		return err
	}
	return m.writeLedgerRecord(seq, acc)
}

// LedgerAccountPut overwrites an already registered account.
func (m *Manager) LedgerAccountPut(acc *ledger.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	seq, ok, err := m.ledgerSeq(acc.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: account %s not indexed", acc.ID)
	}
	return m.writeLedgerRecord(seq, acc)
}

// LedgerAccounts returns every registered account in registration order.
func (m *Manager) LedgerAccounts() ([]*ledger.Account, error) {
	out := make([]*ledger.Account, 0)
	err := m.users.Iterate(func(_, value []byte) error {
		rec, err := ledger.DecodeAccount(value)
		if err != nil {
			return err
		}
		out = append(out, rec.Latest())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
