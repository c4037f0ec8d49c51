package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

// RecordKind tags the historical shape of a stored account.
type RecordKind uint8

const (
	// KindV1 is the original balance-only user record.
	KindV1 RecordKind = 1
	// KindV2 adds the listed asset index.
	KindV2 RecordKind = 2

	// LatestKind is the shape every write uses.
	LatestKind = KindV2
)

// ErrUnknownRecordVersion is returned for envelopes carrying an unknown kind.
var ErrUnknownRecordVersion = errors.New("ledger: unknown account record version")

// VersionedAccount is one of the known stored account shapes.
type VersionedAccount interface {
	Kind() RecordKind
	// Latest upgrades the record to the current Account shape.
	Latest() *Account
}

// AccountV1 is the balance-only record written before asset tracking.
type AccountV1 struct {
	ID      types.AccountID
	Balance *uint256.Int
}

func (*AccountV1) Kind() RecordKind { return KindV1 }

func (a *AccountV1) Latest() *Account {
	return &Account{ID: a.ID, Balance: types.CloneAmount(a.Balance), AssetIDs: []string{}}
}

// AccountV2 is the current record shape.
type AccountV2 struct {
	ID       types.AccountID
	Balance  *uint256.Int
	AssetIDs []string
}

func (*AccountV2) Kind() RecordKind { return KindV2 }

func (a *AccountV2) Latest() *Account {
	ids := append([]string(nil), a.AssetIDs...)
	if ids == nil {
		ids = []string{}
	}
	return &Account{ID: a.ID, Balance: types.CloneAmount(a.Balance), AssetIDs: ids}
}

type accountEnvelope struct {
	Kind    uint8
	Payload []byte
}

// EncodeAccount serialises acc in the latest record shape.
func EncodeAccount(acc *Account) ([]byte, error) {
	if acc == nil {
		return nil, fmt.Errorf("ledger: nil account")
	}
	return EncodeVersioned(&AccountV2{
		ID:       acc.ID,
		Balance:  types.CloneAmount(acc.Balance),
		AssetIDs: append([]string{}, acc.AssetIDs...),
	})
}

// EncodeVersioned serialises any known record shape inside a tagged envelope.
func EncodeVersioned(rec VersionedAccount) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("ledger: nil record")
	}
	payload, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(accountEnvelope{Kind: uint8(rec.Kind()), Payload: payload})
}

// DecodeAccount parses a stored envelope into its recorded shape.
func DecodeAccount(raw []byte) (VersionedAccount, error) {
	var env accountEnvelope
	if err := rlp.DecodeBytes(raw, &env); err != nil {
		return nil, fmt.Errorf("ledger: decode envelope: %w", err)
	}
	var rec VersionedAccount
	switch RecordKind(env.Kind) {
	case KindV1:
		rec = new(AccountV1)
	case KindV2:
		rec = new(AccountV2)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRecordVersion, env.Kind)
	}
	if err := rlp.DecodeBytes(env.Payload, rec); err != nil {
		return nil, fmt.Errorf("ledger: decode v%d account: %w", env.Kind, err)
	}
	return rec, nil
}
