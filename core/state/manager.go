package state

import (
	"encoding/binary"
	"fmt"

	"assetescrow/storage"
)

const (
	counterUsers  = "user_amount"
	counterAssets = "asset_amount"
)

// Manager exposes the contract state of one schema version. Every collection
// it hands out is opened with the manager's version, so reset only needs to
// replace the version value and reopen.
type Manager struct {
	store    storage.Store
	version  Version
	indexes  *Collection
	users    *Collection
	assets   *Collection
	counters *Collection
}

// Migrator copies selected records from the namespace of old into the fresh
// namespace of next before a reset is finalised.
type Migrator func(old, next *Manager) error

// NewManager opens the state at the version recorded in store.
func NewManager(store storage.Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("state: store must not be nil")
	}
	v, err := LoadVersion(store)
	if err != nil {
		return nil, err
	}
	return NewManagerAt(store, v), nil
}

// NewManagerAt opens the state under an explicit schema version without
// consulting the persisted version record.
func NewManagerAt(store storage.Store, v Version) *Manager {
	m := &Manager{store: store}
	m.open(v)
	return m
}

func (m *Manager) open(v Version) {
	m.version = v
	m.indexes = OpenCollection(m.store, CollectionIndexes, v)
	m.users = OpenCollection(m.store, CollectionUsers, v)
	m.assets = OpenCollection(m.store, CollectionAssets, v)
	m.counters = OpenCollection(m.store, CollectionCounters, v)
}

// CurrentVersion returns the schema version the manager operates on.
func (m *Manager) CurrentVersion() Version { return m.version }

// Reset bumps the patch version and re-keys every collection under the new
// salt. Records stored under the previous version stay on disk but are no
// longer reachable.
func (m *Manager) Reset() error {
	return m.ResetWith(nil)
}

// ResetWith performs Reset, running migrate between opening the new
// namespace and recording the new version.
func (m *Manager) ResetWith(migrate Migrator) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	next := m.version
	if err := next.Inc(); err != nil {
		return err
	}
	fresh := NewManagerAt(m.store, next)
	if migrate != nil {
		if err := migrate(NewManagerAt(m.store, m.version), fresh); err != nil {
			return fmt.Errorf("state: migrate %s -> %s: %w", m.version, next, err)
		}
	}
	if err := storeVersion(m.store, next); err != nil {
		return err
	}
	m.open(next)
	return nil
}

// Collection returns the named top-level collection of this version.
func (m *Manager) Collection(name string) (*Collection, error) {
	switch name {
	case CollectionIndexes:
		return m.indexes, nil
	case CollectionUsers:
		return m.users, nil
	case CollectionAssets:
		return m.assets, nil
	case CollectionCounters:
		return m.counters, nil
	default:
		return nil, fmt.Errorf("state: unknown collection %q", name)
	}
}

func (m *Manager) counter(name string) (uint64, error) {
	var v uint64
	if _, err := m.counters.Get([]byte(name), &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (m *Manager) bumpCounter(name string) (uint64, error) {
	v, err := m.counter(name)
	if err != nil {
		return 0, err
	}
	if err := m.counters.Put([]byte(name), v+1); err != nil {
		return 0, err
	}
	return v, nil
}

// UserCount returns the number of registered accounts.
func (m *Manager) UserCount() (uint64, error) { return m.counter(counterUsers) }

// AssetCount returns the number of assets ever listed under this version.
func (m *Manager) AssetCount() (uint64, error) { return m.counter(counterAssets) }

func seqKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}
