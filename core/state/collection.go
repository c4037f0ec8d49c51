package state

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"assetescrow/storage"
)

// Top-level collection names.
const (
	CollectionIndexes  = "indexes"
	CollectionUsers    = "users"
	CollectionAssets   = "assets"
	CollectionCounters = "counters"
)

// Collections lists every top-level collection re-keyed by a reset.
var Collections = []string{CollectionIndexes, CollectionUsers, CollectionAssets, CollectionCounters}

// Namespace derives the key prefix of a collection for the given schema
// version: keccak256("<name>_<patch>").
func Namespace(name string, v Version) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s_%d", name, v.Patch)))
}

// Collection is a keyed set of RLP-encoded records living under one
// namespace prefix.
type Collection struct {
	store  storage.Store
	name   string
	prefix []byte
}

// OpenCollection binds the named collection of version v to store.
func OpenCollection(store storage.Store, name string, v Version) *Collection {
	return &Collection{store: store, name: name, prefix: Namespace(name, v)}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Prefix returns a copy of the namespace prefix.
func (c *Collection) Prefix() []byte { return append([]byte(nil), c.prefix...) }

func (c *Collection) key(k []byte) []byte {
	buf := make([]byte, len(c.prefix)+len(k))
	copy(buf, c.prefix)
	copy(buf[len(c.prefix):], k)
	return buf
}

// PutRaw stores already-encoded bytes under k.
func (c *Collection) PutRaw(k, value []byte) error {
	if len(k) == 0 {
		return fmt.Errorf("state: %s: key must not be empty", c.name)
	}
	return c.store.Put(c.key(k), value)
}

// GetRaw returns the stored bytes and whether the key existed.
func (c *Collection) GetRaw(k []byte) ([]byte, bool, error) {
	if len(k) == 0 {
		return nil, false, fmt.Errorf("state: %s: key must not be empty", c.name)
	}
	data, err := c.store.Get(c.key(k))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put RLP-encodes value under k.
func (c *Collection) Put(k []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return c.PutRaw(k, encoded)
}

// Get decodes the value under k into out. The boolean reports whether the key
// existed.
func (c *Collection) Get(k []byte, out interface{}) (bool, error) {
	data, ok, err := c.GetRaw(k)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: %s: decode: %w", c.name, err)
	}
	return true, nil
}

// Has reports whether k exists.
func (c *Collection) Has(k []byte) (bool, error) {
	return c.store.Has(c.key(k))
}

// Iterate visits every record in key order. The key passed to fn has the
// namespace prefix stripped.
func (c *Collection) Iterate(fn func(key, value []byte) error) error {
	return c.store.Iterate(c.prefix, func(key, value []byte) error {
		return fn(bytes.TrimPrefix(key, c.prefix), value)
	})
}
