package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
)

var errTxnClosed = errors.New("storage: transaction already finished")

// Txn buffers the writes of a single contract call on top of a Database.
// Reads observe the buffered writes. Nothing reaches the database until
// Commit, which applies every write in one atomic batch. Discard drops the
// buffer, which is how a failed call reverts.
//
// Txn is not safe for concurrent use.
type Txn struct {
	base    Database
	pending map[string][]byte
	done    bool
}

// NewTxn opens a write buffer over db.
func NewTxn(db Database) *Txn {
	return &Txn{base: db, pending: make(map[string][]byte)}
}

func (t *Txn) Put(key []byte, value []byte) error {
	if t.done {
		return errTxnClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("storage: key must not be empty")
	}
	t.pending[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	if value, ok := t.pending[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return t.base.Get(key)
}

func (t *Txn) Has(key []byte) (bool, error) {
	if _, ok := t.pending[string(key)]; ok {
		return true, nil
	}
	return t.base.Has(key)
}

// Iterate merges the committed keys under prefix with the buffered ones.
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := t.base.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return err
	}
	for key, value := range t.pending {
		if bytes.HasPrefix([]byte(key), prefix) {
			merged[key] = value
		}
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn([]byte(key), merged[key]); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of buffered writes.
func (t *Txn) Len() int { return len(t.pending) }

// Commit writes the buffered changes atomically and closes the transaction.
func (t *Txn) Commit() error {
	if t.done {
		return errTxnClosed
	}
	t.done = true
	if len(t.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.pending))
	for key := range t.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := new(leveldb.Batch)
	for _, key := range keys {
		batch.Put([]byte(key), t.pending[key])
	}
	t.pending = nil
	return t.base.Write(batch)
}

// Discard drops every buffered write.
func (t *Txn) Discard() {
	t.done = true
	t.pending = nil
}
