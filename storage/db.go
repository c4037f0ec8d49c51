package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = leveldb.ErrNotFound

// Reader is the read side shared by databases and call transactions.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Iterate visits every key with the given prefix in ascending byte order.
	// The slices passed to fn are only valid for the duration of the call.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Store is a Reader that also accepts writes.
type Store interface {
	Reader
	Put(key []byte, value []byte) error
}

// Database is a generic interface for a key-value store.
// Contract state can live in memory (tests, dev mode) or on disk.
type Database interface {
	Store
	// Write applies the batch atomically.
	Write(batch *leveldb.Batch) error
	Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu sync.RWMutex
	db *memdb.DB
}

func NewMemDB() *MemDB {
	return &MemDB{
		db: memdb.New(comparer.DefaultComparer, 0),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.db.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, err := db.db.Get(key)
	if err != nil {
		if errors.Is(err, memdb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db.Contains(key), nil
}

func (db *MemDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	it := db.db.NewIterator(util.BytesPrefix(prefix))
	defer it.Release()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// Write replays the batch under a single lock so readers never observe a
// partially applied batch.
func (db *MemDB) Write(batch *leveldb.Batch) error {
	if batch == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	replay := &memReplay{db: db.db}
	if err := batch.Replay(replay); err != nil {
		return err
	}
	return replay.err
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

type memReplay struct {
	db  *memdb.DB
	err error
}

func (r *memReplay) Put(key, value []byte) {
	if r.err == nil {
		r.err = r.db.Put(key, value)
	}
}

func (r *memReplay) Delete(key []byte) {
	if r.err == nil {
		r.err = r.db.Delete(key)
	}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, nil)
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Iterate walks all keys sharing the prefix.
func (ldb *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// Write commits the batch atomically.
func (ldb *LevelDB) Write(batch *leveldb.Batch) error {
	if batch == nil {
		return nil
	}
	return ldb.db.Write(batch, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
