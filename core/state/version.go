package state

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/rlp"

	"assetescrow/storage"
)

// Version identifies the storage schema generation. Patch is the salt that
// namespaces every collection, so bumping it re-keys the whole contract state
// without deleting the bytes written under older versions.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// GenesisVersion is the schema version of a freshly deployed contract.
var GenesisVersion = Version{Major: 0, Minor: 0, Patch: 1}

var (
	versionKey = []byte("escrow/version")
	// ErrVersionExhausted indicates the patch counter cannot be incremented.
	ErrVersionExhausted = errors.New("state: schema version patch exhausted")
)

// String renders the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Triple returns the components in order.
func (v Version) Triple() (uint8, uint8, uint8) {
	return v.Major, v.Minor, v.Patch
}

// Inc advances the patch component.
func (v *Version) Inc() error {
	if v.Patch == math.MaxUint8 {
		return ErrVersionExhausted
	}
	v.Patch++
	return nil
}

// LoadVersion reads the persisted schema version. A store that never recorded
// one is at GenesisVersion.
func LoadVersion(r storage.Reader) (Version, error) {
	raw, err := r.Get(versionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return GenesisVersion, nil
	}
	if err != nil {
		return Version{}, err
	}
	var v Version
	if err := rlp.DecodeBytes(raw, &v); err != nil {
		return Version{}, fmt.Errorf("state: decode schema version: %w", err)
	}
	return v, nil
}

func storeVersion(w storage.Store, v Version) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return w.Put(versionKey, encoded)
}
