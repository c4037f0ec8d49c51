package transfer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetescrow/core/types"
)

// Phase is the externally observed state of the latest transfer of a token.
type Phase string

const (
	PhaseUnknown   Phase = "unknown"
	PhasePending   Phase = "pending"
	PhaseConfirmed Phase = "confirmed"
	PhaseFailed    Phase = "failed"
)

var (
	// ErrTransferPending is returned by the gate while a transfer is in flight.
	ErrTransferPending = errors.New("transfer: custody transfer pending")
	// ErrTransferFailed is returned by the gate after a transfer failed.
	ErrTransferFailed = errors.New("transfer: custody transfer failed")
)

// Observer is notified when a transfer call is released and when it resolves.
type Observer interface {
	Issued(id uuid.UUID, tokenID string, receiver types.AccountID)
	Resolved(id uuid.UUID, tokenID string, err error)
}

// NoopObserver discards notifications.
type NoopObserver struct{}

func (NoopObserver) Issued(uuid.UUID, string, types.AccountID) {}
func (NoopObserver) Resolved(uuid.UUID, string, error)         {}

// Record is the phase of the most recent transfer of one token.
type Record struct {
	TokenID   string
	PromiseID uuid.UUID
	Receiver  types.AccountID
	Phase     Phase
	Error     string
	UpdatedAt time.Time
}

// PhaseBook tracks the latest transfer per token id. A resolution for an
// older transfer of the same token is ignored.
type PhaseBook struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewPhaseBook returns an empty book.
func NewPhaseBook() *PhaseBook {
	return &PhaseBook{records: make(map[string]Record), now: time.Now}
}

// SetNowFunc overrides the clock used to stamp records.
func (b *PhaseBook) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	b.now = now
}

// Issued implements Observer.
func (b *PhaseBook) Issued(id uuid.UUID, tokenID string, receiver types.AccountID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[tokenID] = Record{
		TokenID:   tokenID,
		PromiseID: id,
		Receiver:  receiver,
		Phase:     PhasePending,
		UpdatedAt: b.now().UTC(),
	}
}

// Resolved implements Observer.
func (b *PhaseBook) Resolved(id uuid.UUID, tokenID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[tokenID]
	if !ok || rec.PromiseID != id {
		return
	}
	rec.Phase = PhaseConfirmed
	rec.Error = ""
	if err != nil {
		rec.Phase = PhaseFailed
		rec.Error = err.Error()
	}
	rec.UpdatedAt = b.now().UTC()
	b.records[tokenID] = rec
}

// Lookup returns the record of tokenID.
func (b *PhaseBook) Lookup(tokenID string) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[tokenID]
	return rec, ok
}

// Phase returns the phase of tokenID, PhaseUnknown when never seen.
func (b *PhaseBook) Phase(tokenID string) Phase {
	rec, ok := b.Lookup(tokenID)
	if !ok {
		return PhaseUnknown
	}
	return rec.Phase
}

// Reset forgets every record.
func (b *PhaseBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make(map[string]Record)
}

// CheckPurchasable rejects tokens whose latest transfer is not confirmed.
// Tokens the book has never seen pass.
func (b *PhaseBook) CheckPurchasable(tokenID string) error {
	switch b.Phase(tokenID) {
	case PhasePending:
		return ErrTransferPending
	case PhaseFailed:
		return ErrTransferFailed
	default:
		return nil
	}
}
