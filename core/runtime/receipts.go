package runtime

import (
	"context"
	"errors"
	"sync"

	"assetescrow/core/types"
)

// DefaultReceiptCapacity bounds the receipts held in memory.
const DefaultReceiptCapacity = 512

// ReceiptSink consumes resolved promise receipts.
type ReceiptSink interface {
	Record(ctx context.Context, receipt types.Receipt) error
}

// ReceiptLog keeps the most recent receipts in memory.
type ReceiptLog struct {
	mu  sync.RWMutex
	buf ring[types.Receipt]
}

// NewReceiptLog creates a log retaining up to capacity receipts.
func NewReceiptLog(capacity int) *ReceiptLog {
	if capacity <= 0 {
		capacity = DefaultReceiptCapacity
	}
	return &ReceiptLog{buf: newRing[types.Receipt](capacity)}
}

// Record implements ReceiptSink.
func (l *ReceiptLog) Record(_ context.Context, receipt types.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.push(receipt)
	return nil
}

// List returns up to limit of the latest receipts, oldest first. A
// non-positive limit returns everything retained.
func (l *ReceiptLog) List(limit int) []types.Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buf.tail(limit)
}

// MultiSink fans a receipt out to several sinks.
type MultiSink []ReceiptSink

// Record implements ReceiptSink. Every sink is attempted.
func (m MultiSink) Record(ctx context.Context, receipt types.Receipt) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, receipt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
