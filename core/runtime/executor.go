package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"assetescrow/core/types"
	"assetescrow/observability/metrics"
)

// DefaultQueueCapacity bounds the promises awaiting execution.
const DefaultQueueCapacity = 1024

// ErrNoBank is the outcome of a native transfer when no bank is configured.
var ErrNoBank = errors.New("runtime: native bank not configured")

// ExecutorOption adjusts the behaviour of the executor.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	capacity int
	bank     Bank
	sink     ReceiptSink
	logger   *slog.Logger
	now      func() time.Time
}

// WithQueueCapacity sets the maximum number of pending promises.
func WithQueueCapacity(capacity int) ExecutorOption {
	return func(cfg *executorConfig) {
		if capacity > 0 {
			cfg.capacity = capacity
		}
	}
}

// WithBank configures where native transfers are settled.
func WithBank(bank Bank) ExecutorOption {
	return func(cfg *executorConfig) { cfg.bank = bank }
}

// WithReceiptSink configures where receipts are recorded.
func WithReceiptSink(sink ReceiptSink) ExecutorOption {
	return func(cfg *executorConfig) { cfg.sink = sink }
}

// WithLogger configures the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(cfg *executorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp receipts.
func WithClock(now func() time.Time) ExecutorOption {
	return func(cfg *executorConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Executor runs promises released by committed calls. Each promise runs
// exactly once and its continuation observes the outcome; there is no retry.
// When the queue overflows the oldest pending promise is dropped and never
// resolves.
type Executor struct {
	mu     sync.Mutex
	queue  ring[*Promise]
	notify chan struct{}

	bank    Bank
	sink    ReceiptSink
	logger  *slog.Logger
	now     func() time.Time
	dropped atomic.Uint64
	meters  *executorMeters
	wg      sync.WaitGroup
}

// NewExecutor constructs an executor with optional customisation.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := executorConfig{
		capacity: DefaultQueueCapacity,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{
		queue:  newRing[*Promise](cfg.capacity),
		notify: make(chan struct{}, 1),
		bank:   cfg.bank,
		sink:   cfg.sink,
		logger: cfg.logger,
		now:    cfg.now,
		meters: executorMetrics(),
	}
}

// Enqueue hands promises to the executor in order.
func (e *Executor) Enqueue(promises ...*Promise) {
	if len(promises) == 0 {
		return
	}
	e.mu.Lock()
	for _, p := range promises {
		if p == nil {
			continue
		}
		if lost, overflow := e.queue.push(p); overflow {
			e.recordDropped(lost)
		}
	}
	depth := e.queue.len()
	e.mu.Unlock()
	metrics.Escrow().SetQueueDepth(depth)
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued promises.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

// Dropped returns how many promises were lost to overflow.
func (e *Executor) Dropped() uint64 { return e.dropped.Load() }

func (e *Executor) next() (*Promise, bool) {
	e.mu.Lock()
	p, ok := e.queue.pop()
	depth := e.queue.len()
	e.mu.Unlock()
	if ok {
		metrics.Escrow().SetQueueDepth(depth)
	}
	return p, ok
}

// Drain synchronously runs queued promises until the queue is empty or ctx
// is cancelled. It returns the number of promises executed.
func (e *Executor) Drain(ctx context.Context) int {
	executed := 0
	for ctx.Err() == nil {
		p, ok := e.next()
		if !ok {
			break
		}
		e.execute(ctx, p)
		executed++
	}
	return executed
}

// Start launches worker goroutines that run promises until ctx is cancelled.
func (e *Executor) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.work(ctx)
	}
}

// Wait blocks until every worker started by Start has exited.
func (e *Executor) Wait() { e.wg.Wait() }

func (e *Executor) work(ctx context.Context) {
	defer e.wg.Done()
	for {
		if p, ok := e.next(); ok {
			e.execute(ctx, p)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-e.notify:
		}
	}
}

func (e *Executor) execute(ctx context.Context, p *Promise) {
	var outcome error
	switch {
	case p.Run != nil:
		outcome = p.Run(ctx)
	case p.Kind == KindNativeTransfer:
		if e.bank == nil {
			outcome = ErrNoBank
		} else {
			outcome = e.bank.Credit(p.Receiver, p.Amount)
		}
	}
	success := outcome == nil
	if p.Then != nil {
		success = p.Then(outcome)
	}

	receipt := types.Receipt{
		ID:         p.ID.String(),
		Kind:       string(p.Kind),
		Receiver:   p.Receiver,
		Method:     p.Method,
		TokenID:    p.TokenID,
		Amount:     types.CloneAmount(p.Amount),
		Success:    success,
		ResolvedAt: e.now().UTC(),
	}
	if outcome != nil {
		receipt.Error = outcome.Error()
	}
	metrics.Escrow().ObservePromise(receipt.Kind, success)
	if outcome != nil && p.Then == nil {
		e.logger.Warn("promise failed",
			slog.String("promise", receipt.ID),
			slog.String("kind", receipt.Kind),
			slog.String("receiver", receipt.Receiver.String()),
			slog.String("error", receipt.Error))
	}
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(ctx, receipt); err != nil {
		e.logger.Error("record receipt", slog.String("promise", receipt.ID), slog.Any("error", err))
	}
}

func (e *Executor) recordDropped(p *Promise) {
	e.dropped.Add(1)
	metrics.Escrow().IncDropped(1)
	e.meters.recordDropped(p)
	if p == nil {
		return
	}
	e.logger.Warn("promise dropped",
		slog.String("promise", p.ID.String()),
		slog.String("kind", string(p.Kind)),
		slog.String("receiver", p.Receiver.String()))
}

var (
	meterOnce        sync.Once
	sharedExecMeters *executorMeters
)

type executorMeters struct {
	dropped metric.Int64Counter
}

func executorMetrics() *executorMeters {
	meterOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("assetescrow/runtime")
		counter, err := meter.Int64Counter("escrow.promises.dropped")
		if err != nil {
			fallback := noop.NewMeterProvider().Meter("assetescrow/runtime")
			counter, _ = fallback.Int64Counter("escrow.promises.dropped")
		}
		sharedExecMeters = &executorMeters{dropped: counter}
	})
	return sharedExecMeters
}

func (m *executorMeters) recordDropped(p *Promise) {
	if m == nil || m.dropped == nil {
		return
	}
	kind := "unknown"
	if p != nil {
		kind = string(p.Kind)
	}
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}
