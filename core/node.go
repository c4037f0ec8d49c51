package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"assetescrow/core/events"
	"assetescrow/core/runtime"
	"assetescrow/core/state"
	"assetescrow/core/types"
	"assetescrow/native/escrow"
	"assetescrow/native/ledger"
	"assetescrow/native/transfer"
	"assetescrow/observability"
	"assetescrow/observability/metrics"
	"assetescrow/storage"
)

// ErrUnauthorized is returned when a privileged operation is invoked by a
// caller the authorizer rejects.
var ErrUnauthorized = errors.New("core: caller not authorized")

// Options configures a Node. Contract is the account the escrow contract runs under and RegistryID the
// account of the external ownership registry. Gas is the execution budget of
// every transfer call. GateOnPhase rejects purchases while the latest custody
// transfer of the token is pending or failed.
type Options struct {
	Contract        types.AccountID
	RegistryID      types.AccountID
	Registry        transfer.Registry
	Gas             uint64
	Bank            runtime.Bank
	Authorizer      runtime.Authorizer
	GateOnPhase     bool
	QueueCapacity   int
	EventCapacity   int
	ReceiptCapacity int
	ReceiptSinks    []runtime.ReceiptSink
	Logger          *slog.Logger
}

// Node serialises contract calls. Every mutating call runs against a fresh
// overlay of the database and either commits atomically or leaves no trace;
// promises it scheduled are released to the executor only after commit.
type Node struct {
	db          storage.Database
	contract    types.AccountID
	stateMu     sync.Mutex
	executor    *runtime.Executor
	coordinator *transfer.Coordinator
	phases      *transfer.PhaseBook
	gateOnPhase bool
	authorizer  runtime.Authorizer
	bank        runtime.Bank
	events      *events.Log
	receipts    *runtime.ReceiptLog
	logger      *slog.Logger
	clockMu     sync.RWMutex
	nowFn       func() uint64
}

// NewNode wires the contract over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if err := opts.Contract.Validate(); err != nil {
		return nil, fmt.Errorf("core: contract account: %w", err)
	}
	if err := opts.RegistryID.Validate(); err != nil {
		return nil, fmt.Errorf("core: registry account: %w", err)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("core: ownership registry required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bank := opts.Bank
	if bank == nil {
		bank = runtime.NewNativeBank()
	}
	authorizer := opts.Authorizer
	if authorizer == nil {
		authorizer = runtime.DenyAll{}
	}

	// Fail fast on a corrupt version record.
	if _, err := state.LoadVersion(db); err != nil {
		return nil, err
	}

	n := &Node{
		db:          db,
		contract:    opts.Contract,
		phases:      transfer.NewPhaseBook(),
		gateOnPhase: opts.GateOnPhase,
		authorizer:  authorizer,
		bank:        bank,
		events:      events.NewLog(opts.EventCapacity),
		receipts:    runtime.NewReceiptLog(opts.ReceiptCapacity),
		logger:      logger,
		nowFn:       func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	sinks := append(runtime.MultiSink{n.receipts}, opts.ReceiptSinks...)
	n.executor = runtime.NewExecutor(
		runtime.WithQueueCapacity(opts.QueueCapacity),
		runtime.WithBank(bank),
		runtime.WithReceiptSink(sinks),
		runtime.WithLogger(logger.With(slog.String("component", "executor"))),
	)
	n.coordinator = transfer.NewCoordinator(opts.RegistryID, opts.Registry)
	n.coordinator.SetGas(opts.Gas)
	n.coordinator.SetLogger(logger.With(slog.String("component", "transfer")))
	n.coordinator.SetObserver(resolutionObserver{node: n})
	return n, nil
}

// SetNowFunc overrides the block clock (nanoseconds). Primarily intended for
// tests.
func (n *Node) SetNowFunc(now func() uint64) {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixNano()) }
	}
	n.nowFn = now
}

// now reads the block clock. Safe to call from executor workers.
func (n *Node) now() uint64 {
	n.clockMu.RLock()
	defer n.clockMu.RUnlock()
	return n.nowFn()
}

// Contract returns the account the contract runs under.
func (n *Node) Contract() types.AccountID { return n.contract }

// Bank returns the native-currency bank settling payouts.
func (n *Node) Bank() runtime.Bank { return n.bank }

// Executor exposes the promise executor.
func (n *Node) Executor() *runtime.Executor { return n.executor }

// Start launches the promise workers.
func (n *Node) Start(ctx context.Context, workers int) { n.executor.Start(ctx, workers) }

// Drain synchronously resolves every queued promise.
func (n *Node) Drain(ctx context.Context) int { return n.executor.Drain(ctx) }

type resolutionObserver struct {
	node *Node
}

func (o resolutionObserver) Issued(id uuid.UUID, tokenID string, receiver types.AccountID) {
	o.node.phases.Issued(id, tokenID, receiver)
}

func (o resolutionObserver) Resolved(id uuid.UUID, tokenID string, err error) {
	o.node.phases.Resolved(id, tokenID, err)
	evt := events.TransferResolved{PromiseID: id.String(), TokenID: tokenID, Success: err == nil}
	if rec, ok := o.node.phases.Lookup(tokenID); ok && rec.PromiseID == id {
		evt.Receiver = rec.Receiver
	}
	if err != nil {
		evt.Error = err.Error()
	}
	o.node.events.Append(evt, o.node.now())
}

// scope is everything one call may touch.
type scope struct {
	call     *runtime.Call
	manager  *state.Manager
	ledger   *ledger.Engine
	registry *escrow.Engine
	emitter  events.Emitter
}

func (n *Node) newScope(store storage.Store, call *runtime.Call, emitter events.Emitter) (*scope, error) {
	manager, err := state.NewManager(store)
	if err != nil {
		return nil, err
	}
	ledgerEngine := ledger.NewEngine()
	ledgerEngine.SetState(manager)
	ledgerEngine.SetEmitter(emitter)

	registry := escrow.NewEngine()
	registry.SetState(manager)
	registry.SetTransferer(n.coordinator)
	registry.SetTracker(ledgerEngine)
	registry.SetEmitter(emitter)
	if n.gateOnPhase {
		registry.SetPhaseGate(n.phases)
	}
	return &scope{call: call, manager: manager, ledger: ledgerEngine, registry: registry, emitter: emitter}, nil
}

// exec runs fn as one atomic contract call.
func (n *Node) exec(method string, caller types.AccountID, deposit *uint256.Int, fn func(*scope) error) (err error) {
	started := time.Now()
	defer func() { metrics.Escrow().ObserveCall(method, err, time.Since(started)) }()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	txn := storage.NewTxn(n.db)
	call := runtime.NewCall(caller, n.contract, deposit, n.now())
	buf := &events.Buffer{}
	sc, err := n.newScope(txn, call, buf)
	if err != nil {
		txn.Discard()
		return err
	}
	if err = fn(sc); err != nil {
		txn.Discard()
		call.Discard()
		n.logger.Debug("call reverted",
			slog.String("method", method),
			slog.String("caller", caller.String()),
			slog.Any("error", err))
		return err
	}
	if err = txn.Commit(); err != nil {
		call.Discard()
		return fmt.Errorf("core: commit %s: %w", method, err)
	}
	promises := call.Committed()
	committed := buf.Events()
	for _, p := range promises {
		if p.Kind == runtime.KindNativeTransfer {
			committed = append(committed, events.NativeTransfer{To: p.Receiver, Amount: p.Amount, Reason: method})
		}
	}
	for _, evt := range committed {
		n.events.Append(evt, call.Timestamp)
		observability.Events().Record(evt.EventType())
	}
	n.executor.Enqueue(promises...)
	return nil
}

// view runs fn against the committed state without writing.
func (n *Node) view(fn func(*scope) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	sc, err := n.newScope(n.db, nil, events.NoopEmitter{})
	if err != nil {
		return err
	}
	return fn(sc)
}

// Register opens an account for caller funded with deposit.
func (n *Node) Register(caller types.AccountID, deposit *uint256.Int) (*ledger.Account, error) {
	var acc *ledger.Account
	err := n.exec("register", caller, deposit, func(sc *scope) error {
		var err error
		acc, err = sc.ledger.Register(sc.call)
		return err
	})
	return acc, err
}

// Deposit credits deposit to caller's balance and returns the new balance.
func (n *Node) Deposit(caller types.AccountID, deposit *uint256.Int) (*uint256.Int, error) {
	var balance *uint256.Int
	err := n.exec("deposit", caller, deposit, func(sc *scope) error {
		var err error
		balance, err = sc.ledger.Deposit(sc.call)
		return err
	})
	return balance, err
}

// WithdrawAll pays caller's whole balance out and returns the amount.
func (n *Node) WithdrawAll(caller types.AccountID) (*uint256.Int, error) {
	var amount *uint256.Int
	err := n.exec("withdrawAll", caller, nil, func(sc *scope) error {
		var err error
		amount, err = sc.ledger.WithdrawAll(sc.call)
		return err
	})
	return amount, err
}

// BalanceOf returns the ledger balance of id.
func (n *Node) BalanceOf(id types.AccountID) (*uint256.Int, error) {
	var balance *uint256.Int
	err := n.view(func(sc *scope) error {
		var err error
		balance, err = sc.ledger.BalanceOf(id)
		return err
	})
	return balance, err
}

// Account returns the ledger record of id.
func (n *Node) Account(id types.AccountID) (*ledger.Account, error) {
	var acc *ledger.Account
	err := n.view(func(sc *scope) error {
		var err error
		acc, err = sc.ledger.Account(id)
		return err
	})
	return acc, err
}

// Accounts returns every ledger account in registration order.
func (n *Node) Accounts() ([]*ledger.Account, error) {
	var out []*ledger.Account
	err := n.view(func(sc *scope) error {
		var err error
		out, err = sc.ledger.Accounts()
		return err
	})
	return out, err
}

// Users returns registered account ids in registration order.
func (n *Node) Users() ([]types.AccountID, error) {
	var out []types.AccountID
	err := n.view(func(sc *scope) error {
		var err error
		out, err = sc.ledger.Users()
		return err
	})
	return out, err
}

// ListAsset places tokenID for sale at price.
func (n *Node) ListAsset(caller types.AccountID, deposit *uint256.Int, tokenID string, price *uint256.Int, params escrow.ListParams) (*escrow.Asset, error) {
	var asset *escrow.Asset
	err := n.exec("placeAsset", caller, deposit, func(sc *scope) error {
		var err error
		asset, err = sc.registry.ListAsset(sc.call, tokenID, price, params)
		return err
	})
	return asset, err
}

// BuyAsset purchases tokenID paying deposit.
func (n *Node) BuyAsset(caller types.AccountID, deposit *uint256.Int, tokenID string) (*escrow.Asset, error) {
	var asset *escrow.Asset
	err := n.exec("buyAsset", caller, deposit, func(sc *scope) error {
		var err error
		asset, err = sc.registry.BuyAsset(sc.call, tokenID)
		return err
	})
	return asset, err
}

// Asset returns the record of tokenID.
func (n *Node) Asset(tokenID string) (*escrow.Asset, error) {
	var asset *escrow.Asset
	err := n.view(func(sc *scope) error {
		var err error
		asset, err = sc.registry.Asset(tokenID)
		return err
	})
	return asset, err
}

// Assets returns every asset ordered by token id.
func (n *Node) Assets() ([]*escrow.Asset, error) {
	var out []*escrow.Asset
	err := n.view(func(sc *scope) error {
		var err error
		out, err = sc.registry.Assets()
		return err
	})
	return out, err
}

// CurrentVersion returns the schema version of the contract state.
func (n *Node) CurrentVersion() (state.Version, error) {
	var v state.Version
	err := n.view(func(sc *scope) error {
		v = sc.manager.CurrentVersion()
		return nil
	})
	return v, err
}

// Reset discards every ledger and registry record by moving the state to a
// fresh namespace. Only authorized callers may reset.
func (n *Node) Reset(caller types.AccountID) (state.Version, error) {
	return n.ResetWith(caller, nil)
}

// ResetWith performs Reset after letting migrate copy records forward.
func (n *Node) ResetWith(caller types.AccountID, migrate state.Migrator) (state.Version, error) {
	var v state.Version
	err := n.exec("reset", caller, nil, func(sc *scope) error {
		if !n.authorizer.Authorized(caller) {
			return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
		}
		if err := sc.manager.ResetWith(migrate); err != nil {
			return err
		}
		v = sc.manager.CurrentVersion()
		sc.emitter.Emit(events.StateReset{Caller: caller, Version: v.String()})
		sc.call.OnCommit(func() {
			n.phases.Reset()
			metrics.Escrow().IncReset()
			n.logger.Warn("contract state reset", slog.String("caller", caller.String()), slog.String("version", v.String()))
		})
		return nil
	})
	return v, err
}

// TransferPhase returns the phase of the latest custody transfer of tokenID.
func (n *Node) TransferPhase(tokenID string) (transfer.Record, bool) {
	return n.phases.Lookup(tokenID)
}

// Receipts returns up to limit of the most recent promise receipts.
func (n *Node) Receipts(limit int) []types.Receipt {
	return n.receipts.List(limit)
}

// Events returns up to limit of the most recent events matching prefix.
func (n *Node) Events(prefix string, limit int) []types.Event {
	return n.events.List(prefix, limit)
}
