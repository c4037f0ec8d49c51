package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"assetescrow/core/events"
	"assetescrow/core/runtime"
	"assetescrow/core/types"
)

var (
	ErrAlreadyExists     = errors.New("ledger: account already registered")
	ErrNotRegistered     = errors.New("ledger: account not registered")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	errNilState = errors.New("ledger engine: state not configured")
)

type engineState interface {
	LedgerAccountGet(id types.AccountID) (*Account, bool, error)
	LedgerAccountInsert(acc *Account) error
	LedgerAccountPut(acc *Account) error
	LedgerAccounts() ([]*Account, error)
}

// Engine implements the custodial account ledger. All mutations run inside
// a single call; a returned error means the caller must revert the call.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a ledger engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Static{Payload: evt})
}

func (e *Engine) load(id types.AccountID) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, ok, err := e.state.LedgerAccountGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return acc, nil
}

// Register opens an account for the caller whose initial balance is the
// attached deposit. A zero deposit is accepted.
func (e *Engine) Register(call *runtime.Call) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if call == nil || call.Caller.Empty() {
		return nil, fmt.Errorf("ledger: caller required")
	}
	if _, exists, err := e.state.LedgerAccountGet(call.Caller); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, call.Caller)
	}
	acc := &Account{ID: call.Caller, Balance: call.AttachedDeposit(), AssetIDs: []string{}}
	if err := types.CheckAmount(acc.Balance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if err := e.state.LedgerAccountInsert(acc); err != nil {
		return nil, err
	}
	e.emit(NewRegisteredEvent(acc))
	return acc.Clone(), nil
}

// Deposit adds the attached payment to the caller's balance.
func (e *Engine) Deposit(call *runtime.Call) (*uint256.Int, error) {
	if call == nil {
		return nil, fmt.Errorf("ledger: caller required")
	}
	amount := call.AttachedDeposit()
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	acc, err := e.load(call.Caller)
	if err != nil {
		return nil, err
	}
	sum, err := types.AddAmounts(acc.Balance, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	acc.Balance = sum
	if err := e.state.LedgerAccountPut(acc); err != nil {
		return nil, err
	}
	e.emit(NewDepositedEvent(acc.ID, amount, acc.Balance))
	return types.CloneAmount(acc.Balance), nil
}

// WithdrawAll zeroes the caller's balance and schedules a native transfer of
// the prior balance back to the caller. The transfer is fire-and-forget: its
// failure is never reflected in the ledger.
func (e *Engine) WithdrawAll(call *runtime.Call) (*uint256.Int, error) {
	if call == nil {
		return nil, fmt.Errorf("ledger: caller required")
	}
	acc, err := e.load(call.Caller)
	if err != nil {
		return nil, err
	}
	if acc.Balance == nil || acc.Balance.IsZero() {
		return nil, fmt.Errorf("%w: %s has nothing to withdraw", ErrInsufficientFunds, acc.ID)
	}
	amount := types.CloneAmount(acc.Balance)
	acc.Balance = types.Zero()
	if err := e.state.LedgerAccountPut(acc); err != nil {
		return nil, err
	}
	call.ScheduleTransfer(acc.ID, amount)
	e.emit(NewWithdrawnEvent(acc.ID, amount))
	return amount, nil
}

// BalanceOf returns the balance of id.
func (e *Engine) BalanceOf(id types.AccountID) (*uint256.Int, error) {
	acc, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return types.CloneAmount(acc.Balance), nil
}

// Account returns the full record of id.
func (e *Engine) Account(id types.AccountID) (*Account, error) {
	acc, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// Accounts returns every registered account in registration order.
func (e *Engine) Accounts() ([]*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.LedgerAccounts()
}

// Users returns the registered account ids in registration order.
func (e *Engine) Users() ([]types.AccountID, error) {
	accounts, err := e.Accounts()
	if err != nil {
		return nil, err
	}
	ids := make([]types.AccountID, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}
	return ids, nil
}

// TrackAsset records tokenID on the account of id. Unregistered accounts are
// ignored so that listing never depends on registration.
func (e *Engine) TrackAsset(id types.AccountID, tokenID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	acc, ok, err := e.state.LedgerAccountGet(id)
	if err != nil || !ok {
		return err
	}
	if acc.HasAsset(tokenID) {
		return nil
	}
	acc.AssetIDs = append(acc.AssetIDs, tokenID)
	return e.state.LedgerAccountPut(acc)
}
