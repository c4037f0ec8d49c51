package runtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"assetescrow/core/types"
)

// PromiseKind distinguishes the asynchronous actions a call can schedule.
type PromiseKind string

const (
	// KindNativeTransfer moves native currency from the contract to an account.
	KindNativeTransfer PromiseKind = "native_transfer"
	// KindCrossCall invokes a method on another contract.
	KindCrossCall PromiseKind = "cross_call"
)

// RunFunc performs the asynchronous action of a promise.
type RunFunc func(ctx context.Context) error

// ThenFunc is the continuation attached to a promise. It receives the
// outcome of the action and reports whether the promise succeeded. It runs
// outside the atomic scope of the call that scheduled it.
type ThenFunc func(outcome error) bool

// Promise is an action scheduled by a call that executes after the call has
// committed.
type Promise struct {
	ID       uuid.UUID
	Kind     PromiseKind
	Receiver types.AccountID
	Method   string
	TokenID  string
	Amount   *uint256.Int
	Gas      uint64
	Run      RunFunc
	Then     ThenFunc
}

// CallSpec describes a cross-contract call.
type CallSpec struct {
	Receiver types.AccountID
	Method   string
	TokenID  string
	Gas      uint64
	Deposit  *uint256.Int
	Run      RunFunc
	Then     ThenFunc
}

// Call is the execution context of one contract invocation. Promises
// scheduled on it are only released to the executor when the call commits.
type Call struct {
	Caller    types.AccountID
	Contract  types.AccountID
	Deposit   *uint256.Int
	Timestamp uint64

	promises []*Promise
	onCommit []func()
}

// NewCall builds the context of a single invocation.
func NewCall(caller, contract types.AccountID, deposit *uint256.Int, timestamp uint64) *Call {
	return &Call{
		Caller:    caller,
		Contract:  contract,
		Deposit:   types.CloneAmount(deposit),
		Timestamp: timestamp,
	}
}

// AttachedDeposit returns a copy of the payment attached to the call.
func (c *Call) AttachedDeposit() *uint256.Int {
	if c == nil {
		return types.Zero()
	}
	return types.CloneAmount(c.Deposit)
}

// ScheduleTransfer schedules a fire-and-forget native transfer.
func (c *Call) ScheduleTransfer(to types.AccountID, amount *uint256.Int) *Promise {
	p := &Promise{
		ID:       uuid.New(),
		Kind:     KindNativeTransfer,
		Receiver: to,
		Amount:   types.CloneAmount(amount),
	}
	c.promises = append(c.promises, p)
	return p
}

// ScheduleCall schedules a cross-contract call with its continuation.
func (c *Call) ScheduleCall(spec CallSpec) *Promise {
	p := &Promise{
		ID:       uuid.New(),
		Kind:     KindCrossCall,
		Receiver: spec.Receiver,
		Method:   spec.Method,
		TokenID:  spec.TokenID,
		Amount:   types.CloneAmount(spec.Deposit),
		Gas:      spec.Gas,
		Run:      spec.Run,
		Then:     spec.Then,
	}
	c.promises = append(c.promises, p)
	return p
}

// Promises returns the promises scheduled so far, in order.
func (c *Call) Promises() []*Promise {
	if c == nil {
		return nil
	}
	return append([]*Promise(nil), c.promises...)
}

// OnCommit registers fn to run once the call's state is durably committed.
func (c *Call) OnCommit(fn func()) {
	if c == nil || fn == nil {
		return
	}
	c.onCommit = append(c.onCommit, fn)
}

// Committed runs the commit hooks in registration order and returns the
// promises to release.
func (c *Call) Committed() []*Promise {
	if c == nil {
		return nil
	}
	for _, fn := range c.onCommit {
		fn()
	}
	c.onCommit = nil
	return c.Promises()
}

// Discard drops every scheduled promise and commit hook. Used when the call
// reverts.
func (c *Call) Discard() {
	if c == nil {
		return
	}
	c.promises = nil
	c.onCommit = nil
}
