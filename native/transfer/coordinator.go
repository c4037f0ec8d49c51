package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"assetescrow/core/runtime"
	"assetescrow/core/types"
)

const (
	// MethodTransfer is the ownership-transfer method of the asset registry.
	MethodTransfer = "nft_transfer"
	// TeraGas is one trillion gas units.
	TeraGas uint64 = 1_000_000_000_000
	// DefaultGas is the execution budget attached to every transfer call.
	DefaultGas = 5 * TeraGas
)

var (
	// ErrExternalCallFailed classifies a transfer the registry did not apply.
	// It is only observed by the continuation.
	ErrExternalCallFailed = errors.New("transfer: external call failed")

	errNoRegistry = errors.New("transfer: registry not configured")
)

// Request is one ownership-transfer instruction sent to the registry.
// Deposit is forwarded with the call.
type Request struct {
	ReceiverID types.AccountID
	TokenID    string
	ApprovalID *uint64
	Memo       *string
	Deposit    *uint256.Int
}

// Registry applies ownership transfers on behalf of a sender.
type Registry interface {
	Transfer(ctx context.Context, sender types.AccountID, req Request) error
}

// Coordinator issues one asynchronous transfer call per request and
// classifies its outcome. It holds no persisted state and never touches
// ledger or registry records.
type Coordinator struct {
	registryID types.AccountID
	registry   Registry
	gas        uint64
	logger     *slog.Logger
	observer   Observer
}

// NewCoordinator binds the coordinator to the registry reachable under
// registryID.
func NewCoordinator(registryID types.AccountID, registry Registry) *Coordinator {
	return &Coordinator{
		registryID: registryID,
		registry:   registry,
		gas:        DefaultGas,
		logger:     slog.Default(),
		observer:   NoopObserver{},
	}
}

// RegistryID returns the account of the external registry.
func (c *Coordinator) RegistryID() types.AccountID { return c.registryID }

// SetGas overrides the execution budget. Zero restores DefaultGas.
func (c *Coordinator) SetGas(gas uint64) {
	if gas == 0 {
		gas = DefaultGas
	}
	c.gas = gas
}

// Gas returns the execution budget attached to transfer calls.
func (c *Coordinator) Gas() uint64 { return c.gas }

// SetLogger configures the logger used by continuations.
func (c *Coordinator) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// SetObserver configures the phase observer. Nil disables observation.
func (c *Coordinator) SetObserver(observer Observer) {
	if observer == nil {
		observer = NoopObserver{}
	}
	c.observer = observer
}

// Transfer schedules the ownership transfer on call. The transfer is sent by
// the contract itself once the call commits; its outcome is only seen by the
// attached continuation.
func (c *Coordinator) Transfer(call *runtime.Call, req Request) (*runtime.Promise, error) {
	if c == nil || c.registry == nil {
		return nil, errNoRegistry
	}
	if call == nil {
		return nil, fmt.Errorf("transfer: call context required")
	}
	if req.ReceiverID.Empty() {
		return nil, fmt.Errorf("transfer: receiver required")
	}
	if req.TokenID == "" {
		return nil, fmt.Errorf("transfer: token id required")
	}
	req = cloneRequest(req)
	sender := call.Contract

	var id uuid.UUID
	promise := call.ScheduleCall(runtime.CallSpec{
		Receiver: c.registryID,
		Method:   MethodTransfer,
		TokenID:  req.TokenID,
		Gas:      c.gas,
		Deposit:  req.Deposit,
		Run: func(ctx context.Context) error {
			return c.registry.Transfer(ctx, sender, req)
		},
		Then: func(outcome error) bool {
			return c.Resolve(id, req, outcome)
		},
	})
	id = promise.ID
	call.OnCommit(func() {
		c.observer.Issued(id, req.TokenID, req.ReceiverID)
	})
	return promise, nil
}

// Resolve is the continuation of a transfer call. It reports whether the
// transfer was applied and logs the failure detail otherwise. The result is
// never fed back into ledger or registry state.
func (c *Coordinator) Resolve(id uuid.UUID, req Request, outcome error) bool {
	if outcome == nil {
		c.observer.Resolved(id, req.TokenID, nil)
		return true
	}
	err := fmt.Errorf("%w: %v", ErrExternalCallFailed, outcome)
	c.logger.Error("ownership transfer failed",
		slog.String("promise", id.String()),
		slog.String("token_id", req.TokenID),
		slog.String("receiver", req.ReceiverID.String()),
		slog.String("registry", c.registryID.String()),
		slog.Any("error", err))
	c.observer.Resolved(id, req.TokenID, err)
	return false
}

func cloneRequest(req Request) Request {
	out := req
	out.Deposit = types.CloneAmount(req.Deposit)
	if req.ApprovalID != nil {
		v := *req.ApprovalID
		out.ApprovalID = &v
	}
	if req.Memo != nil {
		v := *req.Memo
		out.Memo = &v
	}
	return out
}
