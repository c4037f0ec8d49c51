package escrow

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"assetescrow/core/events"
	"assetescrow/core/runtime"
	"assetescrow/core/types"
	"assetescrow/native/transfer"
)

var (
	ErrAlreadyListed     = errors.New("escrow: asset already listed")
	ErrNotListed         = errors.New("escrow: asset not listed")
	ErrNotActive         = errors.New("escrow: asset not active")
	ErrInsufficientFunds = errors.New("escrow: attached payment below price")
	ErrNotFound          = errors.New("escrow: asset not found")
	ErrInvalidPrice      = errors.New("escrow: invalid price")
	ErrInvalidTokenID    = errors.New("escrow: invalid token id")
	// ErrCustodyUnsettled is returned when a phase gate rejects a purchase.
	ErrCustodyUnsettled = errors.New("escrow: custody transfer not confirmed")

	errNilState     = errors.New("escrow engine: state not configured")
	errNilTransfers = errors.New("escrow engine: transfer coordinator not configured")
)

type engineState interface {
	AssetGet(tokenID string) (*Asset, bool, error)
	AssetInsert(asset *Asset) error
	AssetPut(asset *Asset) error
	Assets() ([]*Asset, error)
}

// Transferer issues custody transfers on behalf of the contract.
type Transferer interface {
	Transfer(call *runtime.Call, req transfer.Request) (*runtime.Promise, error)
}

// AssetTracker records listed token ids against the lister's account.
type AssetTracker interface {
	TrackAsset(id types.AccountID, tokenID string) error
}

// PhaseGate can veto a purchase based on the state of the latest custody
// transfer of the token.
type PhaseGate interface {
	CheckPurchasable(tokenID string) error
}

// ListParams carries the optional registry arguments of a listing.
type ListParams struct {
	ApprovalID *uint64
	Memo       *string
}

// Engine implements the asset registry. Local state is committed
// optimistically: listing and purchase records are written in the same call
// that issues the custody transfer, before its outcome is known.
type Engine struct {
	state     engineState
	transfers Transferer
	tracker   AssetTracker
	gate      PhaseGate
	emitter   events.Emitter
}

// NewEngine creates an asset registry engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the custody transfer coordinator.
func (e *Engine) SetTransferer(t Transferer) { e.transfers = t }

// SetTracker configures where listed token ids are recorded. Nil disables
// tracking.
func (e *Engine) SetTracker(t AssetTracker) { e.tracker = t }

// SetPhaseGate installs a purchase gate. Nil, the default, keeps purchases
// optimistic.
func (e *Engine) SetPhaseGate(g PhaseGate) { e.gate = g }

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

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.transfers == nil {
		return errNilTransfers
	}
	return nil
}

// ListAsset moves custody of tokenID from the caller to the contract,
// forwarding the attached deposit, and immediately records an active listing
// at price.
func (e *Engine) ListAsset(call *runtime.Call, tokenID string, price *uint256.Int, params ListParams) (*Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if call == nil || call.Caller.Empty() {
		return nil, fmt.Errorf("escrow: caller required")
	}
	normalized, err := NormalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if err := types.CheckAmount(price); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if _, exists, err := e.state.AssetGet(normalized); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyListed, normalized)
	}
	if _, err := e.transfers.Transfer(call, transfer.Request{
		ReceiverID: call.Contract,
		TokenID:    normalized,
		ApprovalID: params.ApprovalID,
		Memo:       params.Memo,
		Deposit:    call.AttachedDeposit(),
	}); err != nil {
		return nil, err
	}
	asset := &Asset{
		TokenID:   normalized,
		Price:     types.CloneAmount(price),
		InitTime:  call.Timestamp,
		LastTime:  call.Timestamp,
		LastOwner: call.Caller,
		LastUser:  call.Caller,
		Active:    true,
	}
	if err := e.state.AssetInsert(asset); err != nil {
		return nil, err
	}
	if e.tracker != nil {
		if err := e.tracker.TrackAsset(call.Caller, normalized); err != nil {
			return nil, err
		}
	}
	e.emit(NewListedEvent(asset))
	return asset.Clone(), nil
}

// BuyAsset moves custody of an active listing to the caller, pays the
// listing price to the last owner and closes the listing, all in the current
// call. The whole attached payment is forwarded with the transfer call; the
// seller receives exactly the price.
func (e *Engine) BuyAsset(call *runtime.Call, tokenID string) (*Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if call == nil || call.Caller.Empty() {
		return nil, fmt.Errorf("escrow: caller required")
	}
	normalized, err := NormalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	asset, ok, err := e.state.AssetGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, normalized)
	}
	if !asset.Active {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, normalized)
	}
	paid := call.AttachedDeposit()
	price := types.CloneAmount(asset.Price)
	if paid.Lt(price) {
		return nil, fmt.Errorf("%w: paid %s, price %s", ErrInsufficientFunds, paid.Dec(), price.Dec())
	}
	if e.gate != nil {
		if err := e.gate.CheckPurchasable(normalized); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCustodyUnsettled, err)
		}
	}
	if _, err := e.transfers.Transfer(call, transfer.Request{
		ReceiverID: call.Caller,
		TokenID:    normalized,
		Deposit:    paid,
	}); err != nil {
		return nil, err
	}
	seller := asset.LastOwner
	call.ScheduleTransfer(seller, price)

	asset.LastUser = call.Caller
	asset.LastTime = call.Timestamp
	asset.Active = false
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	e.emit(NewSoldEvent(asset, paid))
	return asset.Clone(), nil
}

// Asset returns the record of tokenID.
func (e *Engine) Asset(tokenID string) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	asset, ok, err := e.state.AssetGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, normalized)
	}
	return asset, nil
}

// Assets returns every asset ordered by token id.
func (e *Engine) Assets() ([]*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.Assets()
}
