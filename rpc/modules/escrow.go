package modules

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"assetescrow/core/state"
	"assetescrow/core/types"
	"assetescrow/native/transfer"
)

// Backend is the read surface of the escrow node the module queries.
type Backend interface {
	Events(prefix string, limit int) []types.Event
	Receipts(limit int) []types.Receipt
	TransferPhase(tokenID string) (transfer.Record, bool)
	CurrentVersion() (state.Version, error)
}

// EscrowModule exposes read helpers for contract telemetry: event history,
// promise receipts, custody transfer phases and the schema version.
type EscrowModule struct {
	node Backend
}

// NewEscrowModule constructs an escrow RPC helper module.
func NewEscrowModule(node Backend) *EscrowModule {
	return &EscrowModule{node: node}
}

type listParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

type tokenParams struct {
	TokenID string `json:"tokenId"`
}

// EventResult is one committed event.
type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Timestamp  uint64            `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// ReceiptResult is the recorded outcome of one promise.
type ReceiptResult struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Receiver   string `json:"receiver"`
	Method     string `json:"method,omitempty"`
	TokenID    string `json:"tokenId,omitempty"`
	Amount     string `json:"amount"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ResolvedAt string `json:"resolvedAt"`
}

// PhaseResult describes the latest custody transfer of a token.
type PhaseResult struct {
	TokenID   string `json:"tokenId"`
	Phase     string `json:"phase"`
	PromiseID string `json:"promiseId,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// VersionResult is the schema version triple.
type VersionResult struct {
	Version string `json:"version"`
	Major   uint8  `json:"major"`
	Minor   uint8  `json:"minor"`
	Patch   uint8  `json:"patch"`
}

func decodeList(raw json.RawMessage) (listParams, *ModuleError) {
	var params listParams
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &params); err != nil {
			return params, invalidParams(err)
		}
	}
	if params.Limit != nil && *params.Limit < 0 {
		return params, invalidParams(errors.New("limit must not be negative"))
	}
	return params, nil
}

func (p listParams) limit() int {
	if p.Limit == nil {
		return 0
	}
	return *p.Limit
}

// ListEvents returns recent events, oldest first, filtered by type prefix.
func (m *EscrowModule) ListEvents(raw json.RawMessage) ([]EventResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	params, modErr := decodeList(raw)
	if modErr != nil {
		return nil, modErr
	}
	events := m.node.Events(strings.TrimSpace(params.Prefix), params.limit())
	results := make([]EventResult, 0, len(events))
	for _, evt := range events {
		attrs := make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			attrs[k] = v
		}
		results = append(results, EventResult{Sequence: evt.Sequence, Type: evt.Type, Timestamp: evt.Timestamp, Attributes: attrs})
	}
	return results, nil
}

// ListReceipts returns recent promise receipts, oldest first.
func (m *EscrowModule) ListReceipts(raw json.RawMessage) ([]ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	params, modErr := decodeList(raw)
	if modErr != nil {
		return nil, modErr
	}
	receipts := m.node.Receipts(params.limit())
	results := make([]ReceiptResult, 0, len(receipts))
	for _, r := range receipts {
		results = append(results, ReceiptResult{
			ID:         r.ID,
			Kind:       r.Kind,
			Receiver:   r.Receiver.String(),
			Method:     r.Method,
			TokenID:    r.TokenID,
			Amount:     types.FormatAmount(r.Amount),
			Success:    r.Success,
			Error:      r.Error,
			ResolvedAt: r.ResolvedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return results, nil
}

// TransferPhase returns the phase of the latest custody transfer of a token.
func (m *EscrowModule) TransferPhase(raw json.RawMessage) (*PhaseResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params tokenParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams(err)
	}
	tokenID := strings.TrimSpace(params.TokenID)
	if tokenID == "" {
		return nil, invalidParams(errors.New("tokenId required"))
	}
	rec, ok := m.node.TransferPhase(tokenID)
	if !ok {
		return nil, &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeNotFound, Message: "not_found", Data: "no transfer recorded for token"}
	}
	result := &PhaseResult{
		TokenID:   rec.TokenID,
		Phase:     string(rec.Phase),
		PromiseID: rec.PromiseID.String(),
		Receiver:  rec.Receiver.String(),
		Error:     rec.Error,
	}
	if !rec.UpdatedAt.IsZero() {
		result.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return result, nil
}

// Version returns the schema version of the contract state.
func (m *EscrowModule) Version() (*VersionResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	v, err := m.node.CurrentVersion()
	if err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "internal_error", Data: "version unavailable: " + err.Error()}
	}
	major, minor, patch := v.Triple()
	return &VersionResult{Version: v.String(), Major: major, Minor: minor, Patch: patch}, nil
}
