package nft

import (
	"context"
	"encoding/json"
	"net/http"

	"assetescrow/core/types"
	"assetescrow/native/transfer"
)

// Registry RPC method names.
const (
	MethodMint    = "nft_mint"
	MethodApprove = "nft_approve"
	MethodToken   = "nft_token"
)

const (
	codeInvalidParams = -32602
	codeMethodMissing = -32601
	codeRejected      = -32010
)

// TransferParams is the wire shape of an ownership transfer.
type TransferParams struct {
	Sender     string  `json:"sender"`
	ReceiverID string  `json:"receiver_id"`
	TokenID    string  `json:"token_id"`
	ApprovalID *uint64 `json:"approval_id,omitempty"`
	Memo       *string `json:"memo,omitempty"`
	Deposit    string  `json:"deposit,omitempty"`
}

type mintParams struct {
	TokenID string `json:"token_id"`
	OwnerID string `json:"owner_id"`
}

type approveParams struct {
	TokenID   string `json:"token_id"`
	OwnerID   string `json:"owner_id"`
	AccountID string `json:"account_id"`
}

// TokenView is the wire shape of a token record.
type TokenView struct {
	TokenID string `json:"token_id"`
	OwnerID string `json:"owner_id"`
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// Handler serves reg over JSON-RPC.
func Handler(reg *MemRegistry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeRPC(w, http.StatusBadRequest, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidParams, Message: "invalid request"}})
			return
		}
		result, rpcErr := dispatch(r.Context(), reg, req)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
		status := http.StatusOK
		if rpcErr != nil && rpcErr.Code != codeRejected {
			status = http.StatusBadRequest
		}
		writeRPC(w, status, resp)
	})
}

func dispatch(ctx context.Context, reg *MemRegistry, req rpcRequest) (interface{}, *rpcError) {
	if len(req.Params) != 1 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	switch req.Method {
	case transfer.MethodTransfer:
		var p TransferParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		deposit, err := types.ParseAmount(p.Deposit)
		if err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		err = reg.Transfer(ctx, types.AccountID(p.Sender), transfer.Request{
			ReceiverID: types.AccountID(p.ReceiverID),
			TokenID:    p.TokenID,
			ApprovalID: p.ApprovalID,
			Memo:       p.Memo,
			Deposit:    deposit,
		})
		if err != nil {
			return nil, &rpcError{Code: codeRejected, Message: err.Error()}
		}
		return true, nil
	case MethodMint:
		var p mintParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		if err := reg.Mint(p.TokenID, types.AccountID(p.OwnerID)); err != nil {
			return nil, &rpcError{Code: codeRejected, Message: err.Error()}
		}
		return TokenView{TokenID: p.TokenID, OwnerID: p.OwnerID}, nil
	case MethodApprove:
		var p approveParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		id, err := reg.Approve(p.TokenID, types.AccountID(p.OwnerID), types.AccountID(p.AccountID))
		if err != nil {
			return nil, &rpcError{Code: codeRejected, Message: err.Error()}
		}
		return map[string]uint64{"approval_id": id}, nil
	case MethodToken:
		var p struct {
			TokenID string `json:"token_id"`
		}
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		owner, ok := reg.OwnerOf(p.TokenID)
		if !ok {
			return nil, &rpcError{Code: codeRejected, Message: ErrTokenNotFound.Error()}
		}
		return TokenView{TokenID: p.TokenID, OwnerID: owner.String()}, nil
	default:
		return nil, &rpcError{Code: codeMethodMissing, Message: "method not found"}
	}
}

func writeRPC(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
