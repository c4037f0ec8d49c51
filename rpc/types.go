package rpc

import (
	"encoding/json"

	"assetescrow/core/types"
	"assetescrow/native/escrow"
	"assetescrow/native/ledger"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	status  int
}

// callParams carries the host-authenticated caller and the payment attached
// to the call.
type callParams struct {
	Caller  string `json:"caller"`
	Deposit string `json:"deposit,omitempty"`
}

type accountParams struct {
	Account string `json:"account"`
}

type placeAssetParams struct {
	callParams
	TokenID    string  `json:"tokenId"`
	Price      string  `json:"price"`
	ApprovalID *uint64 `json:"approvalId,omitempty"`
	Memo       *string `json:"memo,omitempty"`
}

type buyAssetParams struct {
	callParams
	TokenID string `json:"tokenId"`
}

type tokenParams struct {
	TokenID string `json:"tokenId"`
}

type AccountResult struct {
	ID       string   `json:"id"`
	Balance  string   `json:"balance"`
	AssetIDs []string `json:"assetIds"`
}

type BalanceResult struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type WithdrawResult struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type AssetResult struct {
	TokenID   string `json:"tokenId"`
	Price     string `json:"price"`
	InitTime  uint64 `json:"initTime"`
	LastTime  uint64 `json:"lastTime"`
	LastOwner string `json:"lastOwner"`
	LastUser  string `json:"lastUser"`
	Active    bool   `json:"active"`
}

func accountResult(acc *ledger.Account) AccountResult {
	ids := append([]string{}, acc.AssetIDs...)
	return AccountResult{ID: acc.ID.String(), Balance: types.FormatAmount(acc.Balance), AssetIDs: ids}
}

func assetResult(a *escrow.Asset) AssetResult {
	return AssetResult{
		TokenID:   a.TokenID,
		Price:     types.FormatAmount(a.Price),
		InitTime:  a.InitTime,
		LastTime:  a.LastTime,
		LastOwner: a.LastOwner.String(),
		LastUser:  a.LastUser.String(),
		Active:    a.Active,
	}
}
