package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"assetescrow/core"
	"assetescrow/core/types"
	"assetescrow/gateway/middleware"
	"assetescrow/native/escrow"
	"assetescrow/native/ledger"
)

const (
	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowInternal      = -32025
)

func invalidParams(err error) *RPCError {
	return newError(http.StatusBadRequest, codeEscrowInvalidParams, "invalid_params", err.Error())
}

// parseCall validates the caller identity and attached deposit.
func parseCall(p callParams) (types.AccountID, *uint256.Int, *RPCError) {
	caller, err := types.ParseAccountID(p.Caller)
	if err != nil {
		return "", nil, invalidParams(fmt.Errorf("caller: %w", err))
	}
	deposit, err := types.ParseAmount(p.Deposit)
	if err != nil {
		return "", nil, invalidParams(fmt.Errorf("deposit: %w", err))
	}
	return caller, deposit, nil
}

func parseTokenID(raw string) (string, *RPCError) {
	tokenID := strings.TrimSpace(raw)
	if tokenID == "" {
		return "", invalidParams(errors.New("tokenId required"))
	}
	return tokenID, nil
}

func (s *Server) handleRegister(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params callParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, deposit, rpcErr := parseCall(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acc, err := s.node.Register(caller, deposit)
	if err != nil {
		return nil, escrowError(err)
	}
	return accountResult(acc), nil
}

func (s *Server) handleDeposit(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params callParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, deposit, rpcErr := parseCall(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Deposit(caller, deposit)
	if err != nil {
		return nil, escrowError(err)
	}
	return BalanceResult{Account: caller.String(), Balance: types.FormatAmount(balance)}, nil
}

func (s *Server) handleWithdrawAll(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params callParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, _, rpcErr := parseCall(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.WithdrawAll(caller)
	if err != nil {
		return nil, escrowError(err)
	}
	return WithdrawResult{Account: caller.String(), Amount: types.FormatAmount(amount)}, nil
}

func (s *Server) handleGetBalance(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params accountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseAccountID(params.Account)
	if err != nil {
		return nil, invalidParams(err)
	}
	balance, err := s.node.BalanceOf(id)
	if err != nil {
		return nil, escrowError(err)
	}
	return BalanceResult{Account: id.String(), Balance: types.FormatAmount(balance)}, nil
}

func (s *Server) handleListUsers(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	users, err := s.node.Users()
	if err != nil {
		return nil, escrowError(err)
	}
	out := make([]string, 0, len(users))
	for _, id := range users {
		out = append(out, id.String())
	}
	return out, nil
}

func (s *Server) handleListAccounts(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	accounts, err := s.node.Accounts()
	if err != nil {
		return nil, escrowError(err)
	}
	out := make([]AccountResult, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, accountResult(acc))
	}
	return out, nil
}

func (s *Server) handleGetUser(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params accountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseAccountID(params.Account)
	if err != nil {
		return nil, invalidParams(err)
	}
	acc, err := s.node.Account(id)
	if err != nil {
		return nil, escrowError(err)
	}
	return accountResult(acc), nil
}

func (s *Server) handlePlaceAsset(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params placeAssetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, deposit, rpcErr := parseCall(params.callParams)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tokenID, rpcErr := parseTokenID(params.TokenID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(params.Price) == "" {
		return nil, invalidParams(errors.New("price required"))
	}
	price, err := types.ParseAmount(params.Price)
	if err != nil {
		return nil, invalidParams(fmt.Errorf("price: %w", err))
	}
	asset, err := s.node.ListAsset(caller, deposit, tokenID, price, escrow.ListParams{ApprovalID: params.ApprovalID, Memo: params.Memo})
	if err != nil {
		return nil, escrowError(err)
	}
	return assetResult(asset), nil
}

func (s *Server) handleBuyAsset(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params buyAssetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, deposit, rpcErr := parseCall(params.callParams)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tokenID, rpcErr := parseTokenID(params.TokenID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, err := s.node.BuyAsset(caller, deposit, tokenID)
	if err != nil {
		return nil, escrowError(err)
	}
	return assetResult(asset), nil
}

func (s *Server) handleGetAsset(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	tokenID, rpcErr := parseTokenID(params.TokenID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, err := s.node.Asset(tokenID)
	if err != nil {
		return nil, escrowError(err)
	}
	return assetResult(asset), nil
}

func (s *Server) handleListAssets(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	assets, err := s.node.Assets()
	if err != nil {
		return nil, escrowError(err)
	}
	out := make([]AssetResult, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetResult(a))
	}
	return out, nil
}

// handleReset requires a bearer token with the admin scope. When the token
// names a subject it must be the caller.
func (s *Server) handleReset(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	if s.cfg.Auth == nil || !s.cfg.Auth.Enabled() {
		return nil, newError(http.StatusForbidden, codeEscrowForbidden, "forbidden", "administrative methods disabled")
	}
	if !middleware.HasScopes(middleware.ScopesFromContext(ctx), s.cfg.AdminScope) {
		return nil, newError(http.StatusForbidden, codeEscrowForbidden, "forbidden", "missing scope "+s.cfg.AdminScope)
	}
	var params callParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, _, rpcErr := parseCall(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if sub := middleware.SubjectFromContext(ctx); sub != "" && sub != caller.String() {
		return nil, newError(http.StatusForbidden, codeEscrowForbidden, "forbidden", "token subject does not match caller")
	}
	if _, err := s.node.Reset(caller); err != nil {
		return nil, escrowError(err)
	}
	result, modErr := s.escrow.Version()
	if modErr != nil {
		return nil, moduleError(modErr)
	}
	return result, nil
}

func (s *Server) handleVersion(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	result, modErr := s.escrow.Version()
	if modErr != nil {
		return nil, moduleError(modErr)
	}
	return result, nil
}

func (s *Server) handleTransferPhase(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) != 1 {
		return nil, invalidParams(errors.New("exactly one parameter object expected"))
	}
	result, modErr := s.escrow.TransferPhase(req.Params[0])
	if modErr != nil {
		return nil, moduleError(modErr)
	}
	return result, nil
}

func (s *Server) handleListReceipts(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	result, modErr := s.escrow.ListReceipts(optionalParam(req))
	if modErr != nil {
		return nil, moduleError(modErr)
	}
	return result, nil
}

func (s *Server) handleListEvents(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	result, modErr := s.escrow.ListEvents(optionalParam(req))
	if modErr != nil {
		return nil, moduleError(modErr)
	}
	return result, nil
}

// escrowError maps contract errors onto JSON-RPC error codes.
func escrowError(err error) *RPCError {
	data := err.Error()
	switch {
	case errors.Is(err, ledger.ErrNotRegistered),
		errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, escrow.ErrNotListed):
		return newError(http.StatusNotFound, codeEscrowNotFound, "not_found", data)
	case errors.Is(err, core.ErrUnauthorized):
		return newError(http.StatusForbidden, codeEscrowForbidden, "forbidden", data)
	case errors.Is(err, ledger.ErrAlreadyExists),
		errors.Is(err, escrow.ErrAlreadyListed),
		errors.Is(err, escrow.ErrNotActive),
		errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrCustodyUnsettled),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, types.ErrAmountOverflow):
		return newError(http.StatusConflict, codeEscrowConflict, "conflict", data)
	case errors.Is(err, escrow.ErrInvalidPrice),
		errors.Is(err, escrow.ErrInvalidTokenID):
		return newError(http.StatusBadRequest, codeEscrowInvalidParams, "invalid_params", data)
	default:
		return newError(http.StatusInternalServerError, codeEscrowInternal, "internal_error", data)
	}
}
