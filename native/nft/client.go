package nft

import (
	"context"

	"assetescrow/core/types"
	"assetescrow/native/transfer"
	"assetescrow/rpc/client"
)

// RPCClient reaches a remote ownership registry over JSON-RPC.
type RPCClient struct {
	rpc *client.Client
}

// NewRPCClient creates a client for the registry at baseURL.
func NewRPCClient(baseURL, authToken string) *RPCClient {
	return &RPCClient{rpc: client.New(baseURL, authToken)}
}

// Transfer implements transfer.Registry.
func (c *RPCClient) Transfer(ctx context.Context, sender types.AccountID, req transfer.Request) error {
	params := TransferParams{
		Sender:     sender.String(),
		ReceiverID: req.ReceiverID.String(),
		TokenID:    req.TokenID,
		ApprovalID: req.ApprovalID,
		Memo:       req.Memo,
	}
	if req.Deposit != nil && !req.Deposit.IsZero() {
		params.Deposit = types.FormatAmount(req.Deposit)
	}
	return c.rpc.Call(ctx, transfer.MethodTransfer, params, nil)
}

// Mint creates a token on the remote registry.
func (c *RPCClient) Mint(ctx context.Context, tokenID string, owner types.AccountID) error {
	return c.rpc.Call(ctx, MethodMint, mintParams{TokenID: tokenID, OwnerID: owner.String()}, nil)
}

// Approve grants spender an approval and returns its id.
func (c *RPCClient) Approve(ctx context.Context, tokenID string, owner, spender types.AccountID) (uint64, error) {
	var out struct {
		ApprovalID uint64 `json:"approval_id"`
	}
	err := c.rpc.Call(ctx, MethodApprove, approveParams{TokenID: tokenID, OwnerID: owner.String(), AccountID: spender.String()}, &out)
	return out.ApprovalID, err
}

// OwnerOf returns the owner of tokenID.
func (c *RPCClient) OwnerOf(ctx context.Context, tokenID string) (types.AccountID, error) {
	var view TokenView
	if err := c.rpc.Call(ctx, MethodToken, map[string]string{"token_id": tokenID}, &view); err != nil {
		return "", err
	}
	return types.AccountID(view.OwnerID), nil
}
