// Package nft provides the asset-ownership registry the escrow contract moves
// custody through: an in-memory registry for development and tests, its
// JSON-RPC handler, and a client for a remote registry.
package nft

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"assetescrow/core/types"
	"assetescrow/native/transfer"
)

var (
	ErrTokenExists   = errors.New("nft: token already minted")
	ErrTokenNotFound = errors.New("nft: token not found")
	ErrNotOwner      = errors.New("nft: sender is neither owner nor approved")
	ErrBadApproval   = errors.New("nft: approval id mismatch")
	ErrSelfTransfer  = errors.New("nft: receiver already owns token")
)

// Token is the ownership record of one asset.
type Token struct {
	TokenID   string
	OwnerID   types.AccountID
	Approvals map[types.AccountID]uint64
}

func (t *Token) clone() *Token {
	out := &Token{TokenID: t.TokenID, OwnerID: t.OwnerID, Approvals: make(map[types.AccountID]uint64, len(t.Approvals))}
	for k, v := range t.Approvals {
		out.Approvals[k] = v
	}
	return out
}

// MemRegistry is an in-memory ownership registry.
type MemRegistry struct {
	mu           sync.RWMutex
	tokens       map[string]*Token
	nextApproval uint64
	hook         func(sender types.AccountID, req transfer.Request) error
}

// NewMemRegistry returns an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{tokens: make(map[string]*Token)}
}

// SetTransferHook installs fn to run before every transfer. A non-nil error
// from fn rejects the transfer.
func (r *MemRegistry) SetTransferHook(fn func(sender types.AccountID, req transfer.Request) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

// Mint creates tokenID owned by owner.
func (r *MemRegistry) Mint(tokenID string, owner types.AccountID) error {
	if tokenID == "" || owner.Empty() {
		return fmt.Errorf("nft: token id and owner required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[tokenID]; ok {
		return ErrTokenExists
	}
	r.tokens[tokenID] = &Token{TokenID: tokenID, OwnerID: owner, Approvals: map[types.AccountID]uint64{}}
	return nil
}

// Approve lets spender transfer tokenID on behalf of owner and returns the
// approval id to present with the transfer.
func (r *MemRegistry) Approve(tokenID string, owner, spender types.AccountID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[tokenID]
	if !ok {
		return 0, ErrTokenNotFound
	}
	if tok.OwnerID != owner {
		return 0, ErrNotOwner
	}
	r.nextApproval++
	tok.Approvals[spender] = r.nextApproval
	return r.nextApproval, nil
}

// Token returns a copy of the ownership record of tokenID.
func (r *MemRegistry) Token(tokenID string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[tokenID]
	if !ok {
		return nil, false
	}
	return tok.clone(), true
}

// OwnerOf returns the current owner of tokenID.
func (r *MemRegistry) OwnerOf(tokenID string) (types.AccountID, bool) {
	tok, ok := r.Token(tokenID)
	if !ok {
		return "", false
	}
	return tok.OwnerID, true
}

// Tokens lists minted token ids in lexical order.
func (r *MemRegistry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Transfer implements transfer.Registry. The sender must own the token or hold
// an approval; when req.ApprovalID is set it must match. Approvals are cleared
// on transfer.
func (r *MemRegistry) Transfer(ctx context.Context, sender types.AccountID, req transfer.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hook != nil {
		if err := r.hook(sender, req); err != nil {
			return err
		}
	}
	tok, ok := r.tokens[req.TokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if tok.OwnerID == req.ReceiverID {
		return ErrSelfTransfer
	}
	if sender != tok.OwnerID {
		approval, approved := tok.Approvals[sender]
		if !approved {
			return ErrNotOwner
		}
		if req.ApprovalID != nil && *req.ApprovalID != approval {
			return ErrBadApproval
		}
	}
	tok.OwnerID = req.ReceiverID
	tok.Approvals = map[types.AccountID]uint64{}
	return nil
}
