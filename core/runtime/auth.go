package runtime

import (
	"strings"

	"assetescrow/core/types"
)

// Authorizer decides whether a caller may run privileged operations.
type Authorizer interface {
	Authorized(caller types.AccountID) bool
}

// AllowList authorizes a fixed set of accounts.
type AllowList map[types.AccountID]struct{}

// NewAllowList builds an allow list, ignoring blank entries.
func NewAllowList(ids ...string) AllowList {
	list := make(AllowList, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		list[types.AccountID(trimmed)] = struct{}{}
	}
	return list
}

// Authorized implements Authorizer.
func (a AllowList) Authorized(caller types.AccountID) bool {
	if caller.Empty() {
		return false
	}
	_, ok := a[caller]
	return ok
}

// DenyAll rejects every caller.
type DenyAll struct{}

// Authorized implements Authorizer.
func (DenyAll) Authorized(types.AccountID) bool { return false }
