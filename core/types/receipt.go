package types

import (
	"time"

	"github.com/holiman/uint256"
)

// Receipt records how one asynchronous promise resolved. Success is the value
// returned by the promise's continuation, or whether the action itself
// succeeded when no continuation was attached.
type Receipt struct {
	ID         string
	Kind       string
	Receiver   AccountID
	Method     string
	TokenID    string
	Amount     *uint256.Int
	Success    bool
	Error      string
	ResolvedAt time.Time
}
