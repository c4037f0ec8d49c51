package types

import (
	"fmt"
	"strings"
)

// AccountID is the opaque identity of a host account. The host has already
// authenticated whoever presents it; the contract only compares identities.
type AccountID string

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// String implements fmt.Stringer.
func (id AccountID) String() string { return string(id) }

// Empty reports whether the identifier is blank.
func (id AccountID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// Validate checks the host naming rules: lowercase letters, digits and the
// separators '-', '_' and '.', where a separator may not start or end the id
// or follow another separator.
func (id AccountID) Validate() error {
	s := string(id)
	if len(s) < minAccountIDLen || len(s) > maxAccountIDLen {
		return fmt.Errorf("account id %q: length must be between %d and %d", s, minAccountIDLen, maxAccountIDLen)
	}
	prevSeparator := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSeparator = false
		case c == '-' || c == '_' || c == '.':
			if prevSeparator {
				return fmt.Errorf("account id %q: unexpected separator at %d", s, i)
			}
			prevSeparator = true
		default:
			return fmt.Errorf("account id %q: invalid character %q", s, c)
		}
	}
	if prevSeparator {
		return fmt.Errorf("account id %q: must not end with a separator", s)
	}
	return nil
}

// ParseAccountID trims and validates a raw identifier.
func ParseAccountID(raw string) (AccountID, error) {
	id := AccountID(strings.TrimSpace(raw))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}
