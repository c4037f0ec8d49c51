package types

// Event is a typed record of a committed state change. Sequence and Timestamp
// are stamped by the node when the emitting call commits.
type Event struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Timestamp  uint64            `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute or "".
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
