package event

type EventType uint8

const (
	// ViewChanged carries a view.State after every accepted view mutation
	ViewChanged EventType = iota
	// VoteRecorded carries the types.Log of a deduplicated ledger notification
	VoteRecorded
	// SessionReset carries the epoch that was torn down
	SessionReset
)

func (t EventType) String() string {
	switch t {
	case ViewChanged:
		return "ViewChanged"
	case VoteRecorded:
		return "VoteRecorded"
	case SessionReset:
		return "SessionReset"
	}
	return "Unknown"
}
