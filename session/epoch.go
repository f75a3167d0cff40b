package session

import "sync/atomic"

// Epochs numbers successive wallet identities. Results carry the epoch they
// were issued under and are dropped once it is no longer current.
type Epochs struct {
	current uint64
}

func (e *Epochs) Current() uint64 {
	return atomic.LoadUint64(&e.current)
}

func (e *Epochs) Advance() uint64 {
	return atomic.AddUint64(&e.current, 1)
}
