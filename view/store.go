package view

import (
	"sync"

	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/tally"
	"github.com/remotechain/votesync/util/log"
)

const idlePhase = "idle"

// Store holds the reconciled State. Every mutator is stamped with the epoch
// it was issued under and is dropped, returning false, when that epoch is
// not the store's.
//
// Accepted mutations are published as event.ViewChanged in the order they
// were applied. Subscribers must not mutate the store.
type Store struct {
	publishLock sync.Mutex
	sync.RWMutex
	state State
	queue *event.EventQueue

	// tally reads are numbered when issued; a snapshot older than the last
	// applied one is dropped even within an epoch
	refreshSeq uint64
	appliedSeq uint64
}

func NewStore(queue *event.EventQueue) *Store {
	return &Store{
		state: fresh(0, Disconnected),
		queue: queue,
	}
}

func fresh(epoch uint64, status ConnStatus) State {
	return State{
		Epoch:       epoch,
		Status:      status,
		Candidates:  []Candidate{},
		Transaction: Tx{Phase: idlePhase},
	}
}

func (s *Store) Snapshot() State {
	s.RLock()
	defer s.RUnlock()
	return s.state.copy()
}

func (s *Store) Epoch() uint64 {
	s.RLock()
	defer s.RUnlock()
	return s.state.Epoch
}

func (s *Store) HasVoted() bool {
	s.RLock()
	defer s.RUnlock()
	return s.state.HasVoted
}

func (s *Store) mutate(epoch uint64, apply func(state *State)) bool {
	return s.mutateIf(epoch, func(state *State) bool {
		apply(state)
		return true
	})
}

// mutateIf is mutate for updates that may decline after seeing the state.
// apply runs with the write lock held.
func (s *Store) mutateIf(epoch uint64, apply func(state *State) bool) bool {
	s.publishLock.Lock()
	defer s.publishLock.Unlock()

	s.Lock()
	if epoch != s.state.Epoch {
		current := s.state.Epoch
		s.Unlock()
		log.Debugf("Drop view update of epoch %d, current epoch %d", epoch, current)
		return false
	}
	if !apply(&s.state) {
		s.Unlock()
		return false
	}
	published := s.state.copy()
	s.Unlock()

	if s.queue != nil {
		s.queue.Notify(event.ViewChanged, published)
	}
	return true
}

// Reset replaces the whole state with a fresh one for epoch. Older epochs
// are refused.
func (s *Store) Reset(epoch uint64, status ConnStatus) bool {
	s.publishLock.Lock()
	defer s.publishLock.Unlock()

	s.Lock()
	if epoch < s.state.Epoch {
		s.Unlock()
		return false
	}
	noProvider := s.state.NoProvider
	s.state = fresh(epoch, status)
	s.state.NoProvider = noProvider
	published := s.state.copy()
	s.Unlock()

	if s.queue != nil {
		s.queue.Notify(event.ViewChanged, published)
	}
	return true
}

func (s *Store) SetStatus(epoch uint64, status ConnStatus) bool {
	return s.mutate(epoch, func(state *State) {
		state.Status = status
	})
}

func (s *Store) SetNoProvider(epoch uint64) bool {
	return s.mutate(epoch, func(state *State) {
		state.NoProvider = true
		state.Status = Disconnected
	})
}

func (s *Store) SetWrongNetwork(epoch uint64, wrong bool) bool {
	return s.mutate(epoch, func(state *State) {
		state.WrongNetwork = wrong
	})
}

// SetSession marks the epoch connected for account on chainID.
func (s *Store) SetSession(epoch uint64, account string, chainID uint64) bool {
	return s.mutate(epoch, func(state *State) {
		state.Status = Connected
		state.Account = account
		state.ChainID = chainID
		state.WrongNetwork = false
		state.NoProvider = false
	})
}

// BeginRefresh numbers a tally read. It must be called before the read is
// issued and the number passed to ApplySnapshot.
func (s *Store) BeginRefresh() uint64 {
	s.Lock()
	defer s.Unlock()
	s.refreshSeq++
	return s.refreshSeq
}

// ApplySnapshot replaces the candidates wholesale. A snapshot from a read
// issued before the last applied one is dropped.
func (s *Store) ApplySnapshot(epoch, seq uint64, snapshot *tally.Snapshot) bool {
	candidates := candidatesOf(snapshot)
	return s.mutateIf(epoch, func(state *State) bool {
		if seq < s.appliedSeq {
			log.Debugf("Drop tally read %d, read %d already applied", seq, s.appliedSeq)
			return false
		}
		s.appliedSeq = seq
		state.Candidates = candidates
		state.TotalVotes = snapshot.TotalVotes()
		return true
	})
}

// SetLiveUpdates records whether ledger vote notifications are flowing.
func (s *Store) SetLiveUpdates(epoch uint64, live bool) bool {
	return s.mutateIf(epoch, func(state *State) bool {
		if state.LiveUpdates == live {
			return false
		}
		state.LiveUpdates = live
		return true
	})
}

// SetHasVoted records the ledger voter status. Once true it stays true for
// the epoch.
func (s *Store) SetHasVoted(epoch uint64, voted bool) bool {
	return s.mutateIf(epoch, func(state *State) bool {
		if state.HasVoted && !voted {
			log.Warningf("Ignore voter status regression in epoch %d", epoch)
			return false
		}
		state.HasVoted = voted
		return true
	})
}

func (s *Store) SetTransaction(epoch uint64, tx Tx) bool {
	return s.mutate(epoch, func(state *State) {
		state.Transaction = tx
	})
}

// SetError records the user facing message of err. A nil err clears it.
// Silent errors are never recorded.
func (s *Store) SetError(epoch uint64, err error) bool {
	code := errcode.CodeOf(err)
	if code.Silent() {
		return false
	}
	return s.mutate(epoch, func(state *State) {
		if err == nil {
			state.LastError = ""
			state.LastErrorCode = errcode.ErrNoError
			return
		}
		state.LastError = errcode.Message(err)
		state.LastErrorCode = code
	})
}
