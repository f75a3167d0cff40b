package vote

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/remotechain/votesync/view"
)

type Phase int

const (
	Idle Phase = iota
	AwaitingConfirmation
	PendingInclusion
	Succeeded
	Failed
)

var phaseNames = map[Phase]string{
	Idle:                 "idle",
	AwaitingConfirmation: "awaiting-confirmation",
	PendingInclusion:     "pending-inclusion",
	Succeeded:            "succeeded",
	Failed:               "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// transitions is the whole vote lifecycle. AwaitingConfirmation goes back to
// Idle when the ledger reports the account already voted.
var transitions = map[Phase][]Phase{
	Idle:                 {AwaitingConfirmation},
	AwaitingConfirmation: {PendingInclusion, Failed, Idle},
	PendingInclusion:     {Succeeded, Failed},
	Succeeded:            {Idle},
	Failed:               {Idle},
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p Phase) CanTransition(to Phase) bool {
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

type Transaction struct {
	Phase       Phase       `json:"phase"`
	CandidateID uint64      `json:"candidateId"`
	Hash        common.Hash `json:"hash"`
}

func (tx Transaction) View() view.Tx {
	v := view.Tx{Phase: tx.Phase.String()}
	if tx.Phase != Idle {
		v.CandidateID = tx.CandidateID
	}
	if tx.Hash != (common.Hash{}) {
		v.Hash = tx.Hash.Hex()
	}
	return v
}
