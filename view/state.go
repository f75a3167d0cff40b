package view

import (
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/tally"
)

type ConnStatus string

const (
	Disconnected ConnStatus = "disconnected"
	Connecting   ConnStatus = "connecting"
	Connected    ConnStatus = "connected"
)

type Candidate struct {
	tally.Candidate
	Percent  string  `json:"percent"`
	BarWidth float64 `json:"barWidth"`
}

// Tx is the render form of the vote transaction.
type Tx struct {
	Phase       string `json:"phase"`
	CandidateID uint64 `json:"candidateId,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// State is the render ready snapshot. Renderers only ever see copies.
type State struct {
	Epoch         uint64          `json:"epoch"`
	Status        ConnStatus      `json:"status"`
	Account       string          `json:"account,omitempty"`
	ChainID       uint64          `json:"chainId,omitempty"`
	WrongNetwork  bool            `json:"wrongNetwork"`
	NoProvider    bool            `json:"noProvider"`
	Candidates    []Candidate     `json:"candidates"`
	TotalVotes    uint64          `json:"totalVotes"`
	HasVoted      bool            `json:"hasVoted"`
	LiveUpdates   bool            `json:"liveUpdates"`
	Transaction   Tx              `json:"transaction"`
	LastError     string          `json:"lastError,omitempty"`
	LastErrorCode errcode.ErrCode `json:"lastErrorCode,omitempty"`
}

func (s State) copy() State {
	candidates := make([]Candidate, len(s.Candidates))
	copy(candidates, s.Candidates)
	s.Candidates = candidates
	return s
}

// CanVote mirrors what the vote button allows.
func (s State) CanVote() bool {
	return s.Status == Connected && !s.WrongNetwork && !s.HasVoted && s.Transaction.Phase == "idle"
}

func candidatesOf(snapshot *tally.Snapshot) []Candidate {
	candidates := make([]Candidate, 0, snapshot.Len())
	for _, c := range snapshot.Candidates() {
		candidates = append(candidates, Candidate{
			Candidate: c,
			Percent:   snapshot.Percent(c.ID),
			BarWidth:  snapshot.BarWidth(c.ID),
		})
	}
	return candidates
}
