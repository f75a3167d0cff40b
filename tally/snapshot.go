package tally

import (
	"fmt"
	"math/big"

	orderedmap "github.com/wk8/go-ordered-map"
)

type Candidate struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"voteCount"`
}

// Snapshot is one complete read of the ballot, in ledger order. It is never
// patched, a refresh builds a new one.
type Snapshot struct {
	candidates *orderedmap.OrderedMap
	total      uint64
	max        uint64
}

func NewSnapshot(candidates []Candidate) *Snapshot {
	s := &Snapshot{
		candidates: orderedmap.New(),
	}
	for _, c := range candidates {
		s.candidates.Set(c.ID, c)
	}
	for pair := s.candidates.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Value.(Candidate)
		s.total += c.VoteCount
		if c.VoteCount > s.max {
			s.max = c.VoteCount
		}
	}
	return s
}

func (s *Snapshot) Len() int {
	return s.candidates.Len()
}

func (s *Snapshot) Candidates() []Candidate {
	candidates := make([]Candidate, 0, s.candidates.Len())
	for pair := s.candidates.Oldest(); pair != nil; pair = pair.Next() {
		candidates = append(candidates, pair.Value.(Candidate))
	}
	return candidates
}

func (s *Snapshot) Get(id uint64) (Candidate, bool) {
	v, ok := s.candidates.Get(id)
	if !ok {
		return Candidate{}, false
	}
	return v.(Candidate), true
}

func (s *Snapshot) TotalVotes() uint64 {
	return s.total
}

// MaxVotes is the highest vote count, at least 1.
func (s *Snapshot) MaxVotes() uint64 {
	if s.max == 0 {
		return 1
	}
	return s.max
}

func (s *Snapshot) Percent(id uint64) string {
	c, _ := s.Get(id)
	return FormatPercent(c.VoteCount, s.total)
}

func (s *Snapshot) BarWidth(id uint64) float64 {
	c, _ := s.Get(id)
	return float64(c.VoteCount) / float64(s.MaxVotes()) * 100
}

// FormatPercent renders count/total with one decimal, rounding half up, as
// in "33.3%". A zero total renders "0".
func FormatPercent(count, total uint64) string {
	if total == 0 {
		return "0"
	}
	// tenths = round(count * 1000 / total)
	num := new(big.Int).SetUint64(count)
	num.Mul(num, big.NewInt(2000))
	den := new(big.Int).SetUint64(total)
	num.Add(num, den)
	den.Lsh(den, 1)
	tenths := num.Div(num, den)

	whole, frac := new(big.Int).DivMod(tenths, big.NewInt(10), new(big.Int))
	return fmt.Sprintf("%s.%s%%", whole, frac)
}
