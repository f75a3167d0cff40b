package tally

import (
	"context"

	"github.com/remotechain/votesync/errcode"
)

// Source reads the whole ballot in one call. It is bound to the epoch it
// was created under.
type Source interface {
	ReadAllCandidates(ctx context.Context) ([]Candidate, error)
	Epoch() uint64
}

type Reader struct {
	source Source
}

func NewReader(source Source) *Reader {
	return &Reader{source: source}
}

// Refresh reads a fresh snapshot. The returned epoch is the one of the
// binding that produced it, callers drop the result when it is stale.
func (r *Reader) Refresh(ctx context.Context) (*Snapshot, uint64, error) {
	epoch := r.source.Epoch()
	candidates, err := r.source.ReadAllCandidates(ctx)
	if err != nil {
		if errcode.CodeOf(err) == errcode.ErrUnknown {
			err = errcode.New(errcode.ErrLedgerUnavailable, err, "read candidates")
		}
		return nil, epoch, err
	}
	return NewSnapshot(candidates), epoch, nil
}
