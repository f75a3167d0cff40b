package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/remotechain/votesync/util/log"
)

// consecutive receipt query failures tolerated before giving up
const maxReceiptErrors = 3

var errNotMined = errors.New("transaction not yet mined")

type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitMined polls for the receipt of txHash every interval until it is
// included, the context is canceled, or the backend fails maxReceiptErrors
// times in a row.
func WaitMined(ctx context.Context, backend ReceiptBackend, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	var receipt *types.Receipt
	failures := 0

	op := func() error {
		r, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && r != nil {
			receipt = r
			return nil
		}
		if err == nil || errors.Is(err, ethereum.NotFound) {
			log.Debugf("Transaction %s not yet mined", txHash.Hex())
			failures = 0
			return errNotMined
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		failures++
		log.Warningf("Query receipt of %s error: %v", txHash.Hex(), err)
		if failures >= maxReceiptErrors {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
