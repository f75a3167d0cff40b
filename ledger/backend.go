package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/remotechain/votesync/api/ratelimiter"
	"github.com/remotechain/votesync/util/log"
)

// Backend is the part of the ledger RPC the client uses. *ethclient.Client
// satisfies it.
type Backend interface {
	ethereum.ContractCaller
	ethereum.LogFilterer
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dial connects to a ledger JSON-RPC endpoint. Log subscriptions need a ws
// or wss url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to ledger %s", url)
	return client, nil
}

type limitedBackend struct {
	Backend
	key   string
	limit float64
	burst int
}

// NewLimitedBackend throttles calls and receipt queries through the shared
// limiter registered under key. Subscriptions are not throttled.
func NewLimitedBackend(backend Backend, key string, limit float64, burst int) Backend {
	return &limitedBackend{
		Backend: backend,
		key:     key,
		limit:   limit,
		burst:   burst,
	}
}

func (lb *limitedBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ratelimiter.Wait(ctx, lb.key, lb.limit, lb.burst); err != nil {
		return nil, err
	}
	return lb.Backend.CallContract(ctx, call, blockNumber)
}

func (lb *limitedBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := ratelimiter.Wait(ctx, lb.key, lb.limit, lb.burst); err != nil {
		return nil, err
	}
	return lb.Backend.TransactionReceipt(ctx, txHash)
}
