package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethevent "github.com/ethereum/go-ethereum/event"
)

// Candidate is one ballot entry of the fake ledger.
type Candidate struct {
	ID        uint64
	Name      string
	VoteCount uint64
}

type candidateRecord struct {
	Id        *big.Int
	Name      string
	VoteCount *big.Int
}

// Ledger is an in-memory ballot contract. It satisfies ledger.Backend.
type Ledger struct {
	sync.Mutex
	abi        *abi.ABI
	candidates []Candidate
	voters     map[common.Address]bool
	receipts   map[common.Hash]*types.Receipt
	pending    map[common.Hash]bool
	nonce      int64
	block      int64
	logs       gethevent.Feed
	drop       *drop

	// CallErr, when set, fails every contract call.
	CallErr error
	// ReceiptErr, when set, fails every receipt query.
	ReceiptErr error
	// SubscribeErr, when set, fails log subscriptions.
	SubscribeErr error
	// HoldReceipts keeps sent votes pending until Mine is called.
	HoldReceipts bool

	Calls         int
	ReceiptCalls  int
	Subscriptions int
}

// drop ends every log subscription armed before it fires.
type drop struct {
	done chan struct{}
	err  error
}

func newDrop() *drop {
	return &drop{done: make(chan struct{})}
}

func NewLedger(candidates ...Candidate) *Ledger {
	return &Ledger{
		abi:        ParseBallotABI(),
		candidates: candidates,
		voters:     make(map[common.Address]bool),
		receipts:   make(map[common.Hash]*types.Receipt),
		pending:    make(map[common.Hash]bool),
		drop:       newDrop(),
	}
}

func (l *Ledger) ABI() *abi.ABI {
	return l.abi
}

func (l *Ledger) SetVoted(account common.Address, voted bool) {
	l.Lock()
	defer l.Unlock()
	l.voters[account] = voted
}

func (l *Ledger) SetCandidates(candidates ...Candidate) {
	l.Lock()
	defer l.Unlock()
	l.candidates = candidates
}

func (l *Ledger) Candidates() []Candidate {
	l.Lock()
	defer l.Unlock()
	return append([]Candidate(nil), l.candidates...)
}

func (l *Ledger) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	l.Lock()
	defer l.Unlock()

	l.Calls++
	if l.CallErr != nil {
		return nil, l.CallErr
	}
	if call.To == nil || *call.To != ContractAddress {
		return nil, nil
	}
	if len(call.Data) < 4 {
		return nil, errors.New("short call data")
	}
	method, err := l.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case ListCandidatesMethod:
		records := make([]candidateRecord, 0, len(l.candidates))
		for _, c := range l.candidates {
			records = append(records, candidateRecord{
				Id:        new(big.Int).SetUint64(c.ID),
				Name:      c.Name,
				VoteCount: new(big.Int).SetUint64(c.VoteCount),
			})
		}
		return method.Outputs.Pack(records)
	case VoterStatusMethod:
		return method.Outputs.Pack(l.voters[args[0].(common.Address)])
	case CastVoteMethod:
		if _, err = l.check(call.From, args); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	return nil, fmt.Errorf("unexpected method %s", method.Name)
}

// check must be called with the lock held.
func (l *Ledger) check(from common.Address, args []interface{}) (int, error) {
	if l.voters[from] {
		return 0, CustomErrorRevert(l.abi, AlreadyVotedError)
	}
	id := args[0].(*big.Int)
	for i, c := range l.candidates {
		if id.IsUint64() && c.ID == id.Uint64() {
			return i, nil
		}
	}
	return 0, ReasonRevert("invalid candidate")
}

// Apply executes a vote transaction sent by from. The vote is counted
// immediately; its receipt is withheld while HoldReceipts is set.
func (l *Ledger) Apply(from common.Address, data []byte) (common.Hash, error) {
	l.Lock()
	if len(data) < 4 {
		l.Unlock()
		return common.Hash{}, errors.New("short transaction data")
	}
	method, err := l.abi.MethodById(data[:4])
	if err != nil || method.Name != CastVoteMethod {
		l.Unlock()
		return common.Hash{}, fmt.Errorf("unexpected transaction %x", data[:4])
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		l.Unlock()
		return common.Hash{}, err
	}
	i, err := l.check(from, args)
	if err != nil {
		l.Unlock()
		return common.Hash{}, err
	}

	l.nonce++
	l.block++
	hash := common.BigToHash(big.NewInt(l.nonce))
	l.voters[from] = true
	l.candidates[i].VoteCount++

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: big.NewInt(l.block),
	}
	l.receipts[hash] = receipt
	if l.HoldReceipts {
		l.pending[hash] = true
	}
	vlog := types.Log{
		Address:     ContractAddress,
		Topics:      []common.Hash{l.abi.Events[VoteRecordedEvent].ID, common.BigToHash(args[0].(*big.Int))},
		TxHash:      hash,
		BlockNumber: uint64(l.block),
	}
	l.Unlock()

	l.EmitLog(vlog)
	return hash, nil
}

// Mine releases the withheld receipt of hash with status.
func (l *Ledger) Mine(hash common.Hash, status uint64) {
	l.Lock()
	defer l.Unlock()
	delete(l.pending, hash)
	if receipt, ok := l.receipts[hash]; ok {
		receipt.Status = status
		return
	}
	l.block++
	l.receipts[hash] = &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(l.block)}
}

func (l *Ledger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.Lock()
	defer l.Unlock()

	l.ReceiptCalls++
	if l.ReceiptErr != nil {
		return nil, l.ReceiptErr
	}
	receipt, ok := l.receipts[txHash]
	if !ok || l.pending[txHash] {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (l *Ledger) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (l *Ledger) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	l.Lock()
	defer l.Unlock()

	if l.SubscribeErr != nil {
		return nil, l.SubscribeErr
	}
	l.Subscriptions++
	inner := l.logs.Subscribe(ch)
	d := l.drop
	return gethevent.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		select {
		case <-quit:
			return nil
		case <-d.done:
			return d.err
		}
	}), nil
}

// DropSubscriptions ends every current log subscription with err, the way
// a ledger node closing its connection would.
func (l *Ledger) DropSubscriptions(err error) {
	l.Lock()
	defer l.Unlock()
	l.drop.err = err
	close(l.drop.done)
	l.drop = newDrop()
}

// SubscriptionCount is Subscriptions read under the lock.
func (l *Ledger) SubscriptionCount() int {
	l.Lock()
	defer l.Unlock()
	return l.Subscriptions
}

// SetSubscribeErr sets SubscribeErr under the lock.
func (l *Ledger) SetSubscribeErr(err error) {
	l.Lock()
	defer l.Unlock()
	l.SubscribeErr = err
}

// EmitLog pushes vlog to every log subscriber and returns how many got it.
func (l *Ledger) EmitLog(vlog types.Log) int {
	return l.logs.Send(vlog)
}

// VoteLog is a vote recorded log as the ledger would emit it for tx.
func (l *Ledger) VoteLog(tx common.Hash, candidate uint64, index uint) types.Log {
	return types.Log{
		Address: ContractAddress,
		Topics:  []common.Hash{l.abi.Events[VoteRecordedEvent].ID, common.BigToHash(new(big.Int).SetUint64(candidate))},
		TxHash:  tx,
		Index:   index,
	}
}
