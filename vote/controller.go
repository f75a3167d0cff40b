package vote

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/network"
	"github.com/remotechain/votesync/util/log"
	"github.com/remotechain/votesync/view"
)

const (
	DefaultDisplayInterval = 4 * time.Second
	DefaultReceiptTimeout  = 5 * time.Minute
)

// Binding is the write side of the contract binding.
type Binding interface {
	Epoch() uint64
	SubmitVote(ctx context.Context, id uint64) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Guard interface {
	EnsureNetwork(ctx context.Context) (network.Result, error)
}

type Config struct {
	// DisplayInterval is how long Succeeded and Failed stay before Idle.
	DisplayInterval time.Duration
	ReceiptTimeout  time.Duration
}

// Controller drives the single vote of one session through the transition
// table. At most one submission is in flight, concurrent attempts are
// rejected and never queued.
type Controller struct {
	sync.Mutex
	binding Binding
	guard   Guard
	store   *view.Store
	refresh func(ctx context.Context)
	config  Config
	epoch   uint64

	tx        Transaction
	preparing bool
	closed    bool

	ctx       context.Context
	cancel    context.CancelFunc
	timer     *time.Timer
	timerGen  uint64
	waitGroup sync.WaitGroup
}

// NewController creates the controller for binding. refresh re-reads voter
// status and tally after a successful inclusion.
func NewController(binding Binding, guard Guard, store *view.Store, refresh func(ctx context.Context), config Config) *Controller {
	if config.DisplayInterval <= 0 {
		config.DisplayInterval = DefaultDisplayInterval
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = DefaultReceiptTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		binding: binding,
		guard:   guard,
		store:   store,
		refresh: refresh,
		config:  config,
		epoch:   binding.Epoch(),
		tx:      Transaction{Phase: Idle},
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Controller) Transaction() Transaction {
	c.Lock()
	defer c.Unlock()
	return c.tx
}

// transition must be called with the lock held.
func (c *Controller) transition(to Phase) bool {
	if !c.tx.Phase.CanTransition(to) {
		log.Errorf("Illegal vote transition %v -> %v", c.tx.Phase, to)
		return false
	}
	log.Debugf("Vote transition %v -> %v", c.tx.Phase, to)
	c.tx.Phase = to
	if to == Idle {
		c.tx = Transaction{Phase: Idle}
	}
	c.store.SetTransaction(c.epoch, c.tx.View())
	return true
}

// Vote submits a vote for candidate id. It returns once the wallet has
// accepted or refused the transaction; inclusion is awaited in the
// background.
//
// The wallet submission runs under the controller's context, not ctx. When
// ctx ends first Vote returns the transaction still AwaitingConfirmation and
// the wallet's answer is applied when it arrives.
func (c *Controller) Vote(ctx context.Context, id uint64) (Transaction, error) {
	c.Lock()
	switch {
	case c.closed:
		c.Unlock()
		return Transaction{}, c.errClosed()
	case c.tx.Phase != Idle || c.preparing:
		tx := c.tx
		c.Unlock()
		return tx, errcode.Newf(errcode.ErrVoteInProgress, "vote already %v", tx.Phase)
	case c.store.HasVoted():
		tx := c.tx
		c.Unlock()
		return tx, errcode.New(errcode.ErrAlreadyVoted, nil, "")
	}
	c.preparing = true
	c.Unlock()

	defer func() {
		c.Lock()
		c.preparing = false
		c.Unlock()
	}()

	result, err := c.guard.EnsureNetwork(ctx)
	if err != nil || result != network.OnNetwork {
		c.store.SetWrongNetwork(c.epoch, true)
		if err == nil {
			err = errcode.Newf(errcode.ErrWrongNetwork, "wallet not on chain")
		}
		return c.Transaction(), err
	}

	c.Lock()
	if c.closed {
		c.Unlock()
		return Transaction{}, c.errClosed()
	}
	c.stopTimer()
	c.store.SetError(c.epoch, nil)
	c.tx.CandidateID = id
	c.transition(AwaitingConfirmation)
	c.waitGroup.Add(1)
	c.Unlock()

	type outcome struct {
		tx  Transaction
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer c.waitGroup.Done()
		hash, err := c.binding.SubmitVote(c.ctx, id)
		tx, err := c.settle(id, hash, err)
		done <- outcome{tx, err}
	}()

	select {
	case o := <-done:
		return o.tx, o.err
	case <-ctx.Done():
		log.Infof("Vote for candidate %d still awaiting wallet confirmation", id)
		return c.Transaction(), nil
	}
}

func (c *Controller) errClosed() error {
	return errcode.Newf(errcode.ErrStaleBinding, "vote controller of epoch %d closed", c.epoch)
}

// settle applies the wallet's answer to a submission.
func (c *Controller) settle(id uint64, hash common.Hash, err error) (Transaction, error) {
	c.Lock()
	defer c.Unlock()

	if c.closed {
		return Transaction{}, c.errClosed()
	}

	switch errcode.CodeOf(err) {
	case errcode.ErrNoError:
		c.tx.Hash = hash
		c.transition(PendingInclusion)
		log.Infof("Vote for candidate %d sent in %s", id, hash.Hex())
		c.waitGroup.Add(1)
		go c.awaitInclusion(hash)
		return c.tx, nil
	case errcode.ErrAlreadyVoted:
		log.Infof("Account already voted, marking voter status")
		c.store.SetHasVoted(c.epoch, true)
		c.transition(Idle)
		return c.tx, nil
	case errcode.ErrStaleBinding:
		return c.tx, err
	default:
		log.Warningf("Vote for candidate %d failed: %v", id, err)
		c.store.SetError(c.epoch, err)
		c.transition(Failed)
		c.scheduleIdle()
		return c.tx, err
	}
}

func (c *Controller) awaitInclusion(hash common.Hash) {
	defer c.waitGroup.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.config.ReceiptTimeout)
	defer cancel()
	receipt, err := c.binding.WaitMined(ctx, hash)

	c.Lock()
	if c.closed {
		c.Unlock()
		log.Debugf("Drop inclusion result of %s, controller closed", hash.Hex())
		return
	}

	if err != nil || receipt.Status != types.ReceiptStatusSuccessful {
		if err == nil {
			err = errcode.Newf(errcode.ErrTxRejectedOrReverted, "transaction %s reverted", hash.Hex())
		} else {
			err = errcode.New(errcode.ErrTxRejectedOrReverted, err, "wait for inclusion")
		}
		log.Warningf("Vote transaction %s failed: %v", hash.Hex(), err)
		c.store.SetError(c.epoch, err)
		c.transition(Failed)
		c.scheduleIdle()
		c.Unlock()
		return
	}

	log.Infof("Vote transaction %s included in block %v", hash.Hex(), receipt.BlockNumber)
	c.transition(Succeeded)
	c.scheduleIdle()
	c.Unlock()

	if c.refresh != nil {
		c.refresh(c.ctx)
	}
}

// scheduleIdle must be called with the lock held.
func (c *Controller) scheduleIdle() {
	c.stopTimer()
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.config.DisplayInterval, func() {
		c.Lock()
		defer c.Unlock()
		if c.closed || gen != c.timerGen {
			return
		}
		c.transition(Idle)
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Close cancels the inclusion wait and pending timers. Results arriving
// afterwards are dropped.
func (c *Controller) Close() {
	c.Lock()
	if c.closed {
		c.Unlock()
		return
	}
	c.closed = true
	c.timerGen++
	c.stopTimer()
	c.cancel()
	c.Unlock()
}

// Wait blocks until background inclusion waits have returned.
func (c *Controller) Wait() {
	c.waitGroup.Wait()
}
