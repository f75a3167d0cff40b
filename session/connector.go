package session

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/contract"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/ledger"
	"github.com/remotechain/votesync/network"
	"github.com/remotechain/votesync/subscriber"
	"github.com/remotechain/votesync/tally"
	"github.com/remotechain/votesync/util/log"
	"github.com/remotechain/votesync/view"
	"github.com/remotechain/votesync/vote"
	"github.com/remotechain/votesync/wallet"
)

const notificationChanSize = 16

// Session is one wallet identity. It is never patched, an account or chain
// change replaces it.
type Session struct {
	Epoch   uint64         `json:"epoch"`
	Account common.Address `json:"account"`
	ChainID uint64         `json:"chainId"`
}

type Config struct {
	Network            config.NetworkConfig
	Contract           contract.Config
	DisplayInterval    time.Duration
	ReceiptTimeout     time.Duration
	DedupWindow        time.Duration
	ResubscribeBackoff time.Duration
	AutoReconnect      bool
}

func ConfigFromParameters(p *config.Configuration, contractConfig contract.Config) Config {
	return Config{
		Network:            p.Network,
		Contract:           contractConfig,
		DisplayInterval:    p.DisplayInterval(),
		ReceiptTimeout:     p.ReceiptWait(),
		DedupWindow:        p.DedupWindow(),
		ResubscribeBackoff: p.ResubscribeWait(),
		AutoReconnect:      p.AutoReconnect,
	}
}

// live is everything owned by the current session.
type live struct {
	session    Session
	binding    *contract.Binding
	reader     *tally.Reader
	controller *vote.Controller
	sub        *subscriber.Subscription
	cancel     context.CancelFunc
}

func (l *live) release() {
	if l.sub != nil {
		l.sub.Unsubscribe()
	}
	l.controller.Close()
	l.cancel()
}

// Connector owns the wallet session and everything bound to it.
type Connector struct {
	sync.Mutex
	provider wallet.Provider
	backend  ledger.Backend
	guard    *network.Guard
	store    *view.Store
	queue    *event.EventQueue
	epochs   Epochs
	config   Config

	connecting bool
	live       *live

	// wallet identity reported while connecting
	seenAccounts    []common.Address
	seenAccountsSet bool
	seenChain       uint64
}

// NewConnector creates a connector. provider may be nil when no wallet is
// available, Connect then fails with ErrNoWalletCapability.
func NewConnector(provider wallet.Provider, backend ledger.Backend, store *view.Store, queue *event.EventQueue, cfg Config) *Connector {
	c := &Connector{
		provider: provider,
		backend:  backend,
		store:    store,
		queue:    queue,
		config:   cfg,
	}
	if provider != nil {
		c.guard = network.NewGuard(provider, cfg.Network)
	}
	return c
}

func (c *Connector) Epochs() *Epochs {
	return &c.epochs
}

func (c *Connector) State() view.State {
	return c.store.Snapshot()
}

// Session returns the live session, if any.
func (c *Connector) Session() (Session, bool) {
	c.Lock()
	defer c.Unlock()
	if c.live == nil {
		return Session{}, false
	}
	return c.live.session, true
}

func (c *Connector) current() *live {
	c.Lock()
	defer c.Unlock()
	return c.live
}

// Connect requests account access, puts the wallet on the expected network
// and installs a new session bound to the approved account.
func (c *Connector) Connect(ctx context.Context) (Session, error) {
	epoch := c.epochs.Current()

	if c.provider == nil {
		c.store.SetNoProvider(epoch)
		return Session{}, errcode.New(errcode.ErrNoWalletCapability, nil, "")
	}

	c.Lock()
	if c.connecting {
		c.Unlock()
		return Session{}, errcode.New(errcode.ErrConnectInProgress, nil, "")
	}
	c.connecting = true
	c.seenAccounts, c.seenAccountsSet, c.seenChain = nil, false, 0
	c.Unlock()

	defer func() {
		c.Lock()
		c.connecting = false
		c.Unlock()
	}()

	session, err := c.connect(ctx, epoch)
	if err != nil {
		if c.current() == nil {
			c.store.SetStatus(epoch, view.Disconnected)
		}
		c.store.SetError(epoch, err)
		return Session{}, err
	}
	return session, nil
}

func (c *Connector) connect(ctx context.Context, epoch uint64) (Session, error) {
	if c.current() == nil {
		c.store.SetStatus(epoch, view.Connecting)
	}

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUserRejected {
			return Session{}, errcode.New(errcode.ErrUserDeclined, err, "")
		}
		return Session{}, errcode.New(errcode.ErrNotConnected, err, "request accounts")
	}
	if len(accounts) == 0 {
		return Session{}, errcode.New(errcode.ErrUserDeclined, nil, "")
	}

	result, err := c.guard.EnsureNetwork(ctx)
	if err != nil {
		c.store.SetWrongNetwork(epoch, true)
		return Session{}, err
	}
	if result == network.NeedsManualSwitch {
		c.store.SetWrongNetwork(epoch, true)
		return Session{}, errcode.Newf(errcode.ErrWrongNetwork, "switch the wallet to %s", c.config.Network.ChainName)
	}

	return c.install(ctx, accounts[0], c.config.Network.ChainID)
}

// install tears down any previous session and builds the new one under a
// fresh epoch. The session is published last.
func (c *Connector) install(ctx context.Context, account common.Address, chainID uint64) (Session, error) {
	c.Lock()
	old := c.live
	c.live = nil
	epoch := c.epochs.Advance()
	c.Unlock()

	if old != nil {
		old.release()
	}

	c.store.Reset(epoch, view.Connecting)

	binding, err := contract.Bind(c.config.Contract, c.backend, c.provider, account, &c.epochs)
	if err != nil {
		log.Errorf("Bind contract error: %v", err)
		err = errcode.New(errcode.ErrLedgerUnavailable, err, "bind contract")
		c.store.SetStatus(epoch, view.Disconnected)
		c.store.SetError(epoch, err)
		return Session{}, err
	}

	liveCtx, cancel := context.WithCancel(context.Background())
	l := &live{
		session: Session{Epoch: epoch, Account: account, ChainID: chainID},
		binding: binding,
		reader:  tally.NewReader(binding),
		cancel:  cancel,
	}
	l.controller = vote.NewController(binding, c.guard, c.store, func(ctx context.Context) {
		c.refresh(ctx, l)
	}, vote.Config{
		DisplayInterval: c.config.DisplayInterval,
		ReceiptTimeout:  c.config.ReceiptTimeout,
	})

	c.store.SetSession(epoch, account.Hex(), chainID)

	if err = c.refresh(ctx, l); err != nil {
		log.Warningf("Initial tally read of epoch %d failed: %v", epoch, err)
	}

	l.sub = subscriber.Subscribe(liveCtx, binding, subscriber.Config{
		DedupWindow:        c.config.DedupWindow,
		ResubscribeBackoff: c.config.ResubscribeBackoff,
		Queue:              c.queue,
		OnStatus: func(live bool) {
			c.store.SetLiveUpdates(epoch, live)
		},
	}, func(ctx context.Context) {
		c.refresh(ctx, l)
	})

	walletErr := c.checkIdentity(ctx, account, chainID)

	c.Lock()
	if c.epochs.Current() != epoch {
		c.Unlock()
		l.release()
		return Session{}, errcode.Newf(errcode.ErrStaleBinding, "session %d replaced while connecting", epoch)
	}
	if walletErr == nil {
		walletErr = c.seenMismatch(account, chainID)
	}
	if walletErr != nil {
		next := c.epochs.Advance()
		c.Unlock()
		l.release()
		log.Warningf("Drop session %d: %v", epoch, walletErr)
		c.store.Reset(next, view.Disconnected)
		c.store.SetError(next, walletErr)
		return Session{}, walletErr
	}
	c.live = l
	c.Unlock()

	log.Infof("Session %d connected: account %s on chain %d", epoch, account.Hex(), chainID)
	return l.session, nil
}

// checkIdentity re-reads the wallet's account and chain right before a
// session for account on chainID is published.
func (c *Connector) checkIdentity(ctx context.Context, account common.Address, chainID uint64) error {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return errcode.New(errcode.ErrNotConnected, err, "read wallet accounts")
	}
	if len(accounts) == 0 || accounts[0] != account {
		return errcode.Newf(errcode.ErrStaleBinding, "wallet account changed from %s while connecting", account.Hex())
	}
	current, err := c.provider.ChainID(ctx)
	if err != nil {
		return errcode.New(errcode.ErrNotConnected, err, "read wallet chain")
	}
	if current != chainID {
		return errcode.Newf(errcode.ErrStaleBinding, "wallet chain changed to %d while connecting", current)
	}
	return nil
}

// seenMismatch checks the notifications received while connecting against
// the identity about to be published. Must be called with the lock held.
func (c *Connector) seenMismatch(account common.Address, chainID uint64) error {
	if c.seenAccountsSet && (len(c.seenAccounts) == 0 || c.seenAccounts[0] != account) {
		return errcode.Newf(errcode.ErrStaleBinding, "wallet account changed from %s while connecting", account.Hex())
	}
	if c.seenChain != 0 && c.seenChain != chainID {
		return errcode.Newf(errcode.ErrStaleBinding, "wallet chain changed to %d while connecting", c.seenChain)
	}
	return nil
}

// refresh re-reads tally and voter status for l. Results of a replaced
// session, or older than a result already shown, are dropped by the view.
func (c *Connector) refresh(ctx context.Context, l *live) error {
	seq := c.store.BeginRefresh()
	snapshot, epoch, err := l.reader.Refresh(ctx)
	if err != nil {
		c.store.SetError(epoch, err)
	} else if !c.store.ApplySnapshot(epoch, seq, snapshot) {
		log.Debugf("Drop tally %d of epoch %d", seq, epoch)
	}

	voted, verr := l.binding.HasVoted(ctx)
	if verr != nil {
		log.Warningf("Read voter status error: %v", verr)
		if err == nil {
			err = verr
		}
	} else {
		c.store.SetHasVoted(l.binding.Epoch(), voted)
	}
	return err
}

// Refresh re-reads tally and voter status of the live session.
func (c *Connector) Refresh(ctx context.Context) error {
	l := c.current()
	if l == nil {
		return errcode.New(errcode.ErrNotConnected, nil, "")
	}
	err := c.refresh(ctx, l)
	if err == nil {
		c.store.SetError(l.session.Epoch, nil)
	}
	return err
}

// SwitchNetwork runs the network guard on demand.
func (c *Connector) SwitchNetwork(ctx context.Context) error {
	epoch := c.epochs.Current()
	if c.provider == nil {
		c.store.SetNoProvider(epoch)
		return errcode.New(errcode.ErrNoWalletCapability, nil, "")
	}
	result, err := c.guard.EnsureNetwork(ctx)
	if err == nil && result == network.NeedsManualSwitch {
		err = errcode.Newf(errcode.ErrWrongNetwork, "switch the wallet to %s", c.config.Network.ChainName)
	}
	c.store.SetWrongNetwork(epoch, err != nil)
	return err
}

// Vote delegates to the controller of the live session.
func (c *Connector) Vote(ctx context.Context, id uint64) (vote.Transaction, error) {
	l := c.current()
	if l == nil {
		return vote.Transaction{}, errcode.New(errcode.ErrNotConnected, nil, "")
	}
	return l.controller.Vote(ctx, id)
}

// Reset tears down the live session as a cold restart would.
func (c *Connector) Reset(reason string) {
	c.Lock()
	old := c.live
	c.live = nil
	epoch := c.epochs.Advance()
	c.Unlock()

	if old != nil {
		old.release()
		log.Infof("Session %d reset: %s", old.session.Epoch, reason)
	}

	c.store.Reset(epoch, view.Disconnected)

	if old != nil && c.queue != nil {
		c.queue.Notify(event.SessionReset, old.session.Epoch)
	}
}

// Run watches wallet notifications until ctx is done or the wallet goes
// away. An account or chain different from the live session resets it.
func (c *Connector) Run(ctx context.Context) error {
	if c.provider == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ch := make(chan wallet.Notification, notificationChanSize)
	sub := c.provider.SubscribeNotifications(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case n := <-ch:
			c.handleNotification(ctx, n)
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connector) handleNotification(ctx context.Context, n wallet.Notification) {
	c.Lock()
	if c.connecting {
		switch n.Event {
		case wallet.EventAccountsChanged:
			c.seenAccounts, c.seenAccountsSet = n.Accounts, true
		case wallet.EventChainChanged:
			c.seenChain = n.ChainID
		}
	}
	l := c.live
	c.Unlock()

	if l == nil {
		if n.Event == wallet.EventChainChanged {
			c.store.SetWrongNetwork(c.epochs.Current(), n.ChainID != c.config.Network.ChainID)
		}
		return
	}

	changed := false
	switch n.Event {
	case wallet.EventAccountsChanged:
		changed = len(n.Accounts) == 0 || n.Accounts[0] != l.session.Account
	case wallet.EventChainChanged:
		changed = n.ChainID != l.session.ChainID
	}
	if !changed {
		log.Debugf("Ignore %s matching session %d", n.Event, l.session.Epoch)
		return
	}

	c.Reset(n.Event)

	if c.config.AutoReconnect {
		go func() {
			if _, err := c.Connect(ctx); err != nil {
				log.Warningf("Reconnect after %s failed: %v", n.Event, err)
			}
		}()
	}
}

// Close releases the live session.
func (c *Connector) Close() {
	c.Lock()
	old := c.live
	c.live = nil
	c.epochs.Advance()
	c.Unlock()

	if old != nil {
		old.release()
	}
}
