package testutil

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethevent "github.com/ethereum/go-ethereum/event"
	"github.com/remotechain/votesync/wallet"
)

var (
	Alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	Bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// Wallet is a scripted wallet provider. Sent transactions are applied to
// Ledger when one is attached.
type Wallet struct {
	sync.Mutex
	Ledger *Ledger

	accounts []common.Address
	chainID  uint64
	known    map[uint64]bool
	feed     gethevent.Feed

	RequestErr error
	ChainErr   error
	SwitchErr  error
	AddErr     error
	SendErr    error
	// RequestHook, when set, runs before accounts are returned.
	RequestHook func(ctx context.Context) error
	// SendHook, when set, runs before the transaction is sent. A non nil
	// error fails the send.
	SendHook func(ctx context.Context, tx wallet.TxRequest) error

	Requests int
	Switches int
	Added    []wallet.ChainParams
	Sent     []wallet.TxRequest
}

func NewWallet(chainID uint64, accounts ...common.Address) *Wallet {
	return &Wallet{
		accounts: accounts,
		chainID:  chainID,
		known:    map[uint64]bool{chainID: true},
	}
}

// Know makes chainID switchable without adding it first.
func (w *Wallet) Know(chainID uint64) {
	w.Lock()
	defer w.Unlock()
	w.known[chainID] = true
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.Lock()
	hook := w.RequestHook
	w.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	w.Lock()
	defer w.Unlock()
	w.Requests++
	if w.RequestErr != nil {
		return nil, w.RequestErr
	}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	w.Lock()
	defer w.Unlock()
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) ChainID(ctx context.Context) (uint64, error) {
	w.Lock()
	defer w.Unlock()
	if w.ChainErr != nil {
		return 0, w.ChainErr
	}
	return w.chainID, nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.Lock()
	w.Switches++
	if w.SwitchErr != nil {
		w.Unlock()
		return w.SwitchErr
	}
	if !w.known[chainID] {
		w.Unlock()
		return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	changed := w.chainID != chainID
	w.chainID = chainID
	w.Unlock()

	if changed {
		w.feed.Send(wallet.Notification{Event: wallet.EventChainChanged, ChainID: chainID})
	}
	return nil
}

func (w *Wallet) AddChain(ctx context.Context, params wallet.ChainParams) error {
	w.Lock()
	defer w.Unlock()
	if w.AddErr != nil {
		return w.AddErr
	}
	chainID, err := hexutil.DecodeUint64(params.ChainID)
	if err != nil {
		return &wallet.ProviderError{Code: -32602, Message: err.Error()}
	}
	w.Added = append(w.Added, params)
	w.known[chainID] = true
	return nil
}

func (w *Wallet) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	w.Lock()
	hook := w.SendHook
	sendErr := w.SendErr
	ledger := w.Ledger
	w.Sent = append(w.Sent, tx)
	w.Unlock()

	if hook != nil {
		if err := hook(ctx, tx); err != nil {
			return common.Hash{}, err
		}
	}
	if sendErr != nil {
		return common.Hash{}, sendErr
	}
	if ledger == nil {
		return common.BytesToHash(tx.Data), nil
	}
	return ledger.Apply(tx.From, tx.Data)
}

func (w *Wallet) SubscribeNotifications(ch chan<- wallet.Notification) ethereum.Subscription {
	return w.feed.Subscribe(ch)
}

// SetAccounts selects accounts in the wallet and notifies subscribers.
func (w *Wallet) SetAccounts(accounts ...common.Address) int {
	w.Lock()
	w.accounts = accounts
	w.Unlock()
	return w.feed.Send(wallet.Notification{Event: wallet.EventAccountsChanged, Accounts: accounts})
}

// SetChain moves the wallet to chainID from the wallet side.
func (w *Wallet) SetChain(chainID uint64) int {
	w.Lock()
	w.chainID = chainID
	w.known[chainID] = true
	w.Unlock()
	return w.feed.Send(wallet.Notification{Event: wallet.EventChainChanged, ChainID: chainID})
}

// Declined is the error a wallet returns when the user rejects a request.
func Declined() error {
	return &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
}
