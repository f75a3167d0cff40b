package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethevent "github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/websocket"
	"github.com/remotechain/votesync/util/log"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 8 * time.Second
	pongTimeout    = 10 * time.Second // should be greater than pingInterval
	maxMessageSize = 1 << 20
	maxDialElapsed = 30 * time.Second
)

var ErrBridgeClosed = &ProviderError{Code: CodeDisconnected, Message: "wallet bridge closed"}

type request struct {
	Version string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProviderError  `json:"error,omitempty"`
}

// Bridge is a Provider reached through a websocket JSON-RPC 2.0 bridge. The
// page holding the real EIP-1193 provider forwards requests to it and pushes
// accountsChanged / chainChanged as notifications whose method is the event
// name.
type Bridge struct {
	conn      *websocket.Conn
	writeLock sync.Mutex
	nextID    uint64

	sync.Mutex
	pending map[uint64]chan *message

	feed      gethevent.Feed
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the wallet bridge at url, retrying with exponential
// backoff until ctx is done or maxDialElapsed passes.
func Dial(ctx context.Context, url string) (*Bridge, error) {
	var conn *websocket.Conn
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxDialElapsed
	err := backoff.Retry(func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Warningf("Dial wallet bridge %s error: %v", url, err)
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return NewBridge(conn), nil
}

// NewBridge starts serving an already established connection.
func NewBridge(conn *websocket.Conn) *Bridge {
	br := &Bridge{
		conn:    conn,
		pending: make(map[uint64]chan *message),
		closed:  make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	go br.readLoop()
	go br.pingLoop()

	return br
}

func (br *Bridge) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			br.writeLock.Lock()
			err := br.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			br.writeLock.Unlock()
			if err != nil {
				log.Debugf("wallet bridge ping error: %v", err)
				br.Close()
				return
			}
		case <-br.closed:
			return
		}
	}
}

func (br *Bridge) readLoop() {
	defer br.Close()
	for {
		_, data, err := br.conn.ReadMessage()
		if err != nil {
			select {
			case <-br.closed:
			default:
				log.Warningf("wallet bridge read error: %v", err)
			}
			return
		}
		br.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		msg := &message{}
		if err := json.Unmarshal(data, msg); err != nil {
			log.Warningf("wallet bridge invalid message: %v", err)
			continue
		}

		if msg.ID != nil {
			br.Lock()
			ch, ok := br.pending[*msg.ID]
			delete(br.pending, *msg.ID)
			br.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}

		if len(msg.Method) > 0 {
			n, err := parseNotification(msg.Method, msg.Params)
			if err != nil {
				log.Warningf("wallet bridge invalid %s notification: %v", msg.Method, err)
				continue
			}
			br.feed.Send(n)
		}
	}
}

func parseNotification(method string, params json.RawMessage) (Notification, error) {
	n := Notification{Event: method}
	switch method {
	case EventAccountsChanged:
		if err := json.Unmarshal(params, &n.Accounts); err != nil {
			return n, err
		}
	case EventChainChanged:
		var id hexutil.Uint64
		if err := json.Unmarshal(params, &id); err != nil {
			return n, err
		}
		n.ChainID = uint64(id)
	default:
		return n, fmt.Errorf("unknown event %s", method)
	}
	return n, nil
}

func (br *Bridge) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	id := atomic.AddUint64(&br.nextID, 1)
	ch := make(chan *message, 1)

	br.Lock()
	select {
	case <-br.closed:
		br.Unlock()
		return ErrBridgeClosed
	default:
	}
	br.pending[id] = ch
	br.Unlock()

	defer func() {
		br.Lock()
		delete(br.pending, id)
		br.Unlock()
	}()

	br.writeLock.Lock()
	br.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := br.conn.WriteJSON(&request{Version: "2.0", ID: id, Method: method, Params: params})
	br.writeLock.Unlock()
	if err != nil {
		return err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		return json.Unmarshal(msg.Result, result)
	case <-ctx.Done():
		return ctx.Err()
	case <-br.closed:
		return ErrBridgeClosed
	}
}

func (br *Bridge) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := br.call(ctx, &accounts, "eth_requestAccounts")
	return accounts, err
}

func (br *Bridge) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := br.call(ctx, &accounts, "eth_accounts")
	return accounts, err
}

func (br *Bridge) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := br.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (br *Bridge) SwitchChain(ctx context.Context, chainID uint64) error {
	return br.call(ctx, nil, "wallet_switchEthereumChain", map[string]string{
		"chainId": hexutil.EncodeUint64(chainID),
	})
}

func (br *Bridge) AddChain(ctx context.Context, params ChainParams) error {
	return br.call(ctx, nil, "wallet_addEthereumChain", params)
}

func (br *Bridge) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	var hash common.Hash
	err := br.call(ctx, &hash, "eth_sendTransaction", tx)
	return hash, err
}

func (br *Bridge) SubscribeNotifications(ch chan<- Notification) ethereum.Subscription {
	return br.feed.Subscribe(ch)
}

// Done is closed once the bridge connection is gone.
func (br *Bridge) Done() <-chan struct{} {
	return br.closed
}

func (br *Bridge) Close() error {
	var err error
	br.closeOnce.Do(func() {
		br.Lock()
		close(br.closed)
		br.Unlock()

		br.writeLock.Lock()
		br.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		br.writeLock.Unlock()
		err = br.conn.Close()
	})
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
