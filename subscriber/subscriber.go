package subscriber

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	gethevent "github.com/ethereum/go-ethereum/event"
	"github.com/remotechain/votesync/common"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/util/log"
)

const (
	logChanSize               = 64
	dedupCleanupInterval      = time.Minute
	DefaultResubscribeBackoff = 30 * time.Second
)

// Source is a binding that can stream its vote recorded logs.
type Source interface {
	SubscribeVoteRecorded(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error)
	Epoch() uint64
}

type RefreshFunc func(ctx context.Context)

type Config struct {
	DedupWindow time.Duration
	// ResubscribeBackoff caps the wait between attempts to arm the ledger
	// subscription after it failed or dropped.
	ResubscribeBackoff time.Duration
	// Queue, if set, receives event.VoteRecorded for every distinct log.
	Queue *event.EventQueue
	// OnStatus, if set, is called whenever notifications start or stop
	// flowing.
	OnStatus func(live bool)
}

// Subscription is the scoped interest of one binding in vote recorded
// notifications. It must be released with Unsubscribe before the binding is
// replaced.
type Subscription struct {
	epoch    uint64
	sub      gethevent.Subscription
	logs     chan types.Log
	kick     chan struct{}
	seen     *common.GoCache
	queue    *event.EventQueue
	refresh  RefreshFunc
	onStatus func(live bool)

	live   int32
	failed bool // only touched by arm

	armedLock sync.Mutex
	armed     ethereum.Subscription

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Subscribe arms a subscription on source. Every distinct notification
// triggers refresh. Duplicates within the dedup window are ignored and
// notifications arriving while a refresh runs coalesce into one more run.
//
// The ledger subscription is armed in the background and re-armed with
// backoff whenever it fails. Once it is back a refresh catches up on what
// was missed.
func Subscribe(ctx context.Context, source Source, cfg Config, refresh RefreshFunc) *Subscription {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Minute
	}
	if cfg.ResubscribeBackoff <= 0 {
		cfg.ResubscribeBackoff = DefaultResubscribeBackoff
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		epoch:    source.Epoch(),
		logs:     make(chan types.Log, logChanSize),
		kick:     make(chan struct{}, 1),
		seen:     common.NewGoCache(cfg.DedupWindow, dedupCleanupInterval),
		queue:    cfg.Queue,
		refresh:  refresh,
		onStatus: cfg.OnStatus,
		cancel:   cancel,
	}

	s.wg.Add(2)
	go s.receive(ctx)
	go s.work(ctx)

	s.sub = gethevent.ResubscribeErr(cfg.ResubscribeBackoff, func(ctx context.Context, lastErr error) (gethevent.Subscription, error) {
		return s.arm(ctx, source, lastErr)
	})
	return s
}

// arm runs on the resubscribe loop, one call at a time.
func (s *Subscription) arm(ctx context.Context, source Source, lastErr error) (gethevent.Subscription, error) {
	if lastErr != nil && s.Live() {
		log.Errorf("Vote notification subscription of epoch %d dropped: %v", s.epoch, lastErr)
		s.failed = true
		s.setLive(false)
	}

	sub, err := source.SubscribeVoteRecorded(ctx, s.logs)
	if err != nil {
		log.Warningf("Subscribe vote notifications of epoch %d: %v", s.epoch, err)
		s.failed = true
		s.setLive(false)
		return nil, err
	}

	s.armedLock.Lock()
	s.armed = sub
	s.armedLock.Unlock()

	log.Infof("Subscribed to vote notifications for epoch %d", s.epoch)
	s.setLive(true)
	if s.failed {
		s.failed = false
		s.poke()
	}
	return sub, nil
}

func (s *Subscription) setLive(live bool) {
	var v int32
	if live {
		v = 1
	}
	if atomic.SwapInt32(&s.live, v) != v && s.onStatus != nil {
		s.onStatus(live)
	}
}

// Live reports whether the ledger subscription is currently armed.
func (s *Subscription) Live() bool {
	return atomic.LoadInt32(&s.live) == 1
}

func (s *Subscription) poke() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func logKey(l types.Log) string {
	return fmt.Sprintf("%s:%d:%t", l.TxHash.Hex(), l.Index, l.Removed)
}

func (s *Subscription) receive(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case l := <-s.logs:
			if !s.seen.FirstSeen(logKey(l)) {
				log.Debugf("Duplicate vote notification %s", logKey(l))
				continue
			}
			if s.queue != nil {
				s.queue.Notify(event.VoteRecorded, l)
			}
			s.poke()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.kick:
			s.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) Epoch() uint64 {
	return s.epoch
}

// Unsubscribe stops the ledger subscription, including any pending
// re-arm, and waits for the refresh worker to exit. It is safe to call more
// than once but must not be called from the refresh function.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		// the resubscribe loop leaks a subscription armed while it is
		// being stopped
		s.armedLock.Lock()
		if s.armed != nil {
			s.armed.Unsubscribe()
		}
		s.armedLock.Unlock()
		s.cancel()
		s.wg.Wait()
		log.Infof("Unsubscribed vote notifications for epoch %d", s.epoch)
	})
}
