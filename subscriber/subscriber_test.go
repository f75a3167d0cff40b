package subscriber

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/testutil"
	"github.com/stretchr/testify/require"
)

type source struct {
	ledger *testutil.Ledger
}

func (s *source) SubscribeVoteRecorded(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	return s.ledger.SubscribeFilterLogs(ctx, ethereum.FilterQuery{}, ch)
}

func (s *source) Epoch() uint64 {
	return 7
}

func recorded(queue *event.EventQueue) *int64 {
	var n int64
	queue.Subscribe(event.VoteRecorded, func(v interface{}) {
		atomic.AddInt64(&n, 1)
	})
	return &n
}

// go test -v -run=TestSubscribeDedup
func TestSubscribeDedup(t *testing.T) {
	l := testutil.NewLedger()
	queue := event.NewEventQueue()
	notified := recorded(queue)

	var refreshes int64
	sub := Subscribe(context.Background(), &source{l}, Config{DedupWindow: time.Minute, Queue: queue}, func(ctx context.Context) {
		atomic.AddInt64(&refreshes, 1)
	})
	defer sub.Unsubscribe()
	require.Equal(t, uint64(7), sub.Epoch())
	require.Eventually(t, sub.Live, time.Second, time.Millisecond)

	vlog := l.VoteLog(common.HexToHash("0x01"), 1, 0)
	l.EmitLog(vlog)
	l.EmitLog(vlog)

	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(1), atomic.LoadInt64(notified))
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshes))

	// a removal is a distinct notification
	vlog.Removed = true
	l.EmitLog(vlog)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 2 }, time.Second, time.Millisecond)
	require.Equal(t, int64(2), atomic.LoadInt64(notified))
}

// go test -v -run=TestSubscribeCoalesce
func TestSubscribeCoalesce(t *testing.T) {
	l := testutil.NewLedger()
	queue := event.NewEventQueue()
	notified := recorded(queue)

	started := make(chan struct{})
	release := make(chan struct{})
	var refreshes int64
	sub := Subscribe(context.Background(), &source{l}, Config{Queue: queue}, func(ctx context.Context) {
		if atomic.AddInt64(&refreshes, 1) == 1 {
			close(started)
			<-release
		}
	})
	defer sub.Unsubscribe()
	require.Eventually(t, sub.Live, time.Second, time.Millisecond)

	l.EmitLog(l.VoteLog(common.HexToHash("0x01"), 1, 0))
	<-started

	for i := 2; i <= 5; i++ {
		l.EmitLog(l.VoteLog(common.BytesToHash([]byte{byte(i)}), 1, 0))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt64(notified) == 5 }, time.Second, time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(2), atomic.LoadInt64(&refreshes))
}

// go test -v -run=TestUnsubscribe
func TestUnsubscribe(t *testing.T) {
	l := testutil.NewLedger()

	var refreshes int64
	sub := Subscribe(context.Background(), &source{l}, Config{}, func(ctx context.Context) {
		atomic.AddInt64(&refreshes, 1)
	})
	require.Eventually(t, sub.Live, time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.Equal(t, 0, l.EmitLog(l.VoteLog(common.HexToHash("0x01"), 1, 0)))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(0), atomic.LoadInt64(&refreshes))
}

// go test -v -run=TestUnsubscribeWhileRetrying
func TestUnsubscribeWhileRetrying(t *testing.T) {
	l := testutil.NewLedger()
	l.SetSubscribeErr(errors.New("notifications not supported"))

	sub := Subscribe(context.Background(), &source{l}, Config{ResubscribeBackoff: 10 * time.Millisecond}, func(ctx context.Context) {})
	require.Eventually(t, func() bool { return l.SubscriptionCount() == 0 && !sub.Live() }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	sub.Unsubscribe()

	l.SetSubscribeErr(nil)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, l.SubscriptionCount())
	require.False(t, sub.Live())
}

// go test -v -run=TestResubscribeAfterFailedArm
func TestResubscribeAfterFailedArm(t *testing.T) {
	l := testutil.NewLedger()
	l.SetSubscribeErr(errors.New("notifications not supported"))

	var refreshes int64
	var status []bool
	statusCh := make(chan bool, 8)
	sub := Subscribe(context.Background(), &source{l}, Config{
		ResubscribeBackoff: 20 * time.Millisecond,
		OnStatus:           func(live bool) { statusCh <- live },
	}, func(ctx context.Context) {
		atomic.AddInt64(&refreshes, 1)
	})
	defer sub.Unsubscribe()

	time.Sleep(30 * time.Millisecond)
	require.False(t, sub.Live())
	require.Equal(t, 0, l.SubscriptionCount())

	l.SetSubscribeErr(nil)
	require.Eventually(t, sub.Live, time.Second, time.Millisecond)
	require.Equal(t, 1, l.SubscriptionCount())
	// the refresh after a late arm catches up on whatever was missed
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 1 }, time.Second, time.Millisecond)

	l.EmitLog(l.VoteLog(common.HexToHash("0x01"), 1, 0))
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 2 }, time.Second, time.Millisecond)

	for len(statusCh) > 0 {
		status = append(status, <-statusCh)
	}
	require.Equal(t, []bool{true}, status)
}

// go test -v -run=TestResubscribeAfterDrop
func TestResubscribeAfterDrop(t *testing.T) {
	l := testutil.NewLedger()
	queue := event.NewEventQueue()
	notified := recorded(queue)

	var refreshes int64
	statusCh := make(chan bool, 8)
	sub := Subscribe(context.Background(), &source{l}, Config{
		ResubscribeBackoff: 20 * time.Millisecond,
		Queue:              queue,
		OnStatus:           func(live bool) { statusCh <- live },
	}, func(ctx context.Context) {
		atomic.AddInt64(&refreshes, 1)
	})
	defer sub.Unsubscribe()
	require.Eventually(t, sub.Live, time.Second, time.Millisecond)
	require.True(t, <-statusCh)

	l.EmitLog(l.VoteLog(common.HexToHash("0x01"), 1, 0))
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 1 }, time.Second, time.Millisecond)

	// node goes away and the ledger stays unreachable for a while
	l.SetSubscribeErr(errors.New("connection refused"))
	l.DropSubscriptions(errors.New("websocket closed"))
	require.False(t, <-statusCh)
	require.False(t, sub.Live())
	require.Equal(t, 0, l.EmitLog(l.VoteLog(common.HexToHash("0x02"), 1, 0)))

	l.SetSubscribeErr(nil)
	require.True(t, <-statusCh)
	require.True(t, sub.Live())
	require.Equal(t, 2, l.SubscriptionCount())
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 2 }, time.Second, time.Millisecond)

	// notifications flow again
	l.EmitLog(l.VoteLog(common.HexToHash("0x03"), 1, 0))
	require.Eventually(t, func() bool { return atomic.LoadInt64(&refreshes) == 3 }, time.Second, time.Millisecond)
	require.Equal(t, int64(2), atomic.LoadInt64(notified))
}
