package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// go test -v -run=TestEventQueue
func TestEventQueue(t *testing.T) {
	eq := NewEventQueue()

	var got []interface{}
	first := eq.Subscribe(ViewChanged, func(v interface{}) {
		got = append(got, v)
	})
	var other []interface{}
	eq.Subscribe(VoteRecorded, func(v interface{}) {
		other = append(other, v)
	})

	eq.Notify(ViewChanged, 1)
	eq.Notify(ViewChanged, 2)
	eq.Notify(VoteRecorded, "log")
	eq.Notify(SessionReset, uint64(3))

	require.Equal(t, []interface{}{1, 2}, got)
	require.Equal(t, []interface{}{"log"}, other)

	require.NoError(t, eq.Unsubscribe(ViewChanged, first))
	eq.Notify(ViewChanged, 3)
	require.Equal(t, []interface{}{1, 2}, got)

	require.NoError(t, eq.Unsubscribe(ViewChanged, first))
	require.Error(t, eq.Unsubscribe(ViewChanged, 5))
	require.Error(t, eq.Unsubscribe(SessionReset, 0))
}

// go test -v -run=TestEventQueueOrder
func TestEventQueueOrder(t *testing.T) {
	eq := NewEventQueue()

	var got []int
	eq.Subscribe(ViewChanged, func(v interface{}) {
		got = append(got, v.(int))
	})

	var wg sync.WaitGroup
	var lock sync.Mutex
	next := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			eq.Notify(ViewChanged, next)
			next++
		}()
	}
	wg.Wait()

	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

// go test -v -run=TestEventTypeString
func TestEventTypeString(t *testing.T) {
	require.Equal(t, "ViewChanged", ViewChanged.String())
	require.Equal(t, "VoteRecorded", VoteRecorded.String())
	require.Equal(t, "SessionReset", SessionReset.String())
	require.Equal(t, "Unknown", EventType(99).String())
}
