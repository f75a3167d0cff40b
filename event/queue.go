package event

import (
	"fmt"
	"sync"
)

type EventFunc func(v interface{})

type EventQueue struct {
	sync.RWMutex
	subscribers map[EventType][]EventFunc
	notifyLock  sync.Mutex
}

func NewEventQueue() *EventQueue {
	return &EventQueue{
		subscribers: make(map[EventType][]EventFunc),
	}
}

// Subscribe adds a new subscriber to Event.
func (eq *EventQueue) Subscribe(eventType EventType, eventFunc EventFunc) int {
	eq.Lock()
	defer eq.Unlock()

	eq.subscribers[eventType] = append(eq.subscribers[eventType], eventFunc)

	return len(eq.subscribers[eventType]) - 1
}

// Unsubscribe removes the specified subscriber. Removing an already removed
// subscriber is a no-op.
func (eq *EventQueue) Unsubscribe(eventType EventType, subscriberIdx int) error {
	eq.Lock()
	defer eq.Unlock()

	if subscriberIdx < 0 || subscriberIdx >= len(eq.subscribers[eventType]) {
		return fmt.Errorf("no subscriber %v", subscriberIdx)
	}

	eq.subscribers[eventType][subscriberIdx] = nil

	return nil
}

// Notify subscribers that Subscribe specified event. Subscribers run on the
// caller's goroutine and see notifications in the order Notify was called.
// A subscriber must not call Notify itself.
func (eq *EventQueue) Notify(eventType EventType, value interface{}) {
	eq.notifyLock.Lock()
	defer eq.notifyLock.Unlock()

	eq.RLock()
	subscribers := make([]EventFunc, len(eq.subscribers[eventType]))
	copy(subscribers, eq.subscribers[eventType])
	eq.RUnlock()

	for _, f := range subscribers {
		if f != nil {
			f(value)
		}
	}
}
