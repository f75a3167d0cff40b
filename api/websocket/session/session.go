package session

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"
)

const (
	writeTimeout = 10 * time.Second
)

// Session is one connected renderer.
type Session struct {
	sync.Mutex
	ws *websocket.Conn
	id string

	pushLock sync.Mutex
	latest   []byte
	signal   chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (s *Session) ID() string {
	return s.id
}

func newSession(wsConn *websocket.Conn) (session *Session, err error) {
	session = &Session{
		ws:     wsConn,
		id:     uuid.NewUUID().String(),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go session.pushLoop()
	return session, nil
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
	})
	s.Lock()
	defer s.Unlock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
}

func (s *Session) Send(msgType int, data []byte) error {
	s.Lock()
	defer s.Unlock()
	if s.ws == nil {
		return errors.New("Websocket is null")
	}
	s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.ws.WriteMessage(msgType, data)
}

func (s *Session) SendText(data []byte) error {
	return s.Send(websocket.TextMessage, data)
}

func (s *Session) Ping() error {
	return s.Send(websocket.PingMessage, nil)
}

// Push queues data to be sent without blocking. Only the latest pushed
// message is kept when the renderer is slower than the updates.
func (s *Session) Push(data []byte) {
	s.pushLock.Lock()
	s.latest = data
	s.pushLock.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) pushLoop() {
	for {
		select {
		case <-s.signal:
			s.pushLock.Lock()
			data := s.latest
			s.latest = nil
			s.pushLock.Unlock()
			if data == nil {
				continue
			}
			if err := s.SendText(data); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
