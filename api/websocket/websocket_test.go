package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/session"
	"github.com/remotechain/votesync/view"
	"github.com/remotechain/votesync/vote"
	"github.com/stretchr/testify/require"
)

type service struct{}

func (s *service) State() view.State {
	return view.State{Epoch: 1, Status: view.Connecting, Transaction: view.Tx{Phase: "idle"}}
}

func (s *service) Connect(ctx context.Context) (session.Session, error) {
	return session.Session{Epoch: 2}, nil
}

func (s *service) Vote(ctx context.Context, id uint64) (vote.Transaction, error) {
	return vote.Transaction{Phase: vote.AwaitingConfirmation, CandidateID: id}, nil
}

func (s *service) SwitchNetwork(ctx context.Context) error {
	return nil
}

func (s *service) Refresh(ctx context.Context) error {
	return nil
}

type message struct {
	ID     interface{}            `json:"id"`
	Result json.RawMessage        `json:"result"`
	Error  map[string]interface{} `json:"error"`
	Status view.ConnStatus        `json:"status"`
	Epoch  uint64                 `json:"epoch"`
}

func read(t *testing.T, conn *gorilla.Conn) message {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg := message{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readResponse skips state pushes until the response to id arrives.
func readResponse(t *testing.T, conn *gorilla.Conn, id float64) message {
	for {
		msg := read(t, conn)
		if msg.ID == id {
			return msg
		}
	}
}

// go test -v -run=TestWebsocket
func TestWebsocket(t *testing.T) {
	queue := event.NewEventQueue()
	ws := NewServer(&service{}, queue)
	server := httptest.NewServer(ws)
	defer server.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := read(t, conn)
	require.Equal(t, view.Connecting, msg.Status)
	require.Eventually(t, func() bool { return ws.SessionList.Len() == 1 }, time.Second, time.Millisecond)

	queue.Notify(event.ViewChanged, view.State{Epoch: 5, Status: view.Connected})
	msg = read(t, conn)
	require.Equal(t, uint64(5), msg.Epoch)
	require.Equal(t, view.Connected, msg.Status)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": 7, "method": "vote", "params": map[string]interface{}{"candidate": 4}}))
	msg = readResponse(t, conn, 7)
	require.Nil(t, msg.Error)
	require.Contains(t, string(msg.Result), `"phase":"awaiting-confirmation"`)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": 8, "method": "nope"}))
	msg = readResponse(t, conn, 8)
	require.Equal(t, float64(-32601), msg.Error["code"])

	conn.Close()
	require.Eventually(t, func() bool { return ws.SessionList.Len() == 0 }, time.Second, time.Millisecond)
}
