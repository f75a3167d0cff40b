package websocket

import (
	"github.com/remotechain/votesync/api/common"
	"github.com/remotechain/votesync/api/websocket/server"
	"github.com/remotechain/votesync/event"
)

// NewServer creates the push server and subscribes it to view changes on
// queue.
func NewServer(service common.Service, queue *event.EventQueue) *server.WsServer {
	ws := server.InitWsServer(service)
	queue.Subscribe(event.ViewChanged, ws.PushState)
	return ws
}
