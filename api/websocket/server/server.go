package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/remotechain/votesync/api/common"
	"github.com/remotechain/votesync/api/websocket/session"
	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/util/log"
)

const (
	pingInterval   = 8 * time.Second
	pongTimeout    = 10 * time.Second // should be greater than pingInterval
	maxMessageSize = 1 << 16
)

// WsServer pushes the view state to every connected renderer and accepts
// the same JSON-RPC requests as the http endpoint.
type WsServer struct {
	Upgrader    websocket.Upgrader
	SessionList *session.SessionList
	ActionMap   map[string]common.Handler
	service     common.Service
	timeout     time.Duration
}

func InitWsServer(service common.Service) *WsServer {
	ws := &WsServer{
		Upgrader:    websocket.Upgrader{},
		SessionList: session.NewSessionList(),
		ActionMap:   make(map[string]common.Handler),
		service:     service,
		timeout:     config.Parameters.Timeout(),
	}
	ws.Upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	for name, handler := range common.InitialAPIHandlers {
		if handler.IsAccessableByWebsocket() {
			ws.ActionMap[name] = handler.Handler
		}
	}
	return ws
}

func (ws *WsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket Upgrader: ", err)
		return
	}
	defer wsConn.Close()

	sess, err := ws.SessionList.Open(wsConn)
	if err != nil {
		log.Error("websocket open session:", err)
		return
	}

	defer func() {
		ws.SessionList.Close(sess)
		if err := recover(); err != nil {
			log.Error("websocket recover:", err)
		}
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sess.Ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	if data, err := json.Marshal(ws.service.State()); err == nil {
		sess.Push(data)
	}

	for {
		_, bysMsg, err := wsConn.ReadMessage()
		if err != nil {
			log.Debugf("websocket read message error: %v", err)
			break
		}

		wsConn.SetReadDeadline(time.Now().Add(pongTimeout))

		go ws.OnDataHandle(r.Context(), sess, bysMsg)
	}
}

// OnDataHandle answers one JSON-RPC request from a renderer.
func (ws *WsServer) OnDataHandle(ctx context.Context, sess *session.Session, bysMsg []byte) {
	request := struct {
		ID     interface{}            `json:"id"`
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}{}

	var resp map[string]interface{}
	if err := json.Unmarshal(bysMsg, &request); err != nil {
		resp = common.JSONRPCError(nil, common.ParseError, "Parse error", nil)
	} else if handler, ok := ws.ActionMap[request.Method]; !ok {
		resp = common.JSONRPCError(request.ID, common.MethodNotFound, "Method not found", nil)
	} else {
		if request.Params == nil {
			request.Params = map[string]interface{}{}
		}
		if ws.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, ws.timeout)
			defer cancel()
		}
		resp = common.JSONRPCResponse(request.ID, handler(ws.service, request.Params, ctx))
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("websocket marshal response:", err)
		return
	}
	if err = sess.SendText(data); err != nil {
		log.Debugf("websocket send response error: %v", err)
	}
}

// PushState broadcasts a view state to every session.
func (ws *WsServer) PushState(state interface{}) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Error("Websocket PushState:", err)
		return
	}
	ws.Broadcast(data)
}

func (ws *WsServer) Broadcast(data []byte) {
	ws.SessionList.Each(func(s *session.Session) {
		s.Push(data)
	})
}
