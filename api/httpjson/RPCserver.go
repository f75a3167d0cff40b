package httpjson

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remotechain/votesync/api/common"
	"github.com/remotechain/votesync/api/ratelimiter"
	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/util/log"
)

const maxRequestSize = 1 << 16

type RPCServer struct {
	sync.RWMutex
	//keeps track of every function to be called on specific rpc call
	handlers map[string]common.Handler

	service  common.Service
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	timeout  time.Duration
}

// NewServer creates the API server. ws, if not nil, is mounted on GET /ws.
func NewServer(service common.Service, ws http.Handler) *RPCServer {
	gin.SetMode(gin.ReleaseMode)

	s := &RPCServer{
		handlers: make(map[string]common.Handler),
		service:  service,
		engine:   gin.New(),
		timeout:  config.Parameters.Timeout(),
	}

	for name, handler := range common.InitialAPIHandlers {
		if handler.IsAccessableByJsonrpc() {
			s.HandleFunc(name, handler.Handler)
		}
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.WebLog.Infof("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
		return ""
	}))
	s.engine.Use(rateLimit)

	s.engine.POST("/", s.Handle)

	api := s.engine.Group("/api")
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.service.State())
	})

	if ws != nil {
		s.engine.GET("/ws", gin.WrapH(ws))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, "not found")
	})

	return s
}

func rateLimit(c *gin.Context) {
	limiter := ratelimiter.GetLimiter("api:"+c.ClientIP(), config.Parameters.APIIPRateLimit, int(config.Parameters.APIIPRateBurst))
	if !limiter.Allow() {
		log.WebLog.Warningf("Rate limit exceeded for %s", c.ClientIP())
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.Next()
}

func (s *RPCServer) Engine() http.Handler {
	return s.engine
}

//a function to register functions to be called for specific rpc calls
func (s *RPCServer) HandleFunc(pattern string, handler common.Handler) {
	s.Lock()
	defer s.Unlock()
	s.handlers[pattern] = handler
}

//this is the funciton that should be called in order to answer an rpc call
func (s *RPCServer) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestSize))
	if err != nil {
		log.Error("HTTP JSON RPC Handle - io.ReadAll: ", err)
		c.JSON(http.StatusOK, common.JSONRPCError(nil, common.ParseError, "Parse error", nil))
		return
	}

	request := struct {
		ID     interface{}            `json:"id"`
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}{}
	if err = json.Unmarshal(body, &request); err != nil {
		log.Warning("HTTP JSON RPC Handle - json.Unmarshal: ", err)
		c.JSON(http.StatusOK, common.JSONRPCError(nil, common.ParseError, "Parse error", nil))
		return
	}
	if request.Params == nil {
		request.Params = map[string]interface{}{}
	}

	s.RLock()
	function, ok := s.handlers[request.Method]
	s.RUnlock()
	if !ok {
		log.Warning("HTTP JSON RPC Handle - No function to call for ", request.Method)
		c.JSON(http.StatusOK, common.JSONRPCError(request.ID, common.MethodNotFound, "Method not found",
			"The called method was not found on the server"))
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	response := function(s.service, request.Params, ctx)
	c.JSON(http.StatusOK, common.JSONRPCResponse(request.ID, response))
}

func (s *RPCServer) Start() error {
	addr := net.JoinHostPort(config.Parameters.APIListenAddress, strconv.Itoa(int(config.Parameters.APIPort)))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("net.Listen: ", err.Error())
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.engine}

	log.Infof("API server listening on %s", listener.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("API server stopped: %v", err)
		}
	}()
	return nil
}

func (s *RPCServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *RPCServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
