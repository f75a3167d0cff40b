package common

import (
	"context"
	"math"
	"strconv"
)

const (
	BIT_JSONRPC   byte = 1
	BIT_WEBSOCKET byte = 2
)

type Handler func(Service, map[string]interface{}, context.Context) map[string]interface{}

type APIHandler struct {
	Handler    Handler
	AccessCtrl byte
}

// IsAccessableByJsonrpc return true if the handler is
// able to be invoked by jsonrpc
func (ah *APIHandler) IsAccessableByJsonrpc() bool {
	return ah.AccessCtrl&BIT_JSONRPC == BIT_JSONRPC
}

// IsAccessableByWebsocket return true if the handler is
// able to be invoked by websocket
func (ah *APIHandler) IsAccessableByWebsocket() bool {
	return ah.AccessCtrl&BIT_WEBSOCKET == BIT_WEBSOCKET
}

// getState returns the current view state
// params: {}
// return: {"result":<state>, "error":<error>}
func getState(s Service, params map[string]interface{}, ctx context.Context) map[string]interface{} {
	return respPacking(nil, s.State())
}

// connect connects the wallet and binds the ballot
// params: {}
// return: {"result":<session>, "error":<error>}
func connect(s Service, params map[string]interface{}, ctx context.Context) map[string]interface{} {
	sess, err := s.Connect(ctx)
	if err != nil {
		return respPacking(err, nil)
	}
	return respPacking(nil, sess)
}

// castVote submits a vote
// params: {"candidate":<candidate id>}
// return: {"result":<transaction>, "error":<error>}
func castVote(s Service, params map[string]interface{}, ctx context.Context) map[string]interface{} {
	id, err := parseCandidateID(params["candidate"])
	if err != nil {
		return invalidParams(err.Error())
	}
	tx, err := s.Vote(ctx, id)
	if err != nil {
		return respPacking(err, nil)
	}
	return respPacking(nil, tx)
}

// switchNetwork asks the wallet to move to the expected network
// params: {}
// return: {"result":true, "error":<error>}
func switchNetwork(s Service, params map[string]interface{}, ctx context.Context) map[string]interface{} {
	if err := s.SwitchNetwork(ctx); err != nil {
		return respPacking(err, nil)
	}
	return respPacking(nil, true)
}

// refresh re-reads tally and voter status
// params: {}
// return: {"result":<state>, "error":<error>}
func refresh(s Service, params map[string]interface{}, ctx context.Context) map[string]interface{} {
	if err := s.Refresh(ctx); err != nil {
		return respPacking(err, nil)
	}
	return respPacking(nil, s.State())
}

type paramError string

func (e paramError) Error() string {
	return string(e)
}

func parseCandidateID(v interface{}) (uint64, error) {
	switch id := v.(type) {
	case float64:
		if id < 0 || id != math.Trunc(id) || id >= math.MaxUint64 {
			return 0, paramError("candidate should be a non-negative integer")
		}
		return uint64(id), nil
	case string:
		n, err := strconv.ParseUint(id, 0, 64)
		if err != nil {
			return 0, paramError("candidate should be a non-negative integer")
		}
		return n, nil
	case nil:
		return 0, paramError("candidate is required")
	}
	return 0, paramError("candidate should be a non-negative integer")
}

var InitialAPIHandlers = map[string]APIHandler{
	"getstate":      {Handler: getState, AccessCtrl: BIT_JSONRPC | BIT_WEBSOCKET},
	"connect":       {Handler: connect, AccessCtrl: BIT_JSONRPC | BIT_WEBSOCKET},
	"vote":          {Handler: castVote, AccessCtrl: BIT_JSONRPC | BIT_WEBSOCKET},
	"switchnetwork": {Handler: switchNetwork, AccessCtrl: BIT_JSONRPC | BIT_WEBSOCKET},
	"refresh":       {Handler: refresh, AccessCtrl: BIT_JSONRPC | BIT_WEBSOCKET},
}
