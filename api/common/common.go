package common

import (
	"context"

	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/session"
	"github.com/remotechain/votesync/view"
	"github.com/remotechain/votesync/vote"
)

// JSON-RPC 2.0 reserved error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
)

// Service is what the API drives, implemented by session.Connector.
type Service interface {
	State() view.State
	Connect(ctx context.Context) (session.Session, error)
	Vote(ctx context.Context, id uint64) (vote.Transaction, error)
	SwitchNetwork(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Response for json API.
// err: nil on success, otherwise classified by errcode and never sent raw.
// result: the 'result' of JsonRPC on success.
func respPacking(err error, result interface{}) map[string]interface{} {
	resp := map[string]interface{}{
		"error":  err,
		"result": result,
	}
	return resp
}

func RespPacking(result interface{}, err error) map[string]interface{} {
	return respPacking(err, result)
}

func invalidParams(msg string) map[string]interface{} {
	return map[string]interface{}{
		"error":   nil,
		"invalid": msg,
	}
}

// JSONRPCResponse builds the JSON-RPC 2.0 envelope for a handler response.
func JSONRPCResponse(id interface{}, resp map[string]interface{}) map[string]interface{} {
	if msg, ok := resp["invalid"].(string); ok {
		return JSONRPCError(id, InvalidParams, "Invalid params", msg)
	}

	err, _ := resp["error"].(error)
	if err == nil {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"result":  resp["result"],
			"id":      id,
		}
	}

	code := errcode.CodeOf(err)
	return JSONRPCError(id, -int(code), errcode.Message(err), nil)
}

func JSONRPCError(id interface{}, code int, message string, data interface{}) map[string]interface{} {
	e := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		e["data"] = data
	}
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   e,
		"id":      id,
	}
}
