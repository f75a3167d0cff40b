package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 5 * time.Minute

var httpClient = &http.Client{Timeout: requestTimeout}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Call sends RPC request to server
func Call(address string, method string, id interface{}, params map[string]interface{}) ([]byte, error) {
	data, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      id,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal JSON request: %v", err)
	}
	resp, err := httpClient.Post(address, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("POST request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST request: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %v", err)
	}

	return body, nil
}

// CallResult calls method and decodes the result into result, returning the
// JSON-RPC error as an *RPCError.
func CallResult(address string, method string, params map[string]interface{}, result interface{}) error {
	body, err := Call(address, method, 1, params)
	if err != nil {
		return err
	}

	resp := &Response{}
	if err := json.Unmarshal(body, resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}

func GetState(remote string) (json.RawMessage, error) {
	var state json.RawMessage
	err := CallResult(remote, "getstate", map[string]interface{}{}, &state)
	return state, err
}

func Connect(remote string) (json.RawMessage, error) {
	var session json.RawMessage
	err := CallResult(remote, "connect", map[string]interface{}{}, &session)
	return session, err
}

func Vote(remote string, candidate uint64) (json.RawMessage, error) {
	var tx json.RawMessage
	err := CallResult(remote, "vote", map[string]interface{}{
		"candidate": candidate,
	}, &tx)
	return tx, err
}

func SwitchNetwork(remote string) error {
	return CallResult(remote, "switchnetwork", map[string]interface{}{}, nil)
}

func Refresh(remote string) (json.RawMessage, error) {
	var state json.RawMessage
	err := CallResult(remote, "refresh", map[string]interface{}{}, &state)
	return state, err
}
