package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/remotechain/votesync/api/httpjson/client"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/session"
	"github.com/remotechain/votesync/view"
	"github.com/remotechain/votesync/vote"
	"github.com/stretchr/testify/require"
)

type service struct {
	state view.State
	err   error
}

func (s *service) State() view.State {
	return s.state
}

func (s *service) Connect(ctx context.Context) (session.Session, error) {
	if s.err != nil {
		return session.Session{}, s.err
	}
	return session.Session{Epoch: 1, ChainID: 8119}, nil
}

func (s *service) Vote(ctx context.Context, id uint64) (vote.Transaction, error) {
	if s.err != nil {
		return vote.Transaction{}, s.err
	}
	return vote.Transaction{Phase: vote.PendingInclusion, CandidateID: id}, nil
}

func (s *service) SwitchNetwork(ctx context.Context) error {
	return s.err
}

func (s *service) Refresh(ctx context.Context) error {
	return s.err
}

func newService() *service {
	return &service{state: view.State{
		Epoch:       1,
		Status:      view.Connected,
		Candidates:  []view.Candidate{},
		Transaction: view.Tx{Phase: "idle"},
	}}
}

func post(t *testing.T, h http.Handler, body string) map[string]interface{} {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// go test -v -run=TestHandle
func TestHandle(t *testing.T) {
	s := newService()
	h := NewServer(s, nil).Engine()

	resp := post(t, h, `{"jsonrpc":"2.0","id":1,"method":"vote","params":{"candidate":2}}`)
	require.Equal(t, float64(1), resp["id"])
	result := resp["result"].(map[string]interface{})
	require.Equal(t, "pending-inclusion", result["phase"])
	require.Equal(t, float64(2), result["candidateId"])

	resp = post(t, h, `{"jsonrpc":"2.0","id":2,"method":"vote","params":{}}`)
	require.Equal(t, float64(-32602), resp["error"].(map[string]interface{})["code"])

	resp = post(t, h, `{"jsonrpc":"2.0","id":3,"method":"nope"}`)
	require.Equal(t, float64(-32601), resp["error"].(map[string]interface{})["code"])

	resp = post(t, h, `{"jsonrpc":`)
	require.Equal(t, float64(-32700), resp["error"].(map[string]interface{})["code"])

	s.err = errcode.New(errcode.ErrWrongNetwork, nil, "")
	resp = post(t, h, `{"jsonrpc":"2.0","id":4,"method":"connect"}`)
	e := resp["error"].(map[string]interface{})
	require.Equal(t, float64(-errcode.ErrWrongNetwork), e["code"])
	require.Equal(t, errcode.ErrCode2Str[errcode.ErrWrongNetwork], e["message"])
}

// go test -v -run=TestRoutes
func TestRoutes(t *testing.T) {
	h := NewServer(newService(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).Engine()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	state := view.State{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, view.Connected, state.Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// go test -v -run=TestClient
func TestClient(t *testing.T) {
	s := newService()
	server := httptest.NewServer(NewServer(s, nil).Engine())
	defer server.Close()

	state, err := client.GetState(server.URL)
	require.NoError(t, err)
	require.Contains(t, string(state), `"status":"connected"`)

	sess, err := client.Connect(server.URL)
	require.NoError(t, err)
	require.Contains(t, string(sess), `"chainId":8119`)

	tx, err := client.Vote(server.URL, 3)
	require.NoError(t, err)
	require.Contains(t, string(tx), `"candidateId":3`)

	require.NoError(t, client.SwitchNetwork(server.URL))

	s.err = errcode.New(errcode.ErrAlreadyVoted, nil, "")
	_, err = client.Vote(server.URL, 3)
	rpcErr, ok := err.(*client.RPCError)
	require.True(t, ok)
	require.Equal(t, -int(errcode.ErrAlreadyVoted), rpcErr.Code)

	_, err = client.Refresh(server.URL)
	require.Error(t, err)
}
