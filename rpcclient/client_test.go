// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handlerFunc answers one decoded request with a raw response body.
type handlerFunc func(req Request) []byte

func echoResult(req Request) []byte {
	params, _ := json.Marshal(req.Params)
	return []byte(`{"jsonrpc":"2.0","id":` + jsonID(req.ID) + `,"result":` + string(params) + `}`)
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func newHTTPServer(h handlerFunc) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write(h(req))
	}))
}

func newWSServer(h handlerFunc, notify bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, in, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Request
			if err := json.Unmarshal(in, &req); err != nil {
				return
			}
			if notify {
				note := `{"jsonrpc":"2.0","method":"chain_newHead","params":{"subscription":"x","result":{}}}`
				if err := conn.WriteMessage(mt, []byte(note)); err != nil {
					return
				}
			}
			if err := conn.WriteMessage(mt, h(req)); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestSendHTTPEchoesID(t *testing.T) {
	defer leaktest.Check(t)()

	s := newHTTPServer(echoResult)
	defer s.Close()

	c, err := New(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()
	require.False(t, c.IsWebSocket())

	resp, err := c.Send(context.Background(), "engine_createBlock", true, true, nil)
	require.NoError(t, err)
	require.True(t, resp.MatchesID(RequestID), "id %s", resp.ID)
	require.JSONEq(t, `[true,true,null]`, string(resp.Result))
}

func TestSendWSEchoesID(t *testing.T) {
	defer leaktest.Check(t)()

	s := newWSServer(echoResult, false)
	defer s.Close()

	c, err := New(context.Background(), wsURL(s))
	require.NoError(t, err)
	require.True(t, c.IsWebSocket())

	for i := 0; i < 3; i++ {
		resp, err := c.Send(context.Background(), "eth_blockNumber")
		require.NoError(t, err)
		require.True(t, resp.MatchesID(RequestID), "id %s", resp.ID)
		require.JSONEq(t, `[]`, string(resp.Result))
	}

	require.NoError(t, c.Close())
}

func TestSendWSSkipsNotifications(t *testing.T) {
	defer leaktest.Check(t)()

	s := newWSServer(echoResult, true)
	defer s.Close()

	c, err := New(context.Background(), wsURL(s))
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Send(context.Background(), "chain_getHeader", "0x01")
	require.NoError(t, err)
	require.JSONEq(t, `["0x01"]`, string(resp.Result))
}

func TestSendTransportError(t *testing.T) {
	s := newHTTPServer(echoResult)
	endpoint := s.URL
	s.Close()

	c, err := New(context.Background(), endpoint)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send(context.Background(), "engine_createBlock", true, false, nil)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "engine_createBlock", terr.Method)
	require.Equal(t, "true,false,", terr.Params)
	require.Contains(t, err.Error(), "failed to send custom request (engine_createBlock (true,false,))")
}

func TestSendIgnoresRPCError(t *testing.T) {
	s := newHTTPServer(func(req Request) []byte {
		return []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`)
	})
	defer s.Close()

	c, err := New(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Send(context.Background(), "foo_bar")
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrMethodNotFound, resp.Error.Code)
	require.False(t, resp.HasResult())

	err = c.Call(context.Background(), nil, "foo_bar")
	var rerr *RPCError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "Method not found", rerr.Message)
}

func TestCallDecodesResult(t *testing.T) {
	s := newHTTPServer(func(req Request) []byte {
		return []byte(`{"jsonrpc":"2.0","id":1,"result":"0x2a"}`)
	})
	defer s.Close()

	c, err := New(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()

	var chainID string
	require.NoError(t, c.Call(context.Background(), &chainID, "eth_chainId"))
	require.Equal(t, "0x2a", chainID)
}

func TestSendUnexpectedID(t *testing.T) {
	s := newHTTPServer(func(req Request) []byte {
		return []byte(`{"jsonrpc":"2.0","id":7,"result":true}`)
	})
	defer s.Close()

	c, err := New(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send(context.Background(), "engine_createBlock", true, true, nil)
	require.ErrorIs(t, err, ErrUnexpectedID)
}

func TestSendNullIDErrorReply(t *testing.T) {
	defer leaktest.Check(t)()

	reply := []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`)
	s := newHTTPServer(func(req Request) []byte { return reply })
	defer s.Close()
	ws := newWSServer(func(req Request) []byte { return reply }, false)
	defer ws.Close()

	for _, endpoint := range []string{s.URL, wsURL(ws)} {
		c, err := New(context.Background(), endpoint)
		require.NoError(t, err)

		resp, err := c.Send(context.Background(), "eth_chainId")
		require.NoError(t, err, endpoint)
		require.NotNil(t, resp.Error)
		require.Equal(t, ErrParse, resp.Error.Code)
		require.False(t, resp.HasResult())
		require.NoError(t, c.Close())
	}
}

func TestResponseMatchesID(t *testing.T) {
	tests := []struct {
		id    string
		match bool
	}{
		{``, true},
		{`null`, true},
		{`1`, true},
		{` 1 `, true},
		{`7`, false},
		{`"1"`, false},
	}
	for _, test := range tests {
		resp := Response{ID: json.RawMessage(test.id)}
		require.Equal(t, test.match, resp.MatchesID(RequestID), "id %q", test.id)
	}
}

func TestSendNoMethod(t *testing.T) {
	c := NewWithTransport("http://127.0.0.1:1", NewHTTPTransport("http://127.0.0.1:1"))
	_, err := c.Send(context.Background(), "")
	require.ErrorIs(t, err, ErrNoMethod)
}

func TestSendAfterClose(t *testing.T) {
	s := newHTTPServer(echoResult)
	defer s.Close()

	c, err := New(context.Background(), s.URL)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Send(context.Background(), "eth_chainId")
	require.ErrorIs(t, err, ErrClientShutdown)
}

func TestWSCancelledCallClosesConnection(t *testing.T) {
	defer leaktest.Check(t)()

	release := make(chan struct{})
	s := newWSServer(func(req Request) []byte {
		<-release
		return echoResult(req)
	}, false)
	defer s.Close()
	defer close(release)

	c, err := New(context.Background(), wsURL(s))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Send(ctx, "eth_blockNumber")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = c.Send(context.Background(), "eth_blockNumber")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
}

func TestNewUnsupportedScheme(t *testing.T) {
	_, err := New(context.Background(), "ipc:///tmp/node.ipc")
	var serr UnsupportedSchemeError
	require.True(t, errors.As(err, &serr))
}

func TestJoinParams(t *testing.T) {
	require.Equal(t, "", joinParams(nil))
	require.Equal(t, "true,true,", joinParams([]interface{}{true, true, nil}))
	require.Equal(t, "0x01,1", joinParams([]interface{}{"0x01", 1}))
}

func TestResponseHasResult(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"null", false},
		{" null ", false},
		{"false", true},
		{`{"hash":"0x01"}`, true},
	}
	for _, test := range tests {
		r := &Response{Result: json.RawMessage(test.raw)}
		require.Equal(t, test.want, r.HasResult(), test.raw)
	}
}
