// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// closeTimeout bounds the close handshake sent on Close.
const closeTimeout = time.Second

// WSTransport sends requests over one WebSocket connection.  Requests are
// serialized: a request is written only after the previous one was answered.
// Messages carrying a method, such as subscription notifications, are
// skipped while waiting for a response.
type WSTransport struct {
	endpoint string
	conn     *websocket.Conn

	// sendMtx keeps a single request in flight.
	sendMtx sync.Mutex

	incoming chan []byte
	quit     chan struct{}
	done     chan struct{}

	errMtx  sync.Mutex
	readErr error

	closeOnce sync.Once
	closeErr  error
}

// DialWS opens a WebSocket connection to endpoint.
func DialWS(ctx context.Context, endpoint string) (*WSTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial %s", endpoint)
	}

	t := &WSTransport{
		endpoint: endpoint,
		conn:     conn,
		incoming: make(chan []byte),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.readLoop()

	return t, nil
}

// readLoop hands every inbound message to the waiting request until the
// connection fails or the transport is closed.
func (t *WSTransport) readLoop() {
	defer close(t.done)

	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			t.errMtx.Lock()
			t.readErr = err
			t.errMtx.Unlock()
			return
		}

		select {
		case t.incoming <- msg:
		case <-t.quit:
			return
		}
	}
}

func (t *WSTransport) err() error {
	t.errMtx.Lock()
	defer t.errMtx.Unlock()
	if t.readErr == nil {
		return ErrClientShutdown
	}
	return t.readErr
}

// RoundTrip implements Transport.
func (t *WSTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	t.sendMtx.Lock()
	defer t.sendMtx.Unlock()

	select {
	case <-t.done:
		return nil, errors.Wrap(t.err(), "connection closed")
	default:
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return nil, errors.Wrap(err, "failed to write request")
	}

	for {
		select {
		case msg := <-t.incoming:
			var probe struct {
				Method string `json:"method"`
			}
			if err := json.Unmarshal(msg, &probe); err == nil && probe.Method != "" {
				log.Tracef("Skipping notification %s from %s", probe.Method, t.endpoint)
				continue
			}

			var resp Response
			if err := json.Unmarshal(msg, &resp); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal response")
			}
			if !resp.MatchesID(req.ID) {
				return nil, errors.Wrapf(ErrUnexpectedID, "sent %d, got %s",
					req.ID, resp.ID)
			}
			return &resp, nil

		case <-t.done:
			return nil, errors.Wrap(t.err(), "connection closed")

		case <-ctx.Done():
			// A late reply would be taken for the answer to the next
			// request, so the connection is not reused.
			t.Close()
			return nil, ctx.Err()
		}
	}
}

// Close sends a close frame, closes the connection and waits for the read
// loop to exit.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.quit)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg,
			time.Now().Add(closeTimeout))
		t.closeErr = t.conn.Close()
		<-t.done
	})
	return t.closeErr
}
