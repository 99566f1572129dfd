// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// Transport delivers one request and returns the matching response.
// Implementations only report delivery failures; the response error member
// is left to the caller.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// Client issues JSON-RPC calls to a node over a single transport.  It does
// not retry failed calls or reconnect broken connections.
type Client struct {
	endpoint  string
	scheme    string
	transport Transport

	mtx      sync.Mutex
	shutdown bool
}

// New connects a client to endpoint.  The transport is chosen from the URL
// scheme: http and https use HTTP POST, ws and wss use a WebSocket.
func New(ctx context.Context, endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rpc endpoint %q", endpoint)
	}

	var transport Transport
	switch u.Scheme {
	case "http", "https":
		transport = NewHTTPTransport(endpoint)
	case "ws", "wss":
		transport, err = DialWS(ctx, endpoint)
		if err != nil {
			return nil, err
		}
	default:
		return nil, UnsupportedSchemeError{Endpoint: endpoint}
	}

	log.Debugf("Connected %s rpc client to %s", u.Scheme, endpoint)

	return NewWithTransport(endpoint, transport), nil
}

// NewWithTransport returns a client sending its requests over transport.
func NewWithTransport(endpoint string, transport Transport) *Client {
	scheme := ""
	if u, err := url.Parse(endpoint); err == nil {
		scheme = u.Scheme
	}
	return &Client{
		endpoint:  endpoint,
		scheme:    scheme,
		transport: transport,
	}
}

// Endpoint returns the URL the client was created for.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// IsWebSocket reports whether the client talks to the node over a WebSocket.
func (c *Client) IsWebSocket() bool {
	return c.scheme == "ws" || c.scheme == "wss"
}

// Send issues method with params and returns the raw response.  The error
// member of the response is not inspected.  A failure to deliver the request
// or read the reply is returned as a *TransportError.
func (c *Client) Send(ctx context.Context, method string,
	params ...interface{}) (*Response, error) {

	if method == "" {
		return nil, ErrNoMethod
	}

	c.mtx.Lock()
	shutdown := c.shutdown
	c.mtx.Unlock()

	req := NewRequest(method, params)
	if shutdown {
		return nil, &TransportError{
			Method: method,
			Params: joinParams(req.Params),
			Err:    ErrClientShutdown,
		}
	}

	log.Tracef("Sending request to %s: %v", c.endpoint, newLogClosure(func() string {
		return spew.Sdump(req)
	}))

	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		return nil, &TransportError{
			Method: method,
			Params: joinParams(req.Params),
			Err:    err,
		}
	}

	log.Tracef("Received response from %s: %v", c.endpoint, newLogClosure(func() string {
		return spew.Sdump(resp)
	}))

	return resp, nil
}

// Call issues method and decodes the result into result, which may be nil
// to discard it.  An error member in the response is returned as *RPCError.
func (c *Client) Call(ctx context.Context, result interface{}, method string,
	params ...interface{}) error {

	resp, err := c.Send(ctx, method, params...)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || !resp.HasResult() {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return errors.Wrapf(err, "unable to decode %s result", method)
	}
	return nil
}

// Close shuts the client down and releases its transport.  Calls made after
// Close fail with ErrClientShutdown.
func (c *Client) Close() error {
	c.mtx.Lock()
	if c.shutdown {
		c.mtx.Unlock()
		return nil
	}
	c.shutdown = true
	c.mtx.Unlock()

	log.Debugf("Closing rpc client to %s", c.endpoint)
	return c.transport.Close()
}
