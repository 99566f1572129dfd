// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPTransport posts each request to the node and reads one response from
// the reply body.
type HTTPTransport struct {
	endpoint  string
	transport *http.Transport
	client    *http.Client
}

// NewHTTPTransport returns a transport posting to endpoint.  No connection
// is made until the first request.
func NewHTTPTransport(endpoint string) *HTTPTransport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	return &HTTPTransport{
		endpoint:  endpoint,
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var resp Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("status code: %d, response: %q",
				httpResp.StatusCode, respBytes)
		}
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if !resp.MatchesID(req.ID) {
		return nil, errors.Wrapf(ErrUnexpectedID, "sent %d, got %s",
			req.ID, resp.ID)
	}

	return &resp, nil
}

// Close drops the idle keep-alive connections held by the transport.
func (t *HTTPTransport) Close() error {
	t.transport.CloseIdleConnections()
	return nil
}
