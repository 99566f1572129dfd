// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClientShutdown is returned when a call is made on a closed client.
	ErrClientShutdown = errors.New("the client has been shutdown")

	// ErrUnexpectedID is wrapped by transports when a response does not
	// carry the id of the request it answers.
	ErrUnexpectedID = errors.New("response id does not match request id")

	// ErrNoMethod is returned when Send is called without a method.
	ErrNoMethod = errors.New("no method")
)

// TransportError reports that a request could not be delivered or its reply
// could not be read.  RPC-level errors reported by the node are not
// transport errors.
type TransportError struct {
	Method string
	Params string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send custom request (%s (%s)): %v",
		e.Method, e.Params, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnsupportedSchemeError is returned by New for endpoints that are neither
// HTTP nor WebSocket URLs.
type UnsupportedSchemeError struct {
	Endpoint string
}

func (e UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported rpc endpoint scheme: %s", e.Endpoint)
}
