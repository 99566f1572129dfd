// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Version is the JSON-RPC protocol version placed in every request.
	Version = "2.0"

	// RequestID is the id used by every request sent through Send.  Calls
	// on one client are never in flight concurrently, so a constant id is
	// enough to pair a response with its request.
	RequestID uint64 = 1
)

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// NewRequest returns a request for method with the constant request id.
// Nil params are marshalled as "[]" instead of "null".
func NewRequest(method string, params []interface{}) *Request {
	if params == nil {
		params = []interface{}{}
	}
	return &Request{
		Jsonrpc: Version,
		ID:      RequestID,
		Method:  method,
		Params:  params,
	}
}

// RPCErrorCode is a JSON-RPC error code.
type RPCErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	ErrParse          RPCErrorCode = -32700
	ErrInvalidRequest RPCErrorCode = -32600
	ErrMethodNotFound RPCErrorCode = -32601
	ErrInvalidParams  RPCErrorCode = -32602
	ErrInternal       RPCErrorCode = -32603
)

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    RPCErrorCode    `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Guarantee RPCError satisfies the builtin error interface.
var _, _ error = RPCError{}, (*RPCError)(nil)

// Error returns a string describing the RPC error.
func (e RPCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewRPCError returns a JSON-RPC error suitable for a Response.
func NewRPCError(code RPCErrorCode, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// Response is a JSON-RPC 2.0 response object.  Result is kept raw so callers
// decide how to interpret it; a missing result and a null result are both
// reported by HasResult as absent.  ID is kept raw as well since a server
// that could not read the request id answers with a null id.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// EncodeID returns the JSON form of a request id for a Response.
func EncodeID(id uint64) json.RawMessage {
	return json.RawMessage(strconv.FormatUint(id, 10))
}

// MatchesID reports whether the response answers the request with the given
// id.  A missing or null id matches: only one request is in flight per
// client, and such replies carry the server's error for it.
func (r *Response) MatchesID(id uint64) bool {
	trimmed := bytes.TrimSpace(r.ID)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var got uint64
	if err := json.Unmarshal(trimmed, &got); err != nil {
		return false
	}
	return got == id
}

// HasResult reports whether the response carries a non-null result.
func (r *Response) HasResult() bool {
	trimmed := bytes.TrimSpace(r.Result)
	return len(trimmed) != 0 && !bytes.Equal(trimmed, []byte("null"))
}

// String returns the JSON form of the response, used in error messages.
func (r *Response) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	return string(b)
}

// joinParams renders params the way they are reported in transport errors:
// comma separated, nulls rendered empty.
func joinParams(params []interface{}) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}
