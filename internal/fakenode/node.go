// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fakenode provides an in-process stand-in for a manual seal node:
// HTTP and WebSocket JSON-RPC servers backed by a small block counter, and a
// process spawner whose output is scripted.
package fakenode

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/manualseal"
	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/gorilla/websocket"
)

// Header is the substrate style header served by chain_getHeader.
type Header struct {
	ParentHash     string `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
}

// Node serves the subset of the node RPC used by the harness.
type Node struct {
	HTTP *httptest.Server
	WS   *httptest.Server

	upgrader websocket.Upgrader

	mtx          sync.Mutex
	hashes       []string
	finalized    uint64
	chainID      uint64
	createResult json.RawMessage
	balances     map[string]string
	calls        map[string]int
}

// New starts the HTTP and WebSocket servers of a node holding only the
// genesis block.
func New() *Node {
	n := &Node{
		hashes:   []string{blockHash(0)},
		chainID:  config.DefaultChainID,
		balances: make(map[string]string),
		calls:    make(map[string]int),
	}
	n.HTTP = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	n.WS = httptest.NewServer(http.HandlerFunc(n.serveWS))
	return n
}

// Close shuts both servers down.
func (n *Node) Close() {
	n.WS.CloseClientConnections()
	n.WS.Close()
	n.HTTP.Close()
}

// Config returns base with the ports of the fake servers.
func (n *Node) Config(base config.Config) config.Config {
	base.Host = config.DefaultHost
	base.RPCPort = serverPort(n.HTTP)
	base.WSPort = serverPort(n.WS)
	for base.P2PPort == base.RPCPort || base.P2PPort == base.WSPort {
		base.P2PPort++
	}
	base.ChainID = n.chainID
	return base
}

func serverPort(s *httptest.Server) int {
	u, err := url.Parse(s.URL)
	if err != nil {
		panic(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		panic(err)
	}
	return port
}

// BlockNumber returns the number of the best block.
func (n *Node) BlockNumber() uint64 {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return uint64(len(n.hashes) - 1)
}

// FinalizedNumber returns the number of the last finalized block.
func (n *Node) FinalizedNumber() uint64 {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.finalized
}

// Calls returns how many times method was called.
func (n *Node) Calls(method string) int {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.calls[method]
}

// SetCreateBlockResult makes engine_createBlock answer with the raw result
// without producing a block.  An empty string restores normal behavior.
func (n *Node) SetCreateBlockResult(raw string) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if raw == "" {
		n.createResult = nil
		return
	}
	n.createResult = json.RawMessage(raw)
}

// SetBalance sets the balance, a hex quantity, reported for address.
func (n *Node) SetBalance(address, balance string) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.balances[strings.ToLower(address)] = balance
}

func blockHash(number uint64) string {
	return fmt.Sprintf("0x%064x", number+1)
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := n.handleRaw(body)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (n *Node) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		out, err := json.Marshal(n.handleRaw(msg))
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, out); err != nil {
			return
		}
	}
}

// request mirrors rpcclient.Request with raw params.
type request struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (n *Node) handleRaw(body []byte) *rpcclient.Response {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return &rpcclient.Response{
			Jsonrpc: rpcclient.Version,
			ID:      json.RawMessage("null"),
			Error:   rpcclient.NewRPCError(rpcclient.ErrParse, "Parse error"),
		}
	}

	resp := &rpcclient.Response{Jsonrpc: rpcclient.Version, ID: rpcclient.EncodeID(req.ID)}
	result, rerr := n.handle(req)
	if rerr != nil {
		resp.Error = rerr
		return resp
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = rpcclient.NewRPCError(rpcclient.ErrInternal, err.Error())
		return resp
	}
	resp.Result = raw
	return resp
}

func param(params []json.RawMessage, i int, v interface{}) bool {
	if i >= len(params) {
		return false
	}
	return json.Unmarshal(params[i], v) == nil
}

func (n *Node) handle(req request) (interface{}, *rpcclient.RPCError) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.calls[req.Method]++
	best := uint64(len(n.hashes) - 1)

	switch req.Method {
	case manualseal.CreateBlockMethod:
		if n.createResult != nil {
			return n.createResult, nil
		}
		var create, finalize bool
		if !param(req.Params, 0, &create) || !param(req.Params, 1, &finalize) {
			return nil, rpcclient.NewRPCError(rpcclient.ErrInvalidParams, "Invalid params")
		}
		number := best + 1
		n.hashes = append(n.hashes, blockHash(number))
		if finalize {
			n.finalized = number
		}
		return &manualseal.CreatedBlock{
			Hash: blockHash(number),
			Aux:  manualseal.ImportedAux{IsNewBest: true},
		}, nil

	case manualseal.FinalizeBlockMethod:
		var hash string
		if !param(req.Params, 0, &hash) {
			return nil, rpcclient.NewRPCError(rpcclient.ErrInvalidParams, "Invalid params")
		}
		for i, h := range n.hashes {
			if h == hash {
				if uint64(i) > n.finalized {
					n.finalized = uint64(i)
				}
				return true, nil
			}
		}
		return nil, rpcclient.NewRPCError(rpcclient.ErrInternal, "Unknown block")

	case "eth_blockNumber":
		return rpcclient.EncodeQuantity(best), nil

	case "eth_chainId":
		return rpcclient.EncodeQuantity(n.chainID), nil

	case "net_version":
		return strconv.FormatUint(n.chainID, 10), nil

	case "eth_getBalance":
		var address string
		param(req.Params, 0, &address)
		if balance, ok := n.balances[strings.ToLower(address)]; ok {
			return balance, nil
		}
		return "0x0", nil

	case "eth_getTransactionCount":
		return "0x0", nil

	case "eth_getBlockByNumber":
		var tag string
		param(req.Params, 0, &tag)
		number, ok := n.resolveTag(tag)
		if !ok {
			return nil, nil
		}
		parent := blockHash(0)
		if number > 0 {
			parent = n.hashes[number-1]
		}
		return map[string]interface{}{
			"number":       rpcclient.EncodeQuantity(number),
			"hash":         n.hashes[number],
			"parentHash":   parent,
			"timestamp":    rpcclient.EncodeQuantity(number * 6),
			"transactions": []string{},
		}, nil

	case "system_chain":
		return "Development", nil

	case "system_name":
		return config.NodeBinaryName, nil

	case "chain_getBlockHash":
		var number uint64
		if !param(req.Params, 0, &number) {
			return n.hashes[best], nil
		}
		if number > best {
			return nil, nil
		}
		return n.hashes[number], nil

	case "chain_getFinalizedHead":
		return n.hashes[n.finalized], nil

	case "chain_getHeader":
		number := best
		var hash string
		if param(req.Params, 0, &hash) && hash != "" {
			found := false
			for i, h := range n.hashes {
				if h == hash {
					number, found = uint64(i), true
					break
				}
			}
			if !found {
				return nil, nil
			}
		}
		parent := blockHash(0)
		if number > 0 {
			parent = n.hashes[number-1]
		}
		return &Header{
			ParentHash:     parent,
			Number:         rpcclient.EncodeQuantity(number),
			StateRoot:      fmt.Sprintf("0x%064x", 0),
			ExtrinsicsRoot: fmt.Sprintf("0x%064x", 0),
		}, nil
	}

	return nil, rpcclient.NewRPCError(rpcclient.ErrMethodNotFound, "Method not found")
}

// resolveTag maps an execution block tag to a block number.  Called with
// n.mtx held.
func (n *Node) resolveTag(tag string) (uint64, bool) {
	best := uint64(len(n.hashes) - 1)
	switch tag {
	case "", "latest", "pending":
		return best, true
	case "earliest":
		return 0, true
	case "finalized", "safe":
		return n.finalized, true
	}
	number, err := strconv.ParseUint(strings.TrimPrefix(tag, "0x"), 16, 64)
	if err != nil || number > best {
		return 0, false
	}
	return number, true
}
