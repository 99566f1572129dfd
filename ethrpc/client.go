// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ethrpc is a stateless client for the execution layer RPC of a
// frontier node.  The network is fixed when the client is built so no
// request is sent before the first call.
package ethrpc

import (
	"context"
	"math/big"
	"net/url"

	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/pkg/errors"
)

// Block tags accepted wherever a block number is expected.
const (
	Latest    = "latest"
	Earliest  = "earliest"
	Pending   = "pending"
	Finalized = "finalized"
)

// ErrBlockNotFound is returned when the node does not know the requested
// block.
var ErrBlockNotFound = errors.New("block not found")

// BlockTag returns the tag addressing the block at number.
func BlockTag(number uint64) string {
	return rpcclient.EncodeQuantity(number)
}

// Network identifies the chain a client is bound to.
type Network struct {
	ChainID uint64
	Name    string
}

// Block is the subset of an execution block the harness reads.
type Block struct {
	Number       string   `json:"number"`
	Hash         string   `json:"hash"`
	ParentHash   string   `json:"parentHash"`
	Timestamp    string   `json:"timestamp"`
	Transactions []string `json:"transactions"`
}

// BlockNumber decodes the hex encoded block number.
func (b *Block) BlockNumber() (uint64, error) {
	return rpcclient.DecodeQuantity(b.Number)
}

// Client is an execution layer client over HTTP.
type Client struct {
	rpc     *rpcclient.Client
	network Network
}

// NewStatic returns a client for endpoint bound to network.  Unlike a
// discovering client it never asks the node for its chain id.
func NewStatic(endpoint string, network Network) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid execution endpoint %q", endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, rpcclient.UnsupportedSchemeError{Endpoint: endpoint}
	}

	log.Debugf("Execution client for %s (chain id %d) at %s", network.Name,
		network.ChainID, endpoint)

	rpc := rpcclient.NewWithTransport(endpoint, rpcclient.NewHTTPTransport(endpoint))
	return &Client{rpc: rpc, network: network}, nil
}

// Network returns the network the client was built for.
func (c *Client) Network() Network {
	return c.network
}

func (c *Client) quantity(ctx context.Context, method string, params ...interface{}) (uint64, error) {
	var hex string
	if err := c.rpc.Call(ctx, &hex, method, params...); err != nil {
		return 0, err
	}
	v, err := rpcclient.DecodeQuantity(hex)
	if err != nil {
		return 0, errors.Wrapf(err, "bad %s result", method)
	}
	return v, nil
}

// ChainID asks the node for its chain id.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	return c.quantity(ctx, "eth_chainId")
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.quantity(ctx, "eth_blockNumber")
}

// GetTransactionCount returns the nonce of address at the given block tag.
func (c *Client) GetTransactionCount(ctx context.Context, address, tag string) (uint64, error) {
	return c.quantity(ctx, "eth_getTransactionCount", address, tag)
}

// GetBalance returns the balance of address, in wei, at the given block tag.
func (c *Client) GetBalance(ctx context.Context, address, tag string) (*big.Int, error) {
	var hex string
	if err := c.rpc.Call(ctx, &hex, "eth_getBalance", address, tag); err != nil {
		return nil, err
	}
	v, err := rpcclient.DecodeBig(hex)
	if err != nil {
		return nil, errors.Wrap(err, "bad eth_getBalance result")
	}
	return v, nil
}

// GetBlockByNumber returns the block at tag.  Transactions are returned as
// hashes.
func (c *Client) GetBlockByNumber(ctx context.Context, tag string) (*Block, error) {
	var block *Block
	if err := c.rpc.Call(ctx, &block, "eth_getBlockByNumber", tag, false); err != nil {
		return nil, err
	}
	if block == nil {
		return nil, errors.Wrapf(ErrBlockNotFound, "block %s", tag)
	}
	return block, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}
