// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainapi is a small client for the chain level RPC of a substrate
// based node.  It always talks to the node over a WebSocket and carries the
// signed extensions the runtime declares.
package chainapi

import (
	"context"
	"net/url"
	"sync"

	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/pkg/errors"
)

// ErrBlockNotFound is returned when the node does not know the requested
// block.
var ErrBlockNotFound = errors.New("block not found")

// Header is a block header as returned by chain_getHeader.
type Header struct {
	ParentHash     string `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
}

// BlockNumber decodes the hex encoded header number.
func (h *Header) BlockNumber() (uint64, error) {
	return rpcclient.DecodeQuantity(h.Number)
}

// Client is a chain API client bound to one WebSocket connection.
type Client struct {
	rpc        *rpcclient.Client
	extensions *registry

	mtx       sync.Mutex
	connected bool
}

// Dial connects to the WebSocket endpoint and registers the given signed
// extensions.
func Dial(ctx context.Context, endpoint string, extensions ...SignedExtension) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid chain api endpoint %q", endpoint)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, rpcclient.UnsupportedSchemeError{Endpoint: endpoint}
	}

	reg := newRegistry()
	for _, ext := range extensions {
		if err := reg.add(ext); err != nil {
			return nil, err
		}
	}

	rpc, err := rpcclient.New(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect chain api")
	}

	log.Debugf("Chain api connected to %s with %d signed extensions",
		endpoint, len(extensions))

	return &Client{
		rpc:        rpc,
		extensions: reg,
		connected:  true,
	}, nil
}

// SignedExtensions returns the registered extensions in registration order.
func (c *Client) SignedExtensions() []SignedExtension {
	return c.extensions.all()
}

// SignedExtension returns the registered extension with the given name.
func (c *Client) SignedExtension(name string) (SignedExtension, bool) {
	return c.extensions.get(name)
}

// RPC returns the underlying rpc client.
func (c *Client) RPC() *rpcclient.Client {
	return c.rpc
}

// IsConnected reports whether Disconnect has not been called yet.
func (c *Client) IsConnected() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.connected
}

// Chain returns the chain name reported by system_chain.
func (c *Client) Chain(ctx context.Context) (string, error) {
	var chain string
	if err := c.rpc.Call(ctx, &chain, "system_chain"); err != nil {
		return "", err
	}
	return chain, nil
}

// Name returns the node implementation name reported by system_name.
func (c *Client) Name(ctx context.Context) (string, error) {
	var name string
	if err := c.rpc.Call(ctx, &name, "system_name"); err != nil {
		return "", err
	}
	return name, nil
}

// Header returns the header of the block with the given hash, or of the best
// block when hash is empty.
func (c *Client) Header(ctx context.Context, hash string) (*Header, error) {
	var params []interface{}
	if hash != "" {
		params = append(params, hash)
	}

	var header *Header
	if err := c.rpc.Call(ctx, &header, "chain_getHeader", params...); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, errors.Wrapf(ErrBlockNotFound, "header %s", hash)
	}
	return header, nil
}

// BestNumber returns the number of the best block.
func (c *Client) BestNumber(ctx context.Context) (uint64, error) {
	header, err := c.Header(ctx, "")
	if err != nil {
		return 0, err
	}
	return header.BlockNumber()
}

// BlockHash returns the hash of the block at the given height.
func (c *Client) BlockHash(ctx context.Context, number uint64) (string, error) {
	var hash *string
	if err := c.rpc.Call(ctx, &hash, "chain_getBlockHash", number); err != nil {
		return "", err
	}
	if hash == nil {
		return "", errors.Wrapf(ErrBlockNotFound, "block %d", number)
	}
	return *hash, nil
}

// FinalizedHead returns the hash of the last finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (string, error) {
	var hash string
	if err := c.rpc.Call(ctx, &hash, "chain_getFinalizedHead"); err != nil {
		return "", err
	}
	return hash, nil
}

// Disconnect closes the connection.  It is safe to call more than once.
func (c *Client) Disconnect() error {
	c.mtx.Lock()
	if !c.connected {
		c.mtx.Unlock()
		return nil
	}
	c.connected = false
	c.mtx.Unlock()

	log.Debugf("Disconnecting chain api from %s", c.rpc.Endpoint())
	return c.rpc.Close()
}
