// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bundle connects the three clients a test uses to talk to a node:
// a raw rpc client over the selected transport, a chain api client over the
// WebSocket and an execution client over HTTP.
package bundle

import (
	"context"
	stderrors "errors"

	"github.com/btcsuite/sealharness/chainapi"
	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/ethrpc"
	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/pkg/errors"
)

// Bundle holds the clients connected to one node.
type Bundle struct {
	RPC   *rpcclient.Client
	Chain *chainapi.Client
	Eth   *ethrpc.Client
}

// Connect builds the clients for the node described by cfg.  RPC uses the
// given transport, Chain always uses the WebSocket and Eth always uses HTTP
// with the configured chain id.  Clients connected before a failure are
// closed.
func Connect(ctx context.Context, cfg config.Config, transport config.Transport) (*Bundle, error) {
	if err := transport.Validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint(transport)
	rpc, err := rpcclient.New(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect rpc client to %s", endpoint)
	}

	chain, err := chainapi.Dial(ctx, cfg.WSEndpoint(), chainapi.FakeTransactionFinalizer)
	if err != nil {
		rpc.Close()
		return nil, err
	}

	eth, err := ethrpc.NewStatic(cfg.HTTPEndpoint(), ethrpc.Network{
		ChainID: cfg.ChainID,
		Name:    cfg.NetworkName,
	})
	if err != nil {
		chain.Disconnect()
		rpc.Close()
		return nil, err
	}

	log.Debugf("Connected client bundle (rpc %s, chain %s, eth %s)", endpoint,
		cfg.WSEndpoint(), cfg.HTTPEndpoint())

	return &Bundle{RPC: rpc, Chain: chain, Eth: eth}, nil
}

// Disconnect closes every client and returns their errors joined.
func (b *Bundle) Disconnect() error {
	var errs []error
	if b.Chain != nil {
		if err := b.Chain.Disconnect(); err != nil {
			errs = append(errs, errors.Wrap(err, "chain api"))
		}
	}
	if b.RPC != nil {
		if err := b.RPC.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "rpc"))
		}
	}
	if b.Eth != nil {
		if err := b.Eth.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "eth"))
		}
	}
	if len(errs) > 0 {
		log.Warnf("Client bundle disconnected with errors: %v", errs)
	}
	return stderrors.Join(errs...)
}

// Warmup returns the call the supervisor issues once an HTTP node is ready.
// The first execution request makes the node initialize its runtime.
func Warmup(cfg config.Config) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		client, err := ethrpc.NewStatic(cfg.HTTPEndpoint(), ethrpc.Network{
			ChainID: cfg.ChainID,
			Name:    cfg.NetworkName,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return err
		}
		if chainID != cfg.ChainID {
			log.Warnf("Node reports chain id %d, expected %d", chainID, cfg.ChainID)
		}
		return nil
	}
}
