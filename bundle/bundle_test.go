// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bundle_test

import (
	"context"
	"testing"

	"github.com/btcsuite/sealharness/bundle"
	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/internal/fakenode"
	"github.com/btcsuite/sealharness/manualseal"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	tests := []struct {
		transport config.Transport
		ws        bool
	}{
		{config.HTTP, false},
		{"", false},
		{config.WS, true},
	}

	for _, test := range tests {
		t.Run(string(test.transport.Normalize()), func(t *testing.T) {
			defer leaktest.Check(t)()

			node := fakenode.New()
			defer node.Close()
			cfg := node.Config(config.Default())

			b, err := bundle.Connect(context.Background(), cfg, test.transport)
			require.NoError(t, err)

			require.NotNil(t, b.RPC)
			require.NotNil(t, b.Chain)
			require.NotNil(t, b.Eth)
			assert.Equal(t, test.ws, b.RPC.IsWebSocket())
			assert.Equal(t, cfg.Endpoint(test.transport), b.RPC.Endpoint())
			assert.Equal(t, uint64(42), b.Eth.Network().ChainID)
			assert.Equal(t, "frontier-dev", b.Eth.Network().Name)
			assert.Len(t, b.Chain.SignedExtensions(), 1)

			// The execution client never discovers the network.
			assert.Zero(t, node.Calls("eth_chainId"))
			assert.Zero(t, node.Calls("net_version"))

			ctx := context.Background()
			_, err = manualseal.New(b.RPC, 0).CreateBlock(ctx, true)
			require.NoError(t, err)

			number, err := b.Eth.BlockNumber(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), number)

			best, err := b.Chain.BestNumber(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), best)

			require.NoError(t, b.Disconnect())
			assert.False(t, b.Chain.IsConnected())
		})
	}
}

func TestConnectInvalidTransport(t *testing.T) {
	_, err := bundle.Connect(context.Background(), config.Default(), "quic")
	require.Error(t, err)
}

func TestConnectNoNode(t *testing.T) {
	defer leaktest.Check(t)()

	node := fakenode.New()
	cfg := node.Config(config.Default())
	node.Close()

	_, err := bundle.Connect(context.Background(), cfg, config.WS)
	require.Error(t, err)
}

func TestWarmup(t *testing.T) {
	defer leaktest.Check(t)()

	node := fakenode.New()
	defer node.Close()

	warmup := bundle.Warmup(node.Config(config.Default()))
	require.NoError(t, warmup(context.Background()))
	assert.Equal(t, 1, node.Calls("eth_chainId"))
}

func TestWarmupNoNode(t *testing.T) {
	node := fakenode.New()
	cfg := node.Config(config.Default())
	node.Close()

	require.Error(t, bundle.Warmup(cfg)(context.Background()))
}
