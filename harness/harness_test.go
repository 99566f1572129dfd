// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package harness_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/harness"
	"github.com/btcsuite/sealharness/integration"
	"github.com/btcsuite/sealharness/internal/fakenode"
	"github.com/btcsuite/sealharness/supervisor"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeConfig(node *fakenode.Node) config.Config {
	cfg := node.Config(config.Default())
	cfg.SpawningTime = 5 * time.Second
	cfg.SettleDelay = 10 * time.Millisecond
	return cfg
}

func TestDescribeHTTP(t *testing.T) {
	defer leaktest.Check(t)()

	node := fakenode.New()
	defer node.Close()
	spawner := fakenode.NewReadySpawner()

	ran := harness.Describe(t, "produces one block per call",
		func(t *testing.T, c *harness.Context) {
			require.NotNil(t, c.RPC)
			require.NotNil(t, c.Chain)
			require.NotNil(t, c.Eth)
			require.NotNil(t, c.Sealer)
			assert.Equal(t, config.HTTP, c.Transport)
			assert.False(t, c.RPC.IsWebSocket())
			assert.True(t, c.Chain.IsConnected())

			ctx := context.Background()
			before, err := c.BlockNumber(ctx)
			require.NoError(t, err)

			created, err := c.ProduceBlock(ctx, true)
			require.NoError(t, err)
			assert.NotEmpty(t, created.Hash)

			after, err := c.BlockNumber(ctx)
			require.NoError(t, err)
			assert.Equal(t, before+1, after)

			finalized, err := c.Chain.FinalizedHead(ctx)
			require.NoError(t, err)
			assert.Equal(t, created.Hash, finalized)
		},
		harness.WithConfig(nodeConfig(node)),
		harness.WithSpawner(spawner))
	require.True(t, ran)

	// The warm-up call is issued once over HTTP.
	assert.Equal(t, 1, node.Calls("eth_chainId"))
	assert.Equal(t, uint64(1), node.BlockNumber())

	require.NotNil(t, spawner.Last())
	assert.True(t, spawner.Last().Terminated())
	integration.VerifyNoAssetsLeaked()
}

func TestDescribeWS(t *testing.T) {
	defer leaktest.Check(t)()

	node := fakenode.New()
	defer node.Close()
	spawner := fakenode.NewReadySpawner()

	ran := harness.DescribeWS(t, "produces blocks over the websocket",
		func(t *testing.T, c *harness.Context) {
			assert.Equal(t, config.WS, c.Transport)
			assert.True(t, c.RPC.IsWebSocket())

			ctx := context.Background()
			for i := uint64(1); i <= 3; i++ {
				_, err := c.ProduceBlock(ctx, false)
				require.NoError(t, err)

				number, err := c.BlockNumber(ctx)
				require.NoError(t, err)
				assert.Equal(t, i, number)
			}

			best, err := c.Chain.BestNumber(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), best)
		},
		harness.WithConfig(nodeConfig(node)),
		harness.WithSpawner(spawner))
	require.True(t, ran)

	// No warm-up call over the websocket.
	assert.Zero(t, node.Calls("eth_chainId"))
	assert.True(t, spawner.Last().Terminated())
	integration.VerifyNoAssetsLeaked()
}

func TestDescribeFatalSetup(t *testing.T) {
	defer leaktest.Check(t)()

	var fatal error
	bodyRan := false

	harness.Describe(t, "never runs",
		func(t *testing.T, c *harness.Context) {
			bodyRan = true
		},
		harness.WithConfig(config.Default()),
		harness.WithSpawner(&fakenode.Spawner{Err: os.ErrNotExist}),
		harness.WithFatalHandler(func(err error) {
			fatal = err
		}))

	assert.False(t, bodyRan)
	require.Error(t, fatal)
	assert.True(t, supervisor.IsFatal(fatal))

	var notFound *supervisor.BinaryNotFoundError
	assert.ErrorAs(t, fatal, &notFound)
}

func TestDescribeStartupTimeoutDumpsLogs(t *testing.T) {
	defer leaktest.Check(t)()

	spawner := &fakenode.Spawner{
		Stdout: []string{"2022-01-01 00:00:00 Initializing Genesis block\n"},
	}
	cfg := config.Default()
	cfg.SpawningTime = 2500 * time.Millisecond

	var out bytes.Buffer
	reporter := integration.NewReporter(integration.NewRegistry(), &out)
	panicked := false

	harness.Describe(t, "never becomes ready",
		func(t *testing.T, c *harness.Context) {
			t.Error("body ran without a ready node")
		},
		harness.WithConfig(cfg),
		harness.WithSpawner(spawner),
		harness.WithFatalHandler(func(err error) {
			defer func() {
				panicked = recover() != nil
			}()
			reporter.Report(err)
		}))

	assert.True(t, panicked)
	assert.Contains(t, out.String(), "Initializing Genesis block")
	assert.Contains(t, out.String(), "--sealing=Manual")
	assert.True(t, spawner.Last().Terminated())
}

func TestStartNonFatalFailure(t *testing.T) {
	defer leaktest.Check(t)()

	// The node prints the marker but nothing answers the warm-up call.
	node := fakenode.New()
	cfg := nodeConfig(node)
	node.Close()

	spawner := fakenode.NewReadySpawner()
	_, err := harness.Start(context.Background(),
		harness.WithConfig(cfg),
		harness.WithSpawner(spawner))
	require.Error(t, err)
	assert.False(t, supervisor.IsFatal(err))
	assert.True(t, spawner.Last().Terminated())
	integration.VerifyNoAssetsLeaked()
}

func TestStartInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RPCPort = cfg.WSPort

	_, err := harness.Start(context.Background(), harness.WithConfig(cfg))
	require.Error(t, err)
	assert.False(t, supervisor.IsFatal(err))
}

func TestNodeClose(t *testing.T) {
	defer leaktest.Check(t)()

	node := fakenode.New()
	defer node.Close()
	spawner := fakenode.NewReadySpawner()

	n, err := harness.Start(context.Background(),
		harness.WithConfig(nodeConfig(node)),
		harness.WithSpawner(spawner),
		harness.WithTransport(config.WS))
	require.NoError(t, err)
	assert.Equal(t, supervisor.Ready, n.Supervisor().State())

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	assert.False(t, n.Context().Chain.IsConnected())
	assert.Equal(t, supervisor.Stopped, n.Supervisor().State())
	assert.True(t, spawner.Last().Terminated())
	integration.VerifyNoAssetsLeaked()
}
