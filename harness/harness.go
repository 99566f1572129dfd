// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/sealharness/bundle"
	"github.com/btcsuite/sealharness/chainapi"
	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/ethrpc"
	"github.com/btcsuite/sealharness/integration"
	"github.com/btcsuite/sealharness/manualseal"
	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/btcsuite/sealharness/supervisor"
	"github.com/pkg/errors"
)

// Context is what a test body gets to talk to its node.  It is built once
// the node is ready and never changes afterwards.
type Context struct {
	RPC    *rpcclient.Client
	Chain  *chainapi.Client
	Eth    *ethrpc.Client
	Sealer *manualseal.Sealer

	Config    config.Config
	Transport config.Transport
}

// ProduceBlock creates a block and waits the settle delay.
func (c *Context) ProduceBlock(ctx context.Context, finalize bool) (*manualseal.CreatedBlock, error) {
	return c.Sealer.ProduceBlock(ctx, finalize, true)
}

// BlockNumber returns the best block number seen by the execution client.
func (c *Context) BlockNumber(ctx context.Context) (uint64, error) {
	return c.Eth.BlockNumber(ctx)
}

// options holds the settings resolved from Option values.
type options struct {
	cfg       *config.Config
	spawner   supervisor.Spawner
	transport config.Transport
	fatal     func(error)
	logOutput io.Writer
}

// Option configures how a node is set up.
type Option func(*options)

// WithConfig uses cfg instead of the configuration loaded from the
// environment.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

// WithSpawner replaces the spawner launching the node binary.
func WithSpawner(spawner supervisor.Spawner) Option {
	return func(o *options) {
		o.spawner = spawner
	}
}

// WithTransport selects the transport of the rpc client.  It defaults to
// HTTP.
func WithTransport(transport config.Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithFatalHandler replaces the handler of fatal setup errors.  The default
// reports a test setup malfunction, which aborts the whole run.
func WithFatalHandler(fatal func(error)) Option {
	return func(o *options) {
		o.fatal = fatal
	}
}

// WithLogOutput sets where node output is mirrored when it is displayed.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		transport: config.HTTP,
		fatal: func(err error) {
			integration.ReportTestSetupMalfunction(err)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Node is a running node with its connected clients.  It is registered as
// a leaky asset until closed.
type Node struct {
	ctx    *Context
	sup    *supervisor.Supervisor
	bundle *bundle.Bundle

	once     sync.Once
	closeErr error
}

// Start launches a node, waits until it is ready and connects the clients.
// Errors for which supervisor.IsFatal holds mean no node can be started at
// all.
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	return start(ctx, newOptions(opts))
}

func start(ctx context.Context, o *options) (*Node, error) {
	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		var err error
		cfg, err = config.LoadEnv()
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid node configuration")
	}

	supOpts := []supervisor.Option{supervisor.WithWarmup(bundle.Warmup(cfg))}
	if o.spawner != nil {
		supOpts = append(supOpts, supervisor.WithSpawner(o.spawner))
	}
	if o.logOutput != nil {
		supOpts = append(supOpts, supervisor.WithLogOutput(o.logOutput))
	}
	sup := supervisor.New(cfg, supOpts...)

	// The startup deadline leaves a margin inside the spawning budget.
	setupCtx, cancel := context.WithTimeout(ctx, cfg.SpawningTime)
	defer cancel()

	if _, err := sup.Start(setupCtx, o.transport); err != nil {
		return nil, err
	}

	b, err := bundle.Connect(setupCtx, cfg, o.transport)
	if err != nil {
		sup.Stop()
		return nil, errors.Wrap(err, "unable to connect clients")
	}

	n := &Node{
		ctx: &Context{
			RPC:       b.RPC,
			Chain:     b.Chain,
			Eth:       b.Eth,
			Sealer:    manualseal.New(b.RPC, cfg.SettleDelay),
			Config:    cfg,
			Transport: o.transport.Normalize(),
		},
		sup:    sup,
		bundle: b,
	}
	integration.RegisterDisposableAsset(n)

	log.Infof("Node ready on %s", cfg.Endpoint(o.transport))

	return n, nil
}

// Context returns the clients of the node.
func (n *Node) Context() *Context {
	return n.ctx
}

// Supervisor returns the supervisor of the node process.
func (n *Node) Supervisor() *supervisor.Supervisor {
	return n.sup
}

// Close disconnects the clients, chain api first, and stops the node.  It
// is safe to call more than once.
func (n *Node) Close() error {
	return n.close(true)
}

// Dispose stops the node after a setup malfunction.  The registry has
// already forgotten the node by then.
func (n *Node) Dispose() {
	n.close(false)
}

func (n *Node) close(deregister bool) error {
	n.once.Do(func() {
		if deregister {
			integration.DeRegisterDisposableAsset(n)
		}

		var errs []error
		if err := n.bundle.Disconnect(); err != nil {
			errs = append(errs, err)
		}
		if err := n.sup.Stop(); err != nil {
			errs = append(errs, errors.Wrap(err, "unable to stop node"))
		}
		n.closeErr = stderrors.Join(errs...)
	})
	return n.closeErr
}

func (n *Node) String() string {
	return fmt.Sprintf("node(%s)", n.sup.Command())
}
