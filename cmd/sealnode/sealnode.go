// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// sealnode launches a manual seal node the way the test harness does, seals
// the requested blocks and keeps the node running until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/devaccounts"
	"github.com/btcsuite/sealharness/ethrpc"
	"github.com/btcsuite/sealharness/harness"
	"github.com/btcsuite/sealharness/internal/log"
	"github.com/btcsuite/sealharness/supervisor"
	"github.com/pkg/errors"
)

var nodeLog = log.NodeLog

// sealBlock produces one block and logs it.
func sealBlock(ctx context.Context, c *harness.Context, finalize bool) error {
	created, err := c.ProduceBlock(ctx, finalize)
	if err != nil {
		return err
	}
	number, err := c.BlockNumber(ctx)
	if err != nil {
		return err
	}
	nodeLog.Infof("Sealed block %d (%s)", number, created.Hash)
	return nil
}

// logAccounts logs the balance of every development account.
func logAccounts(ctx context.Context, c *harness.Context) {
	for _, account := range devaccounts.All() {
		if err := account.Verify(); err != nil {
			nodeLog.Warnf("Skipping account: %v", err)
			continue
		}
		balance, err := c.Eth.GetBalance(ctx, account.Address, ethrpc.Latest)
		if err != nil {
			nodeLog.Warnf("Unable to query balance of %s: %v", account.Name, err)
			continue
		}
		nodeLog.Infof("%-10s %s %s wei", account.Name, account.Address, balance)
	}
}

// sealnodeMain is the real main function for sealnode.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func sealnodeMain() error {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		if err := log.InitLogRotator(cfg.LogFile); err != nil {
			return err
		}
		defer log.LogRotator.Close()
	}
	if err := log.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	opts := []harness.Option{
		harness.WithConfig(cfg.nodeConfig()),
		harness.WithTransport(config.Transport(cfg.Transport)),
	}
	if cfg.NodeLogFile != "" {
		nodeOut, err := log.NewRotator(cfg.NodeLogFile)
		if err != nil {
			return err
		}
		defer nodeOut.Close()

		var out io.Writer = nodeOut
		if cfg.DisplayLog {
			out = io.MultiWriter(os.Stdout, nodeOut)
		}
		opts = append(opts, harness.WithLogOutput(out))
	}

	interrupt := interruptListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupt:
			cancel()
		case <-ctx.Done():
		}
	}()

	node, err := harness.Start(ctx, opts...)
	if err != nil {
		var timeout *supervisor.StartupTimeoutError
		if errors.As(err, &timeout) {
			fmt.Fprintln(os.Stderr, timeout.Dump())
		} else {
			nodeLog.Errorf("Unable to start node: %v", err)
		}
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			nodeLog.Errorf("Unable to stop node: %v", err)
		}
	}()

	c := node.Context()
	if chain, err := c.Chain.Chain(ctx); err == nil {
		nodeLog.Infof("Node running chain %q (chain id %d)", chain,
			c.Eth.Network().ChainID)
	}
	logAccounts(ctx, c)

	for i := uint(0); i < cfg.Blocks; i++ {
		if interruptRequested(interrupt) {
			return nil
		}
		if err := sealBlock(ctx, c, cfg.Finalize); err != nil {
			if interruptRequested(interrupt) {
				return nil
			}
			nodeLog.Errorf("Unable to seal block: %v", err)
			return err
		}
	}

	if cfg.Interval <= 0 {
		<-interrupt
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sealBlock(ctx, c, cfg.Finalize); err != nil {
				if interruptRequested(interrupt) {
					return nil
				}
				nodeLog.Errorf("Unable to seal block: %v", err)
				return err
			}
		case <-interrupt:
			return nil
		}
	}
}

func main() {
	if err := sealnodeMain(); err != nil {
		os.Exit(1)
	}
}
