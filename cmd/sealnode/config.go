// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/internal/version"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel  = "info"
	defaultTransport = "http"
)

// sealnodeConfig defines the configuration options for sealnode.
//
// See loadConfig for details on the configuration load process.
type sealnodeConfig struct {
	ShowVersion  bool          `short:"V" long:"version" description:"Display version information and exit"`
	Binary       string        `long:"binary" env:"FRONTIER_BINARY" description:"Path to the node binary -- overrides --build"`
	Build        string        `long:"build" env:"FRONTIER_BUILD" default:"release" description:"Cargo build profile holding the node binary"`
	NodeLogLevel string        `long:"nodeloglevel" env:"FRONTIER_LOG" default:"info" description:"Log level passed to the node"`
	DisplayLog   bool          `long:"displaylog" description:"Mirror the node output to stdout for its whole lifetime"`
	NodeLogFile  string        `long:"nodelogfile" description:"Write the node output to this file, rotating it"`
	Transport    string        `long:"transport" choice:"http" choice:"ws" default:"http" description:"Transport of the rpc client"`
	P2PPort      int           `long:"p2pport" description:"P2P port of the node"`
	RPCPort      int           `long:"rpcport" description:"HTTP RPC port of the node"`
	WSPort       int           `long:"wsport" description:"WebSocket RPC port of the node"`
	SpawningTime time.Duration `long:"spawningtime" description:"Time budget for the node to become ready"`
	SettleDelay  time.Duration `long:"settledelay" description:"Time waited after each sealed block"`
	Blocks       uint          `short:"n" long:"blocks" description:"Number of blocks to seal once the node is ready"`
	Interval     time.Duration `long:"interval" description:"Seal one more block every interval until interrupted -- 0 disables"`
	Finalize     bool          `long:"finalize" description:"Finalize the sealed blocks"`
	LogFile      string        `long:"logfile" description:"Also write the sealnode log to this file"`
	DebugLevel   string        `short:"d" long:"debuglevel" default:"info" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
}

// nodeConfig returns the node configuration selected by the options.
func (c *sealnodeConfig) nodeConfig() config.Config {
	cfg := config.Default()
	if c.Build != "" {
		cfg.BinaryPath = config.BinaryPathForBuild(c.Build)
	}
	if c.Binary != "" {
		cfg.BinaryPath = c.Binary
	}
	if c.NodeLogLevel != "" {
		cfg.LogLevel = c.NodeLogLevel
	}
	logSet := os.Getenv("FRONTIER_LOG") != ""
	cfg.DisplayLog = c.DisplayLog || logSet || c.NodeLogFile != ""
	if c.P2PPort != 0 {
		cfg.P2PPort = c.P2PPort
	}
	if c.RPCPort != 0 {
		cfg.RPCPort = c.RPCPort
	}
	if c.WSPort != 0 {
		cfg.WSPort = c.WSPort
	}
	if c.SpawningTime != 0 {
		cfg.SpawningTime = c.SpawningTime
	}
	if c.SettleDelay != 0 {
		cfg.SettleDelay = c.SettleDelay
	}
	return cfg
}

// loadConfig initializes and parses the config using command line options
// and the FRONTIER_* environment variables.
func loadConfig(args []string) (*sealnodeConfig, error) {
	cfg := sealnodeConfig{
		NodeLogLevel: defaultLogLevel,
		Transport:    defaultTransport,
		DebugLevel:   defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	if cfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	if err := cfg.nodeConfig().Validate(); err != nil {
		err := fmt.Errorf("loadConfig: %v", err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, err
	}

	return &cfg, nil
}
