// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	// NodeBinaryName is the file name of the node executable produced by
	// the cargo build.
	NodeBinaryName = "frontier-template-node"

	// ReadinessMarker appears in the node output once it accepts manual
	// seal block production calls.
	ReadinessMarker = "Manual Seal Ready"

	DefaultHost         = "127.0.0.1"
	DefaultP2PPort      = 19931
	DefaultRPCPort      = 19932
	DefaultWSPort       = 19933
	DefaultChainID      = 42
	DefaultNetworkName  = "frontier-dev"
	DefaultLogLevel     = "info"
	DefaultBuild        = "release"
	DefaultSpawningTime = 60 * time.Second
	DefaultSettleDelay  = 500 * time.Millisecond

	// startupMargin is kept between the startup deadline and the overall
	// spawning budget so the deadline fires before the caller gives up.
	startupMargin = 2 * time.Second

	// logEnvVar also switches DisplayLog on when set to a non-empty value.
	logEnvVar = "FRONTIER_LOG"
)

// Transport selects the wire protocol used to reach the node RPC server.
type Transport string

const (
	HTTP Transport = "http"
	WS   Transport = "ws"
)

// Normalize maps the empty transport to HTTP.
func (t Transport) Normalize() Transport {
	if t == "" {
		return HTTP
	}
	return t
}

// Validate returns an error for unknown transports.
func (t Transport) Validate() error {
	switch t.Normalize() {
	case HTTP, WS:
		return nil
	}
	return errors.Errorf("unknown transport %q", string(t))
}

// Config bundles everything required to launch one node instance and reach
// it over RPC.  It is passed explicitly to every component so several
// configurations may coexist in one process.
type Config struct {
	BinaryPath string

	Host    string
	P2PPort int
	RPCPort int
	WSPort  int

	// LogLevel is passed to the node as -l<level>.
	LogLevel string

	// DisplayLog keeps the node output attached and mirrored for the whole
	// process lifetime.
	DisplayLog bool

	ReadinessMarker string

	// SpawningTime is the full setup budget.  The startup deadline is
	// derived from it.
	SpawningTime time.Duration

	// SettleDelay is slept after each waiting block production.  It is an
	// empirical value, not a synchronization point.
	SettleDelay time.Duration

	ChainID     uint64
	NetworkName string
}

// Default returns the configuration used when no environment overrides are
// present.
func Default() Config {
	return Config{
		BinaryPath:      BinaryPathForBuild(DefaultBuild),
		Host:            DefaultHost,
		P2PPort:         DefaultP2PPort,
		RPCPort:         DefaultRPCPort,
		WSPort:          DefaultWSPort,
		LogLevel:        DefaultLogLevel,
		ReadinessMarker: ReadinessMarker,
		SpawningTime:    DefaultSpawningTime,
		SettleDelay:     DefaultSettleDelay,
		ChainID:         DefaultChainID,
		NetworkName:     DefaultNetworkName,
	}
}

// BinaryPathForBuild returns the relative path of the node binary for the
// given cargo build profile.
func BinaryPathForBuild(build string) string {
	return filepath.Join("..", "target", build, NodeBinaryName)
}

// StartupTimeout is the time the node has to print the readiness marker.
func (c Config) StartupTimeout() time.Duration {
	if c.SpawningTime <= startupMargin {
		return c.SpawningTime
	}
	return c.SpawningTime - startupMargin
}

// HTTPEndpoint returns the URL of the HTTP RPC server.
func (c Config) HTTPEndpoint() string {
	return fmt.Sprintf("http://%s:%d", c.host(), c.RPCPort)
}

// WSEndpoint returns the URL of the WebSocket RPC server.
func (c Config) WSEndpoint() string {
	return fmt.Sprintf("ws://%s:%d", c.host(), c.WSPort)
}

// Endpoint returns the RPC URL for the given transport.
func (c Config) Endpoint(t Transport) string {
	if t.Normalize() == WS {
		return c.WSEndpoint()
	}
	return c.HTTPEndpoint()
}

func (c Config) host() string {
	if c.Host == "" {
		return DefaultHost
	}
	return c.Host
}

// Validate checks the configuration for values the node would reject.
func (c Config) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("binary path is empty")
	}
	ports := map[string]int{"p2p": c.P2PPort, "rpc": c.RPCPort, "ws": c.WSPort}
	for name, port := range ports {
		if port <= 0 || port > 65535 {
			return errors.Errorf("invalid %s port %d", name, port)
		}
	}
	if c.P2PPort == c.RPCPort || c.P2PPort == c.WSPort || c.RPCPort == c.WSPort {
		return errors.Errorf("ports must be distinct: p2p=%d rpc=%d ws=%d",
			c.P2PPort, c.RPCPort, c.WSPort)
	}
	if c.ReadinessMarker == "" {
		return errors.New("readiness marker is empty")
	}
	if c.SpawningTime <= 0 {
		return errors.New("spawning time must be positive")
	}
	return nil
}

// envOptions describes the environment variables understood by LoadEnv.
type envOptions struct {
	LogLevel string `long:"log" env:"FRONTIER_LOG" default:"info" description:"Node log verbosity; setting it also displays node output"`
	Build    string `long:"build" env:"FRONTIER_BUILD" default:"release" description:"Cargo build profile holding the node binary"`
	Binary   string `long:"binary" env:"FRONTIER_BINARY" description:"Explicit node binary path, overrides the build profile"`
}

// LoadEnv returns the default configuration with the environment overrides
// applied.
func LoadEnv() (Config, error) {
	var opts envOptions
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs([]string{}); err != nil {
		return Config{}, errors.Wrap(err, "unable to parse environment")
	}

	// Variables set to an empty string select the defaults.
	cfg := Default()
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Build != "" {
		cfg.BinaryPath = BinaryPathForBuild(opts.Build)
	}
	if opts.Binary != "" {
		cfg.BinaryPath = opts.Binary
	}

	cfg.DisplayLog = os.Getenv(logEnvVar) != ""

	return cfg, nil
}
