// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	"testing"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/supervisor"
)

// Describe runs body as the subtest title against a freshly started node.
// The node is stopped when the subtest ends, after the clients were
// disconnected.  Suites sharing the default ports must not run in parallel.
//
// A fatal setup error goes to the fatal handler, which by default aborts
// the whole run.  Any other setup error fails the subtest.
func Describe(t *testing.T, title string, body func(t *testing.T, c *Context), opts ...Option) bool {
	o := newOptions(opts)

	return t.Run(title, func(t *testing.T) {
		node, err := start(context.Background(), o)
		if err != nil {
			if supervisor.IsFatal(err) {
				o.fatal(err)
				t.Skipf("node setup aborted: %v", err)
			}
			t.Fatalf("unable to set up node: %v", err)
		}

		t.Cleanup(func() {
			if err := node.Close(); err != nil {
				t.Errorf("unable to tear down node: %v", err)
			}
		})

		body(t, node.Context())
	})
}

// DescribeWS is Describe with the rpc client connected over the WebSocket.
func DescribeWS(t *testing.T, title string, body func(t *testing.T, c *Context), opts ...Option) bool {
	wsOpts := append([]Option(nil), opts...)
	return Describe(t, title, body, append(wsOpts, WithTransport(config.WS))...)
}
