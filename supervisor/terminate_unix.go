// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build unix

package supervisor

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Terminate sends SIGTERM to the process.  A process that already exited is
// not an error.
func (p *execProcess) Terminate() error {
	err := p.cmd.Process.Signal(unix.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
