// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !unix

package supervisor

import (
	"os"

	"github.com/pkg/errors"
)

// Terminate kills the process.  On windows, interrupt is not supported, so a
// kill signal is used instead.
func (p *execProcess) Terminate() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
