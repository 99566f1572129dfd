// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build unix

package supervisor_test

import (
	"io"
	"os/exec"
	"testing"

	"github.com/btcsuite/sealharness/supervisor"
	"github.com/stretchr/testify/require"
)

func TestExecTerminateAfterExit(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}

	proc, err := supervisor.ExecSpawner{}.Spawn(path, nil)
	require.NoError(t, err)
	defer proc.Stdout().(io.Closer).Close()
	defer proc.Stderr().(io.Closer).Close()

	_, err = io.ReadAll(proc.Stdout())
	require.NoError(t, err)
	_, err = io.ReadAll(proc.Stderr())
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	// The pid is released once reaped, so no signal may reach it.
	require.NoError(t, proc.Terminate())
	require.NoError(t, proc.Terminate())
}
