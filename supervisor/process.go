// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import (
	"io"
	"os"
	"os/exec"
	"strings"
)

// Process is a running node process as seen by the supervisor.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int

	// Stdout and Stderr return the process output streams.  Both must be
	// drained until EOF or the process may block on a full pipe.
	Stdout() io.Reader
	Stderr() io.Reader

	// Terminate asks the process to exit without waiting for it.
	Terminate() error

	// Wait blocks until the process has exited.
	Wait() error
}

// Spawner launches node processes.
type Spawner interface {
	Spawn(name string, args []string) (Process, error)
}

// ExecSpawner launches processes with os/exec.
type ExecSpawner struct {
	// Dir is the working directory of the process; empty means the
	// current directory.
	Dir string

	// Env holds extra environment entries appended to the current
	// environment.
	Env []string
}

// Spawn starts name with args, wiring its output streams to pipes owned by
// the returned process.
func (s ExecSpawner) Spawn(name string, args []string) (Process, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()

	// The child holds its own copies of the write ends; closing ours makes
	// the readers see EOF once the child exits.
	stdoutW.Close()
	stderrW.Close()

	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, err
	}

	return &execProcess{
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
	}, nil
}

// execProcess is a Process backed by an *exec.Cmd.
type execProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

// FullConsoleCommand returns the full console command used to launch the
// process.
func (p *execProcess) FullConsoleCommand() string {
	return p.cmd.Path + " " + strings.Join(p.cmd.Args[1:], " ")
}
