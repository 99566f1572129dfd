// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fakenode

import (
	"io"
	"sync"

	"github.com/btcsuite/sealharness/config"
	"github.com/btcsuite/sealharness/supervisor"
)

// Process is a scripted supervisor.Process.  Its output streams are pipes
// fed by Emit and EmitStderr.
type Process struct {
	pid int

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	once       sync.Once
	done       chan struct{}
	mtx        sync.Mutex
	terminated bool

	// ignoreTerminate keeps the process running after Terminate, like a
	// node slow to handle the signal.
	ignoreTerminate bool
}

// NewProcess returns a running fake process with the given pid.
func NewProcess(pid int) *Process {
	p := &Process{
		pid:  pid,
		done: make(chan struct{}),
	}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *Process) Pid() int          { return p.pid }
func (p *Process) Stdout() io.Reader { return p.stdoutR }
func (p *Process) Stderr() io.Reader { return p.stderrR }

// Emit writes s to stdout.  It blocks until the output is read and fails
// once the process exited.
func (p *Process) Emit(s string) error {
	_, err := io.WriteString(p.stdoutW, s)
	return err
}

// EmitStderr writes s to stderr.
func (p *Process) EmitStderr(s string) error {
	_, err := io.WriteString(p.stderrW, s)
	return err
}

// Terminate records the termination request and exits the process.
func (p *Process) Terminate() error {
	p.mtx.Lock()
	p.terminated = true
	ignore := p.ignoreTerminate
	p.mtx.Unlock()
	if !ignore {
		p.Exit()
	}
	return nil
}

// Terminated reports whether Terminate was called.
func (p *Process) Terminated() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.terminated
}

// Exit closes the output streams and releases Wait, as if the process
// exited on its own.
func (p *Process) Exit() {
	p.once.Do(func() {
		p.stdoutW.Close()
		p.stderrW.Close()
		close(p.done)
	})
}

// Wait blocks until the process exited.
func (p *Process) Wait() error {
	<-p.done
	return nil
}

// Spawner is a supervisor.Spawner launching fake processes.  Every spawned
// process writes Stderr then Stdout and keeps running unless
// ExitAfterOutput is set.
type Spawner struct {
	// Err is returned by Spawn when set.
	Err error

	// Stdout lists the chunks written to stdout, in order.
	Stdout []string

	// Stderr lists the chunks written to stderr before stdout.
	Stderr []string

	// ExitAfterOutput makes the process exit once its output is written.
	ExitAfterOutput bool

	// IgnoreTerminate keeps spawned processes running after Terminate
	// until Exit is called.
	IgnoreTerminate bool

	mtx   sync.Mutex
	procs []*Process
	names []string
	args  [][]string
}

// NewReadySpawner returns a spawner whose processes print a few log lines
// followed by the readiness marker.
func NewReadySpawner() *Spawner {
	return &Spawner{
		Stderr: []string{
			"2022-01-01 00:00:00 Frontier Node\n",
			"2022-01-01 00:00:00 Chain specification: Development\n",
		},
		Stdout: []string{
			"2022-01-01 00:00:00 Idle (0 peers)\n",
			"2022-01-01 00:00:00 " + config.ReadinessMarker + "\n",
		},
	}
}

// Spawn records the invocation and starts a fake process.
func (s *Spawner) Spawn(name string, args []string) (supervisor.Process, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.names = append(s.names, name)
	s.args = append(s.args, append([]string(nil), args...))
	if s.Err != nil {
		return nil, s.Err
	}

	proc := NewProcess(4242 + len(s.procs))
	proc.ignoreTerminate = s.IgnoreTerminate
	s.procs = append(s.procs, proc)

	stderr := append([]string(nil), s.Stderr...)
	stdout := append([]string(nil), s.Stdout...)
	exit := s.ExitAfterOutput
	go func() {
		for _, chunk := range stderr {
			if proc.EmitStderr(chunk) != nil {
				return
			}
		}
		for _, chunk := range stdout {
			if proc.Emit(chunk) != nil {
				return
			}
		}
		if exit {
			proc.Exit()
		}
	}()

	return proc, nil
}

// Last returns the most recently spawned process or nil.
func (s *Spawner) Last() *Process {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// Spawned returns how many times Spawn was called.
func (s *Spawner) Spawned() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.names)
}

// LastCall returns the name and arguments of the last Spawn call.
func (s *Spawner) LastCall() (string, []string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if len(s.names) == 0 {
		return "", nil
	}
	return s.names[len(s.names)-1], s.args[len(s.args)-1]
}
