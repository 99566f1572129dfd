// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/btcsuite/sealharness/config"
	"github.com/pkg/errors"
)

// readBufferSize is the size of the chunks read from the node output.
const readBufferSize = 4096

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSpawner replaces the os/exec based spawner.
func WithSpawner(spawner Spawner) Option {
	return func(s *Supervisor) {
		s.spawner = spawner
	}
}

// WithWarmup sets the call issued once the node is ready when it is started
// over HTTP.  The first execution call initializes the node runtime, so
// issuing it during startup keeps that cost out of the tests.
func WithWarmup(warmup func(ctx context.Context) error) Option {
	return func(s *Supervisor) {
		s.warmup = warmup
	}
}

// WithLogOutput sets where node output is mirrored when DisplayLog is set.
// It defaults to os.Stdout.
func WithLogOutput(w io.Writer) Option {
	return func(s *Supervisor) {
		s.output = w
	}
}

// Supervisor launches one node process, waits until it prints the readiness
// marker and stops it.  A Supervisor is single use: once stopped or failed
// it cannot be started again.
type Supervisor struct {
	cfg     config.Config
	spawner Spawner
	warmup  func(ctx context.Context) error
	output  io.Writer

	mtx   sync.Mutex
	state State
	proc  Process

	// attached is cleared when the output listeners are detached.  The
	// pipes are still drained afterwards but the output is dropped.
	attached bool

	// logs holds the output chunks received while starting.
	logs [][]byte

	// tail keeps the last len(marker)-1 bytes seen so a marker split
	// across two chunks is still found.
	tail   []byte
	marked bool
	ready  chan struct{}
}

// New returns a supervisor for the node described by cfg.
func New(cfg config.Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		spawner: ExecSpawner{},
		output:  os.Stdout,
		state:   NotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arguments returns the fixed argument list the node is launched with.
func (s *Supervisor) Arguments() []string {
	return []string{
		"--chain=dev",
		"--validator", // required by manual sealing to author blocks
		"--execution=Native",
		"--no-telemetry",
		"--no-prometheus",
		"--sealing=Manual",
		"--no-grandpa",
		"--force-authoring",
		fmt.Sprintf("-l%s", s.cfg.LogLevel),
		fmt.Sprintf("--port=%d", s.cfg.P2PPort),
		fmt.Sprintf("--rpc-port=%d", s.cfg.RPCPort),
		fmt.Sprintf("--ws-port=%d", s.cfg.WSPort),
		"--tmp",
	}
}

// Command returns the full console command used to launch the node.
func (s *Supervisor) Command() string {
	return s.cfg.BinaryPath + " " + strings.Join(s.Arguments(), " ")
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Logs returns a copy of the output accumulated while starting.  It is
// empty once the node is ready.
func (s *Supervisor) Logs() []byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return bytes.Join(s.logs, nil)
}

// Start launches the node and blocks until it printed the readiness marker.
// When transport is HTTP the warm-up call is issued before returning.
//
// A missing binary returns *BinaryNotFoundError and a missed deadline
// returns *StartupTimeoutError, both fatal per IsFatal.  The process is
// terminated on every failure.
func (s *Supervisor) Start(ctx context.Context, transport config.Transport) (Process, error) {
	if err := transport.Validate(); err != nil {
		return nil, err
	}

	s.mtx.Lock()
	if s.state != NotStarted {
		state := s.state
		s.mtx.Unlock()
		return nil, errors.Wrapf(ErrInvalidState, "start called in state %v", state)
	}
	s.state = Starting
	s.ready = make(chan struct{})
	s.mtx.Unlock()

	timeout := s.cfg.StartupTimeout()
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Infof("Starting node: %s", s.Command())

	proc, err := s.spawner.Spawn(s.cfg.BinaryPath, s.Arguments())
	if err != nil {
		if isNotFound(err) {
			err = &BinaryNotFoundError{Path: s.cfg.BinaryPath, Err: err}
		} else {
			err = errors.Wrapf(err, "unable to spawn %s", s.cfg.BinaryPath)
		}
		return nil, s.fail(err)
	}

	s.mtx.Lock()
	if s.state == Stopped {
		s.mtx.Unlock()
		if err := proc.Terminate(); err != nil {
			log.Warnf("Unable to terminate node process %d: %v", proc.Pid(), err)
		}
		for _, r := range []io.Reader{proc.Stdout(), proc.Stderr()} {
			if c, ok := r.(io.Closer); ok {
				c.Close()
			}
		}
		go proc.Wait()
		return nil, errors.Wrap(ErrInvalidState, "node stopped during startup")
	}
	s.proc = proc
	s.attached = true
	s.mtx.Unlock()

	log.Debugf("Node process started (pid %d)", proc.Pid())

	var wg sync.WaitGroup
	wg.Add(2)
	go s.consume(proc.Stdout(), &wg)
	go s.consume(proc.Stderr(), &wg)

	outputClosed := make(chan struct{})
	go func() {
		wg.Wait()
		close(outputClosed)
	}()

	// Reap the process whenever it exits.
	go func() {
		err := proc.Wait()
		log.Debugf("Node process %d exited: %v", proc.Pid(), err)
	}()

	select {
	case <-s.ready:

	case <-outputClosed:
		select {
		case <-s.ready:
		default:
			if err := s.stoppedErr(); err != nil {
				return nil, err
			}
			return nil, s.fail(s.timeoutError(true))
		}

	case <-startCtx.Done():
		if err := s.stoppedErr(); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, s.fail(errors.Wrap(ctx.Err(), "node startup interrupted"))
		}
		return nil, s.fail(s.timeoutError(false))
	}

	if transport.Normalize() == config.HTTP && s.warmup != nil {
		log.Debugf("Issuing warm-up call")
		if err := s.warmup(startCtx); err != nil {
			if startCtx.Err() != nil && ctx.Err() == nil {
				return nil, s.fail(s.timeoutError(false))
			}
			return nil, s.fail(errors.Wrap(err, "warm-up call failed"))
		}
	}

	s.mtx.Lock()
	if s.state != Starting {
		state := s.state
		s.mtx.Unlock()
		return nil, errors.Wrapf(ErrInvalidState, "node left startup in state %v", state)
	}
	s.state = Ready
	if !s.cfg.DisplayLog {
		s.attached = false
	}
	s.logs = nil
	s.tail = nil
	s.mtx.Unlock()

	log.Infof("Node ready (pid %d)", proc.Pid())

	return proc, nil
}

// Stop sends the termination signal to the node.  It does not wait for the
// process to exit.  Output received after Stop is dropped.  Stopping a
// stopped supervisor is a no-op.
func (s *Supervisor) Stop() error {
	s.mtx.Lock()
	prev := s.state
	proc := s.proc
	switch prev {
	case NotStarted:
		s.mtx.Unlock()
		return errors.Wrap(ErrInvalidState, "node was never started")
	case Stopped:
		s.mtx.Unlock()
		return nil
	}
	s.state = Stopped
	s.attached = false
	s.logs = nil
	s.tail = nil
	s.mtx.Unlock()

	// A failed startup already terminated the process.
	if prev == StartupFailed || proc == nil {
		return nil
	}

	log.Infof("Stopping node process (pid %d)", proc.Pid())

	return proc.Terminate()
}

// stoppedErr returns the error reported by Start when Stop was called while
// the node was starting, or nil.
func (s *Supervisor) stoppedErr() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.state != Stopped {
		return nil
	}
	return errors.Wrap(ErrInvalidState, "node stopped during startup")
}

// timeoutError builds the startup failure from the current output.
func (s *Supervisor) timeoutError(exited bool) *StartupTimeoutError {
	return &StartupTimeoutError{
		Command: s.Command(),
		Marker:  s.cfg.ReadinessMarker,
		Timeout: s.cfg.StartupTimeout(),
		Exited:  exited,
		Logs:    s.Logs(),
	}
}

// fail moves a starting supervisor to StartupFailed, detaches the output,
// terminates the process and returns err.
func (s *Supervisor) fail(err error) error {
	s.mtx.Lock()
	if s.state == Starting {
		s.state = StartupFailed
	}
	s.attached = false
	proc := s.proc
	s.mtx.Unlock()

	if timeout, ok := err.(*StartupTimeoutError); ok {
		log.Errorf("%s", timeout.Dump())
	} else {
		log.Errorf("Failed to start node: %v", err)
	}

	if proc != nil {
		if terr := proc.Terminate(); terr != nil {
			log.Warnf("Unable to terminate node process %d: %v", proc.Pid(), terr)
		}
	}

	return err
}

// consume reads r until EOF, handing every chunk to onOutput.
func (s *Supervisor) consume(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.onOutput(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// onOutput records one output chunk and checks it for the readiness marker.
func (s *Supervisor) onOutput(chunk []byte) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.attached {
		return
	}
	if s.cfg.DisplayLog {
		s.output.Write(chunk)
	}
	if s.state != Starting {
		return
	}

	c := append([]byte(nil), chunk...)
	s.logs = append(s.logs, c)
	if s.marked {
		return
	}

	marker := []byte(s.cfg.ReadinessMarker)
	window := append(append([]byte(nil), s.tail...), c...)
	if bytes.Contains(window, marker) {
		s.marked = true
		s.tail = nil
		close(s.ready)
		return
	}

	keep := len(marker) - 1
	if len(window) > keep {
		window = window[len(window)-keep:]
	}
	s.tail = window
}

// Ready reports whether the readiness marker has been seen.
func (s *Supervisor) Ready() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.marked
}

