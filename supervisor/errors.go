// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidState is returned when an operation is not allowed in the
// current supervisor state.
var ErrInvalidState = errors.New("invalid supervisor state")

// BinaryNotFoundError is returned by Start when the node executable does not
// exist.  No test can proceed without the binary, so it is fatal.
type BinaryNotFoundError struct {
	Path string
	Err  error
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("Missing node binary (%s).\nPlease compile the node project:\ncargo build", e.Path)
}

func (e *BinaryNotFoundError) Unwrap() error {
	return e.Err
}

// StartupTimeoutError is returned by Start when the readiness marker was not
// seen before the startup deadline, or the process exited before printing
// it.  It is fatal.
type StartupTimeoutError struct {
	Command string
	Marker  string
	Timeout time.Duration
	Exited  bool
	Logs    []byte
}

func (e *StartupTimeoutError) Error() string {
	if e.Exited {
		return fmt.Sprintf("node exited before printing %q", e.Marker)
	}
	return fmt.Sprintf("node did not print %q within %v", e.Marker, e.Timeout)
}

// Dump returns the command and the accumulated node output for operators.
func (e *StartupTimeoutError) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to start node: %v\n", e)
	fmt.Fprintf(&b, "Command: %s\n", e.Command)
	b.WriteString("Logs:\n")
	b.Write(e.Logs)
	return b.String()
}

// IsFatal reports whether err is a startup failure after which no test can
// run.  Callers are expected to abort the whole run on such errors.
func IsFatal(err error) bool {
	var timeout *StartupTimeoutError
	var notFound *BinaryNotFoundError
	return errors.As(err, &timeout) || errors.As(err, &notFound)
}

// isNotFound reports whether a spawn error means the binary is missing.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
