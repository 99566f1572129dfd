// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package integration

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

const (
	colorRed   = "\x1b[31m"
	colorReset = "\x1b[0m"
)

// dumper is implemented by errors carrying diagnostics for operators, such
// as the output of a node that never became ready.
type dumper interface {
	Dump() string
}

// Reporter aborts a test run after a setup failure no test can recover
// from.  Reporting disposes every asset of the registry and panics; once a
// report is in progress further reports only print.
type Reporter struct {
	registry *Registry
	out      io.Writer

	mtx            sync.Mutex
	selfDestructed bool
}

// NewReporter returns a reporter disposing the assets of registry and
// printing to out.
func NewReporter(registry *Registry, out io.Writer) *Reporter {
	return &Reporter{registry: registry, out: out}
}

// Report prints malfunction, disposes the registered assets and panics.
// Errors with a Dump method are printed in full.  It
// returns only when a report is already in progress.
func (r *Reporter) Report(malfunction error) error {
	if malfunction == nil {
		malfunction = errors.New("no error provided")
	}

	var d dumper
	if errors.As(malfunction, &d) {
		fmt.Fprintf(r.out, "%s%s%s\n", colorRed, d.Dump(), colorReset)
	} else {
		fmt.Fprintf(r.out, "%s%v%s\n", colorRed, malfunction, colorReset)
	}

	r.mtx.Lock()
	if r.selfDestructed {
		r.mtx.Unlock()
		return malfunction
	}
	r.selfDestructed = true
	r.mtx.Unlock()

	r.registry.DisposeAll()

	panic(fmt.Sprintf("Test setup malfunction: %v", malfunction))
}

var defaultReporter = NewReporter(leaksList, os.Stderr)

// ReportTestSetupMalfunction is used to bring attention to a setup failure
// after which no test can run, such as a missing node binary or a node that
// never became ready.  All registered assets are disposed before it panics.
func ReportTestSetupMalfunction(malfunction error) error {
	return defaultReporter.Report(malfunction)
}

// CheckTestSetupMalfunction reports err when one is present.
func CheckTestSetupMalfunction(err error) {
	if err != nil {
		ReportTestSetupMalfunction(err)
	}
}
