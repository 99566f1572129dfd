// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package supervisor

import "fmt"

// State is the lifecycle state of a supervised node.
type State int

// Supervisor states.  StartupFailed is terminal and only reachable from
// Starting.
const (
	NotStarted State = iota
	Starting
	Ready
	Stopped
	StartupFailed
)

var stateStrings = map[State]string{
	NotStarted:    "NotStarted",
	Starting:      "Starting",
	Ready:         "Ready",
	Stopped:       "Stopped",
	StartupFailed: "StartupFailed",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown State (%d)", int(s))
}
