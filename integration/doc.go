// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package integration

disposable.go provides a registry to ensure proper tracking and
disposal of leaky assets such as running nodes.

testutil.go reports test setup malfunctions: it disposes every
registered asset and then crashes the test binary.
*/
package integration
