// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainapi

import "github.com/pkg/errors"

// SignedExtension describes an extra field the runtime appends to signed
// extrinsics.  Extrinsic and Payload map field names to their type names; a
// no-op extension leaves both empty.
type SignedExtension struct {
	Name      string
	Extrinsic map[string]string
	Payload   map[string]string
}

// IsNoop reports whether the extension adds no data to extrinsics.
func (e SignedExtension) IsNoop() bool {
	return len(e.Extrinsic) == 0 && len(e.Payload) == 0
}

// FakeTransactionFinalizer is the no-op extension declared by the template
// runtime.  Clients that do not know it refuse to build extrinsics.
var FakeTransactionFinalizer = SignedExtension{
	Name:      "FakeTransactionFinalizer",
	Extrinsic: map[string]string{},
	Payload:   map[string]string{},
}

// ErrDuplicateExtension is returned when an extension name is registered
// twice.
var ErrDuplicateExtension = errors.New("signed extension already registered")

// registry keeps signed extensions in registration order.
type registry struct {
	order  []string
	byName map[string]SignedExtension
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]SignedExtension)}
}

func (r *registry) add(ext SignedExtension) error {
	if ext.Name == "" {
		return errors.New("signed extension has no name")
	}
	if _, ok := r.byName[ext.Name]; ok {
		return errors.Wrap(ErrDuplicateExtension, ext.Name)
	}
	r.order = append(r.order, ext.Name)
	r.byName[ext.Name] = ext
	return nil
}

func (r *registry) get(name string) (SignedExtension, bool) {
	ext, ok := r.byName[name]
	return ext, ok
}

func (r *registry) all() []SignedExtension {
	exts := make([]SignedExtension, 0, len(r.order))
	for _, name := range r.order {
		exts = append(exts, r.byName[name])
	}
	return exts
}
