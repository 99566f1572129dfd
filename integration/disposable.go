// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package integration

import (
	"sync"

	"github.com/pkg/errors"
)

// LeakyAsset is a handler for disposable assets like node processes and the
// clients connected to them.
type LeakyAsset interface {
	Dispose()
}

var (
	// ErrAssetRegistered is returned when an asset is registered twice.
	ErrAssetRegistered = errors.New("leaky asset is already registered")

	// ErrAssetNotRegistered is returned when removing an unknown asset.
	ErrAssetNotRegistered = errors.New("leaky asset is not registered")
)

// Registry keeps track of leaky assets so they can be disposed before the
// test binary exits.  Assets are disposed in reverse registration order.
type Registry struct {
	mtx    sync.Mutex
	assets []LeakyAsset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) index(asset LeakyAsset) int {
	for i, a := range r.assets {
		if a == asset {
			return i
		}
	}
	return -1
}

// Register adds asset to the registry.
func (r *Registry) Register(asset LeakyAsset) error {
	if asset == nil {
		return errors.New("nil leaky asset")
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.index(asset) >= 0 {
		return errors.Wrapf(ErrAssetRegistered, "%v", asset)
	}
	r.assets = append(r.assets, asset)
	return nil
}

// Deregister removes asset from the registry without disposing it.
func (r *Registry) Deregister(asset LeakyAsset) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	i := r.index(asset)
	if i < 0 {
		return errors.Wrapf(ErrAssetNotRegistered, "%v", asset)
	}
	r.assets = append(r.assets[:i], r.assets[i+1:]...)
	return nil
}

// Size returns the number of registered assets.
func (r *Registry) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.assets)
}

// Verify returns an error when assets are still registered.
func (r *Registry) Verify() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if len(r.assets) != 0 {
		return errors.Errorf("incorrect state: resources leak detected: %v",
			r.assets)
	}
	return nil
}

// DisposeAll empties the registry and disposes its assets, most recent
// first.
func (r *Registry) DisposeAll() {
	r.mtx.Lock()
	assets := r.assets
	r.assets = nil
	r.mtx.Unlock()

	for i := len(assets) - 1; i >= 0; i-- {
		assets[i].Dispose()
	}
}

// leaksList keeps track of all leaky assets created by test setup.
var leaksList = NewRegistry()

// RegisterDisposableAsset registers a disposable asset in the process wide
// registry.  Registering the same asset twice is a setup malfunction.
func RegisterDisposableAsset(asset LeakyAsset) {
	CheckTestSetupMalfunction(leaksList.Register(asset))
}

// DeRegisterDisposableAsset removes a disposable asset from the process wide
// registry.  Removing an unknown asset is a setup malfunction.
func DeRegisterDisposableAsset(asset LeakyAsset) {
	CheckTestSetupMalfunction(leaksList.Deregister(asset))
}

// VerifyNoAssetsLeaked checks all leaky assets were properly disposed.
// Crashes if not.
func VerifyNoAssetsLeaked() {
	CheckTestSetupMalfunction(leaksList.Verify())
}
