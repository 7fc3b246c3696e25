//go:build !windows

package vklayer

import "github.com/crafted-tech/fxsetup/platform"

// RegistryStore has no backing store outside Windows.
type RegistryStore struct{}

// NewRegistryStore returns a Store whose operations all fail.
func NewRegistryStore() RegistryStore {
	return RegistryStore{}
}

// Set implements Store.
func (RegistryStore) Set(Scope, View, string) error { return platform.ErrUnsupported }

// Delete implements Store.
func (RegistryStore) Delete(Scope, View, string) error { return platform.ErrUnsupported }

// Has implements Store.
func (RegistryStore) Has(Scope, View, string) (bool, error) { return false, platform.ErrUnsupported }
