//go:build windows

package vklayer

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

// RegistryStore keeps registrations in HKCU (user) or HKLM (machine).
type RegistryStore struct{}

// NewRegistryStore returns the Windows registry backed Store.
func NewRegistryStore() RegistryStore {
	return RegistryStore{}
}

func hive(scope Scope) registry.Key {
	if scope == Machine {
		return registry.LOCAL_MACHINE
	}
	return registry.CURRENT_USER
}

func keyPath(view View) string {
	if view == WOW64 {
		return WOW64KeyPath
	}
	return KeyPath
}

// Set writes a DWORD 0 value named name.
func (RegistryStore) Set(scope Scope, view View, name string) error {
	k, _, err := registry.CreateKey(hive(scope), keyPath(view), registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetDWordValue(name, 0)
}

// Delete removes the value, tolerating a missing key or value.
func (RegistryStore) Delete(scope Scope, view View, name string) error {
	k, err := registry.OpenKey(hive(scope), keyPath(view), registry.SET_VALUE|registry.WOW64_64KEY)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}

// Has reports whether the value exists.
func (RegistryStore) Has(scope Scope, view View, name string) (bool, error) {
	k, err := registry.OpenKey(hive(scope), keyPath(view), registry.QUERY_VALUE|registry.WOW64_64KEY)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer k.Close()

	_, _, err = k.GetValue(name, nil)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
