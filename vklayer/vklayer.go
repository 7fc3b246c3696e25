// Package vklayer registers the injector as an implicit Vulkan layer for
// the current user or for the whole machine.
//
// The layer payload (module builds and their JSON manifests) lives in one
// shared directory; registration is a DWORD value named after a manifest
// path under the loader's ImplicitLayers key. Only one scope is active at
// a time.
package vklayer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/crafted-tech/fxsetup/installer"
)

var (
	// ErrRegistryOperation wraps every failure to change layer registration.
	ErrRegistryOperation = errors.New("layer registration failed")

	// ErrElevationRequired is returned before any change is made when a
	// machine scope operation is attempted without administrator rights.
	ErrElevationRequired = errors.New("machine-wide layer registration requires administrator rights")
)

// Registry locations of the implicit layer list.
const (
	KeyPath      = `Software\Khronos\Vulkan\ImplicitLayers`
	WOW64KeyPath = `Software\Wow6432Node\Khronos\Vulkan\ImplicitLayers`
)

// Manifest file names in the shared directory.
const (
	Manifest32 = "ReShade32.json"
	Manifest64 = "ReShade64.json"
)

// Scope is where the layer is registered.
type Scope int

const (
	User Scope = iota
	Machine
)

func (s Scope) String() string {
	if s == Machine {
		return "machine"
	}
	return "user"
}

// Other returns the opposite scope.
func (s Scope) Other() Scope {
	if s == Machine {
		return User
	}
	return Machine
}

// ParseScope parses "user" or "machine".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return User, nil
	case "machine", "global":
		return Machine, nil
	}
	return User, fmt.Errorf("unknown layer scope %q", s)
}

// View selects the native or the 32-bit-on-64-bit registry view.
type View int

const (
	Native View = iota
	WOW64
)

// Store is the OS enumeration surface the loader reads layers from.
// Delete must succeed when the value or key is absent.
type Store interface {
	Set(scope Scope, view View, name string) error
	Delete(scope Scope, view View, name string) error
	Has(scope Scope, view View, name string) (bool, error)
}

// Extractor unpacks the layer payload into a directory.
type Extractor interface {
	ExtractAll(dir string) error
}

// Registrar enables and disables the layer.
type Registrar struct {
	store    Store
	payload  Extractor
	dir      string
	is64     bool
	elevated bool
	logger   *log.Logger
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithHost64 declares whether the OS is 64-bit. Defaults to true.
func WithHost64(is64 bool) Option {
	return func(r *Registrar) { r.is64 = is64 }
}

// WithElevated declares whether the process may change machine scope.
func WithElevated(elevated bool) Option {
	return func(r *Registrar) { r.elevated = elevated }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registrar) { r.logger = l }
}

// New creates a Registrar keeping the payload in dir.
func New(store Store, payload Extractor, dir string, opts ...Option) *Registrar {
	r := &Registrar{
		store:   store,
		payload: payload,
		dir:     dir,
		is64:    true,
		logger:  log.New(os.Stderr),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir is the shared payload directory.
func (r *Registrar) Dir() string {
	return r.dir
}

// Elevated reports whether machine scope can be changed.
func (r *Registrar) Elevated() bool {
	return r.elevated
}

type registration struct {
	view View
	name string
}

func (r *Registrar) registrations() []registration {
	if r.is64 {
		return []registration{
			{Native, filepath.Join(r.dir, Manifest64)},
			{WOW64, filepath.Join(r.dir, Manifest32)},
		}
	}
	return []registration{{Native, filepath.Join(r.dir, Manifest32)}}
}

// IsEnabled checks for the primary registration value of scope. The
// manifest files themselves are not checked.
func (r *Registrar) IsEnabled(scope Scope) (bool, error) {
	primary := r.registrations()[0]
	ok, err := r.store.Has(scope, primary.view, primary.name)
	if err != nil {
		return false, fmt.Errorf("%w: query %s scope: %w", ErrRegistryOperation, scope, err)
	}
	return ok, nil
}

// Enable makes scope the active registration: the other scope is disabled,
// the shared directory is recreated from the payload and the manifests are
// registered.
func (r *Registrar) Enable(scope Scope) error {
	if err := r.requireElevation(scope); err != nil {
		return err
	}
	other := scope.Other()
	otherEnabled, err := r.IsEnabled(other)
	if err != nil {
		return err
	}
	if otherEnabled {
		if err := r.requireElevation(other); err != nil {
			return err
		}
		if err := r.unregister(other); err != nil {
			return err
		}
	}

	if err := installer.ResetDir(r.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrRegistryOperation, err)
	}
	if err := r.payload.ExtractAll(r.dir); err != nil {
		return fmt.Errorf("%w: extract layer payload: %w", ErrRegistryOperation, err)
	}
	for _, reg := range r.registrations() {
		if err := r.store.Set(scope, reg.view, reg.name); err != nil {
			return fmt.Errorf("%w: register %s in %s scope: %w", ErrRegistryOperation, reg.name, scope, err)
		}
	}
	r.logger.Info("layer enabled", "scope", scope, "dir", r.dir)
	return nil
}

// Disable removes the registration of scope. The shared directory is
// deleted unless the other scope still uses it. Absent state is not an error.
func (r *Registrar) Disable(scope Scope) error {
	if err := r.requireElevation(scope); err != nil {
		return err
	}
	if err := r.unregister(scope); err != nil {
		return err
	}

	otherEnabled, err := r.IsEnabled(scope.Other())
	if err != nil {
		return err
	}
	if !otherEnabled {
		if err := os.RemoveAll(r.dir); err != nil {
			return fmt.Errorf("%w: remove %s: %w", ErrRegistryOperation, r.dir, err)
		}
	}
	r.logger.Info("layer disabled", "scope", scope)
	return nil
}

func (r *Registrar) unregister(scope Scope) error {
	for _, reg := range r.registrations() {
		if err := r.store.Delete(scope, reg.view, reg.name); err != nil {
			return fmt.Errorf("%w: unregister %s from %s scope: %w", ErrRegistryOperation, reg.name, scope, err)
		}
	}
	return nil
}

func (r *Registrar) requireElevation(scope Scope) error {
	if scope == Machine && !r.elevated {
		return ErrElevationRequired
	}
	return nil
}

// Ambient keeps the layer registered for the current user while the setup
// tool runs without a target, so every Vulkan application started in the
// meantime picks it up.
type Ambient struct {
	r           *Registrar
	userEnabled bool
}

// NewAmbient wraps r.
func NewAmbient(r *Registrar) *Ambient {
	return &Ambient{r: r}
}

// Start enables user scope, or refreshes the machine payload when machine
// scope is already active. Without elevation an active machine scope is
// left untouched.
func (a *Ambient) Start() error {
	machine, err := a.r.IsEnabled(Machine)
	if err != nil {
		return err
	}
	if machine {
		if !a.r.elevated {
			a.r.logger.Warn("machine scope layer active, payload not refreshed without elevation")
			return nil
		}
		return a.r.Enable(Machine)
	}
	if err := a.r.Enable(User); err != nil {
		return err
	}
	a.userEnabled = true
	return nil
}

// Stop disables user scope again unless machine scope is active.
func (a *Ambient) Stop() error {
	machine, err := a.r.IsEnabled(Machine)
	if err != nil {
		return err
	}
	if machine {
		return nil
	}
	a.userEnabled = false
	return a.r.Disable(User)
}

// UserEnabled reports whether Start registered the user scope.
func (a *Ambient) UserEnabled() bool {
	return a.userEnabled
}
