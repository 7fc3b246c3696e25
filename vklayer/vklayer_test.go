package vklayer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

type dirPayload struct {
	calls int
	err   error
}

func (p *dirPayload) ExtractAll(dir string) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	for _, name := range []string{Manifest32, Manifest64, "ReShade32.dll", "ReShade64.dll"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newRegistrar(t *testing.T, store Store, opts ...Option) (*Registrar, *dirPayload) {
	t.Helper()
	payload := &dirPayload{}
	dir := filepath.Join(t.TempDir(), "ReShade")
	opts = append([]Option{WithLogger(log.New(io.Discard)), WithElevated(true)}, opts...)
	return New(store, payload, dir, opts...), payload
}

func mustEnabled(t *testing.T, r *Registrar, scope Scope) bool {
	t.Helper()
	ok, err := r.IsEnabled(scope)
	if err != nil {
		t.Fatalf("IsEnabled(%s) error = %v", scope, err)
	}
	return ok
}

func TestEnableRegistersBothViewsOn64BitHosts(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, payload := newRegistrar(t, store)

	if err := r.Enable(User); err != nil {
		t.Fatalf("Enable(User) error = %v", err)
	}
	if payload.calls != 1 {
		t.Errorf("payload extracted %d times, want 1", payload.calls)
	}
	if ok, _ := store.Has(User, Native, filepath.Join(r.Dir(), Manifest64)); !ok {
		t.Error("64-bit manifest not registered in native view")
	}
	if ok, _ := store.Has(User, WOW64, filepath.Join(r.Dir(), Manifest32)); !ok {
		t.Error("32-bit manifest not registered in WOW64 view")
	}
	if store.Len() != 2 {
		t.Errorf("store has %d values, want 2", store.Len())
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), Manifest64)); err != nil {
		t.Errorf("payload not extracted: %v", err)
	}
}

func TestEnableOn32BitHost(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, _ := newRegistrar(t, store, WithHost64(false))

	if err := r.Enable(User); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Has(User, Native, filepath.Join(r.Dir(), Manifest32)); !ok {
		t.Error("32-bit manifest not registered in native view")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d values, want 1", store.Len())
	}
	if !mustEnabled(t, r, User) {
		t.Error("IsEnabled(User) = false")
	}
}

func TestScopesAreMutuallyExclusive(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, _ := newRegistrar(t, store)

	if err := r.Enable(User); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(Machine); err != nil {
		t.Fatalf("Enable(Machine) error = %v", err)
	}
	if mustEnabled(t, r, User) {
		t.Error("user scope still enabled after enabling machine scope")
	}
	if !mustEnabled(t, r, Machine) {
		t.Error("machine scope not enabled")
	}

	if err := r.Enable(User); err != nil {
		t.Fatal(err)
	}
	if mustEnabled(t, r, Machine) || !mustEnabled(t, r, User) {
		t.Error("switching back to user scope left machine scope enabled")
	}
}

func TestDisableIsTolerantAndKeepsSharedDirForOtherScope(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, _ := newRegistrar(t, store)

	if err := r.Disable(User); err != nil {
		t.Fatalf("Disable on clean state error = %v", err)
	}

	if err := r.Enable(Machine); err != nil {
		t.Fatal(err)
	}
	if err := r.Disable(User); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(r.Dir()); err != nil {
		t.Errorf("shared dir removed while machine scope uses it: %v", err)
	}

	if err := r.Disable(Machine); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Errorf("shared dir still present after disabling every scope: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d values, want 0", store.Len())
	}
}

func TestMachineScopeRequiresElevation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, payload := newRegistrar(t, store, WithElevated(false))

	if err := r.Enable(Machine); !errors.Is(err, ErrElevationRequired) {
		t.Fatalf("Enable(Machine) error = %v, want ErrElevationRequired", err)
	}
	if payload.calls != 0 || store.Len() != 0 {
		t.Error("state changed despite missing elevation")
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Error("shared dir created despite missing elevation")
	}
}

func TestEnableFailuresWrapRegistryError(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.FailSet = errors.New("access denied")
	r, _ := newRegistrar(t, store)
	if err := r.Enable(User); !errors.Is(err, ErrRegistryOperation) {
		t.Errorf("Enable() error = %v, want ErrRegistryOperation", err)
	}

	r2, payload := newRegistrar(t, NewMemoryStore())
	payload.err = errors.New("bad zip")
	if err := r2.Enable(User); !errors.Is(err, ErrRegistryOperation) {
		t.Errorf("Enable() with broken payload error = %v, want ErrRegistryOperation", err)
	}
}

func TestAmbientLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, _ := newRegistrar(t, store)
	a := NewAmbient(r)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.UserEnabled() || !mustEnabled(t, r, User) {
		t.Error("Start() did not enable user scope")
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if mustEnabled(t, r, User) {
		t.Error("Stop() left user scope enabled")
	}
}

func TestAmbientRefreshesActiveMachineScope(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	r, payload := newRegistrar(t, store)
	if err := r.Enable(Machine); err != nil {
		t.Fatal(err)
	}

	a := NewAmbient(r)
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if payload.calls != 2 {
		t.Errorf("payload extracted %d times, want refresh", payload.calls)
	}
	if a.UserEnabled() || mustEnabled(t, r, User) {
		t.Error("user scope enabled while machine scope active")
	}
	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
	if !mustEnabled(t, r, Machine) {
		t.Error("Stop() disabled machine scope")
	}
}

func TestAmbientLeavesMachineScopeWithoutElevation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	elevated, _ := newRegistrar(t, store)
	if err := elevated.Enable(Machine); err != nil {
		t.Fatal(err)
	}

	limited := New(store, &dirPayload{}, elevated.Dir(), WithLogger(log.New(io.Discard)))
	a := NewAmbient(limited)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if mustEnabled(t, limited, User) {
		t.Error("user scope enabled while machine scope active")
	}
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Scope{"user": User, "Machine": Machine, "global": Machine} {
		got, err := ParseScope(in)
		if err != nil || got != want {
			t.Errorf("ParseScope(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseScope("system"); err == nil {
		t.Error("ParseScope(system) succeeded")
	}
}
