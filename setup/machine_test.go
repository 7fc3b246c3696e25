package setup

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/inifile"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/peimage"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/vklayer"
)

var target = filepath.Join("games", "Demo", "Demo.exe")

func testCompat(t *testing.T) *catalog.Compatibility {
	t.Helper()
	doc, err := inifile.Parse(strings.NewReader(`
[GTA5.exe]
RenderApi=D3D11
DepthReversed=1

[Demo.exe]
DepthUpsideDown=1
`))
	if err != nil {
		t.Fatal(err)
	}
	return catalog.NewCompatibility(doc)
}

func findEffect[T Effect](effects []Effect) (T, bool) {
	for _, e := range effects {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func mustEffect[T Effect](t *testing.T, effects []Effect) T {
	t.Helper()
	v, ok := findEffect[T](effects)
	if !ok {
		var zero T
		t.Fatalf("no %T effect in %#v", zero, effects)
	}
	return v
}

func wantPhase(t *testing.T, s State, want Phase) {
	t.Helper()
	if s.Phase != want {
		detail := ""
		if s.Failure != nil {
			detail = ": " + s.Failure.Error()
		}
		t.Fatalf("phase = %s, want %s%s", s.Phase, want, detail)
	}
}

func image(imports ...string) *peimage.Image {
	return &peimage.Image{Arch: peimage.Arch64, Imports: imports}
}

// toPrepare drives a fresh workflow up to PhasePrepareTarget.
func toPrepare(t *testing.T, m *Machine, sel Selection, img *peimage.Image) (State, []Effect) {
	t.Helper()
	s, _ := m.Start(sel)
	wantPhase(t, s, PhaseCheckElevation)
	s, _ = m.Transition(s, WritableChecked{Writable: true})
	wantPhase(t, s, PhaseDetectAPI)
	return m.Transition(s, Inspected{Image: img, Name: "Demo Game"})
}

// toDeploy drives a fresh workflow up to PhaseDeploy with no existing module.
func toDeploy(t *testing.T, m *Machine, sel Selection, img *peimage.Image) State {
	t.Helper()
	s, _ := toPrepare(t, m, sel, img)
	wantPhase(t, s, PhasePrepareTarget)
	s, _ = m.Transition(s, ModuleInspected{ConfigPath: filepath.Join(filepath.Dir(target), "ReShade.ini")})
	wantPhase(t, s, PhaseDeploy)
	return s
}

func TestStartWithoutTargetFails(t *testing.T) {
	t.Parallel()

	s, _ := NewMachine().Start(Selection{})
	wantPhase(t, s, PhaseFailed)
	if ExitCode(s) != 1 {
		t.Errorf("ExitCode() = %d, want 1", ExitCode(s))
	}
}

func TestUnwritableTargetRequiresRestart(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s, effects := m.Start(Selection{Target: target, API: renderapi.DXGI, Left: 10, Top: 20.5})
	if check := mustEffect[CheckWritable](t, effects); check.Dir != filepath.Dir(target) {
		t.Errorf("CheckWritable.Dir = %q", check.Dir)
	}

	s, _ = m.Transition(s, WritableChecked{Writable: false})
	wantPhase(t, s, PhaseRestartRequired)
	want := []string{target, "--elevated", "--left", "10", "--top", "20.5", "--api", "dxgi"}
	if !slices.Equal(s.RestartArgs, want) {
		t.Errorf("RestartArgs = %q, want %q", s.RestartArgs, want)
	}
	if ExitCode(s) != 0 {
		t.Errorf("ExitCode() = %d, want 0", ExitCode(s))
	}
}

func TestUnwritableWhileElevatedFails(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s, _ := m.Start(Selection{Target: target, Elevated: true})
	s, _ = m.Transition(s, WritableChecked{Writable: false})
	wantPhase(t, s, PhaseFailed)
	if s.Failure.Kind != KindPermissionDenied {
		t.Errorf("Failure.Kind = %s, want PermissionDenied", s.Failure.Kind)
	}
}

func TestInvalidBinaryFails(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s, _ := m.Start(Selection{Target: target})
	s, _ = m.Transition(s, WritableChecked{Writable: true})
	s, _ = m.Transition(s, Inspected{Err: fmt.Errorf("open: %w", peimage.ErrBinaryFormatInvalid)})
	wantPhase(t, s, PhaseFailed)
	if s.Failure.Kind != KindBinaryFormatInvalid {
		t.Errorf("Failure.Kind = %s", s.Failure.Kind)
	}
}

func TestDetectionPicksModule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		exe     string
		imports []string
		api     renderapi.API
		module  string
	}{
		{"dxgi", "Demo.exe", []string{"KERNEL32.dll", "d3d11.dll"}, renderapi.DXGI, "dxgi.dll"},
		{"d3d9", "Demo.exe", []string{"d3d9.dll"}, renderapi.D3D9, "d3d9.dll"},
		{"opengl", "Demo.exe", []string{"OPENGL32.dll"}, renderapi.OpenGL, "opengl32.dll"},
		{"vulkan", "Demo.exe", []string{"vulkan-1.dll", "dxgi.dll"}, renderapi.Vulkan, ""},
		{"catalog wins over imports", "GTA5.exe", []string{"vulkan-1.dll"}, renderapi.DXGI, "dxgi.dll"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMachine(WithCompatibility(testCompat(t)))
			exe := filepath.Join(filepath.Dir(target), tt.exe)
			s, effects := toPrepare(t, m, Selection{Target: exe}, image(tt.imports...))
			wantPhase(t, s, PhasePrepareTarget)
			if s.API != tt.api {
				t.Errorf("API = %s, want %s", s.API, tt.api)
			}
			wantModule := ""
			if tt.module != "" {
				wantModule = filepath.Join(filepath.Dir(exe), tt.module)
			}
			if got := mustEffect[InspectModule](t, effects); got.ModulePath != wantModule {
				t.Errorf("InspectModule.ModulePath = %q, want %q", got.ModulePath, wantModule)
			}
		})
	}
}

func TestOverrideStillInspectsTarget(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s, _ := m.Start(Selection{Target: target, API: renderapi.OpenGL})
	s, effects := m.Transition(s, WritableChecked{Writable: true})
	mustEffect[InspectTarget](t, effects)

	img := image("d3d9.dll")
	img.Arch = peimage.Arch32
	s, _ = m.Transition(s, Inspected{Image: img})
	wantPhase(t, s, PhasePrepareTarget)
	if s.API != renderapi.OpenGL {
		t.Errorf("API = %s, want override opengl", s.API)
	}
	if s.Target.Arch != peimage.Arch32 {
		t.Errorf("Target.Arch = %s, want 32-bit", s.Target.Arch)
	}
}

func TestD3D8TargetWarns(t *testing.T) {
	t.Parallel()

	_, effects := toPrepare(t, NewMachine(), Selection{Target: target}, image("d3d8.dll"))
	if w := mustEffect[Warn](t, effects); !strings.Contains(w.Message, "d3d8to9") {
		t.Errorf("Warn.Message = %q", w.Message)
	}
}

func TestUndeterminedAPI(t *testing.T) {
	t.Parallel()

	m := NewMachine()

	s, _ := toPrepare(t, m, Selection{Target: target, Unattended: true}, image("KERNEL32.dll"))
	wantPhase(t, s, PhaseFailed)
	if s.Failure.Kind != KindAPIUndetermined {
		t.Errorf("Failure.Kind = %s, want APIUndetermined", s.Failure.Kind)
	}

	s, effects := toPrepare(t, m, Selection{Target: target}, image("KERNEL32.dll"))
	wantPhase(t, s, PhaseAwaitAPIChoice)
	if ask := mustEffect[AskAPI](t, effects); ask.Target.DisplayName() != "Demo Game" {
		t.Errorf("AskAPI.Target name = %q", ask.Target.DisplayName())
	}

	chosen, _ := m.Transition(s, APIChosen{API: renderapi.D3D9})
	wantPhase(t, chosen, PhasePrepareTarget)
	if chosen.API != renderapi.D3D9 {
		t.Errorf("API = %s", chosen.API)
	}

	cancelled, _ := m.Transition(s, APIChosen{API: renderapi.Unset})
	wantPhase(t, cancelled, PhaseCancelled)
}

func TestForeignModuleIsNeverOverwritten(t *testing.T) {
	t.Parallel()

	for _, unattended := range []bool{false, true} {
		m := NewMachine()
		s, _ := toPrepare(t, m, Selection{Target: target, Unattended: unattended}, image("d3d9.dll"))
		s, effects := m.Transition(s, ModuleInspected{Exists: true, ProductName: "Microsoft Windows"})
		wantPhase(t, s, PhaseFailed)
		if s.Failure.Kind != KindForeignFileConflict {
			t.Errorf("unattended=%v: Failure.Kind = %s", unattended, s.Failure.Kind)
		}
		if !errors.Is(s.Failure, ErrForeignFile) {
			t.Errorf("unattended=%v: failure does not wrap ErrForeignFile", unattended)
		}
		if _, ok := findEffect[Deploy](effects); ok {
			t.Errorf("unattended=%v: deploy requested", unattended)
		}
	}
}

func TestExistingInstall(t *testing.T) {
	t.Parallel()

	m := NewMachine(WithBundledVersion("5.0.0"))
	existing := ModuleInspected{ConfigPath: "cfg.ini", Exists: true, ProductName: ProductName, Version: "4.9.1"}

	s, _ := toPrepare(t, m, Selection{Target: target, Unattended: true}, image("dxgi.dll"))
	s, _ = m.Transition(s, existing)
	wantPhase(t, s, PhaseDeploy)

	s, _ = toPrepare(t, m, Selection{Target: target}, image("dxgi.dll"))
	s, effects := m.Transition(s, existing)
	wantPhase(t, s, PhaseExistingInstallConflict)
	ask := mustEffect[AskConflict](t, effects)
	if ask.Conflict.Action != installer.ActionUpgrade || ask.Conflict.InstalledVersion != "4.9.1" {
		t.Errorf("Conflict = %+v", ask.Conflict)
	}

	update, _ := m.Transition(s, ConflictResolved{Decision: DecisionUpdate})
	wantPhase(t, update, PhaseDeploy)

	cancel, _ := m.Transition(s, ConflictResolved{Decision: DecisionCancel})
	wantPhase(t, cancel, PhaseCancelled)

	uninstall, effects := m.Transition(s, ConflictResolved{Decision: DecisionUninstall})
	wantPhase(t, uninstall, PhaseUninstall)
	u := mustEffect[Uninstall](t, effects)
	if u.ConfigPath != "cfg.ini" || filepath.Base(u.ModulePath) != "dxgi.dll" {
		t.Errorf("Uninstall = %+v", u)
	}
	done, _ := m.Transition(uninstall, Uninstalled{})
	wantPhase(t, done, PhaseFinalized)
	if !done.Uninstalled {
		t.Error("Uninstalled not set")
	}
}

func TestDeployFailureIsClassified(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s := toDeploy(t, m, Selection{Target: target}, image("d3d9.dll"))
	s, _ = m.Transition(s, Deployed{Err: fmt.Errorf("Install d3d9.dll: %w", errors.New("disk full"))})
	wantPhase(t, s, PhaseFailed)
	if s.Failure.Kind != KindIO {
		t.Errorf("Failure.Kind = %s, want IO", s.Failure.Kind)
	}
}

func TestPackagesSkippedWhenUnattended(t *testing.T) {
	t.Parallel()

	m := NewMachine(WithCompatibility(testCompat(t)), WithPackages([]catalog.Package{{ID: "a"}}))
	s := toDeploy(t, m, Selection{Target: target, Unattended: true}, image("d3d9.dll"))
	s, effects := m.Transition(s, Deployed{})
	wantPhase(t, s, PhaseWriteConfig)
	w := mustEffect[WriteConfig](t, effects)
	if !w.DefaultSearchPaths {
		t.Error("DefaultSearchPaths = false, want true without packages")
	}
	if !w.Entry.Has(catalog.KeyDepthUpsideDown) || w.Entry.Executable != "Demo.exe" {
		t.Errorf("WriteConfig.Entry = %+v", w.Entry)
	}

	s, effects = m.Transition(s, ConfigWritten{})
	wantPhase(t, s, PhaseFinalized)
	if _, ok := findEffect[OfferOpenConfig](effects); ok {
		t.Error("unattended run offered to open the configuration")
	}
}

func TestPackagesSkippedWithoutCatalog(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s := toDeploy(t, m, Selection{Target: target}, image("d3d9.dll"))
	s, _ = m.Transition(s, Deployed{})
	wantPhase(t, s, PhaseWriteConfig)
}

func TestPackageAcquisition(t *testing.T) {
	t.Parallel()

	pkgs := []catalog.Package{{ID: "a"}, {ID: "b"}}
	m := NewMachine(WithPackages(pkgs))
	s := toDeploy(t, m, Selection{Target: target}, image("d3d9.dll"))
	s, effects := m.Transition(s, Deployed{})
	wantPhase(t, s, PhaseSelectPackages)
	if ask := mustEffect[AskPackages](t, effects); len(ask.Packages) != 2 {
		t.Errorf("AskPackages = %+v", ask)
	}

	skipped, _ := m.Transition(s, PackagesSelected{})
	wantPhase(t, skipped, PhaseWriteConfig)

	s, effects = m.Transition(s, PackagesSelected{Packages: pkgs[1:]})
	wantPhase(t, s, PhaseAcquirePackages)
	acq := mustEffect[AcquirePackages](t, effects)
	if len(acq.Packages) != 1 || acq.Packages[0].ID != "b" || acq.TargetDir != filepath.Dir(target) {
		t.Errorf("AcquirePackages = %+v", acq)
	}

	progress := acquire.Progress{Received: 10, Total: -1}
	same, effects := m.Transition(s, PackageProgress{Progress: progress})
	wantPhase(t, same, PhaseAcquirePackages)
	if show := mustEffect[ShowProgress](t, effects); show.Progress != progress {
		t.Errorf("ShowProgress = %+v", show)
	}

	failed, _ := m.Transition(s, PackagesAcquired{Err: &acquire.PackageError{
		Package: pkgs[1], Op: "download", Err: acquire.ErrNetworkFailure,
	}})
	wantPhase(t, failed, PhaseFailed)
	if failed.Failure.Kind != KindNetworkFailure {
		t.Errorf("Failure.Kind = %s, want NetworkFailure", failed.Failure.Kind)
	}
	if !strings.Contains(failed.Failure.Error(), "b") {
		t.Errorf("failure %q does not name the package", failed.Failure.Error())
	}

	ok, effects := m.Transition(s, PackagesAcquired{Installed: 1})
	wantPhase(t, ok, PhaseWriteConfig)
	if w := mustEffect[WriteConfig](t, effects); w.DefaultSearchPaths {
		t.Error("DefaultSearchPaths = true after packages recorded their paths")
	}
}

func TestVulkanTarget(t *testing.T) {
	t.Parallel()

	shared := filepath.Join("ProgramData", "ReShade")
	m := NewMachine(WithSharedDir(shared))
	s, _ := toPrepare(t, m, Selection{Target: target, Left: 1, Top: 2}, image("vulkan-1.dll"))
	s, _ = m.Transition(s, ModuleInspected{ConfigPath: "ReShade.ini"})
	wantPhase(t, s, PhaseDeploy)
	s, effects := m.Transition(s, Deployed{})
	w := mustEffect[WriteConfig](t, effects)
	if w.Resolver.Base != shared || w.Resolver.Anchor != filepath.Dir(target) {
		t.Errorf("Resolver = %+v, want shared resolver", w.Resolver)
	}

	s, effects = m.Transition(s, ConfigWritten{})
	wantPhase(t, s, PhaseFinalized)
	if offer := mustEffect[OfferLayerScope](t, effects); offer.Elevated {
		t.Error("OfferLayerScope.Elevated = true")
	}

	restart, _ := m.Transition(s, LayerScopeRequested{Scope: vklayer.Machine})
	wantPhase(t, restart, PhaseRestartRequired)
	want := []string{target, "--elevated", "--left", "1", "--top", "2", "--api", "vulkan", "--finished", "--layer-scope", "machine"}
	if !slices.Equal(restart.RestartArgs, want) {
		t.Errorf("RestartArgs = %q, want %q", restart.RestartArgs, want)
	}
}

func TestFinishedRelaunchSwitchesLayerScope(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	sel := Selection{Target: target, API: renderapi.Vulkan, Elevated: true, Finished: true, SwitchLayer: true, LayerScope: vklayer.Machine}
	s, effects := m.Start(sel)
	wantPhase(t, s, PhaseFinalized)
	if sw := mustEffect[SwitchLayerScope](t, effects); sw.Scope != vklayer.Machine {
		t.Errorf("SwitchLayerScope.Scope = %s", sw.Scope)
	}

	wantConfig := filepath.Join(filepath.Dir(target), "ReShade.ini")
	if s.ConfigPath != wantConfig {
		t.Errorf("ConfigPath = %q, want %q", s.ConfigPath, wantConfig)
	}

	done, effects := m.Transition(s, LayerScopeSwitched{Scope: vklayer.Machine})
	wantPhase(t, done, PhaseFinalized)
	if r := mustEffect[Report](t, effects); !r.Status.Success {
		t.Errorf("final report = %+v", r.Status)
	}
	if open := mustEffect[OfferOpenConfig](t, effects); open.Path != wantConfig {
		t.Errorf("OfferOpenConfig.Path = %q, want %q", open.Path, wantConfig)
	}
	if _, effects = m.Transition(done, LayerScopeSwitched{Scope: vklayer.User}); len(effects) != 1 {
		t.Errorf("second switch produced %d effects, want only the report", len(effects))
	}

	failed, _ := m.Transition(s, LayerScopeSwitched{Scope: vklayer.Machine, Err: fmt.Errorf("%w: access denied", vklayer.ErrRegistryOperation)})
	wantPhase(t, failed, PhaseFailed)
	if failed.Failure.Kind != KindRegistryOperationFailure {
		t.Errorf("Failure.Kind = %s", failed.Failure.Kind)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	s, _ := m.Start(Selection{Target: target})
	s, _ = m.Transition(s, Cancel{})
	wantPhase(t, s, PhaseCancelled)

	again, effects := m.Transition(s, Cancel{})
	wantPhase(t, again, PhaseCancelled)
	if len(effects) != 0 {
		t.Errorf("cancel in terminal phase produced %d effects", len(effects))
	}

	late, _ := m.Transition(s, WritableChecked{Writable: true})
	wantPhase(t, late, PhaseCancelled)
}
