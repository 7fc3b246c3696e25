package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/config"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/renderapi"
)

// Machine holds the immutable inputs of the workflow and computes
// transitions. It performs no I/O.
type Machine struct {
	compat         *catalog.Compatibility
	packages       []catalog.Package
	sharedDir      string
	bundledVersion string
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithPackages sets the package catalog offered after deployment.
func WithPackages(packages []catalog.Package) MachineOption {
	return func(m *Machine) { m.packages = packages }
}

// WithCompatibility sets the compatibility database.
func WithCompatibility(c *catalog.Compatibility) MachineOption {
	return func(m *Machine) { m.compat = c }
}

// WithSharedDir sets the shared layer directory. Search paths written for
// Vulkan targets are resolved against it.
func WithSharedDir(dir string) MachineOption {
	return func(m *Machine) { m.sharedDir = dir }
}

// WithBundledVersion sets the version of the module carried in the payload.
func WithBundledVersion(v string) MachineOption {
	return func(m *Machine) { m.bundledVersion = v }
}

// NewMachine creates a Machine.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start returns the initial state for sel and its first effects.
func (m *Machine) Start(sel Selection) (State, []Effect) {
	return m.Transition(State{Phase: PhaseInit, Selection: sel}, Start{})
}

// Transition computes the next state. Events that do not apply to the
// current phase leave the state unchanged.
func (m *Machine) Transition(s State, ev Event) (State, []Effect) {
	if _, ok := ev.(Cancel); ok {
		if s.Phase.Terminal() {
			return s, nil
		}
		s.Phase = PhaseCancelled
		return s, []Effect{report(s, "Setup was cancelled.", "")}
	}

	switch s.Phase {
	case PhaseInit:
		if _, ok := ev.(Start); ok {
			return m.start(s)
		}
	case PhaseCheckElevation:
		if e, ok := ev.(WritableChecked); ok {
			return m.checkElevation(s, e)
		}
	case PhaseDetectAPI:
		if e, ok := ev.(Inspected); ok {
			return m.detect(s, e)
		}
	case PhaseAwaitAPIChoice:
		if e, ok := ev.(APIChosen); ok {
			if e.API == renderapi.Unset {
				return m.Transition(s, Cancel{})
			}
			s.API = e.API
			return m.prepare(s)
		}
	case PhasePrepareTarget:
		if e, ok := ev.(ModuleInspected); ok {
			return m.resolveExisting(s, e)
		}
	case PhaseExistingInstallConflict:
		if e, ok := ev.(ConflictResolved); ok {
			switch e.Decision {
			case DecisionUpdate:
				return m.deploy(s)
			case DecisionUninstall:
				s.Phase = PhaseUninstall
				return s, []Effect{
					report(s, "Uninstalling "+filepath.Base(s.ModulePath)+" ...", ""),
					Uninstall{TargetDir: s.Target.Dir(), ModulePath: s.ModulePath, ConfigPath: s.ConfigPath},
				}
			default:
				return m.Transition(s, Cancel{})
			}
		}
	case PhaseUninstall:
		if e, ok := ev.(Uninstalled); ok {
			if e.Err != nil {
				return fail(s, "Failed to delete some ReShade files", e.Err)
			}
			s.Phase = PhaseFinalized
			s.Uninstalled = true
			return s, []Effect{finish(s, "Successfully uninstalled.", "")}
		}
	case PhaseDeploy:
		if e, ok := ev.(Deployed); ok {
			if e.Err != nil {
				return fail(s, "Failed to install "+m.deployedName(s), e.Err)
			}
			return m.offerPackages(s)
		}
	case PhaseSelectPackages:
		if e, ok := ev.(PackagesSelected); ok {
			if len(e.Packages) == 0 {
				return m.writeConfig(s)
			}
			s.Phase = PhaseAcquirePackages
			s.Queue = append([]catalog.Package(nil), e.Packages...)
			return s, []Effect{
				report(s, fmt.Sprintf("Installing %d effect package(s) ...", len(s.Queue)), ""),
				AcquirePackages{
					Packages:   s.Queue,
					TargetDir:  s.Target.Dir(),
					ConfigPath: s.ConfigPath,
					Resolver:   m.resolver(s),
				},
			}
		}
	case PhaseAcquirePackages:
		switch e := ev.(type) {
		case PackageProgress:
			return s, []Effect{ShowProgress{Progress: e.Progress}}
		case PackagesAcquired:
			if e.Installed > 0 {
				s.PathsRecorded = true
			}
			if e.Err != nil {
				return fail(s, "Failed to install effect packages", e.Err)
			}
			return m.writeConfig(s)
		}
	case PhaseWriteConfig:
		if e, ok := ev.(ConfigWritten); ok {
			if e.Err != nil {
				return fail(s, "Failed to write "+filepath.Base(s.ConfigPath), e.Err)
			}
			return m.finalize(s)
		}
	case PhaseFinalized:
		switch e := ev.(type) {
		case LayerScopeRequested:
			sel := s.Selection
			sel.Finished = true
			sel.SwitchLayer = true
			sel.LayerScope = e.Scope
			sel.API = s.API
			if !sel.Elevated {
				next := restartRequired(s, sel)
				return next, []Effect{report(next, "Restarting with administrative rights ...", "")}
			}
			s.Selection = sel
			return s, []Effect{SwitchLayerScope{Scope: e.Scope}}
		case LayerScopeSwitched:
			if e.Err != nil {
				return fail(s, "Failed to register the Vulkan layer in "+e.Scope.String()+" scope", e.Err)
			}
			effects := []Effect{finish(s, "Vulkan layer registered in "+e.Scope.String()+" scope.", "")}
			return offerOpenConfig(s, effects)
		}
	}
	return s, nil
}

func (m *Machine) start(s State) (State, []Effect) {
	sel := s.Selection
	s.Target = Target{Path: sel.Target}
	s.API = sel.API
	if sel.Target == "" {
		return fail(s, "No target application selected", nil)
	}
	if sel.Finished {
		s.Phase = PhaseFinalized
		s.ModulePath = modulePath(s)
		s.ConfigPath = config.Path(s.Target.Dir(), s.ModulePath)
		if sel.SwitchLayer {
			return m.Transition(s, LayerScopeRequested{Scope: sel.LayerScope})
		}
		return m.finalize(s)
	}
	s.Phase = PhaseCheckElevation
	return s, []Effect{
		report(s, "Checking write access ...", s.Target.Dir()),
		CheckWritable{Dir: s.Target.Dir()},
	}
}

func (m *Machine) checkElevation(s State, e WritableChecked) (State, []Effect) {
	if !e.Writable {
		if s.Selection.Elevated {
			return fail(s, "Cannot write to "+s.Target.Dir(), fs.ErrPermission)
		}
		next := restartRequired(s, s.Selection)
		return next, []Effect{report(next, "Restarting with administrative rights ...", s.Target.Dir())}
	}
	s.Phase = PhaseDetectAPI
	return s, []Effect{
		report(s, "Analyzing executable ...", ""),
		InspectTarget{Path: s.Target.Path},
	}
}

func (m *Machine) detect(s State, e Inspected) (State, []Effect) {
	if e.Err == nil && e.Image == nil {
		e.Err = errors.New("no image")
	}
	if e.Err != nil {
		return fail(s, "Failed to analyze "+s.Target.Executable(), e.Err)
	}
	s.Target.Name = e.Name
	s.Target.Arch = e.Image.Arch

	s.Detection = renderapi.Detect(s.Target.Executable(), e.Image, m.compat)
	var effects []Effect
	if s.Detection.NeedsD3D8Wrapper {
		effects = append(effects, Warn{Message: "It looks like the target application uses Direct3D 8. " +
			"An additional d3d8to9 wrapper is required, available from https://github.com/crosire/d3d8to9/releases."})
	}

	switch {
	case s.API != renderapi.Unset:
	case s.Detection.Found():
		s.API = s.Detection.API
	case s.Selection.Unattended:
		next, failEffects := fail(s, "Could not determine the rendering API of "+s.Target.DisplayName(), renderapi.ErrUndetermined)
		return next, append(effects, failEffects...)
	default:
		s.Phase = PhaseAwaitAPIChoice
		return s, append(effects, AskAPI{Target: s.Target, Detection: s.Detection})
	}

	next, more := m.prepare(s)
	return next, append(effects, more...)
}

func (m *Machine) prepare(s State) (State, []Effect) {
	s.Phase = PhasePrepareTarget
	s.ModulePath = modulePath(s)
	return s, []Effect{
		report(s, "Installing ReShade ...", s.API.Title()),
		InspectModule{TargetDir: s.Target.Dir(), ModulePath: s.ModulePath},
	}
}

func (m *Machine) resolveExisting(s State, e ModuleInspected) (State, []Effect) {
	if e.Err != nil {
		return fail(s, "Failed to inspect "+filepath.Base(s.ModulePath), e.Err)
	}
	s.ConfigPath = e.ConfigPath
	if !e.Exists {
		return m.deploy(s)
	}
	if e.ProductName != ProductName {
		return fail(s, filepath.Base(s.ModulePath)+" already exists, but does not belong to ReShade",
			fmt.Errorf("%w: make sure this is not a system file required by the application", ErrForeignFile))
	}
	if s.Selection.Unattended {
		return m.deploy(s)
	}
	s.Phase = PhaseExistingInstallConflict
	return s, []Effect{AskConflict{Conflict: Conflict{
		ModulePath:       s.ModulePath,
		InstalledVersion: e.Version,
		BundledVersion:   m.bundledVersion,
		Action:           installer.DetermineAction(e.Version, m.bundledVersion),
	}}}
}

func (m *Machine) deploy(s State) (State, []Effect) {
	s.Phase = PhaseDeploy
	return s, []Effect{
		report(s, "Installing ReShade ...", m.deployedName(s)),
		Deploy{Target: s.Target, API: s.API, ModulePath: s.ModulePath, ConfigPath: s.ConfigPath},
	}
}

func (m *Machine) offerPackages(s State) (State, []Effect) {
	if s.Selection.Unattended || len(m.packages) == 0 {
		return m.writeConfig(s)
	}
	s.Phase = PhaseSelectPackages
	return s, []Effect{AskPackages{Packages: m.packages}}
}

func (m *Machine) writeConfig(s State) (State, []Effect) {
	s.Phase = PhaseWriteConfig
	entry, _ := m.compat.Lookup(s.Target.Executable())
	return s, []Effect{
		report(s, "Writing configuration ...", s.ConfigPath),
		WriteConfig{
			ConfigPath:         s.ConfigPath,
			Entry:              entry,
			DefaultSearchPaths: !s.PathsRecorded,
			Resolver:           m.resolver(s),
		},
	}
}

func (m *Machine) finalize(s State) (State, []Effect) {
	s.Phase = PhaseFinalized
	detail := "You may now close this setup tool or edit additional settings."
	if s.API == renderapi.Vulkan {
		detail = "You need to keep this setup tool open for ReShade to work in Vulkan games, " +
			"or register the Vulkan layer for all users."
	}
	effects := []Effect{finish(s, "ReShade was installed for "+s.Target.DisplayName()+".", detail)}
	if s.Selection.Unattended {
		return s, effects
	}
	if s.API == renderapi.Vulkan {
		effects = append(effects, OfferLayerScope{Elevated: s.Selection.Elevated})
	}
	return offerOpenConfig(s, effects)
}

// offerOpenConfig appends the offer to open the configuration unless it
// was made already.
func offerOpenConfig(s State, effects []Effect) (State, []Effect) {
	if s.Selection.Unattended || s.ConfigOffered || s.ConfigPath == "" {
		return s, effects
	}
	s.ConfigOffered = true
	return s, append(effects, OfferOpenConfig{Path: s.ConfigPath})
}

// modulePath is where the module for the resolved API is deployed, empty
// for the Vulkan layer.
func modulePath(s State) string {
	name := s.API.ModuleName()
	if name == "" {
		return ""
	}
	return filepath.Join(s.Target.Dir(), name)
}

func (m *Machine) resolver(s State) config.Resolver {
	if s.API == renderapi.Vulkan && m.sharedDir != "" {
		return config.SharedResolver(m.sharedDir, s.Target.Dir())
	}
	return config.TargetResolver(s.Target.Dir())
}

func (m *Machine) deployedName(s State) string {
	if s.ModulePath != "" {
		return filepath.Base(s.ModulePath)
	}
	return filepath.Base(s.ConfigPath)
}

func fail(s State, cause string, err error) (State, []Effect) {
	s.Phase = PhaseFailed
	s.Failure = newFailure(cause, err)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return s, []Effect{Report{Status: Status{
		Phase:   PhaseFailed,
		Title:   "ReShade Setup was not successful!",
		Message: cause + ".",
		Detail:  detail,
	}}}
}

func report(s State, message, detail string) Effect {
	return Report{Status: Status{
		Phase:   s.Phase,
		Title:   "Working on " + s.Target.DisplayName() + " ...",
		Message: message,
		Detail:  detail,
	}}
}

func finish(s State, message, detail string) Effect {
	return Report{Status: Status{
		Phase:   PhaseFinalized,
		Title:   "ReShade Setup was successful!",
		Message: message,
		Detail:  detail,
		Success: true,
	}}
}
