package setup

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/config"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/peimage"
	"github.com/crafted-tech/fxsetup/platform"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// Presenter renders status and answers the workflow's questions.
type Presenter interface {
	Report(Status)
	Warn(message string)
	Progress(acquire.Progress)
	// ChooseAPI returns Unset to cancel.
	ChooseAPI(Target, renderapi.Detection) renderapi.API
	ResolveConflict(Conflict) Decision
	// SelectPackages returns the packages to install, in order.
	SelectPackages([]catalog.Package) []catalog.Package
}

// Finisher is implemented by presenters that offer follow-up actions once
// the installation succeeded.
type Finisher interface {
	// ChooseLayerScope returns the scope to switch the layer to, or false
	// to leave it as it is.
	ChooseLayerScope(elevated bool) (vklayer.Scope, bool)
	ConfirmOpenConfig(path string) bool
}

// ModuleSource provides the injector module builds.
type ModuleSource interface {
	ExtractModule(arch peimage.Arch, dst string) error
}

// LayerSwitcher changes the active layer registration.
type LayerSwitcher interface {
	Enable(scope vklayer.Scope) error
}

// Acquirer runs the package pipeline.
type Acquirer interface {
	Run(ctx context.Context, queue []catalog.Package, report func(acquire.Progress)) (int, error)
}

// Env holds the collaborators effects are executed with. Nil functions
// default to the real implementations.
type Env struct {
	Modules ModuleSource
	Layers  LayerSwitcher
	// BaseConfig is a pre-staged configuration copied to targets that
	// have none.
	BaseConfig string
	// NewAcquirer creates the pipeline for a target directory.
	NewAcquirer func(targetDir string, rec acquire.Recorder) Acquirer

	Inspect     func(path string) (*peimage.Image, error)
	ReadVersion func(path string) (platform.VersionInfo, error)
	Writable    func(dir string) bool
	Open        func(path string) error
}

func (e Env) withDefaults() Env {
	if e.NewAcquirer == nil {
		e.NewAcquirer = func(targetDir string, rec acquire.Recorder) Acquirer {
			return acquire.New(targetDir, rec)
		}
	}
	if e.Inspect == nil {
		e.Inspect = peimage.Inspect
	}
	if e.ReadVersion == nil {
		e.ReadVersion = platform.ReadVersionInfo
	}
	if e.Writable == nil {
		e.Writable = platform.IsWritable
	}
	if e.Open == nil {
		e.Open = platform.OpenDocument
	}
	return e
}

// Runner drives a Machine: it executes effects, asks the presenter and
// feeds the results back until the workflow comes to rest.
type Runner struct {
	machine *Machine
	env     Env
	ui      Presenter
	logger  *log.Logger
}

// NewRunner creates a Runner. logger may be nil.
func NewRunner(m *Machine, env Env, ui Presenter, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{machine: m, env: env.withDefaults(), ui: ui, logger: logger}
}

// Run executes the workflow for sel and returns the state it ended in.
// Package downloads run on their own goroutine; their progress and
// completion come back as events consumed by this loop, so transitions
// are still applied one at a time. Cancelling ctx cancels the workflow.
func (r *Runner) Run(ctx context.Context, sel Selection) State {
	state, effects := r.machine.Start(sel)
	r.logger.Debug("workflow started", "phase", state.Phase, "target", sel.Target)

	async := make(chan Event)
	var pending []Event
	inFlight := 0
	done := ctx.Done()
	cancelled := false

	for {
		for _, eff := range effects {
			ev, started := r.execute(ctx, eff, async)
			if started {
				inFlight++
			}
			if ev != nil {
				pending = append(pending, ev)
			}
		}
		effects = nil

		var ev Event
		switch {
		case ctx.Err() != nil && !cancelled:
			cancelled = true
			done = nil
			ev = Cancel{}
		case len(pending) > 0:
			ev, pending = pending[0], pending[1:]
		case inFlight > 0:
			select {
			case ev = <-async:
				if _, final := ev.(PackagesAcquired); final {
					inFlight--
				}
			case <-done:
				continue
			}
		default:
			r.logger.Debug("workflow finished", "phase", state.Phase)
			return state
		}

		prev := state.Phase
		state, effects = r.machine.Transition(state, ev)
		if state.Phase != prev {
			r.logger.Debug("transition", "from", prev, "to", state.Phase, "event", fmt.Sprintf("%T", ev))
		}
	}
}

// execute runs one effect. It returns the resulting event, if any, and
// whether work was started that will post to async.
func (r *Runner) execute(ctx context.Context, eff Effect, async chan<- Event) (Event, bool) {
	switch e := eff.(type) {
	case Report:
		r.logStatus(e.Status)
		r.ui.Report(e.Status)
	case Warn:
		r.logger.Warn(e.Message)
		r.ui.Warn(e.Message)
	case CheckWritable:
		return WritableChecked{Writable: r.env.Writable(e.Dir)}, false
	case InspectTarget:
		return r.inspectTarget(e), false
	case AskAPI:
		return APIChosen{API: r.ui.ChooseAPI(e.Target, e.Detection)}, false
	case InspectModule:
		return r.inspectModule(e), false
	case AskConflict:
		return ConflictResolved{Decision: r.ui.ResolveConflict(e.Conflict)}, false
	case Deploy:
		steps := deploySteps(e, r.env.Modules, r.env.BaseConfig)
		return Deployed{Err: installer.RunSteps(ctx, steps, r.stepReporter(), r.logger)}, false
	case Uninstall:
		return Uninstalled{Err: installer.RunSteps(ctx, uninstallSteps(e), r.stepReporter(), r.logger)}, false
	case AskPackages:
		return PackagesSelected{Packages: r.ui.SelectPackages(e.Packages)}, false
	case AcquirePackages:
		r.acquire(ctx, e, async)
		return nil, true
	case ShowProgress:
		r.ui.Progress(e.Progress)
	case WriteConfig:
		return ConfigWritten{Err: writeConfig(e)}, false
	case OfferLayerScope:
		if f, ok := r.ui.(Finisher); ok {
			if scope, ok := f.ChooseLayerScope(e.Elevated); ok {
				return LayerScopeRequested{Scope: scope}, false
			}
		}
	case OfferOpenConfig:
		if f, ok := r.ui.(Finisher); ok && f.ConfirmOpenConfig(e.Path) {
			if err := r.env.Open(e.Path); err != nil {
				r.logger.Warn("failed to open configuration", "path", e.Path, "err", err)
			}
		}
	case SwitchLayerScope:
		if r.env.Layers == nil {
			return LayerScopeSwitched{Scope: e.Scope, Err: fmt.Errorf("%w: no layer registrar", vklayer.ErrRegistryOperation)}, false
		}
		return LayerScopeSwitched{Scope: e.Scope, Err: r.env.Layers.Enable(e.Scope)}, false
	default:
		r.logger.Error("unknown effect", "effect", fmt.Sprintf("%T", eff))
	}
	return nil, false
}

func (r *Runner) inspectTarget(e InspectTarget) Event {
	img, err := r.env.Inspect(e.Path)
	if err != nil {
		return Inspected{Err: err}
	}
	r.logger.Info("inspected target", "path", e.Path, "arch", img.Arch, "imports", len(img.Imports))
	var name string
	if info, err := r.env.ReadVersion(e.Path); err == nil {
		name = info.FileDescription
	} else {
		r.logger.Debug("no version information", "path", e.Path, "err", err)
	}
	return Inspected{Image: img, Name: name}
}

func (r *Runner) inspectModule(e InspectModule) Event {
	ev := ModuleInspected{ConfigPath: config.Path(e.TargetDir, e.ModulePath)}
	if e.ModulePath == "" || !installer.FileExists(e.ModulePath) {
		return ev
	}
	ev.Exists = true
	info, err := r.env.ReadVersion(e.ModulePath)
	if err != nil {
		r.logger.Debug("no version information", "path", e.ModulePath, "err", err)
		return ev
	}
	ev.ProductName = info.ProductName
	ev.Version = info.ProductVersion
	if ev.Version == "" {
		ev.Version = info.FileVersion
	}
	r.logger.Info("existing module found", "path", e.ModulePath, "product", ev.ProductName, "version", ev.Version)
	return ev
}

func (r *Runner) acquire(ctx context.Context, e AcquirePackages, async chan<- Event) {
	rec := config.SearchPathWriter{Path: e.ConfigPath, Resolver: e.Resolver}
	pipeline := r.env.NewAcquirer(e.TargetDir, rec)
	go func() {
		n, err := pipeline.Run(ctx, e.Packages, func(p acquire.Progress) {
			async <- PackageProgress{Progress: p}
		})
		async <- PackagesAcquired{Installed: n, Err: err}
	}()
}

func (r *Runner) stepReporter() installer.Reporter {
	return installer.ReporterFunc(func(percent float64, name string) {
		r.logger.Debug("step", "percent", int(percent), "name", name)
	})
}

func (r *Runner) logStatus(s Status) {
	switch s.Phase {
	case PhaseFailed:
		r.logger.Error(s.Message, "detail", s.Detail)
	case PhaseFinalized:
		r.logger.Info(s.Message, "detail", s.Detail)
	default:
		r.logger.Info(s.Message, "phase", s.Phase)
	}
}
