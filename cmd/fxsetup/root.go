package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/payload"
	"github.com/crafted-tech/fxsetup/platform"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/settings"
	"github.com/crafted-tech/fxsetup/setup"
	"github.com/crafted-tech/fxsetup/ui"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// Version is the version of the bundled injector (set via -ldflags).
var Version = "dev"

// app is the state shared by all commands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	settingsFile string
	verbose      bool
	sel          selectionFlags

	settings *settings.Settings
	logger   *installer.Logger
}

// selectionFlags are the flags of the relaunch contract.
type selectionFlags struct {
	headless   bool
	elevated   bool
	finished   bool
	api        string
	left, top  float64
	layerScope string
}

func (f *selectionFlags) bind(fs *pflag.FlagSet) {
	fs.BoolVar(&f.headless, setup.FlagHeadless, false, "install without asking any questions")
	fs.BoolVar(&f.elevated, setup.FlagElevated, false, "the process was restarted with administrative rights")
	fs.BoolVar(&f.finished, setup.FlagFinished, false, "the installation already completed before a restart")
	fs.StringVar(&f.api, setup.FlagAPI, "", "rendering API to install for (d3d9, dxgi, opengl, vulkan)")
	fs.Float64Var(&f.left, setup.FlagLeft, 0, "window position")
	fs.Float64Var(&f.top, setup.FlagTop, 0, "window position")
	fs.StringVar(&f.layerScope, setup.FlagLayerScope, "", "register the Vulkan layer for the user or the machine")
}

// selection converts the parsed flags for target.
func (f *selectionFlags) selection(target string) (setup.Selection, error) {
	sel := setup.Selection{
		Target:     target,
		Unattended: f.headless,
		Elevated:   f.elevated,
		Finished:   f.finished,
		Left:       f.left,
		Top:        f.top,
	}
	if f.api != "" {
		api, err := renderapi.ParseFlag(f.api)
		if err != nil {
			return sel, err
		}
		sel.API = api
	}
	if f.layerScope != "" {
		scope, err := vklayer.ParseScope(f.layerScope)
		if err != nil {
			return sel, err
		}
		sel.SwitchLayer = true
		sel.LayerScope = scope
	}
	return sel, nil
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "fxsetup [target]",
		Short: "Install the ReShade injector into an application",
		Long: `fxsetup inspects an application executable, works out which rendering API it
uses and deploys the matching injector module and configuration beside it.
Effect packages can be downloaded and registered in the configuration.

Without a target the Vulkan layer stays registered for the current user until
fxsetup exits.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: a.action(func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return a.runAmbient(ctx)
			}
			sel, err := a.sel.selection(args[0])
			if err != nil {
				return err
			}
			return a.runInstall(ctx, sel)
		}),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.settingsFile, "settings", "", "settings file (default is "+settings.FileName+" next to the executable)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "mirror the log to stderr")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-dir", "", "directory the log file is written to")
	pf.String("payload", "", "file holding the module archive (default is the executable)")
	pf.String("shared-dir", "", "directory the Vulkan layer payload is kept in")
	a.sel.bind(root.Flags())

	root.AddCommand(newExtractCommand(a), newLayerCommand(a), newVersionCommand(a))
	return root
}

// action wraps fn with settings and logger setup.
func (a *app) action(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.init(cmd); err != nil {
			return err
		}
		defer a.logger.Close()
		return fn(cmd.Context(), args)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := settings.Load(settings.Options{File: a.settingsFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	opts := []installer.LoggerOption{installer.WithLogDir(s.Log.Dir), installer.WithLevel(s.LogLevel())}
	if a.verbose {
		opts = append(opts, installer.WithConsole(a.stderr))
	}
	logger, err := installer.NewLogger(settings.AppName, opts...)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	a.settings, a.logger = s, logger
	if s.File != "" {
		logger.Debug("settings loaded", "file", s.File)
	}
	return nil
}

// openArchive opens and validates the module archive. A corrupt archive
// ends the process with exit code 1.
func (a *app) openArchive() (*payload.Archive, error) {
	path := a.settings.Payload.Path
	archive, err := payload.Open(path)
	if err == nil {
		if err = archive.Validate(); err != nil {
			archive.Close()
		}
	}
	if err != nil {
		a.logger.Error("module archive unusable", "path", path, "err", err)
		return nil, &ExitError{Code: 1, Err: err}
	}
	a.logger.Debug("module archive opened", "path", path, "offset", archive.Offset())
	return archive, nil
}

func (a *app) registrar(archive *payload.Archive, elevated bool) *vklayer.Registrar {
	return vklayer.New(vklayer.NewRegistryStore(), archive, a.settings.Layer.SharedDir,
		vklayer.WithElevated(elevated),
		vklayer.WithHost64(platform.Is64BitOS()),
		vklayer.WithLogger(a.logger.Logger),
	)
}

func (a *app) acquireOptions() []acquire.Option {
	return []acquire.Option{
		acquire.WithHTTPClient(&http.Client{Timeout: a.settings.Download.Timeout}),
		acquire.WithUserAgent(a.settings.Download.UserAgent),
		acquire.WithStagingDir(a.settings.Staging.Dir),
		acquire.WithLogger(a.logger.Logger),
	}
}

func (a *app) runInstall(ctx context.Context, sel setup.Selection) error {
	archive, err := a.openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	compat, err := catalog.LoadCompatibility()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%w: %w", payload.ErrArchiveCorrupt, err)}
	}
	pkgs, err := catalog.LoadPackages()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("%w: %w", payload.ErrArchiveCorrupt, err)}
	}

	sel.Elevated = sel.Elevated || platform.IsElevated()
	machine := setup.NewMachine(
		setup.WithCompatibility(compat),
		setup.WithPackages(pkgs),
		setup.WithSharedDir(a.settings.Layer.SharedDir),
		setup.WithBundledVersion(Version),
	)
	env := setup.Env{
		Modules:    archive,
		Layers:     a.registrar(archive, sel.Elevated),
		BaseConfig: a.settings.BaseConfig,
		NewAcquirer: func(targetDir string, rec acquire.Recorder) setup.Acquirer {
			return acquire.New(targetDir, rec, a.acquireOptions()...)
		},
	}

	var presenter setup.Presenter = ui.NewTerminal(a.stdin, a.stdout)
	if sel.Unattended {
		presenter = ui.NewHeadless(a.logger.Logger)
	}

	a.logger.Step("setup started", "target", sel.Target, "unattended", sel.Unattended, "elevated", sel.Elevated, "version", Version)
	final := setup.NewRunner(machine, env, presenter, a.logger.Logger).Run(ctx, sel)
	return a.finish(final, platform.LaunchElevated)
}

// finish maps the final state to the process result. relaunch starts the
// elevated process for a RestartRequired state.
func (a *app) finish(final setup.State, relaunch func(args []string) error) error {
	a.logger.Step("setup ended", "phase", final.Phase)
	switch final.Phase {
	case setup.PhaseRestartRequired:
		if err := relaunch(final.RestartArgs); err != nil {
			a.logger.Error("relaunch failed", "args", final.RestartArgs, "err", err)
			return &ExitError{Code: 1, Err: fmt.Errorf("restart with administrative rights: %w", err)}
		}
		return nil
	case setup.PhaseFailed:
		a.logger.Error("setup failed", "kind", final.Failure.Kind, "err", final.Failure)
		if path := a.logger.Path(); path != "" {
			fmt.Fprintf(a.stderr, "Details were written to %s (run %s)\n", path, a.logger.RunID())
		}
	}
	if code := setup.ExitCode(final); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// runAmbient keeps the layer registered for the current user until ctx is
// done or a line is read from stdin.
func (a *app) runAmbient(ctx context.Context) error {
	archive, err := a.openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	ambient := vklayer.NewAmbient(a.registrar(archive, platform.IsElevated()))
	if err := ambient.Start(); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	if ambient.UserEnabled() {
		fmt.Fprintln(a.stdout, "The Vulkan layer is active for Vulkan applications started now. Press Enter to stop.")
	} else {
		fmt.Fprintln(a.stdout, "The Vulkan layer is registered for all users. Press Enter to exit.")
	}

	line := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(a.stdin).ReadString('\n')
		close(line)
	}()
	select {
	case <-ctx.Done():
	case <-line:
	}
	return ambient.Stop()
}
