// Package setup is the installation workflow.
//
// Machine is a pure transition function over State: each Event yields the
// next State and a list of Effects. Runner executes those effects against
// the file system, the layer registrar, the package pipeline and a
// Presenter, and feeds their outcome back as events until the workflow
// comes to rest in one of the terminal phases:
//
//	PhaseFinalized        success, exit code 0
//	PhaseFailed           State.Failure holds the cause, exit code 1
//	PhaseCancelled        the user cancelled, exit code 1
//	PhaseRestartRequired  relaunch elevated with State.RestartArgs
//
// Typical usage:
//
//	m := setup.NewMachine(setup.WithCompatibility(compat), setup.WithPackages(pkgs))
//	r := setup.NewRunner(m, setup.Env{Modules: archive, Layers: registrar}, presenter, logger)
//	final := r.Run(ctx, setup.Selection{Target: exe})
//	os.Exit(setup.ExitCode(final))
package setup
