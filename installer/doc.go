// Package installer provides the building blocks the setup flow runs on.
//
// It offers:
//   - Logger: charmbracelet/log output to a temp file plus an in-memory copy
//   - Step execution: run named steps sequentially with progress reporting
//   - File helpers: copy, tree copy, directory reset, zip extraction
//   - Version comparison for existing installations
//
// # Step Pattern
//
// Steps are simple structs with a name and action function:
//
//	type Step struct {
//	    Name   string
//	    Action func(ctx context.Context) StepResult
//	}
//
// The StepResult indicates success, skip, or failure:
//
//	type StepResult struct {
//	    Skip bool   // Step was skipped (already done, not needed)
//	    Info string // Success/info message
//	    Err  error  // Error (nil = success)
//	}
//
// Build and run a sequence:
//
//	steps := []installer.Step{
//	    installer.SimpleStep("Extract module", func() error {
//	        return archive.ExtractModule(arch, modulePath)
//	    }),
//	    installer.StepWriteFile(logPath, placeholder),
//	}
//	return installer.RunSteps(ctx, steps, reporter, logger.Logger)
package installer
