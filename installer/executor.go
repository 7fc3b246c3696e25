package installer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Reporter receives progress while steps execute.
type Reporter interface {
	StepStarted(percent float64, name string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(percent float64, name string)

// StepStarted implements Reporter.
func (f ReporterFunc) StepStarted(percent float64, name string) { f(percent, name) }

// RunSteps executes steps sequentially and stops at the first failure.
// Reporter and logger may be nil. Returns ErrCancelled when ctx is done
// before a step starts.
//
// Example:
//
//	steps := []installer.Step{
//	    installer.StepWriteFile(logPath, placeholder),
//	    installer.StepCopyFileIfAbsent(baseConfig, configPath),
//	}
//	if err := installer.RunSteps(ctx, steps, reporter, logger); err != nil {
//	    return err
//	}
func RunSteps(ctx context.Context, steps []Step, reporter Reporter, logger *log.Logger) error {
	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			if logger != nil {
				logger.Warn("step sequence cancelled", "before", step.Name)
			}
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		if reporter != nil {
			reporter.StepStarted(float64(i)/float64(total)*100, step.Name)
		}
		if logger != nil {
			logger.Debug("starting step", "step", step.Name)
		}

		result := step.Action(ctx)
		switch {
		case result.Err != nil:
			if logger != nil {
				logger.Error("step failed", "step", step.Name, "err", result.Err)
			}
			return fmt.Errorf("%s: %w", step.Name, result.Err)
		case result.Skip:
			if logger != nil {
				logger.Info("step skipped", "step", step.Name, "reason", result.Info)
			}
		default:
			if logger != nil {
				if result.Info != "" {
					logger.Info("step completed", "step", step.Name, "info", result.Info)
				} else {
					logger.Info("step completed", "step", step.Name)
				}
			}
		}
	}

	if reporter != nil {
		reporter.StepStarted(100, "Complete")
	}
	return nil
}
