package installer

import (
	"context"
	"fmt"

	"github.com/crafted-tech/fxsetup/platform"
)

// StepCheckNotRunning creates a Step that reports whether exeName is
// running. A running process never fails the step; files it holds open
// surface as errors in later steps.
func StepCheckNotRunning(exeName string) Step {
	return Step{
		Name: fmt.Sprintf("Check %s", exeName),
		Action: func(context.Context) StepResult {
			if !platform.IsProcessRunning(exeName) {
				return Skipped("not running")
			}
			return Success(fmt.Sprintf("%s is running, restart it to load the changes", exeName))
		},
	}
}
