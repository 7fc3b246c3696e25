// Command fxsetup installs the ReShade injector into an application.
//
// Usage:
//
//	fxsetup [target.exe] [flags]
//
// Without a target the Vulkan layer is kept registered for the current user
// until the program exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"

	"github.com/crafted-tech/fxsetup/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			printError(exitErr.Err)
		}
		return exitErr.Code
	}
	printError(err)
	return 1
}

func printError(err error) {
	theme := ui.NewTheme(lipgloss.NewRenderer(os.Stderr))
	fmt.Fprintln(os.Stderr, theme.Error.Render("Error: ")+err.Error())
}
