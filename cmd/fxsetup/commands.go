package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crafted-tech/fxsetup/platform"
	"github.com/crafted-tech/fxsetup/vklayer"
)

func newExtractCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [dir]",
		Short: "Write the bundled module builds and layer manifests to a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.action(func(_ context.Context, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			archive, err := a.openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := archive.ExtractAll(dir); err != nil {
				return err
			}
			a.logger.Info("payload extracted", "dir", dir)
			fmt.Fprintf(a.stdout, "Extracted to %s\n", dir)
			return nil
		}),
	}
}

func newLayerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Inspect or change the Vulkan layer registration",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show where the Vulkan layer is registered",
		Args:  cobra.NoArgs,
		RunE: a.action(func(context.Context, []string) error {
			archive, err := a.openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			r := a.registrar(archive, platform.IsElevated())
			for _, scope := range []vklayer.Scope{vklayer.User, vklayer.Machine} {
				enabled, err := r.IsEnabled(scope)
				if err != nil {
					return err
				}
				state := "not registered"
				if enabled {
					state = "registered"
				}
				fmt.Fprintf(a.stdout, "%-8s %s\n", scope, state)
			}
			fmt.Fprintf(a.stdout, "%-8s %s\n", "payload", r.Dir())
			return nil
		}),
	}

	var scopeName string
	change := func(enable bool) func(context.Context, []string) error {
		return func(context.Context, []string) error {
			scope, err := vklayer.ParseScope(scopeName)
			if err != nil {
				return err
			}
			archive, err := a.openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			r := a.registrar(archive, platform.IsElevated())
			if enable {
				err = r.Enable(scope)
			} else {
				err = r.Disable(scope)
			}
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			a.logger.Info("layer registration changed", "scope", scope, "enabled", enable)
			return nil
		}
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Register the Vulkan layer, removing the registration of the other scope",
		Args:  cobra.NoArgs,
		RunE:  a.action(change(true)),
	}
	disable := &cobra.Command{
		Use:   "disable",
		Short: "Remove the Vulkan layer registration",
		Args:  cobra.NoArgs,
		RunE:  a.action(change(false)),
	}
	for _, c := range []*cobra.Command{enable, disable} {
		c.Flags().StringVar(&scopeName, "scope", vklayer.User.String(), "user or machine")
	}

	cmd.AddCommand(status, enable, disable)
	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the bundled injector",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "fxsetup %s\n", Version)
		},
	}
}
