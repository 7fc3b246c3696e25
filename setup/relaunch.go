package setup

import (
	"strconv"

	"github.com/crafted-tech/fxsetup/renderapi"
)

// Command line flags of the relaunch contract.
const (
	FlagHeadless   = "headless"
	FlagElevated   = "elevated"
	FlagFinished   = "finished"
	FlagAPI        = "api"
	FlagLeft       = "left"
	FlagTop        = "top"
	FlagLayerScope = "layer-scope"
)

// RelaunchArgs builds the command line that resumes sel in a new process.
// The target path comes first, followed by flags.
func RelaunchArgs(sel Selection) []string {
	args := []string{sel.Target}
	if sel.Unattended {
		args = append(args, "--"+FlagHeadless)
	}
	if sel.Elevated {
		args = append(args, "--"+FlagElevated)
	}
	args = append(args,
		"--"+FlagLeft, strconv.FormatFloat(sel.Left, 'f', -1, 64),
		"--"+FlagTop, strconv.FormatFloat(sel.Top, 'f', -1, 64),
	)
	if sel.API != renderapi.Unset {
		args = append(args, "--"+FlagAPI, sel.API.String())
	}
	if sel.Finished {
		args = append(args, "--"+FlagFinished)
	}
	if sel.SwitchLayer {
		args = append(args, "--"+FlagLayerScope, sel.LayerScope.String())
	}
	return args
}

func restartRequired(s State, sel Selection) State {
	sel.Elevated = true
	s.Phase = PhaseRestartRequired
	s.RestartArgs = RelaunchArgs(sel)
	return s
}
