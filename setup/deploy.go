package setup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crafted-tech/fxsetup/config"
	"github.com/crafted-tech/fxsetup/inifile"
	"github.com/crafted-tech/fxsetup/installer"
)

// ShaderDir is the folder effect packages install into beside the target.
const ShaderDir = "reshade-shaders"

const logPlaceholder = `
If you are reading this after launching the game at least once, it likely means ReShade was not loaded by the game.

In that event here are some steps you can try to resolve this:

1) Make sure this file and the related DLL are really in the same directory as the game executable.
   If that is the case and it does not work regardless, check if there is a 'bin' directory, move them there and try again.

2) Try running the game with elevated user permissions by doing a right click on its executable and choosing 'Run as administrator'.

3) If the game crashes, try disabling all game overlays (like Origin), recording software (like Fraps), FPS displaying software,
   GPU overclocking and tweaking software and other proxy DLLs (like ENB, Helix or Umod).

4) If none of the above helps, you can get support on the forums at https://forum.reshade.me. But search for your problem before
   creating a new topic, as somebody else may have already found a solution.
`

// LogPath is the troubleshooting placeholder written beside a module.
func LogPath(modulePath string) string {
	return strings.TrimSuffix(modulePath, filepath.Ext(modulePath)) + ".log"
}

func deploySteps(d Deploy, modules ModuleSource, baseConfig string) []installer.Step {
	steps := []installer.Step{installer.StepCheckNotRunning(d.Target.Executable())}
	if d.ModulePath != "" {
		steps = append(steps,
			installer.SimpleStep(fmt.Sprintf("Install %s", filepath.Base(d.ModulePath)), func() error {
				if modules == nil {
					return errors.New("no module source")
				}
				return modules.ExtractModule(d.Target.Arch, d.ModulePath)
			}),
			installer.StepWriteFile(LogPath(d.ModulePath), []byte(logPlaceholder)),
		)
	}
	if baseConfig != "" {
		steps = append(steps, installer.StepCopyFileIfAbsent(baseConfig, d.ConfigPath))
	}
	return steps
}

func uninstallSteps(u Uninstall) []installer.Step {
	return []installer.Step{
		installer.StepDeleteFile(u.ModulePath),
		installer.StepDeleteFile(u.ConfigPath),
		installer.StepDeleteFile(LogPath(u.ModulePath)),
		installer.StepRemoveTree(filepath.Join(u.TargetDir, ShaderDir)),
	}
}

func writeConfig(w WriteConfig) error {
	doc, err := inifile.Load(w.ConfigPath)
	if err != nil {
		return err
	}
	changed := config.SeedDefaults(doc, w.Entry)
	if w.DefaultSearchPaths && !config.HasSearchPaths(doc) {
		return config.UpdateSearchPaths(doc, config.DefaultSearchPath, config.DefaultSearchPath, w.Resolver)
	}
	if !changed {
		return nil
	}
	return doc.Save()
}
