package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/setup"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// apiChoices is the order APIs are offered in when detection failed.
var apiChoices = []renderapi.API{renderapi.D3D9, renderapi.DXGI, renderapi.OpenGL, renderapi.Vulkan}

// Terminal is an interactive presenter. On a console it shows full screen
// forms; any other input is read line by line.
type Terminal struct {
	raw        io.Reader
	lines      *lineReader
	out        io.Writer
	theme      Theme
	formTheme  *huh.Theme
	accessible bool

	// progressLine is the width of the progress line currently shown, zero
	// when none is.
	progressLine int
}

// NewTerminal creates a presenter reading from in and writing to out.
// Prompts are line based unless in is a console, or when ACCESSIBLE is set.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		raw:        in,
		lines:      newLineReader(in),
		out:        out,
		theme:      NewTheme(lipgloss.NewRenderer(out)),
		formTheme:  NewFormTheme(),
		accessible: !isConsole(in) || os.Getenv("ACCESSIBLE") != "",
	}
}

func isConsole(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func (t *Terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// Report prints a status update.
func (t *Terminal) Report(s setup.Status) {
	t.endProgress()
	switch {
	case s.Phase == setup.PhaseFailed:
		t.printf("%s %s\n", t.theme.Error.Render("✗"), t.theme.Error.Render(s.Message))
	case s.Success:
		t.printf("%s %s\n", t.theme.Success.Render("✓"), s.Message)
	default:
		t.printf("%s %s\n", t.theme.Choice.Render("•"), s.Message)
	}
	if s.Detail != "" {
		t.printf("  %s\n", t.theme.Subtitle.Render(s.Detail))
	}
}

// Warn prints a warning.
func (t *Terminal) Warn(message string) {
	t.endProgress()
	t.printf("%s %s\n", t.theme.Warning.Render("!"), t.theme.Warning.Render(message))
}

// Progress redraws the package progress line in place.
func (t *Terminal) Progress(p acquire.Progress) {
	line := progressText(p)
	pad := ""
	if n := t.progressLine - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	t.printf("\r%s%s", line, pad)
	t.progressLine = len(line)
	if p.Stage == acquire.StageDone {
		t.endProgress()
	}
}

func (t *Terminal) endProgress() {
	if t.progressLine > 0 {
		t.printf("\n")
		t.progressLine = 0
	}
}

func progressText(p acquire.Progress) string {
	prefix := fmt.Sprintf("[%d/%d] %s %s", p.Index+1, p.Count, p.Stage, p.Package.DisplayName())
	if p.Stage != acquire.StageDownload {
		return prefix
	}
	if pct, ok := p.Percent(); ok {
		return fmt.Sprintf("%s %3.0f%%", prefix, pct)
	}
	return fmt.Sprintf("%s %s", prefix, formatBytes(p.Received))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// ChooseAPI asks for the API of a target detection could not classify.
func (t *Terminal) ChooseAPI(target setup.Target, d renderapi.Detection) renderapi.API {
	choices := make([]Choice, len(apiChoices))
	for i, api := range apiChoices {
		choices[i] = Choice{Label: api.Title()}
		if name := api.ModuleName(); name != "" {
			choices[i].Description = "installs as " + name
		} else {
			choices[i].Description = "uses the Vulkan layer"
		}
	}
	subtitle := "The rendering API of " + target.DisplayName() + " could not be determined."
	if len(d.Signals) > 0 {
		subtitle += " Found: " + strings.Join(d.Signals, ", ")
	}
	idx, nav := t.ShowChoices("Select the rendering API", choices, WithSubtitle(subtitle), WithCancel("Cancel"))
	if nav != Proceed {
		return renderapi.Unset
	}
	return apiChoices[idx]
}

// ResolveConflict asks what to do with an existing installation.
func (t *Terminal) ResolveConflict(c setup.Conflict) setup.Decision {
	update := "Update"
	if c.Action != installer.ActionUpgrade {
		update = c.Action.String()
	}
	if c.BundledVersion != "" {
		update += " to " + c.BundledVersion
	}
	installed := c.InstalledVersion
	if installed == "" {
		installed = "an unknown version"
	}
	choices := []Choice{
		{Label: update, Description: "replaces " + filepath.Base(c.ModulePath) + " and keeps your configuration"},
		{Label: "Uninstall", Description: "removes the module, its configuration and installed effects"},
	}
	idx, nav := t.ShowChoices("Existing installation found", choices,
		WithSubtitle(fmt.Sprintf("%s %s is installed at %s.", setup.ProductName, installed, filepath.Dir(c.ModulePath))),
		WithDefault(0), WithCancel("Cancel"))
	switch {
	case nav != Proceed:
		return setup.DecisionCancel
	case idx == 1:
		return setup.DecisionUninstall
	default:
		return setup.DecisionUpdate
	}
}

// SelectPackages asks which effect packages to install. The chosen
// packages are queued in catalog order.
func (t *Terminal) SelectPackages(pkgs []catalog.Package) []catalog.Package {
	choices := make([]Choice, len(pkgs))
	var selected []int
	for i, p := range pkgs {
		choices[i] = Choice{Label: p.DisplayName(), Description: p.Description}
		if p.Enabled {
			selected = append(selected, i)
		}
	}
	indices, nav := t.ShowMultiChoice("Select effect packages to install", choices, WithSelected(selected...))
	if nav != Proceed {
		return nil
	}
	out := make([]catalog.Package, 0, len(indices))
	for _, i := range indices {
		out = append(out, pkgs[i])
	}
	return out
}

// ChooseLayerScope offers to change where the Vulkan layer is registered.
func (t *Terminal) ChooseLayerScope(elevated bool) (vklayer.Scope, bool) {
	machine := "Register for all users"
	if !elevated {
		machine += " (restarts with administrative rights)"
	}
	options := []string{"Keep the current registration", "Register for the current user only", machine}
	idx, nav := t.ShowChoice("Vulkan layer", options, WithDefault(0))
	switch {
	case nav != Proceed, idx == 0:
		return vklayer.User, false
	case idx == 1:
		return vklayer.User, true
	default:
		return vklayer.Machine, true
	}
}

// ConfirmOpenConfig asks whether to open the configuration file.
func (t *Terminal) ConfirmOpenConfig(path string) bool {
	return t.ShowConfirm("Edit settings", "Open "+path+" now?", false)
}

var (
	_ setup.Presenter = (*Terminal)(nil)
	_ setup.Finisher  = (*Terminal)(nil)
)
