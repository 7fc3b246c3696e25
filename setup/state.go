package setup

import (
	"path/filepath"
	"strings"

	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/peimage"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// ProductName identifies modules deployed by this tool in their version
// resource.
const ProductName = "ReShade"

// Phase is a step of the installation workflow.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseCheckElevation
	PhaseDetectAPI
	PhaseAwaitAPIChoice
	PhasePrepareTarget
	PhaseExistingInstallConflict
	PhaseDeploy
	PhaseUninstall
	PhaseSelectPackages
	PhaseAcquirePackages
	PhaseWriteConfig
	PhaseFinalized
	PhaseFailed
	PhaseCancelled
	PhaseRestartRequired
)

var phaseNames = [...]string{
	PhaseInit:                    "init",
	PhaseCheckElevation:          "check-elevation",
	PhaseDetectAPI:               "detect-api",
	PhaseAwaitAPIChoice:          "await-api-choice",
	PhasePrepareTarget:           "prepare-target",
	PhaseExistingInstallConflict: "existing-install-conflict",
	PhaseDeploy:                  "deploy",
	PhaseUninstall:               "uninstall",
	PhaseSelectPackages:          "select-packages",
	PhaseAcquirePackages:         "acquire-packages",
	PhaseWriteConfig:             "write-config",
	PhaseFinalized:               "finalized",
	PhaseFailed:                  "failed",
	PhaseCancelled:               "cancelled",
	PhaseRestartRequired:         "restart-required",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Terminal reports whether no further transitions leave p, apart from the
// layer scope switch offered after a successful run.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseFinalized, PhaseFailed, PhaseCancelled, PhaseRestartRequired:
		return true
	}
	return false
}

// Selection is everything the caller decided before the workflow starts.
// It is the state carried across an elevation relaunch.
type Selection struct {
	// Target is the path of the application executable.
	Target string
	// API overrides detection when not Unset.
	API renderapi.API
	// Unattended disables every prompt.
	Unattended bool
	// Elevated is set when the process runs with administrative rights.
	Elevated bool
	// Finished resumes a relaunch whose installation already completed.
	Finished bool
	// Left and Top are the window position handed through relaunches.
	Left, Top float64
	// SwitchLayer requests LayerScope to become the active layer
	// registration once the workflow is finalized.
	SwitchLayer bool
	LayerScope  vklayer.Scope
}

// Target is the inspected application.
type Target struct {
	Path string
	// Name is the display name, from the version resource or the file name.
	Name string
	Arch peimage.Arch
}

// Dir is the directory holding the executable.
func (t Target) Dir() string {
	return filepath.Dir(t.Path)
}

// Executable is the file name of the executable.
func (t Target) Executable() string {
	return filepath.Base(t.Path)
}

// DisplayName returns Name or the file stem.
func (t Target) DisplayName() string {
	if strings.TrimSpace(t.Name) != "" {
		return t.Name
	}
	exe := t.Executable()
	return strings.TrimSuffix(exe, filepath.Ext(exe))
}

// Decision answers an existing-install conflict.
type Decision int

const (
	DecisionCancel Decision = iota
	DecisionUpdate
	DecisionUninstall
)

func (d Decision) String() string {
	switch d {
	case DecisionUpdate:
		return "update"
	case DecisionUninstall:
		return "uninstall"
	default:
		return "cancel"
	}
}

// Conflict describes a module of this tool already deployed at the target.
type Conflict struct {
	ModulePath       string
	InstalledVersion string
	BundledVersion   string
	Action           installer.InstallAction
}

// Status is a message for the presentation layer.
type Status struct {
	Phase   Phase
	Title   string
	Message string
	Detail  string
	// Success is set on the final status of a successful run.
	Success bool
}

// State is the workflow state. Transitions never modify a State in place.
type State struct {
	Phase     Phase
	Selection Selection
	Target    Target
	Detection renderapi.Detection
	// API is the resolved render API.
	API        renderapi.API
	ModulePath string
	ConfigPath string
	// ConfigOffered is set once opening the configuration was offered.
	ConfigOffered bool
	// Queue holds the packages selected for acquisition.
	Queue []catalog.Package
	// PathsRecorded is set once a package wrote search paths.
	PathsRecorded bool
	Uninstalled   bool
	Failure       *Failure
	// RestartArgs is the command line for the elevated relaunch when
	// Phase is PhaseRestartRequired.
	RestartArgs []string
}
