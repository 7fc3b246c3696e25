package setup

import (
	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/config"
	"github.com/crafted-tech/fxsetup/peimage"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// Event is an input to Machine.Transition.
type Event interface{ event() }

// Start begins the workflow.
type Start struct{}

// Cancel aborts the workflow, for example when the user closes the window.
type Cancel struct{}

// WritableChecked reports whether the target directory can be written.
type WritableChecked struct{ Writable bool }

// Inspected carries the result of reading the target executable.
type Inspected struct {
	Image *peimage.Image
	// Name is the display name from the version resource, may be empty.
	Name string
	Err  error
}

// APIChosen is the user's answer to AskAPI. Unset means cancel.
type APIChosen struct{ API renderapi.API }

// ModuleInspected describes what is already present at the module path.
type ModuleInspected struct {
	ConfigPath  string
	Exists      bool
	ProductName string
	Version     string
	Err         error
}

// ConflictResolved is the user's answer to AskConflict.
type ConflictResolved struct{ Decision Decision }

// Deployed reports the end of the deploy steps.
type Deployed struct{ Err error }

// Uninstalled reports the end of the uninstall steps.
type Uninstalled struct{ Err error }

// PackagesSelected is the user's answer to AskPackages. Empty skips
// acquisition.
type PackagesSelected struct{ Packages []catalog.Package }

// PackageProgress is posted while packages are acquired.
type PackageProgress struct{ Progress acquire.Progress }

// PackagesAcquired is posted once acquisition settled.
type PackagesAcquired struct {
	Installed int
	Err       error
}

// ConfigWritten reports the end of the configuration update.
type ConfigWritten struct{ Err error }

// LayerScopeRequested asks for the layer to be registered in Scope.
type LayerScopeRequested struct{ Scope vklayer.Scope }

// LayerScopeSwitched reports the outcome of SwitchLayerScope.
type LayerScopeSwitched struct {
	Scope vklayer.Scope
	Err   error
}

func (Start) event()               {}
func (Cancel) event()              {}
func (WritableChecked) event()     {}
func (Inspected) event()           {}
func (APIChosen) event()           {}
func (ModuleInspected) event()     {}
func (ConflictResolved) event()    {}
func (Deployed) event()            {}
func (Uninstalled) event()         {}
func (PackagesSelected) event()    {}
func (PackageProgress) event()     {}
func (PackagesAcquired) event()    {}
func (ConfigWritten) event()       {}
func (LayerScopeRequested) event() {}
func (LayerScopeSwitched) event()  {}

// Effect is work requested by a transition. The Runner executes effects
// and feeds their results back as events.
type Effect interface{ effect() }

// Report shows a status message.
type Report struct{ Status Status }

// Warn shows a warning that does not stop the workflow.
type Warn struct{ Message string }

// CheckWritable checks whether Dir can be written.
type CheckWritable struct{ Dir string }

// InspectTarget reads the executable at Path.
type InspectTarget struct{ Path string }

// AskAPI asks the user to pick the render API.
type AskAPI struct {
	Target    Target
	Detection renderapi.Detection
}

// InspectModule looks at ModulePath and resolves the configuration file
// used in TargetDir. ModulePath is empty for layer based APIs.
type InspectModule struct {
	TargetDir  string
	ModulePath string
}

// AskConflict asks how to proceed with an existing installation.
type AskConflict struct{ Conflict Conflict }

// Deploy installs the module, its log placeholder and the base
// configuration.
type Deploy struct {
	Target     Target
	API        renderapi.API
	ModulePath string
	ConfigPath string
}

// Uninstall removes a previous installation.
type Uninstall struct {
	TargetDir  string
	ModulePath string
	ConfigPath string
}

// AskPackages offers the package catalog.
type AskPackages struct{ Packages []catalog.Package }

// AcquirePackages starts the package pipeline. It runs off the control
// loop and posts PackageProgress and PackagesAcquired.
type AcquirePackages struct {
	Packages   []catalog.Package
	TargetDir  string
	ConfigPath string
	Resolver   config.Resolver
}

// ShowProgress forwards acquisition progress.
type ShowProgress struct{ Progress acquire.Progress }

// WriteConfig merges defaults into the configuration file.
type WriteConfig struct {
	ConfigPath string
	Entry      catalog.Entry
	// DefaultSearchPaths writes the local search paths when the file has
	// none yet.
	DefaultSearchPaths bool
	Resolver           config.Resolver
}

// OfferLayerScope lets an interactive user choose the layer scope after a
// Vulkan installation.
type OfferLayerScope struct{ Elevated bool }

// OfferOpenConfig lets an interactive user open the configuration file.
type OfferOpenConfig struct{ Path string }

// SwitchLayerScope makes Scope the active layer registration.
type SwitchLayerScope struct{ Scope vklayer.Scope }

func (Report) effect()           {}
func (Warn) effect()             {}
func (CheckWritable) effect()    {}
func (InspectTarget) effect()    {}
func (AskAPI) effect()           {}
func (InspectModule) effect()    {}
func (AskConflict) effect()      {}
func (Deploy) effect()           {}
func (Uninstall) effect()        {}
func (AskPackages) effect()      {}
func (AcquirePackages) effect()  {}
func (ShowProgress) effect()     {}
func (WriteConfig) effect()      {}
func (OfferLayerScope) effect()  {}
func (OfferOpenConfig) effect()  {}
func (SwitchLayerScope) effect() {}
