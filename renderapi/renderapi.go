// Package renderapi decides which graphics API a target application uses
// and therefore which module name the injector has to be deployed under.
package renderapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crafted-tech/fxsetup/catalog"
)

// ErrUndetermined is returned when no API could be chosen and nobody can be asked.
var ErrUndetermined = errors.New("render API could not be determined")

// API is a graphics API family.
type API int

const (
	Unset API = iota
	// D3D9 covers Direct3D 8 and 9.
	D3D9
	// DXGI covers Direct3D 10, 11 and 12.
	DXGI
	OpenGL
	Vulkan
)

func (a API) String() string {
	switch a {
	case D3D9:
		return "d3d9"
	case DXGI:
		return "dxgi"
	case OpenGL:
		return "opengl"
	case Vulkan:
		return "vulkan"
	default:
		return "unset"
	}
}

// Title is the human readable name of the API family.
func (a API) Title() string {
	switch a {
	case D3D9:
		return "Direct3D 9"
	case DXGI:
		return "Direct3D 10/11/12"
	case OpenGL:
		return "OpenGL"
	case Vulkan:
		return "Vulkan"
	default:
		return "Unknown"
	}
}

// ModuleName is the file name the injector is deployed as beside the
// target. Vulkan uses the layer mechanism and has no module.
func (a API) ModuleName() string {
	switch a {
	case D3D9:
		return "d3d9.dll"
	case DXGI:
		return "dxgi.dll"
	case OpenGL:
		return "opengl32.dll"
	default:
		return ""
	}
}

// All lists the selectable APIs in display order.
func All() []API {
	return []API{D3D9, DXGI, OpenGL, Vulkan}
}

// ParseFlag parses the value of the --api command line flag.
func ParseFlag(s string) (API, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d3d9":
		return D3D9, nil
	case "dxgi", "d3d10", "d3d11", "d3d12":
		return DXGI, nil
	case "opengl":
		return OpenGL, nil
	case "vulkan":
		return Vulkan, nil
	}
	return Unset, fmt.Errorf("unknown render API %q", s)
}

// FromDeclared maps a compatibility database RenderApi value.
func FromDeclared(s string) (API, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D3D8", "D3D9":
		return D3D9, true
	case "D3D10", "D3D11", "D3D12", "DXGI":
		return DXGI, true
	case "OPENGL":
		return OpenGL, true
	case "VULKAN":
		return Vulkan, true
	}
	return Unset, false
}

// Source records where a detection came from.
type Source int

const (
	SourceNone Source = iota
	SourceCatalog
	SourceImports
)

func (s Source) String() string {
	switch s {
	case SourceCatalog:
		return "compatibility database"
	case SourceImports:
		return "import table"
	default:
		return "none"
	}
}

// Detection is the outcome of Detect.
type Detection struct {
	API    API
	Source Source
	// NeedsD3D8Wrapper is set for Direct3D 8 targets, which only work
	// through a d3d8-to-d3d9 translation wrapper.
	NeedsD3D8Wrapper bool
	// Signals lists the individual evidence that was found, for logging.
	Signals []string
}

// Found reports whether an API was determined.
func (d Detection) Found() bool { return d.API != Unset }

// Imports is the view of an inspected image the detector needs.
type Imports interface {
	HasPrefix(prefix string) bool
	Contains(substr string) bool
}

// Detect applies the detection policy:
//
//  1. a RenderApi entry in the compatibility database is used verbatim;
//  2. otherwise import-name signals are collected;
//  3. DXGI beats D3D9, Vulkan beats DXGI, and OpenGL only wins when no
//     Direct3D or Vulkan signal is present.
func Detect(exeName string, imports Imports, compat *catalog.Compatibility) Detection {
	var d Detection

	if entry, ok := compat.Lookup(exeName); ok {
		declared := entry.RenderAPI()
		if api, ok := FromDeclared(declared); ok {
			d.API = api
			d.Source = SourceCatalog
			d.NeedsD3D8Wrapper = strings.EqualFold(declared, "D3D8")
			d.Signals = append(d.Signals, "catalog:"+declared)
			return d
		}
	}
	if imports == nil {
		return d
	}

	var d3d9, dxgi, opengl, vulkan bool
	if imports.HasPrefix("d3d8") {
		d3d9 = true
		d.NeedsD3D8Wrapper = true
		d.Signals = append(d.Signals, "d3d8")
	}
	if imports.HasPrefix("d3d9") {
		d3d9 = true
		d.Signals = append(d.Signals, "d3d9")
	}
	if imports.HasPrefix("dxgi") || imports.HasPrefix("d3d1") || imports.Contains("GFSDK") {
		dxgi = true
		d.Signals = append(d.Signals, "dxgi")
	}
	if imports.HasPrefix("opengl32") {
		opengl = true
		d.Signals = append(d.Signals, "opengl32")
	}
	if imports.HasPrefix("vulkan-1") {
		vulkan = true
		d.Signals = append(d.Signals, "vulkan-1")
	}

	switch {
	case vulkan:
		d.API = Vulkan
	case dxgi:
		d.API = DXGI
	case d3d9:
		d.API = D3D9
	case opengl:
		d.API = OpenGL
	}
	if d.API != Unset {
		d.Source = SourceImports
	}
	return d
}
