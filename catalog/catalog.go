// Package catalog holds the two static databases shipped with the setup
// tool: the effect package list and the per-executable compatibility
// hints. Both are INI documents embedded at build time.
package catalog

import (
	"bytes"
	_ "embed"
	"path/filepath"
	"strings"

	"github.com/crafted-tech/fxsetup/inifile"
)

//go:embed data/EffectPackages.ini
var effectPackagesINI []byte

//go:embed data/Compatibility.ini
var compatibilityINI []byte

// Compatibility keys.
const (
	KeyRenderAPI                = "RenderApi"
	KeyDepthUpsideDown          = "DepthUpsideDown"
	KeyDepthReversed            = "DepthReversed"
	KeyDepthLogarithmic         = "DepthLogarithmic"
	KeyDepthCopyBeforeClears    = "DepthCopyBeforeClears"
	KeyUseAspectRatioHeuristics = "UseAspectRatioHeuristics"
)

// Package is one downloadable effect collection.
type Package struct {
	ID                 string
	Name               string
	Description        string
	DownloadURL        string
	InstallPath        string
	TextureInstallPath string
	// Enabled marks packages preselected in the interactive picker.
	Enabled bool
}

// DisplayName returns Name, or ID when the entry has no name.
func (p Package) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// LoadPackages returns the embedded package list.
func LoadPackages() ([]Package, error) {
	doc, err := inifile.Parse(bytes.NewReader(effectPackagesINI))
	if err != nil {
		return nil, err
	}
	return PackagesFrom(doc), nil
}

// PackagesFrom reads one package per named section of doc, in order.
func PackagesFrom(doc *inifile.Document) []Package {
	var packages []Package
	for _, id := range doc.Sections() {
		if id == "" {
			continue
		}
		packages = append(packages, Package{
			ID:                 id,
			Name:               doc.Value(id, "PackageName", ""),
			Description:        doc.Value(id, "PackageDescription", ""),
			DownloadURL:        doc.Value(id, "DownloadUrl", ""),
			InstallPath:        doc.Value(id, "InstallPath", ""),
			TextureInstallPath: doc.Value(id, "TextureInstallPath", ""),
			Enabled:            doc.Value(id, "Enabled", "0") == "1",
		})
	}
	return packages
}

// Compatibility maps executable file names to their hints.
type Compatibility struct {
	doc *inifile.Document
}

// Entry holds the hints for one executable.
type Entry struct {
	Executable string
	values     map[string]string
}

// LoadCompatibility returns the embedded compatibility database.
func LoadCompatibility() (*Compatibility, error) {
	doc, err := inifile.Parse(bytes.NewReader(compatibilityINI))
	if err != nil {
		return nil, err
	}
	return NewCompatibility(doc), nil
}

// NewCompatibility wraps an already parsed document.
func NewCompatibility(doc *inifile.Document) *Compatibility {
	return &Compatibility{doc: doc}
}

// Lookup returns the entry for exeName. Only the base name is used and the
// match ignores case.
func (c *Compatibility) Lookup(exeName string) (Entry, bool) {
	if c == nil || c.doc == nil {
		return Entry{}, false
	}
	name := filepath.Base(strings.ReplaceAll(exeName, `\`, "/"))
	for _, section := range c.doc.Sections() {
		if section == "" || !strings.EqualFold(section, name) {
			continue
		}
		e := Entry{Executable: section, values: make(map[string]string)}
		for _, key := range c.doc.Keys(section) {
			e.values[key] = c.doc.Value(section, key, "")
		}
		return e, true
	}
	return Entry{}, false
}

// Has reports whether the entry declares key.
func (e Entry) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Value returns the declared value of key or fallback.
func (e Entry) Value(key, fallback string) string {
	if v, ok := e.values[key]; ok {
		return v
	}
	return fallback
}

// RenderAPI returns the declared RenderApi value, "" when absent.
func (e Entry) RenderAPI() string {
	return e.Value(KeyRenderAPI, "")
}

// NewEntry builds an entry from literal values.
func NewEntry(executable string, values map[string]string) Entry {
	e := Entry{Executable: executable, values: make(map[string]string, len(values))}
	for k, v := range values {
		e.values[k] = v
	}
	return e
}
