// Package config merges the setup's changes into the injector's
// configuration file without disturbing what the user already has there.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/inifile"
)

// Configuration file layout.
const (
	FileName = "ReShade.ini"

	SectionGeneral             = "GENERAL"
	KeyEffectSearchPaths       = "EffectSearchPaths"
	KeyTextureSearchPaths      = "TextureSearchPaths"
	KeyPreprocessorDefinitions = "PreprocessorDefinitions"

	// DefaultSearchPath is written when no package recorded its own paths.
	DefaultSearchPath = `.\`
)

// PathKind selects one of the two search path lists.
type PathKind int

const (
	EffectPaths PathKind = iota
	TexturePaths
)

// Key returns the GENERAL key holding the list.
func (k PathKind) Key() string {
	if k == TexturePaths {
		return KeyTextureSearchPaths
	}
	return KeyEffectSearchPaths
}

// Path returns the configuration file used for a module deployed at
// modulePath inside targetDir: a sibling named after the module when one
// already exists, ReShade.ini otherwise. An empty modulePath always
// yields ReShade.ini.
func Path(targetDir, modulePath string) string {
	if modulePath != "" {
		alt := strings.TrimSuffix(modulePath, filepath.Ext(modulePath)) + ".ini"
		if info, err := os.Stat(alt); err == nil && !info.IsDir() {
			return alt
		}
	}
	return filepath.Join(targetDir, FileName)
}

// Resolver decides how search path entries are compared and stored.
type Resolver struct {
	// Base is the directory relative entries are resolved against when
	// checking for duplicates.
	Base string
	// Anchor, when set, turns new relative paths into absolute ones below
	// it before they are stored.
	Anchor string
}

// TargetResolver resolves entries against the directory the module is
// deployed to.
func TargetResolver(targetDir string) Resolver {
	return Resolver{Base: targetDir}
}

// SharedResolver is used when the injector is loaded from the shared
// payload directory: relative entries in the file are relative to that
// directory, so new paths are stored as absolute paths under targetDir.
func SharedResolver(sharedDir, targetDir string) Resolver {
	return Resolver{Base: sharedDir, Anchor: targetDir}
}

func (r Resolver) canonical(p string) string {
	n := nativePath(p)
	if !filepath.IsAbs(n) {
		n = filepath.Join(r.Base, n)
	}
	n = filepath.Clean(n)
	if runtime.GOOS == "windows" {
		n = strings.ToLower(n)
	}
	return n
}

func (r Resolver) stored(p string) string {
	if r.Anchor == "" {
		return p
	}
	n := nativePath(p)
	if filepath.IsAbs(n) {
		return p
	}
	return filepath.Join(r.Anchor, n)
}

func nativePath(p string) string {
	return filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
}

// AddSearchPath appends newPath to the list selected by kind unless an
// equivalent entry is present. Blank entries are dropped from the list.
// The document is modified but not saved. Reports whether newPath was added.
func AddSearchPath(doc *inifile.Document, kind PathKind, newPath string, r Resolver) bool {
	existing, _ := doc.Values(SectionGeneral, kind.Key())
	paths := make([]string, 0, len(existing)+1)
	for _, p := range existing {
		if strings.TrimSpace(p) != "" {
			paths = append(paths, p)
		}
	}

	stored := r.stored(newPath)
	want := r.canonical(stored)
	added := true
	for _, p := range paths {
		if r.canonical(p) == want {
			added = false
			break
		}
	}
	if added {
		paths = append(paths, stored)
	}
	doc.Set(SectionGeneral, kind.Key(), paths...)
	return added
}

// UpdateSearchPaths records a package's effect and texture paths and saves
// the document.
func UpdateSearchPaths(doc *inifile.Document, effectPath, texturePath string, r Resolver) error {
	AddSearchPath(doc, EffectPaths, effectPath, r)
	AddSearchPath(doc, TexturePaths, texturePath, r)
	if err := doc.Save(); err != nil {
		return fmt.Errorf("save search paths: %w", err)
	}
	return nil
}

// HasSearchPaths reports whether either search path key exists.
func HasSearchPaths(doc *inifile.Document) bool {
	return doc.Has(SectionGeneral, KeyEffectSearchPaths) || doc.Has(SectionGeneral, KeyTextureSearchPaths)
}

// SearchPathWriter records package install paths into the configuration
// file at Path, reloading it for every call so edits made in between are kept.
type SearchPathWriter struct {
	Path     string
	Resolver Resolver
}

// RecordSearchPaths implements the package pipeline's recorder.
func (w SearchPathWriter) RecordSearchPaths(effectPath, texturePath string) error {
	doc, err := inifile.Load(w.Path)
	if err != nil {
		return err
	}
	return UpdateSearchPaths(doc, effectPath, texturePath, w.Resolver)
}

// bufferDetectionGroups maps a declared RenderApi to its section and the
// key DepthCopyBeforeClears is written to.
var bufferDetectionGroups = map[string]struct{ section, copyKey string }{
	"D3D9":  {"DX9_BUFFER_DETECTION", "PreserveDepthBuffer"},
	"D3D10": {"DX10_BUFFER_DETECTION", "DepthBufferRetrievalMode"},
	"D3D11": {"DX11_BUFFER_DETECTION", "DepthBufferRetrievalMode"},
	"D3D12": {"DX12_BUFFER_DETECTION", "DepthBufferRetrievalMode"},
}

// SeedDefaults writes the depth preprocessor definitions when the document
// has none, using the compatibility entry's values or "0". When the entry
// declares depth-copy or aspect-ratio hints, the buffer detection group for
// its API is written as well. Existing keys are never overwritten.
// Reports whether anything changed.
func SeedDefaults(doc *inifile.Document, entry catalog.Entry) bool {
	if doc.Has(SectionGeneral, KeyPreprocessorDefinitions) {
		return false
	}
	doc.Set(SectionGeneral, KeyPreprocessorDefinitions,
		"RESHADE_DEPTH_LINEARIZATION_FAR_PLANE=1000.0",
		"RESHADE_DEPTH_INPUT_IS_UPSIDE_DOWN="+entry.Value(catalog.KeyDepthUpsideDown, "0"),
		"RESHADE_DEPTH_INPUT_IS_REVERSED="+entry.Value(catalog.KeyDepthReversed, "0"),
		"RESHADE_DEPTH_INPUT_IS_LOGARITHMIC="+entry.Value(catalog.KeyDepthLogarithmic, "0"),
	)

	if !entry.Has(catalog.KeyDepthCopyBeforeClears) && !entry.Has(catalog.KeyUseAspectRatioHeuristics) {
		return true
	}
	group, ok := bufferDetectionGroups[strings.ToUpper(entry.RenderAPI())]
	if !ok {
		return true
	}
	setIfAbsent(doc, group.section, group.copyKey, entry.Value(catalog.KeyDepthCopyBeforeClears, "0"))
	setIfAbsent(doc, group.section, "UseAspectRatioHeuristics", entry.Value(catalog.KeyUseAspectRatioHeuristics, "1"))
	return true
}

func setIfAbsent(doc *inifile.Document, section, key, value string) {
	if !doc.Has(section, key) {
		doc.Set(section, key, value)
	}
}
