// Package inifile models the setup's INI documents: an ordered list of
// sections, each an ordered list of keys, each holding an ordered list of
// comma separated values. Parsing and serialization go through
// gopkg.in/ini.v1; the document keeps its own order so a save followed by
// a reload yields the same model.
package inifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrMalformed wraps parse failures.
var ErrMalformed = errors.New("malformed ini document")

var options = ini.LoadOptions{
	IgnoreContinuation:      true,
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
	PreserveSurroundedQuote: true,
	KeyValueDelimiters:      "=",
}

// unnamedSection names the keys before the first header. A line break can
// never be part of a section header, so a literal [DEFAULT] section stays
// an ordinary one.
const unnamedSection = "\n"

func init() {
	ini.PrettyFormat = false
	ini.DefaultSection = unnamedSection
}

// Document is an ordered, in-memory INI file bound to a path.
// It is not safe for concurrent use.
type Document struct {
	path     string
	sections []*section
}

type section struct {
	name string
	keys []*entry
}

type entry struct {
	name   string
	values []string
}

// New returns an empty document that saves to path.
func New(path string) *Document {
	return &Document{path: path}
}

// Load reads the document at path. A missing file yields an empty document
// bound to path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse reads a document from r. The result is not bound to a path.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(options, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	doc := &Document{}
	for _, s := range f.Sections() {
		name := s.Name()
		if name == ini.DefaultSection {
			name = ""
			if len(s.Keys()) == 0 {
				continue
			}
		}
		sec := doc.section(name, true)
		for _, k := range s.Keys() {
			sec.set(k.Name(), splitList(k.Value()))
		}
	}
	return doc, nil
}

// Path returns the file the document saves to.
func (d *Document) Path() string {
	return d.path
}

// Save writes the document to its path, creating parent directories.
func (d *Document) Save() error {
	if d.path == "" {
		return errors.New("document has no path")
	}
	return d.SaveAs(d.path)
}

// SaveAs writes the document to path and rebinds it there.
func (d *Document) SaveAs(path string) error {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	d.path = path
	return nil
}

// WriteTo serializes the document. Keys of the unnamed section come first,
// without a header.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	f := ini.Empty(options)
	for _, s := range d.sections {
		name := s.name
		if name == "" {
			name = ini.DefaultSection
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return 0, fmt.Errorf("section %q: %w", s.name, err)
		}
		for _, e := range s.keys {
			if _, err := sec.NewKey(e.name, strings.Join(e.values, ",")); err != nil {
				return 0, fmt.Errorf("key %s.%s: %w", s.name, e.name, err)
			}
		}
	}
	return f.WriteTo(w)
}

// Sections returns the section names in document order.
func (d *Document) Sections() []string {
	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.name)
	}
	return names
}

// HasSection reports whether the section exists, even if empty.
func (d *Document) HasSection(name string) bool {
	return d.section(name, false) != nil
}

// Keys returns the key names of a section in document order.
func (d *Document) Keys(sectionName string) []string {
	s := d.section(sectionName, false)
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.keys))
	for _, e := range s.keys {
		names = append(names, e.name)
	}
	return names
}

// Has reports whether key exists in section.
func (d *Document) Has(sectionName, key string) bool {
	_, ok := d.Values(sectionName, key)
	return ok
}

// Values returns a copy of the value list stored under section/key.
func (d *Document) Values(sectionName, key string) ([]string, bool) {
	s := d.section(sectionName, false)
	if s == nil {
		return nil, false
	}
	e := s.get(key)
	if e == nil {
		return nil, false
	}
	return append([]string(nil), e.values...), true
}

// Value returns the values of section/key joined by commas, or fallback
// when the key is absent.
func (d *Document) Value(sectionName, key, fallback string) string {
	values, ok := d.Values(sectionName, key)
	if !ok {
		return fallback
	}
	return strings.Join(values, ",")
}

// Set replaces the values of section/key, creating the section and key at
// the end of their lists when new.
func (d *Document) Set(sectionName, key string, values ...string) {
	d.section(sectionName, true).set(key, normalize(append([]string(nil), values...)))
}

// Delete removes section/key and reports whether it existed.
func (d *Document) Delete(sectionName, key string) bool {
	s := d.section(sectionName, false)
	if s == nil {
		return false
	}
	for i, e := range s.keys {
		if e.name == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Document) section(name string, create bool) *section {
	for _, s := range d.sections {
		if s.name == name {
			return s
		}
	}
	if !create {
		return nil
	}
	s := &section{name: name}
	if name == "" {
		d.sections = append([]*section{s}, d.sections...)
	} else {
		d.sections = append(d.sections, s)
	}
	return s
}

func (s *section) get(key string) *entry {
	for _, e := range s.keys {
		if e.name == key {
			return e
		}
	}
	return nil
}

func (s *section) set(key string, values []string) {
	if e := s.get(key); e != nil {
		e.values = values
		return
	}
	s.keys = append(s.keys, &entry{name: key, values: values})
}

func normalize(values []string) []string {
	if len(values) == 1 && values[0] == "" {
		return nil
	}
	return values
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
