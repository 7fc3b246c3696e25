// Package payload locates the zip archive appended to the setup executable
// and extracts the injector modules and layer manifests from it.
package payload

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/crafted-tech/fxsetup/installer"
	"github.com/crafted-tech/fxsetup/peimage"
)

// ErrArchiveCorrupt is returned when no readable archive is found.
var ErrArchiveCorrupt = errors.New("setup archive is missing or corrupt")

// Entry names inside the archive.
const (
	Module32   = "ReShade32.dll"
	Module64   = "ReShade64.dll"
	Manifest32 = "ReShade32.json"
	Manifest64 = "ReShade64.json"
)

// blockSize is the PE file alignment the archive is appended at.
const blockSize = 512

var signature = []byte{'P', 'K', 0x03, 0x04}

// Archive is an opened payload.
type Archive struct {
	file   *os.File
	zip    *zip.Reader
	offset int64
}

// ModuleName returns the archive entry holding the module for arch.
func ModuleName(arch peimage.Arch) string {
	if arch == peimage.Arch64 {
		return Module64
	}
	return Module32
}

// Open scans the file at path in 512-byte blocks for a zip local file
// header and opens the archive starting there. Candidates that do not
// parse as a zip are skipped.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}

	size := info.Size()
	block := make([]byte, len(signature))
	for off := int64(0); off+int64(len(signature)) <= size; off += blockSize {
		if _, err := f.ReadAt(block, off); err != nil {
			break
		}
		if !bytes.Equal(block, signature) {
			continue
		}
		zr, err := zip.NewReader(io.NewSectionReader(f, off, size-off), size-off)
		if err != nil {
			continue
		}
		return &Archive{file: f, zip: zr, offset: off}, nil
	}

	f.Close()
	return nil, fmt.Errorf("%w: no archive found in %s", ErrArchiveCorrupt, path)
}

// Close releases the underlying file.
func (a *Archive) Close() error {
	return a.file.Close()
}

// Offset is the position of the archive within the file.
func (a *Archive) Offset() int64 {
	return a.offset
}

// Has reports whether the archive contains an entry called name.
func (a *Archive) Has(name string) bool {
	return a.entry(name) != nil
}

// Validate checks that both module builds are present.
func (a *Archive) Validate() error {
	for _, name := range []string{Module32, Module64} {
		if !a.Has(name) {
			return fmt.Errorf("%w: missing %s", ErrArchiveCorrupt, name)
		}
	}
	return nil
}

// ExtractModule writes the module build for arch to dst, replacing it.
func (a *Archive) ExtractModule(arch peimage.Arch, dst string) error {
	name := ModuleName(arch)
	f := a.entry(name)
	if f == nil {
		return fmt.Errorf("%w: missing %s", ErrArchiveCorrupt, name)
	}
	return installer.ExtractZipFile(f, dst)
}

// ExtractAll writes every entry below dir.
func (a *Archive) ExtractAll(dir string) error {
	return installer.ExtractZip(a.zip, dir)
}

func (a *Archive) entry(name string) *zip.File {
	for _, f := range a.zip.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
