// Package peimage reads the two facts the setup needs from a Windows
// executable: whether it is a 32 or 64-bit image and which modules it
// imports.
package peimage

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBinaryFormatInvalid is returned for files that are not readable PE images.
var ErrBinaryFormatInvalid = errors.New("invalid or unsupported executable format")

// Arch is the bitness of an image.
type Arch int

const (
	Arch32 Arch = iota
	Arch64
)

func (a Arch) String() string {
	if a == Arch64 {
		return "64-bit"
	}
	return "32-bit"
}

// Image is the inspected subset of a PE file.
type Image struct {
	Machine uint16
	Arch    Arch
	// Imports lists imported module names as they appear in the import directory.
	Imports []string
}

// HasPrefix reports whether any import starts with prefix, ignoring case.
func (img *Image) HasPrefix(prefix string) bool {
	prefix = strings.ToLower(prefix)
	for _, name := range img.Imports {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			return true
		}
	}
	return false
}

// Contains reports whether any import contains substr, ignoring case.
func (img *Image) Contains(substr string) bool {
	substr = strings.ToLower(substr)
	for _, name := range img.Imports {
		if strings.Contains(strings.ToLower(name), substr) {
			return true
		}
	}
	return false
}

// Inspect opens the file at path and reads its header and import table.
func Inspect(path string) (*Image, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBinaryFormatInvalid, path, err)
	}
	defer f.Close()
	return inspect(f)
}

// Read inspects an image held in r.
func Read(r io.ReaderAt) (*Image, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBinaryFormatInvalid, err)
	}
	return inspect(f)
}

func inspect(f *pe.File) (*Image, error) {
	img := &Image{Machine: f.Machine}
	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		img.Arch = Arch32
	case pe.IMAGE_FILE_MACHINE_AMD64:
		img.Arch = Arch64
	default:
		return nil, fmt.Errorf("%w: machine type %#x", ErrBinaryFormatInvalid, f.Machine)
	}

	imports, err := importedModules(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBinaryFormatInvalid, err)
	}
	img.Imports = imports
	return img, nil
}

const (
	importDescriptorSize = 20
	maxImportDescriptors = 4096
	maxModuleNameLen     = 512
)

// importedModules walks IMAGE_IMPORT_DESCRIPTOR entries of data directory 1.
func importedModules(f *pe.File) ([]string, error) {
	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_IMPORT {
			return nil, nil
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_IMPORT {
			return nil, nil
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT]
	default:
		return nil, errors.New("missing optional header")
	}
	if dir.VirtualAddress == 0 {
		return nil, nil
	}

	var modules []string
	for i := uint32(0); i < maxImportDescriptors; i++ {
		var desc [importDescriptorSize]byte
		if err := readRVA(f, dir.VirtualAddress+i*importDescriptorSize, desc[:]); err != nil {
			return nil, fmt.Errorf("import descriptor %d: %w", i, err)
		}
		if desc == [importDescriptorSize]byte{} {
			return modules, nil
		}
		nameRVA := binary.LittleEndian.Uint32(desc[12:16])
		name, err := readString(f, nameRVA)
		if err != nil {
			return nil, fmt.Errorf("import descriptor %d name: %w", i, err)
		}
		modules = append(modules, name)
	}
	return nil, errors.New("import directory is not terminated")
}

func sectionFor(f *pe.File, rva uint32) *pe.Section {
	for _, s := range f.Sections {
		size := max(s.VirtualSize, s.Size)
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+size {
			return s
		}
	}
	return nil
}

func readRVA(f *pe.File, rva uint32, buf []byte) error {
	s := sectionFor(f, rva)
	if s == nil {
		return fmt.Errorf("rva %#x outside all sections", rva)
	}
	n, err := s.ReadAt(buf, int64(rva-s.VirtualAddress))
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func readString(f *pe.File, rva uint32) (string, error) {
	s := sectionFor(f, rva)
	if s == nil {
		return "", fmt.Errorf("rva %#x outside all sections", rva)
	}
	buf := make([]byte, maxModuleNameLen)
	n, err := s.ReadAt(buf, int64(rva-s.VirtualAddress))
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	end := bytes.IndexByte(buf[:n], 0)
	if end < 0 {
		return "", errors.New("unterminated module name")
	}
	return string(buf[:end]), nil
}
