package payload

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/crafted-tech/fxsetup/peimage"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// selfExtractor mimics a setup executable: a stub image padded to a block
// boundary followed by the archive.
func selfExtractor(t *testing.T, stubBlocks int, archive []byte) string {
	t.Helper()
	stub := make([]byte, stubBlocks*blockSize)
	copy(stub, "MZ fake executable")
	// A stray signature inside the stub, not on a block boundary.
	copy(stub[100:], signature)

	path := filepath.Join(t.TempDir(), "fxsetup.exe")
	if err := os.WriteFile(path, append(stub, archive...), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var payloadFiles = map[string]string{
	Module32:   "module32",
	Module64:   "module64",
	Manifest32: `{"layer":{}}`,
	Manifest64: `{"layer":{}}`,
}

func TestOpenAppendedArchive(t *testing.T) {
	t.Parallel()

	path := selfExtractor(t, 3, buildZip(t, payloadFiles))
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.Offset() != 3*blockSize {
		t.Errorf("Offset() = %d, want %d", a.Offset(), 3*blockSize)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	dst := filepath.Join(t.TempDir(), "dxgi.dll")
	if err := a.ExtractModule(peimage.Arch64, dst); err != nil {
		t.Fatalf("ExtractModule() error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "module64" {
		t.Errorf("extracted module = %q, want module64", data)
	}

	dir := t.TempDir()
	if err := a.ExtractAll(dir); err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	for name := range payloadFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not extracted: %v", name, err)
		}
	}
}

func TestOpenPlainZip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(path, buildZip(t, payloadFiles), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()
	if a.Offset() != 0 {
		t.Errorf("Offset() = %d, want 0", a.Offset())
	}
}

func TestOpenCorrupt(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"no archive":        bytes.Repeat([]byte{0x90}, 4*blockSize),
		"truncated archive": append(make([]byte, blockSize), buildZip(t, payloadFiles)[:40]...),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "fxsetup.exe")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Open(path); !errors.Is(err, ErrArchiveCorrupt) {
				t.Errorf("Open() error = %v, want ErrArchiveCorrupt", err)
			}
		})
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.exe")); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("Open(missing) error = %v, want ErrArchiveCorrupt", err)
	}
}

func TestValidateMissingModule(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(path, buildZip(t, map[string]string{Module64: "x"}), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Validate(); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("Validate() error = %v, want ErrArchiveCorrupt", err)
	}
	if err := a.ExtractModule(peimage.Arch32, filepath.Join(t.TempDir(), "d3d9.dll")); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("ExtractModule(32) error = %v, want ErrArchiveCorrupt", err)
	}
}
