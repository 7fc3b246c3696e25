package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsWritable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if !IsWritable(dir) {
		t.Fatalf("IsWritable(%q) = false, want true", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("writability check left %d entries behind", len(entries))
	}

	if IsWritable(filepath.Join(dir, "missing")) {
		t.Errorf("IsWritable(missing dir) = true, want false")
	}
}

func TestIsProcessRunningUnknownName(t *testing.T) {
	t.Parallel()

	if IsProcessRunning("fxsetup-no-such-process-7f3a.exe") {
		t.Errorf("IsProcessRunning reported a process that cannot exist")
	}
}
