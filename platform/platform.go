package platform

import (
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrElevationDeclined indicates the user rejected the UAC prompt.
	ErrElevationDeclined = errors.New("administrator elevation declined")

	// ErrUnsupported is returned by operations that only exist on Windows.
	ErrUnsupported = errors.New("not supported on this platform")
)

// VersionInfo holds the string fields of an executable's version resource.
type VersionInfo struct {
	ProductName     string
	FileDescription string
	ProductVersion  string
	FileVersion     string
}

// Is64BitOS reports whether the operating system kernel is 64-bit,
// independent of the bitness of the current process.
func Is64BitOS() bool {
	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		return strings.HasSuffix(runtime.GOARCH, "64")
	}
	switch strings.ToLower(arch) {
	case "x86_64", "amd64", "arm64", "aarch64", "ia64":
		return true
	}
	return false
}

// IsWritable tests dir by creating and removing a randomly named file.
func IsWritable(dir string) bool {
	f, err := os.CreateTemp(dir, "fxsetup-check-*.tmp")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// IsProcessRunning returns true if any process with the given executable
// name is running. Names compare case-insensitively.
func IsProcessRunning(exeName string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, exeName) {
			return true
		}
	}
	return false
}
