//go:build !windows

package platform

import "os"

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}

// LaunchElevated is only implemented on Windows.
func LaunchElevated(args []string) error {
	return ErrUnsupported
}
