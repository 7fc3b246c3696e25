//go:build !windows

package platform

import "os"

// ProgramDataPath returns the per-user configuration directory, the closest
// writable equivalent of the Windows common program data folder.
func ProgramDataPath() (string, error) {
	return os.UserConfigDir()
}
