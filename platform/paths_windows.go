//go:build windows

package platform

import "golang.org/x/sys/windows"

// ProgramDataPath returns the path to the common program data folder.
// Example: C:\ProgramData
func ProgramDataPath() (string, error) {
	return windows.KnownFolderPath(windows.FOLDERID_ProgramData, 0)
}
