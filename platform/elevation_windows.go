//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// IsElevated checks if the current process is running with administrator privileges.
func IsElevated() bool {
	elevated, err := isElevated()
	if err != nil {
		return false
	}
	return elevated
}

// LaunchElevated starts the current executable again through the "runas"
// verb with the given arguments. The caller is expected to exit afterwards.
// Returns ErrElevationDeclined if the user rejects the UAC prompt.
func LaunchElevated(args []string) error {
	exePath, err := os.Executable()
	if err != nil {
		return err
	}

	err = windows.ShellExecute(0,
		windows.StringToUTF16Ptr("runas"),
		windows.StringToUTF16Ptr(exePath),
		windows.StringToUTF16Ptr(windows.ComposeCommandLine(args)),
		windows.StringToUTF16Ptr(filepath.Dir(exePath)),
		windows.SW_SHOWNORMAL,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_CANCELLED) {
			return ErrElevationDeclined
		}
		return fmt.Errorf("relaunch elevated: %w", err)
	}
	return nil
}

func isElevated() (bool, error) {
	token := windows.Token(0)
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return false, err
	}
	defer token.Close()

	var elevation struct {
		TokenIsElevated uint32
	}
	var outLen uint32
	if err := windows.GetTokenInformation(
		token,
		windows.TokenElevation,
		(*byte)(unsafe.Pointer(&elevation)),
		uint32(unsafe.Sizeof(elevation)),
		&outLen,
	); err != nil {
		return false, err
	}
	return elevation.TokenIsElevated != 0, nil
}
