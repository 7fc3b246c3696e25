//go:build !windows

package platform

import (
	"os/exec"
	"runtime"
)

// OpenDocument opens path with the desktop's default handler.
func OpenDocument(path string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	return exec.Command(opener, path).Start()
}
