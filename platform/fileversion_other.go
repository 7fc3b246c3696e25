//go:build !windows

package platform

// ReadVersionInfo is only implemented on Windows.
func ReadVersionInfo(path string) (VersionInfo, error) {
	return VersionInfo{}, ErrUnsupported
}
