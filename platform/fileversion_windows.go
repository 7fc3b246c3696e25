//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ReadVersionInfo reads the version resource of the executable or DLL at path.
func ReadVersionInfo(path string) (VersionInfo, error) {
	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("version info size of %s: %w", path, err)
	}
	buf := make([]byte, size)
	block := unsafe.Pointer(&buf[0])
	if err := windows.GetFileVersionInfo(path, 0, size, block); err != nil {
		return VersionInfo{}, fmt.Errorf("version info of %s: %w", path, err)
	}

	lang := "040904b0"
	var trans unsafe.Pointer
	var transLen uint32
	if err := windows.VerQueryValue(block, `\VarFileInfo\Translation`, unsafe.Pointer(&trans), &transLen); err == nil && transLen >= 4 {
		pair := (*[2]uint16)(trans)
		lang = fmt.Sprintf("%04x%04x", pair[0], pair[1])
	}

	str := func(name string) string {
		var p unsafe.Pointer
		var n uint32
		if err := windows.VerQueryValue(block, `\StringFileInfo\`+lang+`\`+name, unsafe.Pointer(&p), &n); err != nil || n == 0 {
			return ""
		}
		return windows.UTF16PtrToString((*uint16)(p))
	}

	info := VersionInfo{
		ProductName:     str("ProductName"),
		FileDescription: str("FileDescription"),
		ProductVersion:  str("ProductVersion"),
	}

	var fixed *windows.VS_FIXEDFILEINFO
	var fixedLen uint32
	if err := windows.VerQueryValue(block, `\`, unsafe.Pointer(&fixed), &fixedLen); err == nil && fixed != nil {
		info.FileVersion = fmt.Sprintf("%d.%d.%d.%d",
			fixed.FileVersionMS>>16, fixed.FileVersionMS&0xffff,
			fixed.FileVersionLS>>16, fixed.FileVersionLS&0xffff)
	}
	return info, nil
}
