//go:build windows

package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"
)

var clsidShellWindows = ole.NewGUID("9BA05972-F6A8-11CF-A442-00A0C90A8F39")

// ShellWindows.FindWindowSW arguments selecting the desktop window.
const (
	swcDesktop       = 8
	swfoNeedDispatch = 1
)

// OpenDocument opens path with its associated application. From an elevated
// process the request is handed to the running Explorer shell so the editor
// starts with the desktop user's normal token; if that fails the document is
// opened directly.
func OpenDocument(path string) error {
	if IsElevated() {
		if err := openViaExplorer(path); err == nil {
			return nil
		}
	}
	return shellOpen(path)
}

func shellOpen(path string) error {
	err := windows.ShellExecute(0,
		windows.StringToUTF16Ptr("open"),
		windows.StringToUTF16Ptr(path),
		nil,
		windows.StringToUTF16Ptr(filepath.Dir(path)),
		windows.SW_SHOWNORMAL,
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// openViaExplorer asks the desktop window's Shell.Application object,
// which lives inside explorer.exe, to open path.
func openViaExplorer(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shell automation: %v", r)
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		// S_FALSE means the apartment was already initialized.
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || (oleErr.Code() != 0 && oleErr.Code() != 1) {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	shell, err := desktopShell()
	if err != nil {
		return err
	}
	defer shell.Release()

	if _, err := oleutil.CallMethod(shell, "ShellExecute", path, "", filepath.Dir(path), "open", windows.SW_SHOWNORMAL); err != nil {
		return fmt.Errorf("ShellExecute: %w", err)
	}
	return nil
}

// desktopShell walks ShellWindows, the desktop window, its folder view and
// finally the view's Application property.
func desktopShell() (*ole.IDispatch, error) {
	unk, err := ole.CreateInstance(clsidShellWindows, ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("create ShellWindows: %w", err)
	}
	defer unk.Release()

	shellWindows, err := unk.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("query ShellWindows: %w", err)
	}
	defer shellWindows.Release()

	var hwnd int32
	desktop, err := oleutil.CallMethod(shellWindows, "FindWindowSW", 0, 0, swcDesktop, &hwnd, swfoNeedDispatch)
	if err != nil {
		return nil, fmt.Errorf("FindWindowSW: %w", err)
	}
	defer desktop.Clear()
	if desktop.VT != ole.VT_DISPATCH || desktop.ToIDispatch() == nil {
		return nil, errors.New("FindWindowSW: no desktop window")
	}

	view, err := oleutil.GetProperty(desktop.ToIDispatch(), "Document")
	if err != nil {
		return nil, fmt.Errorf("get desktop folder view: %w", err)
	}
	defer view.Clear()

	app, err := oleutil.GetProperty(view.ToIDispatch(), "Application")
	if err != nil {
		return nil, fmt.Errorf("get Application: %w", err)
	}
	return app.ToIDispatch(), nil
}
