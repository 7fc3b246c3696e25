// Package platform wraps the operating system services the setup tool
// depends on.
//
// Most of it is Windows-only; other platforms get stubs that report
// ErrUnsupported so the rest of the module still builds and tests there.
//
// # Features
//
//   - Elevation: detect administrator rights and relaunch through UAC
//   - Paths: the machine-wide program data folder
//   - Version resources: product name and description of an executable
//   - Shell: open a document at the desktop user's normal privilege level
//   - Checks: 64-bit OS detection, directory writability, running processes
//
// # Example Usage
//
//	if !platform.IsWritable(targetDir) && !platform.IsElevated() {
//	    return platform.LaunchElevated(args)
//	}
package platform
