package installer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// StepCopyFileIfAbsent creates a Step that copies src to dst unless dst
// already exists. A missing src is skipped as well.
func StepCopyFileIfAbsent(src, dst string) Step {
	return Step{
		Name: fmt.Sprintf("Copy %s", filepath.Base(dst)),
		Action: func(context.Context) StepResult {
			if FileExists(dst) {
				return Skipped("already exists")
			}
			if !FileExists(src) {
				return Skipped("no source file")
			}
			if err := CopyFile(src, dst); err != nil {
				return Failed(err)
			}
			return Success(src)
		},
	}
}

// StepDeleteFile creates a Step that deletes a file.
// Skips if the file doesn't exist.
func StepDeleteFile(path string) Step {
	return Step{
		Name: fmt.Sprintf("Delete %s", filepath.Base(path)),
		Action: func(context.Context) StepResult {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return Skipped("not found")
			}
			if err := os.Remove(path); err != nil {
				return Failed(err)
			}
			return Success("")
		},
	}
}

// StepRemoveTree creates a Step that deletes a directory and its contents.
// Skips if the directory doesn't exist.
func StepRemoveTree(path string) Step {
	return Step{
		Name: fmt.Sprintf("Remove %s", filepath.Base(path)),
		Action: func(context.Context) StepResult {
			if !DirExists(path) {
				return Skipped("not found")
			}
			if err := os.RemoveAll(path); err != nil {
				return Failed(err)
			}
			return Success("")
		},
	}
}

// StepWriteFile creates a Step that writes content to a file.
// Creates parent directories if needed.
func StepWriteFile(path string, content []byte) Step {
	return Step{
		Name: fmt.Sprintf("Write %s", filepath.Base(path)),
		Action: func(context.Context) StepResult {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return Failed(fmt.Errorf("create parent directory: %w", err))
			}
			if err := os.WriteFile(path, content, 0o644); err != nil {
				return Failed(err)
			}
			return Success("")
		},
	}
}

// CopyFile copies a file from src to dst, creating parent directories as needed.
// An existing dst is overwritten.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm()|0o200)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}
	return nil
}

// CopyTree recursively copies the contents of src into dst, overwriting
// files that already exist. Files present only in dst are left alone.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// ResetDir deletes dir if present and recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// FileExists returns true if path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists returns true if the directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
