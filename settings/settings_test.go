package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

func fakeExe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "fxsetup.exe")
	if err := os.WriteFile(exe, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	return exe
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	exe := fakeExe(t)
	s, err := Load(Options{Executable: exe})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Payload.Path != exe {
		t.Errorf("Payload.Path = %q, want %q", s.Payload.Path, exe)
	}
	if want := filepath.Join(filepath.Dir(exe), "ReShade.ini"); s.BaseConfig != want {
		t.Errorf("BaseConfig = %q, want %q", s.BaseConfig, want)
	}
	if s.Download.Timeout != 10*time.Minute {
		t.Errorf("Download.Timeout = %v", s.Download.Timeout)
	}
	if filepath.Base(s.Layer.SharedDir) != "ReShade" {
		t.Errorf("Layer.SharedDir = %q", s.Layer.SharedDir)
	}
	if s.LogLevel() != log.InfoLevel {
		t.Errorf("LogLevel() = %v", s.LogLevel())
	}
	if s.File != "" {
		t.Errorf("File = %q, want none", s.File)
	}
}

func TestLoadReadsFileNextToExecutable(t *testing.T) {
	t.Parallel()

	exe := fakeExe(t)
	content := `
base_config = "C:/presets/ReShade.ini"

[log]
level = "debug"

[download]
timeout = "30s"
user_agent = "custom-agent"
`
	local := filepath.Join(filepath.Dir(exe), FileName)
	if err := os.WriteFile(local, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(Options{Executable: exe})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.File != local {
		t.Errorf("File = %q, want %q", s.File, local)
	}
	if s.LogLevel() != log.DebugLevel {
		t.Errorf("LogLevel() = %v, want debug", s.LogLevel())
	}
	if s.Download.Timeout != 30*time.Second || s.Download.UserAgent != "custom-agent" {
		t.Errorf("Download = %+v", s.Download)
	}
	if s.BaseConfig != "C:/presets/ReShade.ini" {
		t.Errorf("BaseConfig = %q", s.BaseConfig)
	}
	if s.Payload.Path != exe {
		t.Errorf("Payload.Path = %q, want default", s.Payload.Path)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(Options{Executable: fakeExe(t), File: filepath.Join(t.TempDir(), "nope.toml")})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Load() error = %v, want ErrFileNotFound", err)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	exe := fakeExe(t)
	file := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(file, []byte("[log]\nlevel = \"warn\"\ndir = \"/from/file\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("log-dir", "", "")
	if err := flags.Parse([]string{"--log-level", "error"}); err != nil {
		t.Fatal(err)
	}

	s, err := Load(Options{Executable: exe, File: file, Flags: flags})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.LogLevel() != log.ErrorLevel {
		t.Errorf("LogLevel() = %v, want error", s.LogLevel())
	}
	if s.Log.Dir != "/from/file" {
		t.Errorf("Log.Dir = %q, unset flag must not override the file", s.Log.Dir)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FXSETUP_STAGING_DIR", "/env/staging")

	s, err := Load(Options{Executable: fakeExe(t)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Staging.Dir != "/env/staging" {
		t.Errorf("Staging.Dir = %q", s.Staging.Dir)
	}
}

func TestLogLevelFallback(t *testing.T) {
	t.Parallel()

	s := Default(fakeExe(t))
	s.Log.Level = "loud"
	if s.LogLevel() != log.InfoLevel {
		t.Errorf("LogLevel() = %v, want info", s.LogLevel())
	}
}
