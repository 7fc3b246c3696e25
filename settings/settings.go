// Package settings loads the tool's own settings using Viper.
//
// Values come, in increasing priority, from built-in defaults, an optional
// fxsetup.toml next to the executable (or the file given with --settings),
// FXSETUP_* environment variables and bound command line flags.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crafted-tech/fxsetup/config"
	"github.com/crafted-tech/fxsetup/platform"
)

const (
	// AppName prefixes environment variables.
	AppName = "fxsetup"
	// FileName is the settings file looked for next to the executable.
	FileName = AppName + ".toml"
)

// ErrFileNotFound is returned when an explicitly requested settings file
// does not exist.
var ErrFileNotFound = errors.New("settings file not found")

// Settings is the resolved configuration.
type Settings struct {
	Log        Log      `mapstructure:"log"`
	Download   Download `mapstructure:"download"`
	Payload    Payload  `mapstructure:"payload"`
	Layer      Layer    `mapstructure:"layer"`
	Staging    Staging  `mapstructure:"staging"`
	BaseConfig string   `mapstructure:"base_config"`

	// File is the settings file that was read, empty when none was.
	File string `mapstructure:"-"`
}

type Log struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type Download struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type Payload struct {
	// Path is the file carrying the appended archive, normally the
	// running executable.
	Path string `mapstructure:"path"`
}

type Layer struct {
	SharedDir string `mapstructure:"shared_dir"`
}

type Staging struct {
	Dir string `mapstructure:"dir"`
}

// LogLevel parses Log.Level, falling back to info.
func (s *Settings) LogLevel() log.Level {
	level, err := log.ParseLevel(s.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Options controls where settings are read from.
type Options struct {
	// File is an explicit settings file. When empty, FileName next to
	// Executable is used if present.
	File string
	// Executable is the path of the running program. Defaults to
	// os.Executable().
	Executable string
	// Flags holds command line flags to bind. Only flags listed in
	// FlagKeys that exist in the set are bound.
	Flags *pflag.FlagSet
}

// FlagKeys maps command line flag names to setting keys.
var FlagKeys = map[string]string{
	"log-level":  "log.level",
	"log-dir":    "log.dir",
	"payload":    "payload.path",
	"shared-dir": "layer.shared_dir",
}

// Load resolves the settings.
func Load(opts Options) (*Settings, error) {
	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, exe)

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := opts.File
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, file)
		}
	} else if local := filepath.Join(filepath.Dir(exe), FileName); fileExists(local) {
		file = local
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", file, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.File = file
	return &s, nil
}

// Default returns the settings used when nothing overrides them.
func Default(executable string) *Settings {
	v := viper.New()
	setDefaults(v, executable)
	var s Settings
	_ = v.Unmarshal(&s)
	return &s
}

func setDefaults(v *viper.Viper, exe string) {
	exeDir := filepath.Dir(exe)

	shared := filepath.Join(os.TempDir(), "ReShade")
	if dir, err := platform.ProgramDataPath(); err == nil && dir != "" {
		shared = filepath.Join(dir, "ReShade")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", os.TempDir())
	v.SetDefault("download.timeout", "10m")
	v.SetDefault("download.user_agent", AppName)
	v.SetDefault("payload.path", exe)
	v.SetDefault("layer.shared_dir", shared)
	v.SetDefault("staging.dir", filepath.Join(os.TempDir(), "reshade-shaders"))
	v.SetDefault("base_config", filepath.Join(exeDir, config.FileName))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
