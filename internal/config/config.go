// Package config loads c9install settings from config.toml, C9INSTALL_*
// environment variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// DefaultDir is the installer directory when none is configured.
const DefaultDir = "~/.c9"

// EnvPrefix prefixes environment overrides, e.g. C9INSTALL_LOG_LEVEL.
const EnvPrefix = "C9INSTALL"

// Config holds application configuration. All paths are absolute.
type Config struct {
	// Dir holds the record, history and manifest by default.
	Dir      string
	Record   string
	DB       string
	Manifest string
	PIDFile  string
	LogFile  string

	LogLevel  string
	AutoStart bool
	Verbose   bool

	BrewPath string
	ExecPTY  bool

	// ConfigFile is the file that was read, or "" if none was found.
	ConfigFile string
}

// Overrides come from command-line flags and win over everything else.
// Empty fields are ignored.
type Overrides struct {
	Dir        string
	ConfigFile string
	LogLevel   string
}

// Load resolves configuration. Precedence, highest first: overrides,
// environment, config file, defaults. A missing config file is not an
// error unless it was named explicitly.
func Load(o Overrides) (Config, error) {
	v := viper.New()

	v.SetDefault("dir", DefaultDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("auto_start", true)
	v.SetDefault("verbose", false)
	v.SetDefault("brew_path", "brew")
	v.SetDefault("exec_pty", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if o.Dir != "" {
		v.Set("dir", o.Dir)
	}
	dir, err := expand(v.GetString("dir"))
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve installer directory: %w", err)
	}

	v.SetConfigType("toml")
	explicit := o.ConfigFile
	if explicit == "" {
		explicit = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if explicit != "" {
		path, err := expand(explicit)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if o.LogLevel != "" {
		v.Set("log_level", o.LogLevel)
	}

	// The config file may itself set dir. It is looked for in the dir
	// resolved above; the paths below derive from the final value.
	dir, err = expand(v.GetString("dir"))
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve installer directory: %w", err)
	}

	c := Config{
		Dir:        dir,
		LogLevel:   v.GetString("log_level"),
		AutoStart:  v.GetBool("auto_start"),
		Verbose:    v.GetBool("verbose"),
		BrewPath:   v.GetString("brew_path"),
		ExecPTY:    v.GetBool("exec_pty"),
		ConfigFile: v.ConfigFileUsed(),
	}

	paths := []struct {
		key  string
		dst  *string
		file string
	}{
		{"record", &c.Record, "installed"},
		{"db", &c.DB, "history.db"},
		{"manifest", &c.Manifest, "packages.yaml"},
		{"pid_file", &c.PIDFile, "watch.pid"},
		{"log_file", &c.LogFile, "watch.log"},
	}
	for _, p := range paths {
		raw := v.GetString(p.key)
		if raw == "" {
			*p.dst = filepath.Join(dir, p.file)
			continue
		}
		if *p.dst, err = expand(raw); err != nil {
			return Config{}, fmt.Errorf("failed to resolve %s: %w", p.key, err)
		}
	}

	return c, nil
}

// EnsureDir creates the installer directory.
func (c Config) EnsureDir() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Dir, err)
	}
	return nil
}

func expand(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}
