package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/sigterm-de/boopscript/internal/engine"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName   = "boopscript"
	envPrefix = "BOOPSCRIPT"
)

// UserConfiguration holds settings from the config file, BOOPSCRIPT_*
// environment variables and command line flags, in rising precedence.
type UserConfiguration struct {
	ScriptsDir      string `mapstructure:"scripts_dir" yaml:"scripts_dir"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level"`
	MaxSourceLength int    `mapstructure:"max_source_length" yaml:"max_source_length"`
	Watch           bool   `mapstructure:"watch" yaml:"watch"`
}

// DefaultConfiguration resolves the XDG defaults.
func DefaultConfiguration() UserConfiguration {
	return UserConfiguration{
		ScriptsDir:      filepath.Join(xdg.ConfigHome, appName, "scripts"),
		LogLevel:        "info",
		MaxSourceLength: engine.DefaultMaxSourceLength,
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/boopscript/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// SystemScriptDirs lists <dir>/boopscript/scripts for every XDG config dir.
func SystemScriptDirs() []string {
	return lo.Map(xdg.ConfigDirs, func(dir string, _ int) string {
		return filepath.Join(dir, appName, "scripts")
	})
}

// LoadConfiguration reads configFile (or the default path) into v and
// decodes the result. A missing default file is not an error; a missing
// explicitly named file is.
func LoadConfiguration(v *viper.Viper, configFile string) (UserConfiguration, error) {
	defaults := map[string]any{}
	if err := mapstructure.Decode(DefaultConfiguration(), &defaults); err != nil {
		return UserConfiguration{}, fmt.Errorf("config: encode defaults: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := configFile
	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if !missing || configFile != "" {
			return UserConfiguration{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg UserConfiguration
	if err := v.Unmarshal(&cfg); err != nil {
		return UserConfiguration{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return UserConfiguration{}, err
	}
	cfg.ScriptsDir = expandHome(cfg.ScriptsDir)
	return cfg, nil
}

func (c UserConfiguration) validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxSourceLength <= 0 {
		return fmt.Errorf("config: max_source_length must be positive, got %d", c.MaxSourceLength)
	}
	return nil
}

// HostOptions converts the configuration into runtime host options.
func (c UserConfiguration) HostOptions() []engine.HostOption {
	return []engine.HostOption{
		engine.WithScriptsDir(c.ScriptsDir),
		engine.WithMaxSourceLength(c.MaxSourceLength),
	}
}

// WriteDefaultConfiguration writes the defaults as YAML to path. An existing
// file is only replaced when force is set.
func WriteDefaultConfiguration(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config: %s already exists", path)
	}
	data, err := yaml.Marshal(DefaultConfiguration())
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
