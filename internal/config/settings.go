package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultServiceURL = "http://localhost:5000"
	DefaultTimeout    = 10 * time.Second
	DefaultLogFile    = "cmbview.log"
	DefaultLogLevel   = "info"
	DefaultView       = "starobinsky"

	envPrefix = "CMBVIEW"
)

// Settings are the runtime knobs, resolved from flags, CMBVIEW_* environment
// variables and defaults, in that order.
type Settings struct {
	ServiceURL  string        `mapstructure:"service-url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheDir    string        `mapstructure:"cache-dir"`
	Catalog     string        `mapstructure:"catalog"`
	LogFile     string        `mapstructure:"log-file"`
	LogLevel    string        `mapstructure:"log-level"`
	MetricsAddr string        `mapstructure:"metrics-addr"`
	View        string        `mapstructure:"view"`
}

func DefaultSettings() Settings {
	return Settings{
		ServiceURL: DefaultServiceURL,
		Timeout:    DefaultTimeout,
		CacheDir:   filepath.Join(os.TempDir(), "cmbview"),
		LogFile:    DefaultLogFile,
		LogLevel:   DefaultLogLevel,
		View:       DefaultView,
	}
}

// RegisterFlags adds one flag per setting to fs, defaulted from d.
func RegisterFlags(fs *pflag.FlagSet, d Settings) {
	fs.String("service-url", d.ServiceURL, "rendering service base url")
	fs.Duration("timeout", d.Timeout, "per-request timeout")
	fs.String("cache-dir", d.CacheDir, "directory holding fetched images")
	fs.String("catalog", d.Catalog, "model catalog yaml (built-in if empty)")
	fs.String("log-file", d.LogFile, "log file path")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.MetricsAddr, "serve prometheus metrics on this address")
	fs.String("view", d.View, "initial view (standard, hilltop, starobinsky)")
}

// Resolve binds fs and the environment into v and decodes the result.
func Resolve(v *viper.Viper, fs *pflag.FlagSet) (Settings, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Settings{}, fmt.Errorf("config: bind flags: %w", err)
	}

	s := DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode settings: %w", err)
	}
	if s.ServiceURL == "" {
		return Settings{}, fmt.Errorf("config: service-url must not be empty")
	}
	if s.Timeout <= 0 {
		return Settings{}, fmt.Errorf("config: timeout must be positive, got %s", s.Timeout)
	}
	return s, nil
}

// LoadModels returns the catalog named by s.Catalog, or the built-in one.
func (s Settings) LoadModels() (Catalog, error) {
	if s.Catalog == "" {
		cat := DefaultCatalog()
		return cat, Validate(cat)
	}
	cat, err := LoadCatalog(s.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}
