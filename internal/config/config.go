package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. TRANSLATEME_DB_PATH or TRANSLATEME_TRANSLATOR_SERVICE.
const EnvPrefix = "TRANSLATEME"

// Config holds the application configuration
type Config struct {
	DBPath     string           `mapstructure:"db_path"`
	LogLevel   string           `mapstructure:"log_level"`
	Translator TranslatorConfig `mapstructure:"translator"`
	History    HistoryConfig    `mapstructure:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// TranslatorConfig selects and configures the remote translation service.
type TranslatorConfig struct {
	Service     string        `mapstructure:"service"`
	Endpoint    string        `mapstructure:"endpoint"`
	Email       string        `mapstructure:"email"`
	Credentials string        `mapstructure:"credentials"`
	SourceLang  string        `mapstructure:"source_lang"`
	TargetLang  string        `mapstructure:"target_lang"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// HistoryConfig holds history store settings.
type HistoryConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MetricsConfig holds the prometheus listener address; empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// FlagBindings maps config keys to the names of cobra flags that override them.
type FlagBindings map[string]string

var defaults = map[string]any{
	"db_path":                "./data/translateme.db",
	"log_level":              "info",
	"translator.service":     "mymemory",
	"translator.endpoint":    "",
	"translator.email":       "",
	"translator.credentials": "",
	"translator.source_lang": "en",
	"translator.target_lang": "es",
	"translator.timeout":     time.Duration(0),
	"history.poll_interval":  2 * time.Second,
	"metrics.addr":           "",
}

// Load builds the configuration from, in increasing precedence: defaults,
// the config file, TRANSLATEME_* environment variables and any changed flags
// named in bindings. A .env file in the working directory is loaded into the
// environment first when present. path may be empty, in which case
// translateme.yaml is looked up in "." and $HOME/.config/translateme.
func Load(path string, flags *pflag.FlagSet, bindings FlagBindings) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("translateme")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "translateme"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range bindings {
			f := flags.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("unknown flag %q bound to %q", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
