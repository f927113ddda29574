package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
db_path: /tmp/history.db
log_level: debug
translator:
  service: google
  source_lang: de
  target_lang: fr
  timeout: 5s
history:
  poll_interval: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "translateme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "./data/translateme.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mymemory", cfg.Translator.Service)
	assert.Equal(t, "en", cfg.Translator.SourceLang)
	assert.Equal(t, "es", cfg.Translator.TargetLang)
	assert.Zero(t, cfg.Translator.Timeout)
	assert.Equal(t, 2*time.Second, cfg.History.PollInterval)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/history.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "google", cfg.Translator.Service)
	assert.Equal(t, "de", cfg.Translator.SourceLang)
	assert.Equal(t, "fr", cfg.Translator.TargetLang)
	assert.Equal(t, 5*time.Second, cfg.Translator.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.History.PollInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil, nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("TRANSLATEME_TRANSLATOR_TARGET_LANG", "it")
	t.Setenv("TRANSLATEME_HISTORY_POLL_INTERVAL", "1s")

	cfg, err := Load(writeConfig(t, sampleConfig), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "it", cfg.Translator.TargetLang)
	assert.Equal(t, time.Second, cfg.History.PollInterval)
	assert.Equal(t, "de", cfg.Translator.SourceLang)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("TRANSLATEME_DB_PATH", "/from/env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("target", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "/from/flag.db"}))

	cfg, err := Load(writeConfig(t, sampleConfig), flags, FlagBindings{
		"db_path":                "db",
		"translator.target_lang": "target",
	})
	require.NoError(t, err)

	assert.Equal(t, "/from/flag.db", cfg.DBPath)
	// unchanged flag does not shadow the file value
	assert.Equal(t, "fr", cfg.Translator.TargetLang)
}

func TestLoad_UnknownFlagBinding(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load(writeConfig(t, sampleConfig), flags, FlagBindings{"db_path": "db"})
	assert.Error(t, err)
}
