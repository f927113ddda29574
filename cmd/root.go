/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/translateme/internal/config"
	"github.com/valpere/translateme/internal/logger"
)

var version = "0.1.0"

var (
	configPath string
	cfg        *config.Config
)

// flagKeys maps config keys to the flags that may override them. Only flags
// defined on the running command are bound.
var flagKeys = config.FlagBindings{
	"db_path":                "db",
	"log_level":              "log-level",
	"translator.service":     "service",
	"translator.source_lang": "source",
	"translator.target_lang": "target",
	"translator.email":       "email",
	"translator.credentials": "credentials",
	"metrics.addr":           "metrics-addr",
}

var rootCmd = &cobra.Command{
	Use:   "translateme",
	Short: "Translate text and keep a history of translations",
	Long: `A CLI application that translates text through the MyMemory API
(or Google Cloud Translation) and keeps every result in a local history.

Use "translateme translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags(), bindingsFor(cmd.Flags()))
		if err != nil {
			return err
		}
		cfg = loaded
		logger.SetLevel(cfg.LogLevel)
		logger.L.Debug("configuration loaded", "db_path", cfg.DBPath, "service", cfg.Translator.Service)
		return nil
	},
}

func bindingsFor(flags *pflag.FlagSet) config.FlagBindings {
	bindings := config.FlagBindings{}
	for key, name := range flagKeys {
		if flags.Lookup(name) != nil {
			bindings[key] = name
		}
	}
	return bindings
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./translateme.yaml or ~/.config/translateme/translateme.yaml)")
	rootCmd.PersistentFlags().String("db", "", "History database path (default ./data/translateme.db)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default info)")
}
