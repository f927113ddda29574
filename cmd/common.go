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
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/translateme/internal/config"
	"github.com/valpere/translateme/internal/metrics"
	"github.com/valpere/translateme/internal/orchestrator"
	"github.com/valpere/translateme/internal/store"
	"github.com/valpere/translateme/internal/translator"
)

// buildService constructs the translation service named in the configuration.
func buildService(c config.TranslatorConfig) (translator.TranslationService, error) {
	switch c.Service {
	case "mymemory", "":
		return translator.NewMyMemoryService(c.Endpoint, c.Email, c.Timeout), nil
	case "google":
		return translator.NewGoogleService(c.Credentials), nil
	default:
		return nil, fmt.Errorf("unknown service: %s (available: mymemory, google)", c.Service)
	}
}

// openStore opens the history database, creating its directory if needed.
func openStore(c *config.Config) (*store.Store, error) {
	if dir := filepath.Dir(c.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := store.New(c.DBPath, store.WithPollInterval(c.History.PollInterval))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newOrchestrator wires the configured service to db. m may be nil.
func newOrchestrator(c *config.Config, db *store.Store, m *metrics.Metrics) (*orchestrator.Orchestrator, error) {
	svc, err := buildService(c.Translator)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(svc, db, orchestrator.Config{
		SourceLang: c.Translator.SourceLang,
		TargetLang: c.Translator.TargetLang,
	}, orchestrator.WithMetrics(m)), nil
}
