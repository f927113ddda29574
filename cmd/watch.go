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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/valpere/translateme/internal/logger"
	"github.com/valpere/translateme/internal/metrics"
	"github.com/valpere/translateme/internal/orchestrator"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the history every time it changes",
	Long: `Subscribe to the history and print the full list on start and after every
change, including changes made by other translateme processes.

With --metrics-addr, prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var m *metrics.Metrics
		if cfg.Metrics.Addr != "" {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())

			var err error
			if m, err = metrics.New(reg); err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}

			srv := serveMetrics(cfg.Metrics.Addr, reg)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		orch, err := newOrchestrator(cfg, db, m)
		if err != nil {
			return err
		}
		defer orch.Close()

		out := cmd.OutOrStdout()
		var shown []string
		unsubscribe := orch.Subscribe(func(s orchestrator.Snapshot) {
			ids := make([]string, len(s.Records))
			for i, r := range s.Records {
				ids[i] = r.ID
			}
			if shown != nil && slices.Equal(ids, shown) {
				return
			}
			shown = ids

			fmt.Fprintf(out, "--- %s (%d) ---\n", time.Now().Format(time.TimeOnly), len(s.Records))
			if err := printRecords(out, s.Records); err != nil {
				logger.L.Warn("failed to print history", "error", err)
			}
		})
		defer unsubscribe()

		if err := orch.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		return nil
	},
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.L.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
}
