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
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Translate lines interactively",
	Long: `Read lines from standard input and translate each one.

Commands:
  :history   show saved translations
  :clear     delete every saved translation (asks first)
  :quit      leave the shell`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		orch, err := newOrchestrator(cfg, db, nil)
		if err != nil {
			return err
		}
		defer orch.Close()

		ctx := cmd.Context()
		if err := orch.Start(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "History is unavailable:", err)
		}

		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())
		prompt := func() { fmt.Fprint(out, "> ") }

		for prompt(); in.Scan(); prompt() {
			line := strings.TrimSpace(in.Text())

			switch line {
			case "":
				continue
			case ":quit", ":q":
				return nil
			case ":history":
				if err := printRecords(out, orch.State().Records); err != nil {
					return err
				}
			case ":clear":
				fmt.Fprint(out, "Delete all saved translations? [y/N] ")
				if !in.Scan() {
					return in.Err()
				}
				answer := strings.ToLower(strings.TrimSpace(in.Text()))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(out, "Aborted.")
					continue
				}
				n, err := orch.ClearHistory(ctx)
				if err != nil {
					fmt.Fprintln(out, "Error:", err)
					continue
				}
				fmt.Fprintf(out, "Deleted %d translations.\n", n)
			default:
				res, err := orch.Submit(ctx, line)
				fmt.Fprintln(out, res.Display)
				if err != nil && res.Record != nil {
					// translated but not saved
					fmt.Fprintln(out, "Error:", err)
				}
			}
		}
		fmt.Fprintln(out)
		return in.Err()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().String("service", "", "Translation service: mymemory, google (default mymemory)")
	shellCmd.Flags().String("source", "", "Source language code (default en)")
	shellCmd.Flags().String("target", "", "Target language code (default es)")
}
