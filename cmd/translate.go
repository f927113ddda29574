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
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate text and save it to history",
	Long: `Translate text with the configured service and save the result to history.

The text is taken from the arguments. With no arguments, or with "-", it is
read from standard input.

Available services:
  - mymemory    MyMemory (free, 5000 chars/day, --email raises the limit)
  - google      Google Cloud Translation (requires credentials)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("nothing to translate")
		}

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

		res, err := orch.Submit(cmd.Context(), text)
		if err != nil {
			if res.Record != nil {
				fmt.Fprintln(cmd.OutOrStdout(), res.Display)
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), res.Display)
		return nil
	},
}

// inputText joins args, or reads r when args is empty or a single "-".
func inputText(r io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().String("service", "", "Translation service: mymemory, google (default mymemory)")
	translateCmd.Flags().String("source", "", "Source language code (default en)")
	translateCmd.Flags().String("target", "", "Target language code (default es)")
	translateCmd.Flags().String("email", "", "Contact email sent to MyMemory")
	translateCmd.Flags().String("credentials", "", "Path to Google Cloud credentials JSON")
}
