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
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/translateme/internal"
)

var assumeYes bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved translations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}

		return printRecords(cmd.OutOrStdout(), records)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved translation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !assumeYes {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all saved translations?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
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

		n, err := orch.ClearHistory(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d translations.\n", n)
		return nil
	},
}

func printRecords(out io.Writer, records []internal.TranslationRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No saved translations.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tFROM\tTO\tORIGINAL\tTRANSLATION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.FromLanguage, r.ToLanguage,
			snippet(r.OriginalText), snippet(r.TranslatedText))
	}
	return w.Flush()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:37]) + "..."
	}
	return s
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}
