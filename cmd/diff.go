package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/vigil/internal/core"
	"github.com/melih-ucgun/vigil/internal/status"
)

var diffCmd = &cobra.Command{
	Use:   "diff OLD.json NEW.json",
	Short: "Diff two saved status documents",
	Long: `Compares two files produced by "juju status --format json" and prints
the lines that changed. Timestamps and "since" fields are ignored.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prev, err := readStatus(args[0])
		if err != nil {
			return err
		}
		cur, err := readStatus(args[1])
		if err != nil {
			return err
		}

		lines := core.StatusDiff(prev, cur)
		if len(lines) == 0 {
			logger.Info("no changes")
			return nil
		}
		printDiff(cmd.OutOrStdout())(lines)
		return nil
	},
}

func readStatus(path string) (*status.Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	st, err := status.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
