package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/vigil/internal/core"
	"github.com/melih-ucgun/vigil/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the parsed status of the model",
	Long: `Runs "juju status --format json" once and prints the parsed snapshot.

Formats: yaml (default), json, or flat for one path = value line per field.
--template renders a Go template (with Sprig functions) against the snapshot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		tmpl, _ := cmd.Flags().GetString("template")

		client, closeClient, err := newClient(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeClient()

		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}

		if tmpl != "" {
			out, err := core.ExecuteTemplate(tmpl, st)
			if err != nil {
				return fmt.Errorf("rendering template: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
			return nil
		}
		return writeStatus(cmd.OutOrStdout(), st, format)
	},
}

func writeStatus(w io.Writer, st *status.Status, format string) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "flat":
		for _, line := range core.FlattenStatus(st) {
			fmt.Fprintln(w, line)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want yaml, json or flat)", format)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("format", "f", "yaml", "output format: yaml, json or flat")
	statusCmd.Flags().StringP("template", "t", "", "Go template rendered against the status")
}
