package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/melih-ucgun/vigil/internal/predicate"
	"github.com/melih-ucgun/vigil/internal/wait"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Poll the model until it is ready",
	Long: `Polls "juju status" until the --ready expression holds for --successes
consecutive polls. Changes between polls are printed as a diff.

Expressions see Model, Machines, Apps, Offers and AppEndpoints, plus
AllActive, AnyError and the other status helpers, e.g.

  vigil wait --ready 'AllActive("postgresql")' --error 'AnyError()'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		readySrc, _ := cmd.Flags().GetString("ready")
		errorSrc, _ := cmd.Flags().GetString("error")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ready, err := predicate.Compile(readySrc)
		if err != nil {
			return err
		}

		opts := []wait.Option{
			wait.WithDelay(cfg.Wait.Delay.Std()),
			wait.WithSuccesses(cfg.Wait.Successes),
		}
		if errorSrc != "" {
			errPred, err := predicate.Compile(errorSrc)
			if err != nil {
				return err
			}
			opts = append(opts, wait.WithNamedError(errPred.String(), errPred.Func(logPredicateError)))
		}
		// Flags only override config when given explicitly.
		if cmd.Flags().Changed("delay") {
			d, _ := cmd.Flags().GetDuration("delay")
			opts = append(opts, wait.WithDelay(d))
		}
		if cmd.Flags().Changed("timeout") {
			d, _ := cmd.Flags().GetDuration("timeout")
			opts = append(opts, wait.WithTimeout(d))
		}
		if cmd.Flags().Changed("successes") {
			n, _ := cmd.Flags().GetInt("successes")
			opts = append(opts, wait.WithSuccesses(n))
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		client, closeClient, err := newClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeClient()

		var sink wait.Sink
		if !quiet {
			sink = printDiff(cmd.OutOrStdout())
		}

		logger.Info("waiting", "model", client.Model, "ready", ready.String())
		st, err := client.WaitWithSink(ctx, ready.Func(logPredicateError), sink, opts...)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("model %s is ready", st.Model.Name)
		return nil
	},
}

func logPredicateError(err error) {
	logger.Warn("predicate failed", "error", err)
}

// printDiff colours removed lines red and added lines green when w is a
// terminal and colour is not disabled.
func printDiff(w io.Writer) wait.Sink {
	color := colorEnabled(w)
	return func(lines []string) {
		for _, line := range lines {
			switch {
			case color && strings.HasPrefix(line, "- "):
				fmt.Fprintln(w, pterm.FgRed.Sprint(line))
			case color && strings.HasPrefix(line, "+ "):
				fmt.Fprintln(w, pterm.FgGreen.Sprint(line))
			default:
				fmt.Fprintln(w, line)
			}
		}
		fmt.Fprintln(w)
	}
}

func colorEnabled(w io.Writer) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().String("ready", "AllActive()", "expression that must hold for the model to be ready")
	waitCmd.Flags().String("error", "", "expression that aborts the wait when it holds")
	waitCmd.Flags().Duration("delay", wait.DefaultDelay, "time between polls")
	waitCmd.Flags().Duration("timeout", wait.DefaultTimeout, "give up after this long")
	waitCmd.Flags().Int("successes", wait.DefaultSuccesses, "consecutive ready polls required")
	waitCmd.Flags().BoolP("quiet", "q", false, "do not print status diffs")
}

