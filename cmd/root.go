package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/vigil/internal/config"
	"github.com/melih-ucgun/vigil/internal/core"
	"github.com/melih-ucgun/vigil/internal/juju"
	"github.com/melih-ucgun/vigil/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Watch a Juju model until it settles.",
	Long: `Vigil reads "juju status", shows what changed between polls and
waits until a readiness condition holds for several polls in a row.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	cfgFile      string
	modelFlag    string
	verboseCount int
	noColor      bool

	cfg    *config.Config
	logger core.Logger
)

// newClient builds the Juju client for a command. Tests replace it.
var newClient = func(ctx context.Context, cfg *config.Config, logger core.Logger) (*juju.Juju, func() error, error) {
	opts := []juju.Option{
		juju.WithModel(cfg.Juju.Model),
		juju.WithCLIBinary(cfg.Juju.Binary),
		juju.WithWaitTimeout(cfg.Juju.WaitTimeout.Std()),
		juju.WithLogger(logger),
	}
	closer := func() error { return nil }

	switch {
	case cfg.Remote != nil:
		runner, err := transport.NewSSHRunner(ctx, *cfg.Remote)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using remote runner", "target", runner.String())
		opts = append(opts, juju.WithRunner(runner))
		closer = runner.Close
	case !core.IsCommandAvailable(cfg.Juju.Binary):
		return nil, nil, fmt.Errorf("juju binary %q not found in PATH", cfg.Juju.Binary)
	}
	return juju.New(opts...), closer, nil
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		pterm.Error.Println(err)
	}
	return err
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if modelFlag != "" {
		loaded.Juju.Model = modelFlag
	}
	cfg = loaded

	if noColor {
		pterm.DisableColor()
	}

	level := core.ParseLogLevel(cfg.Log.Level)
	switch {
	case verboseCount >= 2:
		level = core.LevelTrace
	case verboseCount == 1:
		level = core.LevelDebug
	}
	if cfg.Log.Structured {
		logger = core.NewStructuredLogger(cmd.ErrOrStderr(), level)
	} else {
		logger = core.NewDefaultLogger(cmd.ErrOrStderr(), level)
	}
	return nil
}

func init() {
	// Stdout is kept for command output so it can be piped.
	pterm.SetDefaultOutput(os.Stderr)
	pterm.Success.Writer = os.Stderr
	pterm.Info.Writer = os.Stderr
	pterm.Error.Writer = os.Stderr
	pterm.Warning.Writer = os.Stderr

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "vigil.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model to operate on (overrides config and "+config.EnvModel+")")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable coloured output")
}
