package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"caja/internal/cli"
	"caja/internal/config"
	"caja/internal/log"
)

// app carries what every subcommand needs once the root has initialized.
type app struct {
	logger  *log.Logger
	cfg     *config.Config
	envFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "caja-cli",
		Short:         "Inspect and load the monthly cash dashboard from a terminal",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile(a.envFile)
			// Output goes to stdout; logs stay on stderr.
			a.logger = log.New(log.Config{
				Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
				Component: log.ComponentCLI,
				Output:    os.Stderr,
			})
			log.SetDefault(a.logger)

			a.cfg = config.Load()
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file with configuration")

	root.AddCommand(
		newDashboardCmd(a),
		newAccountsCmd(a),
		newBrowseCmd(a),
		newImportCmd(a),
		newSnapshotsCmd(a),
	)
	return root
}
