// Package commands defines all Cobra CLI commands for the dataq binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/dataq-go/internal/audit"
	"github.com/54b3r/dataq-go/internal/config"
	"github.com/54b3r/dataq-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dataq",
		Short: "DataQ — ask natural language questions about your tabular data",
		Long: `DataQ routes natural language questions about tabular data to the right
answering path: structured analysis (SQL over a relational schema, statistics
over CSV) for precise questions, or retrieval-augmented generation over
indexed data summaries for open-ended analytical ones.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.dataq/config.yaml).
See 'dataq --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.dataq/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewLoadCmd(),
		NewHistoryCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
