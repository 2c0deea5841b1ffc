// Package cli defines the cobra command tree for the connector CLI.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Yash-Prakash1/connector/internal/config"
	"github.com/Yash-Prakash1/connector/internal/store"
)

var (
	dbPath      string
	jsonOutput  bool
	oracleURL   string
	oracleKey   string
	poolURL     string
	poolKey     string
	autoConfirm bool
	maxIter     int
)

// configPath is the path to the config file, settable for testing.
var configPath = config.Path()

// rootCmd is the top-level connector command.
var rootCmd = &cobra.Command{
	Use:   "connector",
	Short: "Connect lab instruments with learned trial-and-error sessions",
	Long: `connector drives device connectivity attempts through an external
decision oracle, learning from every session. Successful action sequences
become replayable patterns: once a recipe has proven itself repeatedly, the
same problem on the same starting state is solved without consulting the
oracle at all.

Sessions, patterns, and error resolutions are stored in a SQLite database at
~/.connector/connector.db (configurable via --db or connector config
db_path). All output commands support --json for machine-readable output.`,
	Example: `  # Connect a Rigol oscilloscope
  connector connect rigol_ds1054z

  # Inspect what has been learned
  connector patterns
  connector stats

  # Retry queued shared-pool uploads
  connector sync`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadFrom(configPath)
		if err != nil {
			return
		}
		if cfg.DBPath != "" && !cmd.Flags().Changed("db") {
			dbPath = cfg.DBPath
		}
		if cfg.OracleURL != "" && !cmd.Flags().Changed("oracle-url") {
			oracleURL = cfg.OracleURL
		}
		if cfg.OracleAPIKey != "" && oracleKey == "" {
			oracleKey = cfg.OracleAPIKey
		}
		if cfg.PoolURL != "" && !cmd.Flags().Changed("pool-url") {
			poolURL = cfg.PoolURL
		}
		if cfg.PoolAPIKey != "" && poolKey == "" {
			poolKey = cfg.PoolAPIKey
		}
		if cfg.AutoConfirm && !cmd.Flags().Changed("yes") {
			autoConfirm = true
		}
		if cfg.MaxIterations > 0 && !cmd.Flags().Changed("max-iterations") {
			maxIter = cfg.MaxIterations
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "path to SQLite database")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

// openStore opens the local SQLite store.
func openStore() (store.Store, error) {
	return store.New(dbPath)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
