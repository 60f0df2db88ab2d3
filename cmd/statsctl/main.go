package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cityteam/stats-sub000/internal/cli"
	"github.com/cityteam/stats-sub000/internal/config"
	applog "github.com/cityteam/stats-sub000/internal/log"
)

var (
	// Global flags
	dbPath  string
	verbose bool

	cfg    *config.Config
	logger *applog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "statsctl",
	Short: "Administer the statistics service",
	Long: `statsctl runs administrative tasks against a statistics deployment.

Database commands (migrate, user) work on the SQLite file directly.
Report commands talk to a running server over its REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = "debug"
		}
		logger = cfg.Logger(applog.ComponentCLI)
		if dbPath != "" {
			cfg.SQLiteDBPath = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newMigrateCmd(), newUserCmd(), newReportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
