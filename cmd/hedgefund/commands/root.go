package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hedgefund",
	Short: "AI hedge fund API and tooling",
	Long: `AI hedge fund unified CLI

HTTP API in front of the Python analysis and backtest programs,
with portfolio and trade bookkeeping in PostgreSQL.

Usage:
  go run ./cmd/hedgefund [command]

Examples:
  go run ./cmd/hedgefund api
  go run ./cmd/hedgefund analyze run --tickers AAPL,MSFT --start-date 2024-01-01 --end-date 2024-03-01
  go run ./cmd/hedgefund migrate
  go run ./cmd/hedgefund scheduler start`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyGlobalFlags(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file loaded before .env")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|test|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// applyGlobalFlags turns global flags into the environment config.Load reads.
func applyGlobalFlags(cmd *cobra.Command) error {
	if configFile != "" {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(configFile); err != nil {
			return fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}
	if cmd.Flags().Changed("env") {
		os.Setenv("ENV", env)
	}
	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	return nil
}
