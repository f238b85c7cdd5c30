package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the accountctl command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "accountctl",
		Short: "Operator tooling for the account service",
		Long: `accountctl inspects and maintains accounts directly against the configured
database and blob storage. It reads the same environment variables as the server
(DATABASE_URL, DB_SCHEMA, STORAGE_URL, BUCKETS, ...), optionally from a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("env-prefix", "", "prefix of the environment variables to read")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log service activity to stderr")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewFootprintCommand())
	rootCmd.AddCommand(NewOwnershipCommand())

	return rootCmd
}
