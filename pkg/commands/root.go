package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "medsoc",
	Short: "Bilingual content management for the medical society website",
	Long: `medsoc serves the public news pages and the article/media API of the
medical society website, and provides the admin tooling around it.

Commands:
  serve       run the HTTP server
  migrate     create or update the database schema
  seed-admin  provision an admin account
  export      write every article as Hugo content files`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}
