// Command mappingctl inspects financial-year windows and exports product
// program mappings straight from the database.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	dsnFlag    string
	outputFlag string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mappingctl",
		Short: "Inspect and export product program mappings",
		Long: `mappingctl prints financial-year windows and exports the reconciled
product mapping table of a program as xlsx, pdf, a table or the save payload.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")), "Postgres DSN")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(newWindowCmd())
	rootCmd.AddCommand(newExportCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
