package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "skinarb",
	Short: "Cross-marketplace skin price differential service",
	Long: `skinarb continuously compares CS:GO skin sell prices between the Buff
and Youpin marketplaces, publishes the ranked price differentials over an
HTTP API, and keeps the result fresh with scheduled full and incremental
refreshes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
