// Package main provides the entry point for the leadscout discovery pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadscout",
	Short: "Lead discovery pipeline",
	Long:  "Leadscout discovers business leads by running budgeted search sweeps with dynamic query expansion, deduplicating results into a candidate ledger, then enriching and scoring candidates in background phases.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
