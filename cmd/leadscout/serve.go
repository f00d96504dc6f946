package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lferraz/leadscout/internal/config"
	"github.com/lferraz/leadscout/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for launching discovery runs, streaming run events, and triggering the enrichment and scoring phases.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	c, err := buildComponents(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := server.New(server.Deps{
		Port:        cfg.Port,
		Store:       c.store,
		Runs:        c.runs,
		Enrich:      c.enrich,
		Scoring:     c.scoring,
		Broadcaster: c.broadcaster,
	})
	return srv.Start()
}
