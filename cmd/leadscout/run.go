package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lferraz/leadscout/internal/config"
	"github.com/lferraz/leadscout/internal/observability"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery sweep from the terminal",
	Long: `Runs a discovery sweep end-to-end and prints the results: seed queries are
issued against the search API, results are deduplicated into the candidate
ledger, and the run stops when the query space is exhausted, a budget is hit,
or the novelty rate falls below the floor.

With --enrich and --score the enrichment and scoring phases run afterwards.
Without DATABASE_URL results are kept in memory for the duration of the run.`,
	RunE: runSweep,
}

var (
	runMaxQueries int
	runEnrich     bool
	runScore      bool
	runTop        int
	runVerbose    bool
)

func init() {
	runCommand.Flags().IntVar(&runMaxQueries, "max-queries", 0, "Override the query budget for this run")
	runCommand.Flags().BoolVar(&runEnrich, "enrich", false, "Run the enrichment phase after discovery")
	runCommand.Flags().BoolVar(&runScore, "score", false, "Run the scoring phase after enrichment (requires GEMINI_API_KEY)")
	runCommand.Flags().IntVar(&runTop, "top", 20, "Number of candidates to print")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every pipeline event")

	rootCmd.AddCommand(runCommand)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-queries") {
		cfg.MaxQueriesPerRun = runMaxQueries
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if runScore && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("--score requires GEMINI_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := c.runs.Start(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Run %s started (%d seed queries)\n", run.ID, run.SeedCount)

	// First interrupt requests a cooperative stop; the run finishes its
	// in-flight query and lands in a terminal state.
	go func() {
		<-ctx.Done()
		_ = c.runs.Stop(context.Background(), run.ID)
	}()

	sub := c.broadcaster.Subscribe(context.Background(), run.ID, 1)
	defer sub.Close()

	for ev := range sub.Events() {
		if runVerbose {
			fmt.Printf("[%s] %s %v\n", ev.Level, ev.Name, ev.Payload)
		}
		if ev.Name == types.EventRunComplete || ev.Name == types.EventRunStopped || ev.Name == types.EventRunFailed {
			break
		}
	}

	printer := observability.NewPrinter(os.Stdout)

	final, err := c.runs.Status(context.Background(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	printer.PrintRunSummary(final)

	if runVerbose {
		trail, err := c.store.ListQueries(context.Background(), run.ID)
		if err != nil {
			return fmt.Errorf("failed to load query trail: %w", err)
		}
		printer.PrintQueryTrail(trail)
	}

	if runEnrich {
		if err := runPhase(c, printer, "enrichment"); err != nil {
			return err
		}
	}
	if runScore {
		if err := runPhase(c, printer, "scoring"); err != nil {
			return err
		}
	}

	candidates, err := c.store.ListCandidates(context.Background(), store.CandidateFilter{Limit: runTop})
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}
	printer.PrintCandidates(candidates)

	return nil
}

// runPhase triggers a background phase and blocks until the pass finishes.
func runPhase(c *components, printer *observability.Printer, phase string) error {
	ctx := context.Background()
	switch phase {
	case "enrichment":
		if _, _, err := c.enrich.Trigger(ctx); err != nil {
			return err
		}
		for {
			progress, err := c.enrich.Progress(ctx)
			if err != nil {
				return err
			}
			if !progress.Running {
				printer.PrintEnrichment(progress)
				return nil
			}
			time.Sleep(500 * time.Millisecond)
		}
	case "scoring":
		if c.scoring == nil {
			return fmt.Errorf("scoring is not configured")
		}
		if _, _, err := c.scoring.Trigger(ctx); err != nil {
			return err
		}
		for {
			progress, err := c.scoring.Progress(ctx)
			if err != nil {
				return err
			}
			if !progress.Running {
				printer.PrintScoring(progress)
				return nil
			}
			time.Sleep(500 * time.Millisecond)
		}
	}
	return nil
}
