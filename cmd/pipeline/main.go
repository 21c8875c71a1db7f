// Command pipeline runs the batch data pipeline: fetch open-data feeds,
// resolve them to canonical properties, and compute signal summaries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"propsignal/internal/config"
	"propsignal/internal/db"
	"propsignal/internal/fetch"
	"propsignal/internal/logging"
	"propsignal/internal/normalize"
	"propsignal/internal/pipeline"
)

var forceSync bool

func main() {
	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Property signal batch pipeline",
	}
	root.AddCommand(newSyncCommand(), newStatusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full fetch, resolve and score pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.Setup(cfg.LogLevel, cfg.IsProduction())

			database, err := db.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fetcher := fetch.NewClient(cfg.Fetch, log)
			geo := normalize.NewGeoclient(cfg.Geo)
			batchGeo := normalize.NewBatchGeocoder(geo, cfg.Geo, log)
			orch := pipeline.New(database, fetcher, geo, batchGeo, cfg.Pipeline, log)

			if !forceSync {
				needed, reason, err := orch.NeedsSync()
				if err != nil {
					return err
				}
				if !needed {
					log.Info().Msg("data is fresh, nothing to do (use --force to run anyway)")
					return nil
				}
				log.Info().Str("reason", reason).Msg("sync needed")
			}

			run, err := orch.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("run %s finished: fetched=%d resolved=%d computed=%d failed=%d\n",
				run.ID, run.Fetched, run.Resolved, run.Computed, run.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceSync, "force", false, "run even when data is fresh")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staging counts, resolution coverage and the latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			database, err := db.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			counts, err := database.StagingCounts()
			if err != nil {
				return err
			}
			fmt.Println("staged records:")
			for dataset, n := range counts {
				fmt.Printf("  %-18s %d\n", dataset, n)
			}

			stats, err := database.GetResolutionStats()
			if err != nil {
				return err
			}
			fmt.Println("resolution coverage:")
			for _, s := range stats {
				fmt.Printf("  %-18s matched=%d unmatched=%d rate=%.1f%%\n",
					s.SourceSystem, s.Matched, s.Unmatched, s.MatchRate*100)
			}

			run, err := database.GetLatestPipelineRun()
			if err != nil {
				fmt.Println("no pipeline runs recorded")
				return nil
			}
			finished := "running"
			if run.FinishedAt.Valid {
				finished = run.FinishedAt.Time.Format(time.RFC3339)
			}
			fmt.Printf("latest run %s: stage=%s started=%s finished=%s computed=%d failed=%d\n",
				run.ID, run.Stage, run.StartedAt.Format(time.RFC3339), finished, run.Computed, run.Failed)
			if run.Error.Valid {
				fmt.Printf("  error: %s\n", run.Error.String)
			}
			return nil
		},
	}
}
