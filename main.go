package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/metrotime/metrotime/aggregator"
	"github.com/metrotime/metrotime/config"
	"github.com/metrotime/metrotime/etl"
	"github.com/metrotime/metrotime/logging"
	"github.com/metrotime/metrotime/snapshotstore"
	"github.com/metrotime/metrotime/timetrack"
)

// initPipeline sets up all components of a run.
func initPipeline(cfg *config.Config) *etl.Pipeline {
	fetcher := timetrack.NewClient(timetrack.DefaultFeedURL, cfg.HTTPTimeout)
	xformer := aggregator.NewRouteAggregator(cfg.MissingMinutes)
	writer := etl.NewSnapshotWriter(cfg.DatabaseURL, snapshotstore.Dial)

	return etl.NewPipeline(fetcher, xformer, writer)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.JSONLogs, cfg.Debug || c.Bool("debug"))
	return cfg, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	res, err := initPipeline(cfg).Run(c.Context)
	if err != nil {
		return err
	}

	fmt.Printf("total routes: %d\n", res.Summary.TotalCount)
	fmt.Printf("total routes behind: %d\n", res.Summary.BehindCount)
	fmt.Printf("total mins behind: %d\n", res.Summary.TotalMinutesBehind)
	fmt.Printf("snapshots written: %d at %s\n", res.Written, res.SnapshotTime.Format("2006-01-02 15:04:05"))
	return nil
}

func withReporter(c *cli.Context, fn func(ctx context.Context, r snapshotstore.Reporter) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := snapshotstore.Open(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(c.Context, store)
}

func statsAction(c *cli.Context) error {
	return withReporter(c, func(ctx context.Context, r snapshotstore.Reporter) error {
		stats, err := r.SummaryStats(ctx)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		fmt.Println("\nSNAPSHOT SUMMARY")
		fmt.Printf("   Total Rows: %v\n", stats["total_rows"])
		fmt.Printf("   Runs: %v\n", stats["runs"])
		fmt.Printf("   Distinct Buses: %v\n", stats["buses"])

		if _, ok := stats["latest_run"]; !ok {
			fmt.Println("\nNo runs recorded yet.")
			return nil
		}

		fmt.Println("\nLATEST RUN")
		fmt.Printf("   Time: %v\n", stats["latest_run"])
		fmt.Printf("   Routes: %v\n", stats["latest_rows"])
		fmt.Printf("   Behind: %v (%v)\n", stats["latest_behind"], stats["latest_percent_behind"])
		fmt.Printf("   Minutes Behind: %v\n", stats["latest_minutes_behind"])
		fmt.Println()
		return nil
	})
}

func breakdownAction(c *cli.Context) error {
	return withReporter(c, func(ctx context.Context, r snapshotstore.Reporter) error {
		rows, err := r.StatusBreakdown(ctx)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		fmt.Println("\nLATEST RUN STATUS BREAKDOWN")
		fmt.Println()
		fmt.Printf("%-12s %10s %15s\n", "Status", "Count", "Avg Diff")
		fmt.Println("─────────────────────────────────────────")
		for _, row := range rows {
			fmt.Printf("%-12s %10v %11s min\n", row["status"], row["count"], row["avg_diff"])
		}
		fmt.Println()
		return nil
	})
}

func behindAction(c *cli.Context) error {
	return withReporter(c, func(ctx context.Context, r snapshotstore.Reporter) error {
		snapshots, err := r.MostBehind(ctx, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		fmt.Printf("\nMost Behind Routes (latest run)\n")
		for i, s := range snapshots {
			fmt.Printf("%d. Bus %s (Route %d) - %d min, %s at %s\n",
				i+1, s.Bus, s.Route, s.DiffMins, s.Deviation, s.Location)
		}
		return nil
	})
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "metrotime",
		Usage: "Snapshot the bus time-track feed into a database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file to load"},
			&cli.BoolFlag{Name: "debug", Usage: "log the raw feed and parsed routes"},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "fetch the feed once and write a snapshot of every route",
				Action: runAction,
			},
			{
				Name:  "report",
				Usage: "query stored snapshots",
				Subcommands: []*cli.Command{
					{Name: "stats", Usage: "totals across runs and for the latest run", Action: statsAction},
					{Name: "breakdown", Usage: "latest run grouped by status", Action: breakdownAction},
					{
						Name:   "behind",
						Usage:  "latest run's routes furthest behind schedule",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Value: 10}},
						Action: behindAction,
					},
				},
			},
		},
	}
}

func main() {
	app := newApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("metrotime failed")
	}
}
