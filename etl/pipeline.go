package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/metrotime/metrotime/aggregator"
	"github.com/metrotime/metrotime/model"
	"github.com/metrotime/metrotime/timetrack"
)

// Pipeline manages the fetch, parse, summarize and write steps of one run.
type Pipeline struct {
	Fetcher     timetrack.Fetcher
	Transformer aggregator.Transformer
	Loader      Loader
}

// Result describes a completed run.
type Result struct {
	Summary      model.Summary
	Written      int
	SnapshotTime time.Time
	Duration     time.Duration
}

// NewPipeline creates a new pipeline instance with all dependencies.
func NewPipeline(fetcher timetrack.Fetcher, xformer aggregator.Transformer, loader Loader) *Pipeline {
	return &Pipeline{
		Fetcher:     fetcher,
		Transformer: xformer,
		Loader:      loader,
	}
}

// Run executes the full cycle once. Any step's error ends the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	log.Info().Msg("Starting snapshot run")

	body, err := p.Fetcher.FetchBody(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract failed: %w", err)
	}
	log.Debug().Int("bytes", len(body)).Str("body", body).Msg("Fetched feed")

	records, err := p.Transformer.ParseRoutes(body)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	if log.Logger.GetLevel() <= zerolog.DebugLevel {
		log.Debug().Msg("Parsed routes:\n" + pretty.Sprint(records))
	}

	summary, err := p.Transformer.Summarize(records)
	if err != nil {
		return nil, fmt.Errorf("summarize failed: %w", err)
	}
	log.Info().
		Int("total_routes", summary.TotalCount).
		Int("routes_behind", summary.BehindCount).
		Int64("total_mins_behind", summary.TotalMinutesBehind).
		Int("routes_ahead", summary.AheadCount).
		Int("routes_on_time", summary.OnTimeCount).
		Int("routes_no_data", summary.NoDataCount).
		Int("unrecognized_status", summary.UnrecognizedCount).
		Int("missing_minutes", summary.MissingMinutesCount).
		Msg("Summarized feed")

	loaded, err := p.Loader.Load(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("load failed after %d of %d rows: %w", loaded.Rows, len(records), err)
	}

	result := &Result{
		Summary:      summary,
		Written:      loaded.Rows,
		SnapshotTime: loaded.At,
		Duration:     time.Since(startTime).Round(time.Millisecond),
	}
	log.Info().
		Int("rows", result.Written).
		Time("snapshot_time", result.SnapshotTime).
		Dur("duration", result.Duration).
		Msg("Snapshot run completed")

	return result, nil
}
