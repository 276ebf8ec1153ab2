package main

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/metrotime/metrotime/aggregator"
	"github.com/metrotime/metrotime/config"
	"github.com/metrotime/metrotime/etl"
	"github.com/metrotime/metrotime/logging"
	"github.com/metrotime/metrotime/snapshotstore"
	"github.com/metrotime/metrotime/timetrack"
)

type handler struct {
	pipeline *etl.Pipeline
}

// handle runs one snapshot per scheduled event. The event payload is ignored.
func (h *handler) handle(ctx context.Context, event events.CloudWatchEvent) error {
	log.Info().Str("event_id", event.ID).Time("event_time", event.Time).Msg("Scheduled invocation")

	_, err := h.pipeline.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot run failed")
	}
	return err
}

func main() {
	logging.SetupLambda(strings.EqualFold(os.Getenv(config.EnvDebug), "YES"))

	// A Lambda has no .env file; configuration comes from the function environment.
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	h := &handler{
		pipeline: etl.NewPipeline(
			timetrack.NewClient(timetrack.DefaultFeedURL, cfg.HTTPTimeout),
			aggregator.NewRouteAggregator(cfg.MissingMinutes),
			etl.NewSnapshotWriter(cfg.DatabaseURL, snapshotstore.Dial),
		),
	}

	lambda.Start(h.handle)
}
