package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metrotime/metrotime/model"
	"github.com/metrotime/metrotime/snapshotstore"
)

// ErrMissingDSN is returned when the writer has no connection string.
var ErrMissingDSN = errors.New("database connection string is not set")

// DialFunc opens the single connection a run writes through.
type DialFunc func(ctx context.Context, dsn string) (snapshotstore.Repository, error)

// Loader defines the interface for persisting a run's records.
type Loader interface {
	Load(ctx context.Context, records []model.RouteStatusRecord) (LoadResult, error)
}

// LoadResult reports how many rows a load wrote and the time they share.
type LoadResult struct {
	Rows int
	At   time.Time
}

// SnapshotWriter implements Loader by inserting one snapshot row per record.
type SnapshotWriter struct {
	dsn  string
	dial DialFunc
	now  func() time.Time
}

func NewSnapshotWriter(dsn string, dial DialFunc) *SnapshotWriter {
	return &SnapshotWriter{dsn: dsn, dial: dial, now: time.Now}
}

// WithClock replaces the clock used for the run timestamp.
func (w *SnapshotWriter) WithClock(now func() time.Time) *SnapshotWriter {
	w.now = now
	return w
}

// Load opens one connection and inserts every record in order, all rows sharing
// one timestamp. Inserts are not wrapped in a transaction: on failure the rows
// already written stay, and Rows reports how many.
func (w *SnapshotWriter) Load(ctx context.Context, records []model.RouteStatusRecord) (LoadResult, error) {
	if strings.TrimSpace(w.dsn) == "" {
		return LoadResult{}, ErrMissingDSN
	}

	repo, err := w.dial(ctx, w.dsn)
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}()

	result := LoadResult{At: w.now().UTC()}
	for i, r := range records {
		if err := repo.Insert(ctx, model.NewSnapshot(r, result.At)); err != nil {
			return result, fmt.Errorf("record %d of %d: %w", i+1, len(records), err)
		}
		result.Rows++
	}

	return result, nil
}
