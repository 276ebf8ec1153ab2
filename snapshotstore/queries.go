package snapshotstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/metrotime/metrotime/model"
)

const latestRun = `(SELECT MAX(time) FROM snapshots)`

// LatestSnapshotTime returns the write time of the most recent run.
func (s *SnapshotStore) LatestSnapshotTime(ctx context.Context) (time.Time, error) {
	var latest interface{}
	if err := s.conn.QueryRowContext(ctx, `SELECT MAX(time) FROM snapshots`).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	return parseTime(latest)
}

// StatusBreakdown groups the latest run's rows by status.
func (s *SnapshotStore) StatusBreakdown(ctx context.Context) ([]model.QueryStat, error) {
	query := `
		SELECT status, COUNT(*) AS count, AVG(CAST(diffmins AS DOUBLE PRECISION)) AS avg_diff
		FROM snapshots
		WHERE time = ` + latestRun + `
		GROUP BY status
		ORDER BY count DESC, status
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.QueryStat
	for rows.Next() {
		var status string
		var count int64
		var avgDiff sql.NullFloat64

		if err := rows.Scan(&status, &count, &avgDiff); err != nil {
			return nil, err
		}

		results = append(results, model.QueryStat{
			"status":   status,
			"count":    count,
			"avg_diff": fmt.Sprintf("%.1f", avgDiff.Float64),
		})
	}

	return results, rows.Err()
}

// MostBehind returns the latest run's behind-schedule rows, furthest behind first.
func (s *SnapshotStore) MostBehind(ctx context.Context, limit int) ([]model.Snapshot, error) {
	query := `
		SELECT time, bus, route, location, lat, lon, status, deviation, diffmins
		FROM snapshots
		WHERE time = ` + latestRun + ` AND status = ?
		ORDER BY diffmins ASC, bus
		LIMIT ?
	`

	rows, err := s.conn.QueryContext(ctx, s.rebind(query), model.Behind.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var at interface{}

		err := rows.Scan(
			&at, &snap.Bus, &snap.Route, &snap.Location,
			&snap.Lat, &snap.Lon, &snap.Status, &snap.Deviation, &snap.DiffMins,
		)
		if err != nil {
			return nil, err
		}

		if snap.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// SummaryStats reports totals across all runs and for the latest run.
func (s *SnapshotStore) SummaryStats(ctx context.Context) (model.QueryStat, error) {
	stats := make(model.QueryStat)

	var totalRows, runs, buses int64
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT time), COUNT(DISTINCT bus)
		FROM snapshots
	`).Scan(&totalRows, &runs, &buses)
	if err != nil {
		return nil, err
	}

	stats["total_rows"] = totalRows
	stats["runs"] = runs
	stats["buses"] = buses

	if totalRows == 0 {
		return stats, nil
	}

	latest, err := s.LatestSnapshotTime(ctx)
	if err != nil {
		return nil, err
	}
	stats["latest_run"] = latest.Format(time.RFC3339)

	var latestRows, behind, minutesBehind int64
	err = s.conn.QueryRowContext(ctx, s.rebind(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(-SUM(CASE WHEN status = ? THEN diffmins ELSE 0 END), 0)
		FROM snapshots
		WHERE time = `+latestRun+`
	`), model.Behind.String(), model.Behind.String()).Scan(&latestRows, &behind, &minutesBehind)
	if err != nil {
		return nil, err
	}

	stats["latest_rows"] = latestRows
	stats["latest_behind"] = behind
	stats["latest_minutes_behind"] = minutesBehind

	if latestRows > 0 {
		stats["latest_percent_behind"] = fmt.Sprintf("%.1f%%", float64(behind)*100.0/float64(latestRows))
	} else {
		stats["latest_percent_behind"] = "0.0%"
	}

	return stats, nil
}
