package snapshotstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/metrotime/metrotime/model"
)

// sqliteTimeFormat is fixed-width so stored run times sort as text.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000"

const insertSnapshot = `
	INSERT INTO snapshots (time, bus, route, location, lat, lon, status, deviation, diffmins)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ErrNoSnapshots is returned by report queries when the table is empty.
var ErrNoSnapshots = errors.New("no snapshots stored")

// ErrUnsupportedDSN is returned by Open for a connection string that names
// neither a Postgres nor a SQLite store.
var ErrUnsupportedDSN = errors.New("unsupported database connection string")

// Repository defines the write side used by a single run.
type Repository interface {
	Insert(ctx context.Context, s model.Snapshot) error
	Close() error
}

// Reporter defines the read-side queries over stored snapshots.
type Reporter interface {
	LatestSnapshotTime(ctx context.Context) (time.Time, error)
	StatusBreakdown(ctx context.Context) ([]model.QueryStat, error)
	MostBehind(ctx context.Context, limit int) ([]model.Snapshot, error)
	SummaryStats(ctx context.Context) (model.QueryStat, error)
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SnapshotStore holds one physical database connection for the lifetime of a run.
type SnapshotStore struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect dialect
}

// Open connects to the store named by dsn. postgres:// and postgresql:// URLs
// and key=value connection strings use Postgres. sqlite:, sqlite:// and file:
// forms use SQLite. Any other dsn is rejected with ErrUnsupportedDSN.
func Open(ctx context.Context, dsn string) (*SnapshotStore, error) {
	driver, source, d, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SnapshotStore{db: db, conn: conn, dialect: d}
	if d == dialectSQLite {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return store, nil
}

// Dial adapts Open to the Repository interface.
func Dial(ctx context.Context, dsn string) (Repository, error) {
	store, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func resolveDSN(dsn string) (driver, source string, d dialect, err error) {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", trimmed, dialectPostgres, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return "sqlite", trimmed[len("sqlite://"):], dialectSQLite, nil
	case strings.HasPrefix(lower, "sqlite:"):
		return "sqlite", trimmed[len("sqlite:"):], dialectSQLite, nil
	case strings.HasPrefix(lower, "file:"):
		return "sqlite", trimmed, dialectSQLite, nil
	case isKeyValueDSN(trimmed):
		return "pgx", trimmed, dialectPostgres, nil
	}
	return "", "", 0, fmt.Errorf("%w: %q", ErrUnsupportedDSN, redactDSN(trimmed))
}

// isKeyValueDSN reports whether every field of s is a libpq-style key=value pair.
func isKeyValueDSN(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		key, _, ok := strings.Cut(f, "=")
		if !ok || key == "" || strings.ContainsAny(key, "/\\:.") {
			return false
		}
	}
	return true
}

// redactDSN keeps only the scheme or first few characters of a rejected dsn.
func redactDSN(s string) string {
	if scheme, _, ok := strings.Cut(s, "://"); ok {
		return scheme + "://..."
	}
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}

// EnsureSchema creates the snapshots table on a local SQLite file. Postgres
// stores are expected to be provisioned already.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	if s.dialect != dialectSQLite {
		return nil
	}
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TIMESTAMP NOT NULL,
		bus TEXT NOT NULL,
		route INTEGER NOT NULL,
		location TEXT NOT NULL,
		lat TEXT NOT NULL,
		lon TEXT NOT NULL,
		status TEXT NOT NULL,
		deviation TEXT NOT NULL,
		diffmins INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(time);
	CREATE INDEX IF NOT EXISTS idx_snapshots_bus ON snapshots(bus);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Insert writes one snapshot row. Each insert commits on its own.
func (s *SnapshotStore) Insert(ctx context.Context, snap model.Snapshot) error {
	_, err := s.conn.ExecContext(ctx, s.rebind(insertSnapshot),
		s.timeArg(snap.Time), snap.Bus, snap.Route, snap.Location,
		snap.Lat, snap.Lon, snap.Status, snap.Deviation, snap.DiffMins,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot for bus %s: %w", snap.Bus, err)
	}
	return nil
}

func (s *SnapshotStore) Close() error {
	var connErr error
	if s.conn != nil {
		connErr = s.conn.Close()
	}
	return errors.Join(connErr, s.db.Close())
}

func (s *SnapshotStore) timeArg(t time.Time) interface{} {
	if s.dialect == dialectSQLite {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SnapshotStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseTime accepts what either driver hands back for the time column.
func parseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case nil:
		return time.Time{}, ErrNoSnapshots
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}

func parseTimeText(s string) (time.Time, error) {
	for _, layout := range []string{sqliteTimeFormat, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
