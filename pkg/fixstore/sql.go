package fixstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// sqlStore persists fix outcomes through database/sql, keyed by the
// driver scheme the same way the teacher's pkg/database dispatches
// between postgres/mysql/sqlite. Acceptance rates are served from an
// in-memory cache refreshed on RecordOutcome, avoiding a round trip on
// every confidence lookup from the hot diagnostic path.
type sqlStore struct {
	db     *sql.DB
	driver string

	mu      sync.RWMutex
	totals  map[string]int
	accepts map[string]int
}

func newSQLStore(ctx context.Context, u *url.URL) (*sqlStore, error) {
	driverName, dsn, err := driverAndDSN(u)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("fixstore: opening %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("fixstore: pinging %s: %w", driverName, err)
	}

	s := &sqlStore{db: db, driver: driverName, totals: make(map[string]int), accepts: make(map[string]int)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.warmCache(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// driverAndDSN maps a connection-string scheme to a registered
// database/sql driver name and a driver-appropriate DSN, mirroring
// database.Config.ConnectionString's scheme switch.
func driverAndDSN(u *url.URL) (driverName, dsn string, err error) {
	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", u.String(), nil
	case "mysql":
		// go-sql-driver/mysql wants "user:pass@tcp(host:port)/db", not a
		// URL; reassemble from the parsed components.
		user := ""
		if u.User != nil {
			user = u.User.String() + "@"
		}
		host := u.Host
		dbName := strings.TrimPrefix(u.Path, "/")
		return "mysql", fmt.Sprintf("%stcp(%s)/%s", user, host, dbName), nil
	case "sqlite", "sqlite3":
		path := u.Opaque
		if path == "" {
			path = u.Path
		}
		return "sqlite", path, nil
	default:
		return "", "", fmt.Errorf("fixstore: unsupported sql scheme %q", u.Scheme)
	}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS fix_outcomes (
	fix_id TEXT NOT NULL,
	fix_kind TEXT NOT NULL,
	accepted BOOLEAN NOT NULL,
	observed_at TIMESTAMP NOT NULL
)`

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("fixstore: migrating schema: %w", err)
	}
	return nil
}

func (s *sqlStore) warmCache(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT fix_id, accepted FROM fix_outcomes`)
	if err != nil {
		return fmt.Errorf("fixstore: warming cache: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var fixID string
		var accepted bool
		if err := rows.Scan(&fixID, &accepted); err != nil {
			return fmt.Errorf("fixstore: scanning outcome row: %w", err)
		}
		s.totals[fixID]++
		if accepted {
			s.accepts[fixID]++
		}
	}
	return rows.Err()
}

// insertSQL returns the parameterized insert statement for s.driver:
// lib/pq accepts only $N placeholders, while the mysql and sqlite
// drivers accept "?".
func (s *sqlStore) insertSQL() string {
	if s.driver == "postgres" {
		return `INSERT INTO fix_outcomes (fix_id, fix_kind, accepted, observed_at) VALUES ($1, $2, $3, $4)`
	}
	return `INSERT INTO fix_outcomes (fix_id, fix_kind, accepted, observed_at) VALUES (?, ?, ?, ?)`
}

func (s *sqlStore) RecordOutcome(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, s.insertSQL(),
		rec.FixID, rec.FixKind, rec.Accepted, rec.ObservedAt)
	if err != nil {
		return fmt.Errorf("fixstore: inserting outcome: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[rec.FixID]++
	if rec.Accepted {
		s.accepts[rec.FixID]++
	}
	return nil
}

func (s *sqlStore) AcceptanceRate(fixID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.totals[fixID]
	if total == 0 {
		return 0
	}
	return float64(s.accepts[fixID]) / float64(total)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
