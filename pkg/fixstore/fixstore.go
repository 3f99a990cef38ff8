// Package fixstore persists fix-learning history: whenever an IDE or
// developer accepts or rejects a diagnostic.Fix, that outcome is recorded
// here so future Fix.Confidence scores (diagnostic.Engine.confidence) can
// be blended with real acceptance rates instead of the heuristic alone.
// Backend selection mirrors the teacher's pkg/database/database.go
// scheme-dispatch pattern: a connection-string scheme picks the driver.
package fixstore

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Record is one observed fix outcome.
type Record struct {
	FixID      string
	FixKind    string
	Accepted   bool
	ObservedAt time.Time
}

// Store is the backend-independent interface every fixstore
// implementation satisfies.
type Store interface {
	// RecordOutcome persists one observed accept/reject decision.
	RecordOutcome(ctx context.Context, rec Record) error
	// AcceptanceRate returns the historical acceptance rate in [0, 1]
	// for a fix id, or 0 if no history exists.
	AcceptanceRate(fixID string) float64
	Close() error
}

// Config configures a store backend.
type Config struct {
	// DriverURL is a connection string whose scheme selects the backend:
	// "file://" for the flat-file default, "postgres://"/"mysql://"/
	// "sqlite://" for a SQL backend, "mongodb://" for MongoDB. An empty
	// DriverURL defaults to a file store rooted at ".janus/fixstore.jsonl".
	DriverURL string
}

// DefaultConfig returns the file-backed default.
func DefaultConfig() Config {
	return Config{DriverURL: "file://.janus/fixstore.jsonl"}
}

// Open constructs a Store for cfg.DriverURL, dispatching on scheme.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.DriverURL == "" {
		cfg = DefaultConfig()
	}

	u, err := url.Parse(cfg.DriverURL)
	if err != nil {
		return nil, fmt.Errorf("fixstore: invalid driver url: %w", err)
	}

	switch u.Scheme {
	case "file", "":
		// "file://rel/path" parses its first segment as the host; rejoin
		// it so a relative path stays relative.
		path := u.Host + u.Path
		if path == "" {
			path = u.Opaque
		}
		return newFileStore(path)
	case "postgres", "postgresql", "mysql", "sqlite", "sqlite3":
		return newSQLStore(ctx, u)
	case "mongodb", "mongodb+srv":
		return newMongoStore(ctx, cfg.DriverURL)
	default:
		return nil, fmt.Errorf("fixstore: unsupported driver scheme %q", u.Scheme)
	}
}
