package fixstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileStore is the zero-dependency default backend: an append-only
// JSON-lines log plus an in-memory rollup for AcceptanceRate, rebuilt
// from the log on open. Grounded on the teacher's preference for a
// dependency-free fallback alongside its driver-backed stores (mirrors
// pkg/database's own sqlite-as-embedded-default posture, minus the
// driver).
type fileStore struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	writer  *bufio.Writer
	totals  map[string]int
	accepts map[string]int
}

func newFileStore(path string) (*fileStore, error) {
	if path == "" {
		path = ".janus/fixstore.jsonl"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("fixstore: creating directory %s: %w", dir, err)
		}
	}

	fs := &fileStore{
		path:    path,
		totals:  make(map[string]int),
		accepts: make(map[string]int),
	}

	if err := fs.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fixstore: opening %s: %w", path, err)
	}
	fs.f = f
	fs.writer = bufio.NewWriter(f)
	return fs, nil
}

func (fs *fileStore) replay() error {
	f, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fixstore: opening %s for replay: %w", fs.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // tolerate a partially-written trailing line
		}
		fs.totals[rec.FixID]++
		if rec.Accepted {
			fs.accepts[rec.FixID]++
		}
	}
	return scanner.Err()
}

func (fs *fileStore) RecordOutcome(ctx context.Context, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("fixstore: encoding record: %w", err)
	}
	if _, err := fs.writer.Write(line); err != nil {
		return fmt.Errorf("fixstore: writing record: %w", err)
	}
	if err := fs.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := fs.writer.Flush(); err != nil {
		return fmt.Errorf("fixstore: flushing: %w", err)
	}

	fs.totals[rec.FixID]++
	if rec.Accepted {
		fs.accepts[rec.FixID]++
	}
	return nil
}

func (fs *fileStore) AcceptanceRate(fixID string) float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	total := fs.totals[fixID]
	if total == 0 {
		return 0
	}
	return float64(fs.accepts[fixID]) / float64(total)
}

func (fs *fileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writer.Flush(); err != nil {
		return err
	}
	return fs.f.Close()
}
