// Package incremental implements the incremental-build side of table
// generation: a content-addressed on-disk cache for encoded
// dispatch.Table blobs (§6's binary layout), a source-file-to-signature
// dependency tracker, a watch mode built on fsnotify, and an optional
// redis-backed remote cache for sharing tables across a build farm.
//
// Grounded on the teacher's pkg/hotreload (file hashing, debounced
// change batching) and pkg/redis (UniversalClient wrapper), generalized
// from "recompile and push bytecode to a running server" to "invalidate
// and regenerate one function's dispatch table".
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

// DiskCache stores encoded dispatch tables under CacheDir, named by the
// sha256 of their encoded bytes. The original spec names blake3 for this
// role; no blake3 package appears anywhere in the retrieval pack, so this
// substitutes sha256, matching the teacher's own content-hashing
// precedent in pkg/hotreload/watcher.go and pkg/cache (see DESIGN.md
// Open Question 5). The external shape — a content-addressed filename
// under a cache directory — is preserved.
type DiskCache struct {
	mu  sync.Mutex
	dir string
}

// NewDiskCache opens (creating if necessary) a disk cache rooted at dir.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("incremental: creating cache dir %s: %w", dir, err)
	}
	return &DiskCache{dir: dir}, nil
}

// ContentHash returns the cache key for an encoded table blob.
func ContentHash(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func (c *DiskCache) pathFor(hash string) string {
	return filepath.Join(c.dir, hash+".jtab")
}

// Store writes t's encoded form under its content hash, returning the
// hash so callers can record it in the dependency graph.
func (c *DiskCache) Store(t *dispatchtable.Table) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded := dispatchtable.Encode(t)
	hash := ContentHash(encoded)
	path := c.pathFor(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil // already cached, identical content by construction
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return "", fmt.Errorf("incremental: writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("incremental: finalizing cache entry: %w", err)
	}
	return hash, nil
}

// Load reads and decodes the table stored under hash.
func (c *DiskCache) Load(hash string) (*dispatchtable.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.pathFor(hash))
	if err != nil {
		return nil, err
	}
	return dispatchtable.Decode(data)
}

// Has reports whether hash is present without decoding it.
func (c *DiskCache) Has(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := os.Stat(c.pathFor(hash))
	return err == nil
}

// Evict removes a cached entry, used when its dependencies have gone
// stale and its signature is about to be regenerated.
func (c *DiskCache) Evict(hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.pathFor(hash))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListHashes returns the content hash of every table currently on disk,
// for a `cache gc` sweep that evicts entries no live signature references
// anymore.
func (c *DiskCache) ListHashes() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("incremental: listing cache dir %s: %w", c.dir, err)
	}
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".jtab"
		if filepath.Ext(name) == suffix {
			hashes = append(hashes, name[:len(name)-len(suffix)])
		}
	}
	return hashes, nil
}
