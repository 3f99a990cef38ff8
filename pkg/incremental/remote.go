package incremental

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

// RemoteCache shares generated tables across a build farm through Redis,
// keyed the same way DiskCache keys the local filesystem: by content
// hash. Grounded on the teacher's pkg/redis/client.go, narrowed from its
// full command surface to the Get/Set/Ping this cache needs; cluster and
// sentinel modes are left to a UniversalClient option the caller
// constructs, matching the teacher's own pattern of accepting a
// pre-built client rather than re-deriving connection topology here.
type RemoteCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRemoteCache wraps an existing go-redis UniversalClient (standalone,
// cluster, or sentinel) as a table cache, with entries expiring after
// ttl (0 disables expiry).
func NewRemoteCache(rdb redis.UniversalClient, ttl time.Duration) *RemoteCache {
	return &RemoteCache{rdb: rdb, ttl: ttl}
}

// NewRemoteCacheFromAddr opens a standalone client at addr, matching the
// teacher's redis.NewClient construction for the common case.
func NewRemoteCacheFromAddr(ctx context.Context, addr string, ttl time.Duration) (*RemoteCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("incremental: connecting to redis at %s: %w", addr, err)
	}
	return NewRemoteCache(rdb, ttl), nil
}

func tableKey(hash string) string {
	return "janus:table:" + hash
}

// Store uploads t's encoded form under its content hash.
func (r *RemoteCache) Store(ctx context.Context, t *dispatchtable.Table) (string, error) {
	encoded := dispatchtable.Encode(t)
	hash := ContentHash(encoded)
	if err := r.rdb.Set(ctx, tableKey(hash), encoded, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("incremental: storing table %s in redis: %w", hash, err)
	}
	return hash, nil
}

// Load fetches and decodes the table stored under hash, returning
// (nil, redis.Nil) if absent.
func (r *RemoteCache) Load(ctx context.Context, hash string) (*dispatchtable.Table, error) {
	data, err := r.rdb.Get(ctx, tableKey(hash)).Bytes()
	if err != nil {
		return nil, err
	}
	return dispatchtable.Decode(data)
}

// Has reports whether hash is present in the remote cache.
func (r *RemoteCache) Has(ctx context.Context, hash string) (bool, error) {
	n, err := r.rdb.Exists(ctx, tableKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying redis client.
func (r *RemoteCache) Close() error {
	return r.rdb.Close()
}
