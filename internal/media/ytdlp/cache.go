package ytdlp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"wavelift/internal/fileutil"
	"wavelift/internal/logging"
)

// Resolver produces metadata for a locator.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (Metadata, error)
}

// MetadataCache memoizes successful resolutions in memory and, when dir is
// set, as info_<hash>.json files so later runs skip the lookup.
type MetadataCache struct {
	inner  Resolver
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Metadata
}

// NewMetadataCache wraps inner. An empty dir keeps the cache in memory only.
func NewMetadataCache(inner Resolver, dir string, logger *slog.Logger) *MetadataCache {
	return &MetadataCache{
		inner:   inner,
		dir:     dir,
		logger:  logging.NewComponentLogger(logger, "metadata-cache"),
		entries: make(map[string]Metadata),
	}
}

// Resolve returns cached metadata or delegates to the wrapped resolver.
// Failures are never cached.
func (c *MetadataCache) Resolve(ctx context.Context, locator string) (Metadata, error) {
	key := LocatorHash(locator)

	c.mu.Lock()
	meta, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}
	if meta, ok := c.load(key); ok {
		c.store(key, meta, false)
		return meta, nil
	}

	meta, err := c.inner.Resolve(ctx, locator)
	if err != nil {
		return Metadata{}, err
	}
	c.store(key, meta, true)
	return meta, nil
}

// Len reports the number of in-memory entries.
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MetadataCache) path(key string) string {
	return filepath.Join(c.dir, "info_"+key+".json")
}

func (c *MetadataCache) load(key string) (Metadata, bool) {
	if c.dir == "" {
		return Metadata{}, false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil || meta.ID == "" {
		return Metadata{}, false
	}
	return meta, true
}

func (c *MetadataCache) store(key string, meta Metadata, persist bool) {
	c.mu.Lock()
	c.entries[key] = meta
	c.mu.Unlock()
	if !persist || c.dir == "" {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := fileutil.WriteFileAtomic(c.path(key), data, 0o644); err != nil {
		c.logger.Debug("metadata cache write failed", logging.Error(err))
	}
}
