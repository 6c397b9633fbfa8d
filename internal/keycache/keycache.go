package keycache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// Cache persists the set of "interesting" match keys between refreshes.
// An incremental refresh restricts the buy side to these keys instead of
// re-analyzing the whole catalogue.
type Cache struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	keys    []string
	builtAt time.Time
}

// Config holds cache configuration.
type Config struct {
	Path   string // JSON file, e.g. data/hotkeys.json
	Logger *zap.Logger
}

type fileLayout struct {
	Keys        []string  `json:"keys"`
	LastBuiltAt time.Time `json:"last_built_at"`
}

// New creates the key cache, loading the file at cfg.Path when present.
// A missing or corrupt file yields an empty cache; the next full refresh
// rebuilds it.
func New(cfg *Config) *Cache {
	c := &Cache{
		path:   cfg.Path,
		logger: cfg.Logger,
	}

	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			cfg.Logger.Warn("keycache-read-failed", zap.Error(err))
		}
		return c
	}

	var data fileLayout
	err = json.Unmarshal(raw, &data)
	if err != nil {
		cfg.Logger.Warn("keycache-corrupt", zap.String("path", cfg.Path), zap.Error(err))
		return c
	}

	c.keys = data.Keys
	c.builtAt = data.LastBuiltAt
	cfg.Logger.Info("keycache-loaded",
		zap.Int("keys", len(c.keys)),
		zap.Time("built_at", c.builtAt))

	return c
}

// Keys returns a copy of the cached keys and when they were built.
func (c *Cache) Keys() ([]string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out, c.builtAt
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Replace installs a new key set and persists it. Called after every
// successful full refresh with the keys of the published result set.
func (c *Cache) Replace(keys []string) error {
	deduped := dedupe(keys)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	prevKeys, prevBuilt := c.keys, c.builtAt
	c.keys = deduped
	c.builtAt = now

	err := c.persistLocked()
	if err != nil {
		c.keys, c.builtAt = prevKeys, prevBuilt
		return err
	}

	KeysCached.Set(float64(len(deduped)))
	c.logger.Info("keycache-replaced", zap.Int("keys", len(deduped)))
	return nil
}

// Clear empties the cache and removes the file. The next incremental
// refresh will degrade to a full one.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = nil
	c.builtAt = time.Time{}

	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		c.logger.Warn("keycache-remove-failed", zap.Error(err))
	}

	KeysCached.Set(0)
	c.logger.Info("keycache-cleared")
}

// persistLocked writes the file atomically. Callers hold c.mu.
func (c *Cache) persistLocked() error {
	raw, err := json.MarshalIndent(fileLayout{
		Keys:        c.keys,
		LastBuiltAt: c.builtAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal key cache: %v", types.ErrPersistFailed, err)
	}

	err = os.MkdirAll(filepath.Dir(c.path), 0o755)
	if err != nil {
		return fmt.Errorf("%w: create data dir: %v", types.ErrPersistFailed, err)
	}

	tmp := c.path + ".tmp"
	err = os.WriteFile(tmp, raw, 0o644)
	if err != nil {
		return fmt.Errorf("%w: write key cache: %v", types.ErrPersistFailed, err)
	}

	err = os.Rename(tmp, c.path)
	if err != nil {
		return fmt.Errorf("%w: rename key cache: %v", types.ErrPersistFailed, err)
	}

	return nil
}

func dedupe(keys []string) []string {
	set := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := set[k]; ok {
			continue
		}
		set[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
