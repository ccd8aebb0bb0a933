package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	jerrors "jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// DefaultMemoryEntries is the size of the in-process tier when none is configured.
const DefaultMemoryEntries = 1024

// ModuleCache stores built modules. Lookups hit an in-process LRU first and
// fall back to the modules table; payloads are zstd-compressed JSON.
// It implements pipeline.Cache.
type ModuleCache struct {
	db     *DB
	memory *lru.Cache[string, *pipeline.CacheEntry]

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ pipeline.Cache = (*ModuleCache)(nil)

// NewModuleCache creates a module cache backed by db.
func NewModuleCache(db *DB, memoryEntries int) (*ModuleCache, error) {
	if memoryEntries <= 0 {
		memoryEntries = DefaultMemoryEntries
	}
	memory, err := lru.New[string, *pipeline.CacheEntry](memoryEntries)
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, err
	}
	return &ModuleCache{
		db:      db,
		memory:  memory,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Get returns the entry stored for resource.
func (c *ModuleCache) Get(ctx context.Context, resource string) (*pipeline.CacheEntry, bool, error) {
	if entry, ok := c.memory.Get(resource); ok {
		return entry, true, nil
	}

	var payload []byte
	err := c.db.QueryRow(ctx, `
		SELECT payload FROM modules WHERE resource = ?
	`, resource).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, jerrors.Wrap(jerrors.CacheFailure, "module cache lookup failed", err).WithResource(resource)
	}

	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, false, jerrors.Wrap(jerrors.CacheFailure, "corrupt module cache entry", err).WithResource(resource)
	}
	var entry pipeline.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, jerrors.Wrap(jerrors.CacheFailure, "corrupt module cache entry", err).WithResource(resource)
	}

	c.memory.Add(resource, &entry)
	return &entry, true, nil
}

// Put stores entry, replacing any previous entry for the same resource.
func (c *ModuleCache) Put(ctx context.Context, entry *pipeline.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return jerrors.Wrap(jerrors.CacheFailure, "cannot encode module cache entry", err).WithResource(entry.Resource)
	}
	payload := c.encoder.EncodeAll(raw, nil)

	_, err = c.db.Exec(ctx, `
		INSERT OR REPLACE INTO modules (resource, hash, module_type, payload, raw_size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Resource, entry.Hash, string(entry.Type), payload, len(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return jerrors.Wrap(jerrors.CacheFailure, "failed to store module", err).WithResource(entry.Resource)
	}

	c.memory.Add(entry.Resource, entry)
	return nil
}

// Delete removes the entry for resource.
func (c *ModuleCache) Delete(ctx context.Context, resource string) error {
	c.memory.Remove(resource)
	if _, err := c.db.Exec(ctx, "DELETE FROM modules WHERE resource = ?", resource); err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	return nil
}

// Clear removes every stored module.
func (c *ModuleCache) Clear(ctx context.Context) error {
	c.memory.Purge()
	if _, err := c.db.Exec(ctx, "DELETE FROM modules"); err != nil {
		return fmt.Errorf("failed to clear modules: %w", err)
	}
	return nil
}

// CacheStats describes what the modules table holds.
type CacheStats struct {
	Modules        int   `json:"modules" yaml:"modules" toml:"modules"`
	RawBytes       int64 `json:"rawBytes" yaml:"rawBytes" toml:"rawBytes"`
	CompressedSize int64 `json:"compressedBytes" yaml:"compressedBytes" toml:"compressedBytes"`
	MemoryEntries  int   `json:"memoryEntries" yaml:"memoryEntries" toml:"memoryEntries"`
}

// Stats summarizes the stored modules.
func (c *ModuleCache) Stats(ctx context.Context) (CacheStats, error) {
	var s CacheStats
	err := c.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(raw_size), 0), COALESCE(SUM(LENGTH(payload)), 0)
		FROM modules
	`).Scan(&s.Modules, &s.RawBytes, &s.CompressedSize)
	if err != nil {
		return s, fmt.Errorf("failed to read cache stats: %w", err)
	}
	s.MemoryEntries = c.memory.Len()
	return s, nil
}

// Close releases the compressor state. The database stays open.
func (c *ModuleCache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
