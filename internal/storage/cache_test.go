package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
	"jsonopt/internal/slogutil"
)

func testEntry(resource string) *pipeline.CacheEntry {
	return &pipeline.CacheEntry{
		Resource: resource,
		Hash:     "h-" + resource,
		Type:     pipeline.TypeJSON,
		Loaders:  []string{"jsonopt-loader"},
		Source:   `["someValue1"]`,
		BuildInfo: map[string]json.RawMessage{
			"ns": json.RawMessage(`{"allKeys":["someKey","someUnusedKey"],"optimizedKeys":["someKey"]}`),
		},
		Warnings: []errors.Diagnostic{{
			Code:     errors.UnknownKey,
			Message:  `[JsonAccessOptimizer] JSON key "x" does not exist`,
			Severity: errors.SeverityWarning,
		}},
	}
}

func newTestCache(t *testing.T, db *DB, size int) *ModuleCache {
	t.Helper()
	c, err := NewModuleCache(db, size)
	if err != nil {
		t.Fatalf("NewModuleCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestModuleCache_PutGet(t *testing.T) {
	db, _ := setupTestDB(t)
	c := newTestCache(t, db, 0)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "/src/strings.json"); ok || err != nil {
		t.Fatalf("Get() on empty cache = %v, %v", ok, err)
	}

	want := testEntry("/src/strings.json")
	if err := c.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := c.Get(ctx, want.Resource)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Hash != want.Hash || got.Source != want.Source {
		t.Errorf("Get() = %+v", got)
	}
}

func TestModuleCache_SurvivesReopen(t *testing.T) {
	db, dir := setupTestDB(t)
	ctx := context.Background()

	c := newTestCache(t, db, 4)
	want := testEntry("/src/strings.json")
	if err := c.Put(ctx, want); err != nil {
		t.Fatal(err)
	}

	// A second cache on a fresh connection has an empty memory tier.
	db2, err := Open(dir, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	c2 := newTestCache(t, db2, 4)

	got, ok, err := c2.Get(ctx, want.Resource)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(got.BuildInfo["ns"]) != string(want.BuildInfo["ns"]) {
		t.Errorf("build info = %s", got.BuildInfo["ns"])
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Code != errors.UnknownKey {
		t.Errorf("warnings = %+v", got.Warnings)
	}
	if !strings.Contains(got.Warnings[0].Message, `"x"`) {
		t.Errorf("warning message = %q", got.Warnings[0].Message)
	}
}

func TestModuleCache_ReplaceDeleteClear(t *testing.T) {
	db, _ := setupTestDB(t)
	c := newTestCache(t, db, 2)
	ctx := context.Background()

	for _, r := range []string{"/a.json", "/b.json", "/c.json"} {
		if err := c.Put(ctx, testEntry(r)); err != nil {
			t.Fatal(err)
		}
	}
	updated := testEntry("/a.json")
	updated.Hash = "new"
	if err := c.Put(ctx, updated); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Modules != 3 || stats.MemoryEntries != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.RawBytes <= 0 || stats.CompressedSize <= 0 {
		t.Errorf("sizes not recorded: %+v", stats)
	}

	if got, _, _ := c.Get(ctx, "/a.json"); got.Hash != "new" {
		t.Errorf("hash = %s, want new", got.Hash)
	}

	if err := c.Delete(ctx, "/b.json"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "/b.json"); ok {
		t.Error("deleted entry still present")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if stats, _ := c.Stats(ctx); stats.Modules != 0 || stats.MemoryEntries != 0 {
		t.Errorf("stats after Clear() = %+v", stats)
	}
}

func TestModuleCache_CorruptPayload(t *testing.T) {
	db, _ := setupTestDB(t)
	c := newTestCache(t, db, 1)
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO modules (resource, hash, module_type, payload, raw_size, updated_at)
		VALUES ('/bad.json', 'h', 'json', x'00010203', 4, '2026-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get(ctx, "/bad.json")
	if ok || err == nil {
		t.Fatalf("Get() = %v, %v; want error", ok, err)
	}
	if errors.CodeOf(err) != errors.CacheFailure {
		t.Errorf("code = %s", errors.CodeOf(err))
	}
}
