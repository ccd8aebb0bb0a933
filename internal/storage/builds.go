package storage

import (
	"context"
	"fmt"
	"time"

	"jsonopt/internal/pipeline"
)

// BuildRecord is one row of build history.
type BuildRecord struct {
	ID         string    `json:"id" yaml:"id" toml:"id"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt" toml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt" toml:"finishedAt"`
	Modules    int       `json:"modules" yaml:"modules" toml:"modules"`
	Warnings   int       `json:"warnings" yaml:"warnings" toml:"warnings"`
	Errors     int       `json:"errors" yaml:"errors" toml:"errors"`
}

// BuildRepository provides access to the builds table
type BuildRepository struct {
	db *DB
}

// NewBuildRepository creates a new build repository
func NewBuildRepository(db *DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// Record stores the outcome of a compilation.
func (r *BuildRepository) Record(ctx context.Context, stats *pipeline.Stats) error {
	_, err := r.db.Exec(ctx, `
		INSERT OR REPLACE INTO builds (id, started_at, finished_at, modules, warnings, errors)
		VALUES (?, ?, ?, ?, ?, ?)
	`, stats.BuildID,
		stats.StartTime.UTC().Format(time.RFC3339Nano),
		stats.EndTime.UTC().Format(time.RFC3339Nano),
		len(stats.Modules), len(stats.Warnings), len(stats.Errors),
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// Recent returns up to limit builds, newest first.
func (r *BuildRepository) Recent(ctx context.Context, limit int) ([]BuildRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, started_at, finished_at, modules, warnings, errors
		FROM builds
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Modules, &rec.Warnings, &rec.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("invalid started_at format: %w", err)
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("invalid finished_at format: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
