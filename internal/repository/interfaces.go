package repository

import (
	"context"

	"github.com/axlan/dice-logger/internal/model"
)

// RollRepository defines roll event data access methods.
type RollRepository interface {
	// Insert appends a roll event. The row is visible to the next query on the same handle.
	Insert(ctx context.Context, event model.RollEvent) error

	// QueryRange returns rolls in [q.Start, q.End) ordered by timestamp ascending.
	QueryRange(ctx context.Context, q model.RangeQuery) ([]model.RollEvent, error)

	// Stats returns statistics about the rolls table.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks the connection.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}

// RollInserter is the write side used by ingestion.
type RollInserter interface {
	Insert(ctx context.Context, event model.RollEvent) error
}

// RollQuerier is the read side used by reporting.
type RollQuerier interface {
	QueryRange(ctx context.Context, q model.RangeQuery) ([]model.RollEvent, error)
}
