// Package provider defines the run-history interfaces shared by the local
// store and the archive backend.
package provider

import (
	"context"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// RunHistory reads the local, append-only run history.
type RunHistory interface {
	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error)
	// ListRunsAfter returns up to limit runs with IDs greater than cursor,
	// oldest first. An empty cursor starts from the beginning.
	ListRunsAfter(ctx context.Context, cursor string, limit int) ([]types.RunRecord, error)
}

// RunArchive is a durable copy of the run history that tracks how far it has
// been filled.
type RunArchive interface {
	UpsertRun(ctx context.Context, run types.RunRecord) error
	GetCursor(ctx context.Context, source string) (string, error)
	SetCursor(ctx context.Context, source, cursorValue string) error
}
