package storage

import (
	"context"

	"shapemap/internal/model"
)

// Store persists the functions of time of derived runs so they can be
// restored and evaluated later.
type Store interface {
	Init(ctx context.Context) error
	SaveCheckpoint(ctx context.Context, checkpoint model.Checkpoint) error
	GetCheckpoint(ctx context.Context, runID string) (model.Checkpoint, bool, error)
	ListRuns(ctx context.Context) ([]string, error)
	DeleteCheckpoint(ctx context.Context, runID string) error
}
