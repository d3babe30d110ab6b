package storage

import (
	"context"

	"grayevo/internal/model"
)

// Store persists run records, best-fitness series and checkpoint buffers.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessSample) error
	GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessSample, bool, error)
	SaveCheckpoint(ctx context.Context, checkpoint model.CheckpointRecord) error
	GetCheckpoint(ctx context.Context, runID, name string) (model.CheckpointRecord, bool, error)
	ListCheckpoints(ctx context.Context, runID string) ([]model.CheckpointRecord, error)
}
