package storage

import (
	"context"

	"grayevo/internal/model"
	"grayevo/internal/raster"
)

// CheckpointSink records engine checkpoints for one run in a Store, using
// the same names the raster checkpointer writes to disk.
type CheckpointSink struct {
	Store Store
	RunID string
}

func (s CheckpointSink) SaveCheckpoint(ctx context.Context, cycle int, best model.Candidate, fitness uint64) error {
	return s.save(ctx, raster.CheckpointName(cycle), cycle, false, best, fitness)
}

func (s CheckpointSink) SaveFinal(ctx context.Context, cycles int, best model.Candidate, fitness uint64) error {
	return s.save(ctx, raster.FinalName, cycles, true, best, fitness)
}

func (s CheckpointSink) save(ctx context.Context, name string, cycle int, final bool, best model.Candidate, fitness uint64) error {
	return s.Store.SaveCheckpoint(ctx, model.CheckpointRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           s.RunID,
		Name:            name,
		Cycle:           cycle,
		Final:           final,
		Fitness:         fitness,
		Pixels:          best.Clone(),
	})
}
