package storage

import (
	"context"
	"sort"
	"sync"

	"grayevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	history     map[string][]model.FitnessSample
	checkpoints map[string]map[string]model.CheckpointRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]model.FitnessSample)
	s.checkpoints = make(map[string]map[string]model.CheckpointRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []model.FitnessSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]model.FitnessSample(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]model.FitnessSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.FitnessSample(nil), history...), true, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, checkpoint model.CheckpointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byName, ok := s.checkpoints[checkpoint.RunID]
	if !ok {
		byName = make(map[string]model.CheckpointRecord)
		s.checkpoints[checkpoint.RunID] = byName
	}
	checkpoint.Pixels = checkpoint.Pixels.Clone()
	byName[checkpoint.Name] = checkpoint
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, runID, name string) (model.CheckpointRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoint, ok := s.checkpoints[runID][name]
	if !ok {
		return model.CheckpointRecord{}, false, nil
	}
	checkpoint.Pixels = checkpoint.Pixels.Clone()
	return checkpoint, true, nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context, runID string) ([]model.CheckpointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CheckpointRecord, 0, len(s.checkpoints[runID]))
	for _, checkpoint := range s.checkpoints[runID] {
		checkpoint.Pixels = checkpoint.Pixels.Clone()
		out = append(out, checkpoint)
	}
	sortCheckpoints(out)
	return out, nil
}

func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}

// sortCheckpoints orders periodic checkpoints by cycle with the final
// result last.
func sortCheckpoints(checkpoints []model.CheckpointRecord) {
	sort.SliceStable(checkpoints, func(i, j int) bool {
		if checkpoints[i].Final != checkpoints[j].Final {
			return !checkpoints[i].Final
		}
		return checkpoints[i].Cycle < checkpoints[j].Cycle
	})
}
