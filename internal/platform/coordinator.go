// Package platform coordinates evolution runs: it owns the store, attaches
// persistence to the engine and tracks active runs so they can be stopped
// by id.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"grayevo/internal/evo"
	"grayevo/internal/model"
	"grayevo/internal/raster"
	"grayevo/internal/storage"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

var (
	ErrNotInitialized = errors.New("coordinator is not initialized")
	ErrRunActive      = errors.New("run already active")
	ErrRunNotActive   = errors.New("run not active")
)

type Config struct {
	Store storage.Store
	Now   func() time.Time
}

type EvolutionConfig struct {
	RunID      string
	TargetPath string
	// OutputDir receives checkpoint_<cycle>.raw and result.raw. Empty
	// disables file checkpoints.
	OutputDir string
	Engine    evo.EngineConfig
}

type EvolutionResult struct {
	evo.RunResult
	Record model.RunRecord
}

type Coordinator struct {
	store storage.Store
	now   func() time.Time

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewCoordinator(cfg Config) *Coordinator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store: cfg.Store,
		now:   now,
		runs:  make(map[string]context.CancelFunc),
	}
}

func (c *Coordinator) Init(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("store is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Coordinator) Store() storage.Store {
	return c.store
}

// RunEvolution runs one engine to completion. Every reported cycle is
// checkpointed to OutputDir and to the store, and the run record is saved
// before the engine starts and again when it stops.
func (c *Coordinator) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}

	sinks := evo.CheckpointSinks{storage.CheckpointSink{Store: c.store, RunID: cfg.RunID}}
	if cfg.OutputDir != "" {
		checkpointer, err := raster.NewCheckpointer(cfg.OutputDir)
		if err != nil {
			return EvolutionResult{}, err
		}
		sinks = append(evo.CheckpointSinks{checkpointer}, sinks...)
	}
	engineCfg := cfg.Engine
	if engineCfg.Checkpoints != nil {
		sinks = append(sinks, engineCfg.Checkpoints)
	}
	engineCfg.Checkpoints = sinks

	engine, err := evo.NewEngine(engineCfg)
	if err != nil {
		return EvolutionResult{}, err
	}
	engineCfg = engine.Config()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.registerRun(cfg.RunID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer c.unregisterRun(cfg.RunID)

	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              cfg.RunID,
		TargetPath:      cfg.TargetPath,
		OutputDir:       cfg.OutputDir,
		Width:           engineCfg.Width,
		Height:          engineCfg.Height,
		PopulationSize:  engineCfg.PopulationSize,
		EliteCount:      engineCfg.EliteCount,
		Cycles:          engineCfg.Cycles,
		PrintRate:       engineCfg.PrintRate,
		Live:            engineCfg.Live,
		Order:           string(engineCfg.Order),
		Evaluator:       engineCfg.Evaluator.Name(),
		Mutator:         engineCfg.Mutator.Name(),
		Crosser:         engineCfg.Crosser.Name(),
		Seed:            engineCfg.Seed,
		Status:          StatusRunning,
		CreatedAtUTC:    c.now().UTC().Format(time.RFC3339Nano),
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return EvolutionResult{}, err
	}

	result, runErr := engine.Run(runCtx)
	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		record.Status = StatusFailed
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			record.Status = StatusStopped
			record.StopReason = string(evo.StopCancelled)
		}
		if err := c.store.SaveRun(persistCtx, record); err != nil {
			return EvolutionResult{}, errors.Join(runErr, err)
		}
		return EvolutionResult{}, runErr
	}

	record.Status = StatusCompleted
	if result.StopReason != evo.StopCompleted {
		record.Status = StatusStopped
	}
	record.StopReason = string(result.StopReason)
	record.CyclesCompleted = result.CyclesCompleted
	record.InitialFitness = result.InitialFitness
	record.FinalFitness = result.FinalFitness
	if err := c.store.SaveRun(persistCtx, record); err != nil {
		return EvolutionResult{}, err
	}
	if err := c.store.SaveFitnessHistory(persistCtx, cfg.RunID, result.BestByCycle); err != nil {
		return EvolutionResult{}, err
	}
	return EvolutionResult{RunResult: result, Record: record}, nil
}

// StopRun cancels an active run. Fixed-length runs return the
// cancellation; live runs stop gracefully and save their result.
func (c *Coordinator) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	c.mu.RLock()
	cancel, ok := c.runs[runID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	return nil
}

func (c *Coordinator) ActiveRuns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.runs))
	for id := range c.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) registerRun(runID string, cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotInitialized
	}
	if _, exists := c.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	c.runs[runID] = cancel
	return nil
}

func (c *Coordinator) unregisterRun(runID string) {
	c.mu.Lock()
	delete(c.runs, runID)
	c.mu.Unlock()
}
