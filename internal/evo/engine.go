package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"grayevo/internal/model"
)

const (
	DefaultPopulationSize = 300
	DefaultEliteCount     = 10
	DefaultPrintRate      = 100
)

type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateCheckpointing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCheckpointing:
		return "checkpointing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StageOrder selects how mutation and re-seeding are sequenced before
// evaluation. Mutate-first discards each mutation before it is scored and
// is only kept to reproduce older runs.
type StageOrder string

const (
	OrderReseedFirst StageOrder = "reseed-first"
	OrderMutateFirst StageOrder = "mutate-first"
)

func ParseStageOrder(name string) (StageOrder, error) {
	switch StageOrder(name) {
	case "", OrderReseedFirst:
		return OrderReseedFirst, nil
	case OrderMutateFirst:
		return OrderMutateFirst, nil
	default:
		return "", fmt.Errorf("%w: unknown stage order %q", ErrConfiguration, name)
	}
}

type StopReason string

const (
	StopCompleted      StopReason = "completed"
	StopCancelled      StopReason = "cancelled"
	StopRendererClosed StopReason = "renderer_closed"
)

// CheckpointSink persists the current best candidate.
type CheckpointSink interface {
	SaveCheckpoint(ctx context.Context, cycle int, best model.Candidate, fitness uint64) error
	SaveFinal(ctx context.Context, cycles int, best model.Candidate, fitness uint64) error
}

// CheckpointSinks fans each save out to every sink in order and stops at
// the first failure.
type CheckpointSinks []CheckpointSink

func (s CheckpointSinks) SaveCheckpoint(ctx context.Context, cycle int, best model.Candidate, fitness uint64) error {
	for _, sink := range s {
		if err := sink.SaveCheckpoint(ctx, cycle, best, fitness); err != nil {
			return err
		}
	}
	return nil
}

func (s CheckpointSinks) SaveFinal(ctx context.Context, cycles int, best model.Candidate, fitness uint64) error {
	for _, sink := range s {
		if err := sink.SaveFinal(ctx, cycles, best, fitness); err != nil {
			return err
		}
	}
	return nil
}

// Renderer displays the best candidate once per cycle. Render must not
// retain frame after returning.
type Renderer interface {
	Render(frame model.Candidate) error
	Open() bool
	CancelRequested() bool
}

type Progress struct {
	Cycle       int
	BestFitness uint64
	Elapsed     time.Duration
}

type EngineConfig struct {
	Width          int
	Height         int
	PopulationSize int
	EliteCount     int
	Cycles         int
	PrintRate      int
	// Live ignores Cycles and runs until ctx is cancelled or the renderer
	// is closed or asks to stop.
	Live        bool
	Order       StageOrder
	InitialFill byte
	// Initial, when set, replaces the InitialFill placeholder.
	Initial     model.Candidate
	Seed        int64
	Evaluator   Evaluator
	Mutator     Mutator
	Crosser     Crosser
	Renderer    Renderer
	Checkpoints CheckpointSink
	OnProgress  func(Progress)
}

type RunResult struct {
	CyclesCompleted int
	BestByCycle     []model.FitnessSample
	InitialFitness  uint64
	FinalFitness    uint64
	Best            model.Candidate
	Elites          model.EliteBuffer
	StopReason      StopReason
}

// Engine drives the reseed, mutate, evaluate and extract cycle.
type Engine struct {
	cfg   EngineConfig
	rng   *rand.Rand
	state atomic.Int32
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Width <= 2 || cfg.Height <= 2 {
		return nil, fmt.Errorf("%w: width and height must be > 2, got %dx%d", ErrConfiguration, cfg.Width, cfg.Height)
	}
	if cfg.PopulationSize == 0 {
		cfg.PopulationSize = DefaultPopulationSize
	}
	if cfg.PopulationSize < 0 {
		return nil, fmt.Errorf("%w: population size must be > 0", ErrConfiguration)
	}
	if cfg.EliteCount == 0 {
		cfg.EliteCount = min(DefaultEliteCount, cfg.PopulationSize)
	}
	if cfg.PrintRate == 0 {
		cfg.PrintRate = DefaultPrintRate
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("%w: elite count must be in [1, population size]", ErrConfiguration)
	}
	if cfg.PrintRate < 0 {
		return nil, fmt.Errorf("%w: print rate must be > 0", ErrConfiguration)
	}
	if cfg.Cycles < 0 {
		return nil, fmt.Errorf("%w: cycles must be >= 0", ErrConfiguration)
	}
	order, err := ParseStageOrder(string(cfg.Order))
	if err != nil {
		return nil, err
	}
	cfg.Order = order

	length := cfg.Width * cfg.Height
	if cfg.Initial != nil && len(cfg.Initial) != length {
		return nil, fmt.Errorf("%w: initial candidate length %d does not match %dx%d", ErrConfiguration, len(cfg.Initial), cfg.Width, cfg.Height)
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator is required", ErrConfiguration)
	}
	if sized, ok := cfg.Evaluator.(targetSized); ok && sized.TargetLen() != length {
		return nil, fmt.Errorf("%w: target length %d does not match %dx%d", ErrConfiguration, sized.TargetLen(), cfg.Width, cfg.Height)
	}
	if cfg.Mutator == nil {
		mutator, err := NewRectBlendMutator(cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}
		cfg.Mutator = mutator
	}
	if cfg.Crosser == nil {
		cfg.Crosser = EliteCopyCrosser{}
	}

	e := &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	e.state.Store(int32(StateInitializing))
	return e, nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}

func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	e.setState(StateInitializing)

	placeholder := e.cfg.Initial
	if placeholder == nil {
		placeholder = model.NewCandidate(e.cfg.Width*e.cfg.Height, e.cfg.InitialFill)
	}
	population := model.NewPopulation(e.cfg.PopulationSize, placeholder)
	elites := model.NewEliteBuffer(e.cfg.EliteCount, placeholder)
	scores := make([]model.ScoreEntry, e.cfg.PopulationSize)

	initialFitness := e.cfg.Evaluator.Fitness(elites.Best())
	history := make([]model.FitnessSample, 0, 64)
	if !e.cfg.Live && e.cfg.Cycles > 0 {
		history = make([]model.FitnessSample, 0, e.cfg.Cycles/e.cfg.PrintRate+1)
	}

	e.setState(StateRunning)
	started := time.Now()
	stop := StopCompleted
	cycle := 0
	for ; e.cfg.Live || cycle < e.cfg.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			if !e.cfg.Live {
				e.setState(StateTerminated)
				return RunResult{}, err
			}
			stop = StopCancelled
			break
		}
		if r := e.cfg.Renderer; r != nil {
			if !r.Open() {
				stop = StopRendererClosed
				break
			}
			if r.CancelRequested() {
				stop = StopCancelled
				break
			}
		}

		e.step(population, elites, scores)
		best := scores[0].Fitness

		if r := e.cfg.Renderer; r != nil {
			if err := r.Render(elites.Best()); err != nil {
				e.setState(StateTerminated)
				return RunResult{}, fmt.Errorf("%w: cycle %d: %v", ErrRender, cycle, err)
			}
		}

		if cycle%e.cfg.PrintRate == 0 {
			history = append(history, model.FitnessSample{Cycle: cycle, Fitness: best})
			if e.cfg.OnProgress != nil {
				e.cfg.OnProgress(Progress{Cycle: cycle, BestFitness: best, Elapsed: time.Since(started)})
			}
			if e.cfg.Checkpoints != nil {
				e.setState(StateCheckpointing)
				if err := e.cfg.Checkpoints.SaveCheckpoint(ctx, cycle, elites.Best(), best); err != nil {
					e.setState(StateTerminated)
					return RunResult{}, fmt.Errorf("checkpoint cycle %d: %w", cycle, err)
				}
				e.setState(StateRunning)
			}
		}
	}

	finalFitness := e.cfg.Evaluator.Fitness(elites.Best())
	e.setState(StateTerminated)
	if e.cfg.Checkpoints != nil {
		// A live stop arrives as a cancelled ctx; the final result is
		// still written.
		if err := e.cfg.Checkpoints.SaveFinal(context.WithoutCancel(ctx), cycle, elites.Best(), finalFitness); err != nil {
			return RunResult{}, fmt.Errorf("save final result: %w", err)
		}
	}

	return RunResult{
		CyclesCompleted: cycle,
		BestByCycle:     history,
		InitialFitness:  initialFitness,
		FinalFitness:    finalFitness,
		Best:            elites.Best().Clone(),
		Elites:          elites,
		StopReason:      stop,
	}, nil
}

func (e *Engine) step(population model.Population, elites model.EliteBuffer, scores []model.ScoreEntry) {
	switch e.cfg.Order {
	case OrderMutateFirst:
		e.cfg.Mutator.Mutate(e.rng, population)
		e.cfg.Crosser.Reseed(e.rng, population, elites)
	default:
		e.cfg.Crosser.Reseed(e.rng, population, elites)
		e.cfg.Mutator.Mutate(e.rng, population)
	}
	Evaluate(e.cfg.Evaluator, population, scores)
	ExtractBest(scores, population, elites)
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}
