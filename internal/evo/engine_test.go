package evo

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"grayevo/internal/model"
)

type savedCheckpoint struct {
	cycle   int
	final   bool
	pixels  model.Candidate
	fitness uint64
	state   State
}

type recordingSink struct {
	engine *Engine
	saved  []savedCheckpoint
	err    error
}

func (s *recordingSink) SaveCheckpoint(_ context.Context, cycle int, best model.Candidate, fitness uint64) error {
	s.saved = append(s.saved, savedCheckpoint{cycle: cycle, pixels: best.Clone(), fitness: fitness, state: s.stateOrZero()})
	return s.err
}

func (s *recordingSink) SaveFinal(ctx context.Context, cycles int, best model.Candidate, fitness uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.saved = append(s.saved, savedCheckpoint{cycle: cycles, final: true, pixels: best.Clone(), fitness: fitness, state: s.stateOrZero()})
	return nil
}

func (s *recordingSink) stateOrZero() State {
	if s.engine == nil {
		return StateInitializing
	}
	return s.engine.State()
}

func (s *recordingSink) checkpoints() []savedCheckpoint {
	out := make([]savedCheckpoint, 0, len(s.saved))
	for _, item := range s.saved {
		if !item.final {
			out = append(out, item)
		}
	}
	return out
}

func (s *recordingSink) final() (savedCheckpoint, bool) {
	for _, item := range s.saved {
		if item.final {
			return item, true
		}
	}
	return savedCheckpoint{}, false
}

type closingRenderer struct {
	closeAfter int
	frames     int
	cancel     bool
}

func (r *closingRenderer) Render(frame model.Candidate) error {
	if len(frame) == 0 {
		return errors.New("empty frame")
	}
	r.frames++
	return nil
}

func (r *closingRenderer) Open() bool            { return r.closeAfter <= 0 || r.frames < r.closeAfter }
func (r *closingRenderer) CancelRequested() bool { return r.cancel }

func uniformTarget(t *testing.T, width, height int, value byte) model.TargetImage {
	t.Helper()
	return mustTarget(t, width, height, bytes.Repeat([]byte{value}, width*height))
}

func TestEngineZeroCyclesKeepsPlaceholder(t *testing.T) {
	target := uniformTarget(t, 4, 4, 90)
	sink := &recordingSink{}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 6,
		EliteCount:     3,
		Cycles:         0,
		InitialFill:    255,
		Evaluator:      NewL1Evaluator(target),
		Checkpoints:    sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	sink.engine = engine

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	placeholder := model.NewCandidate(16, 255)
	if result.CyclesCompleted != 0 || len(result.BestByCycle) != 0 {
		t.Fatalf("unexpected progress for zero cycles: %+v", result)
	}
	for i, elite := range result.Elites {
		if !bytes.Equal(elite, placeholder) {
			t.Fatalf("elite %d changed: %v", i, elite)
		}
	}
	final, ok := sink.final()
	if !ok {
		t.Fatal("expected final result to be saved")
	}
	if !bytes.Equal(final.pixels, placeholder) {
		t.Fatalf("final output differs from placeholder: %v", final.pixels)
	}
	if result.InitialFitness != result.FinalFitness || result.FinalFitness != 16*(255-90) {
		t.Fatalf("unexpected fitness initial=%d final=%d", result.InitialFitness, result.FinalFitness)
	}
	if engine.State() != StateTerminated {
		t.Fatalf("expected terminated state, got %s", engine.State())
	}
}

func TestEngineReseedFirstConverges(t *testing.T) {
	target := uniformTarget(t, 8, 8, 120)
	engine, err := NewEngine(EngineConfig{
		Width:          8,
		Height:         8,
		PopulationSize: 20,
		EliteCount:     4,
		Cycles:         300,
		PrintRate:      50,
		Seed:           7,
		Evaluator:      NewL1Evaluator(target),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Border pixels are never mutated, so only the interior can improve.
	if result.FinalFitness*4 >= result.InitialFitness*3 {
		t.Fatalf("expected a quarter of the error removed: initial=%d final=%d", result.InitialFitness, result.FinalFitness)
	}
	if len(result.BestByCycle) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(result.BestByCycle))
	}
	if result.StopReason != StopCompleted || result.CyclesCompleted != 300 {
		t.Fatalf("unexpected stop: %s after %d cycles", result.StopReason, result.CyclesCompleted)
	}
}

func TestEngineMutateFirstDiscardsMutations(t *testing.T) {
	target := uniformTarget(t, 8, 8, 120)
	engine, err := NewEngine(EngineConfig{
		Width:          8,
		Height:         8,
		PopulationSize: 20,
		EliteCount:     4,
		Cycles:         100,
		Order:          OrderMutateFirst,
		Seed:           7,
		Evaluator:      NewL1Evaluator(target),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.FinalFitness != result.InitialFitness {
		t.Fatalf("mutate-first should never leave the placeholder: initial=%d final=%d", result.InitialFitness, result.FinalFitness)
	}
	if !bytes.Equal(result.Best, model.NewCandidate(64, 0)) {
		t.Fatal("best moved off the placeholder")
	}
}

func TestEngineCheckpointsOnPrintRate(t *testing.T) {
	target := uniformTarget(t, 5, 5, 60)
	sink := &recordingSink{}
	var progress []int
	engine, err := NewEngine(EngineConfig{
		Width:          5,
		Height:         5,
		PopulationSize: 8,
		EliteCount:     2,
		Cycles:         10,
		PrintRate:      3,
		Seed:           1,
		Evaluator:      NewL1Evaluator(target),
		Checkpoints:    sink,
		OnProgress: func(p Progress) {
			progress = append(progress, p.Cycle)
		},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	sink.engine = engine

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	checkpoints := sink.checkpoints()
	wantCycles := []int{0, 3, 6, 9}
	if len(checkpoints) != len(wantCycles) || len(progress) != len(wantCycles) {
		t.Fatalf("expected %d checkpoints, got %d (progress %v)", len(wantCycles), len(checkpoints), progress)
	}
	for i, cp := range checkpoints {
		if cp.cycle != wantCycles[i] || progress[i] != wantCycles[i] {
			t.Fatalf("checkpoint %d cycle=%d progress=%d want=%d", i, cp.cycle, progress[i], wantCycles[i])
		}
		if cp.state != StateCheckpointing {
			t.Fatalf("expected checkpointing state, got %s", cp.state)
		}
		if result.BestByCycle[i].Fitness != cp.fitness {
			t.Fatalf("history and checkpoint disagree at %d", i)
		}
	}
	final, ok := sink.final()
	if !ok || final.cycle != 10 || final.fitness != result.FinalFitness {
		t.Fatalf("unexpected final save: %+v", final)
	}
	if !bytes.Equal(final.pixels, result.Best) {
		t.Fatal("final output must be elite[0]")
	}
}

func TestEngineCheckpointFailureAborts(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 4,
		EliteCount:     2,
		Cycles:         5,
		PrintRate:      1,
		Evaluator:      NewL1Evaluator(uniformTarget(t, 4, 4, 1)),
		Checkpoints:    sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected checkpoint error")
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected abort after first checkpoint, got %d saves", len(sink.saved))
	}
}

func TestEngineFixedRunCancellationReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 4,
		EliteCount:     2,
		Cycles:         100,
		PrintRate:      1,
		Evaluator:      NewL1Evaluator(uniformTarget(t, 4, 4, 1)),
		Checkpoints:    sink,
		OnProgress: func(p Progress) {
			if p.Cycle == 2 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = engine.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if _, ok := sink.final(); ok {
		t.Fatal("aborted fixed run must not write a final result")
	}
}

func TestEngineLiveStopsWhenRendererCloses(t *testing.T) {
	renderer := &closingRenderer{closeAfter: 5}
	sink := &recordingSink{}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 4,
		EliteCount:     2,
		Live:           true,
		PrintRate:      100,
		Evaluator:      NewL1Evaluator(uniformTarget(t, 4, 4, 1)),
		Renderer:       renderer,
		Checkpoints:    sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopRendererClosed || result.CyclesCompleted != 5 || renderer.frames != 5 {
		t.Fatalf("unexpected live stop: reason=%s cycles=%d frames=%d", result.StopReason, result.CyclesCompleted, renderer.frames)
	}
	if final, ok := sink.final(); !ok || final.cycle != 5 {
		t.Fatalf("expected final save after live stop: %+v", final)
	}
}

func TestEngineLiveCancellationWritesFinal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 4,
		EliteCount:     2,
		Live:           true,
		PrintRate:      1,
		Evaluator:      NewL1Evaluator(uniformTarget(t, 4, 4, 1)),
		Checkpoints:    sink,
		OnProgress: func(p Progress) {
			if p.Cycle == 3 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopCancelled || result.CyclesCompleted != 4 {
		t.Fatalf("unexpected stop: reason=%s cycles=%d", result.StopReason, result.CyclesCompleted)
	}
	if _, ok := sink.final(); !ok {
		t.Fatal("expected final save after cancellation in live mode")
	}
}

func TestEngineRendererCancelRequest(t *testing.T) {
	renderer := &closingRenderer{cancel: true}
	engine, err := NewEngine(EngineConfig{
		Width:          4,
		Height:         4,
		PopulationSize: 4,
		EliteCount:     2,
		Live:           true,
		Evaluator:      NewL1Evaluator(uniformTarget(t, 4, 4, 1)),
		Renderer:       renderer,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopCancelled || result.CyclesCompleted != 0 {
		t.Fatalf("unexpected stop: reason=%s cycles=%d", result.StopReason, result.CyclesCompleted)
	}
}

func TestEngineUsesInitialCandidate(t *testing.T) {
	target := uniformTarget(t, 3, 3, 10)
	initial := model.Candidate{10, 10, 10, 10, 10, 10, 10, 10, 11}
	engine, err := NewEngine(EngineConfig{
		Width:          3,
		Height:         3,
		PopulationSize: 3,
		EliteCount:     1,
		Initial:        initial,
		Evaluator:      NewL1Evaluator(target),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.InitialFitness != 1 || !bytes.Equal(result.Best, initial) {
		t.Fatalf("initial candidate not used: fitness=%d best=%v", result.InitialFitness, result.Best)
	}
}

func TestEngineIsDeterministicForSeed(t *testing.T) {
	target := mustTarget(t, 6, 4, []byte{
		0, 40, 80, 120, 160, 200,
		10, 50, 90, 130, 170, 210,
		20, 60, 100, 140, 180, 220,
		30, 70, 110, 150, 190, 230,
	})
	runOnce := func() RunResult {
		engine, err := NewEngine(EngineConfig{
			Width:          6,
			Height:         4,
			PopulationSize: 10,
			EliteCount:     3,
			Cycles:         40,
			PrintRate:      10,
			Seed:           99,
			Evaluator:      NewL1Evaluator(target),
		})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		result, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	a, b := runOnce(), runOnce()
	if !bytes.Equal(a.Best, b.Best) || a.FinalFitness != b.FinalFitness {
		t.Fatal("expected identical results for identical seeds")
	}
}

func TestNewEngineValidation(t *testing.T) {
	eval := NewL1Evaluator(uniformTarget(t, 4, 4, 0))
	cases := map[string]EngineConfig{
		"small width":     {Width: 2, Height: 4, Evaluator: eval},
		"elite > pop":     {Width: 4, Height: 4, PopulationSize: 3, EliteCount: 4, Evaluator: eval},
		"negative pop":    {Width: 4, Height: 4, PopulationSize: -1, Evaluator: eval},
		"negative cycles": {Width: 4, Height: 4, Cycles: -1, Evaluator: eval},
		"negative rate":   {Width: 4, Height: 4, PrintRate: -1, Evaluator: eval},
		"unknown order":   {Width: 4, Height: 4, Order: "sideways", Evaluator: eval},
		"initial length":  {Width: 4, Height: 4, Initial: model.NewCandidate(3, 0), Evaluator: eval},
		"missing eval":    {Width: 4, Height: 4},
		"target length":   {Width: 5, Height: 4, Evaluator: eval},
	}
	for name, cfg := range cases {
		if _, err := NewEngine(cfg); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}

	engine, err := NewEngine(EngineConfig{Width: 4, Height: 4, PopulationSize: 5, Evaluator: eval})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cfg := engine.Config()
	if cfg.EliteCount != 5 || cfg.PrintRate != DefaultPrintRate || cfg.Order != OrderReseedFirst {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Mutator.Name() != DefaultMutator || cfg.Crosser.Name() != DefaultCrosser {
		t.Fatalf("unexpected default strategies: %s %s", cfg.Mutator.Name(), cfg.Crosser.Name())
	}
}
