package grayevo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"grayevo/internal/evo"
	"grayevo/internal/model"
	"grayevo/internal/platform"
	"grayevo/internal/raster"
	"grayevo/internal/stats"
	"grayevo/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "grayevo.db"

	DefaultWidth  = 256
	DefaultHeight = 144
	DefaultCycles = 1000
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
}

type Client struct {
	store       storage.Store
	coordinator *platform.Coordinator

	benchmarksDir string
	exportsDir    string
}

type RunRequest struct {
	TargetPath string
	Width      int
	Height     int
	Population int
	Elites     int
	// Cycles is the fixed cycle count. Nil means DefaultCycles; zero is a
	// valid run that only writes the placeholder.
	Cycles    *int
	PrintRate int
	// Live runs until ctx is cancelled or Renderer closes or asks to stop.
	Live      bool
	Order     string
	Evaluator string
	Mutator   string
	Crosser   string
	// InitialFill is the placeholder gray level, 0..255.
	InitialFill int
	// SeedImagePath continues from a previous result.raw instead of the
	// InitialFill placeholder.
	SeedImagePath string
	Seed          int64
	RunID         string
	// OutputDir defaults to <benchmarks>/<run-id>/frames.
	OutputDir string
	Renderer  evo.Renderer
	// Progress receives one line per reported cycle. Nil is silent.
	Progress io.Writer
}

type RunSummary struct {
	RunID           string
	ArtifactsDir    string
	OutputDir       string
	CyclesCompleted int
	StopReason      string
	InitialFitness  uint64
	FinalFitness    uint64
	BestByCycle     []model.FitnessSample
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	TargetPath      string
	Width           int
	Height          int
	Population      int
	Cycles          int
	CyclesCompleted int
	Order           string
	Seed            int64
	StopReason      string
	FinalFitness    uint64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
	// Scale enlarges the exported result image by nearest neighbour.
	Scale int
}

type ExportSummary struct {
	RunID     string
	Directory string
	ImagePath string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type CheckpointsRequest struct {
	RunID  string
	Latest bool
}

type CheckpointItem struct {
	Name    string
	Cycle   int
	Final   bool
	Fitness uint64
}

type RenderRequest struct {
	InputPath  string
	OutputPath string
	Width      int
	Height     int
	Scale      int
}

// CycleCount returns a pointer for RunRequest.Cycles.
func CycleCount(n int) *int {
	return &n
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		coordinator:   platform.NewCoordinator(platform.Config{Store: store}),
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.coordinator.Init(ctx)
}

// Stop cancels an active run started by this client.
func (c *Client) Stop(runID string) error {
	return c.coordinator.StopRun(runID)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.TargetPath == "" {
		return RunSummary{}, errors.New("target path is required")
	}
	if req.Width == 0 {
		req.Width = DefaultWidth
	}
	if req.Height == 0 {
		req.Height = DefaultHeight
	}
	cycles := DefaultCycles
	switch {
	case req.Cycles != nil:
		cycles = *req.Cycles
	case req.Live:
		cycles = 0
	}
	if req.Population == 0 {
		req.Population = evo.DefaultPopulationSize
	}
	if req.Elites == 0 {
		req.Elites = min(evo.DefaultEliteCount, req.Population)
	}
	if req.PrintRate == 0 {
		req.PrintRate = evo.DefaultPrintRate
	}
	if req.Evaluator == "" {
		req.Evaluator = evo.DefaultEvaluator
	}
	if req.Mutator == "" {
		req.Mutator = evo.DefaultMutator
	}
	if req.Crosser == "" {
		req.Crosser = evo.DefaultCrosser
	}
	if req.InitialFill < 0 || req.InitialFill > 255 {
		return RunSummary{}, fmt.Errorf("%w: initial fill must be in [0, 255], got %d", evo.ErrConfiguration, req.InitialFill)
	}
	order, err := evo.ParseStageOrder(req.Order)
	if err != nil {
		return RunSummary{}, err
	}

	target, err := raster.LoadTarget(req.TargetPath, req.Width, req.Height)
	if err != nil {
		return RunSummary{}, err
	}
	evaluator, err := evo.NewEvaluator(req.Evaluator, target)
	if err != nil {
		return RunSummary{}, err
	}
	mutator, err := evo.NewMutator(req.Mutator, req.Width, req.Height)
	if err != nil {
		return RunSummary{}, err
	}
	crosser, err := evo.NewCrosser(req.Crosser)
	if err != nil {
		return RunSummary{}, err
	}
	var initial model.Candidate
	if req.SeedImagePath != "" {
		initial, err = raster.ReadRaw(req.SeedImagePath, target.Len())
		if err != nil {
			return RunSummary{}, fmt.Errorf("seed image: %w", err)
		}
	}

	if err := c.coordinator.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = fmt.Sprintf("%s-%s", now.Format("20060102T150405"), uuid.NewString()[:8])
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(c.benchmarksDir, runID, "frames")
	}

	var progress *stats.ProgressPrinter
	var onProgress func(evo.Progress)
	if req.Progress != nil {
		progress = stats.NewProgressPrinter(req.Progress)
		onProgress = func(p evo.Progress) {
			progress.Print(p.Cycle, p.BestFitness, p.Elapsed)
		}
	}

	result, err := c.coordinator.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:      runID,
		TargetPath: req.TargetPath,
		OutputDir:  outputDir,
		Engine: evo.EngineConfig{
			Width:          req.Width,
			Height:         req.Height,
			PopulationSize: req.Population,
			EliteCount:     req.Elites,
			Cycles:         cycles,
			PrintRate:      req.PrintRate,
			Live:           req.Live,
			Order:          order,
			InitialFill:    byte(req.InitialFill),
			Initial:        initial,
			Seed:           req.Seed,
			Evaluator:      evaluator,
			Mutator:        mutator,
			Crosser:        crosser,
			Renderer:       req.Renderer,
			OnProgress:     onProgress,
		},
	})
	if progress != nil {
		progress.Done()
	}
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			TargetPath:     req.TargetPath,
			SeedImagePath:  req.SeedImagePath,
			OutputDir:      outputDir,
			Width:          req.Width,
			Height:         req.Height,
			PopulationSize: req.Population,
			EliteCount:     req.Elites,
			Cycles:         cycles,
			PrintRate:      req.PrintRate,
			Live:           req.Live,
			Order:          string(order),
			Evaluator:      req.Evaluator,
			Mutator:        req.Mutator,
			Crosser:        req.Crosser,
			InitialFill:    req.InitialFill,
			Seed:           req.Seed,
		},
		BestByCycle:     result.BestByCycle,
		CyclesCompleted: result.CyclesCompleted,
		StopReason:      string(result.StopReason),
		FinalFitness:    result.FinalFitness,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:           runID,
		TargetPath:      req.TargetPath,
		Width:           req.Width,
		Height:          req.Height,
		PopulationSize:  req.Population,
		EliteCount:      req.Elites,
		Cycles:          cycles,
		CyclesCompleted: result.CyclesCompleted,
		Order:           string(order),
		Seed:            req.Seed,
		StopReason:      string(result.StopReason),
		FinalFitness:    result.FinalFitness,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:           runID,
		ArtifactsDir:    filepath.Clean(runDir),
		OutputDir:       filepath.Clean(outputDir),
		CyclesCompleted: result.CyclesCompleted,
		StopReason:      string(result.StopReason),
		InitialFitness:  result.InitialFitness,
		FinalFitness:    result.FinalFitness,
		BestByCycle:     append([]model.FitnessSample(nil), result.BestByCycle...),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:           e.RunID,
			CreatedAtUTC:    e.CreatedAtUTC,
			TargetPath:      e.TargetPath,
			Width:           e.Width,
			Height:          e.Height,
			Population:      e.PopulationSize,
			Cycles:          e.Cycles,
			CyclesCompleted: e.CyclesCompleted,
			Order:           e.Order,
			Seed:            e.Seed,
			StopReason:      e.StopReason,
			FinalFitness:    e.FinalFitness,
		})
	}
	return out, nil
}

// Export copies a run's artifacts and writes its final candidate as
// result.png next to them.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if req.Scale <= 0 {
		req.Scale = 1
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}

	cfg, ok, err := stats.ReadRunConfig(c.benchmarksDir, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run config not found for run id: %s", runID)
	}
	final, err := c.finalCandidate(ctx, runID, cfg)
	if err != nil {
		return ExportSummary{}, err
	}
	imagePath := filepath.Join(exportedDir, "result.png")
	if err := raster.ExportPNG(imagePath, final, cfg.Width, cfg.Height, req.Scale); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{
		RunID:     runID,
		Directory: filepath.Clean(exportedDir),
		ImagePath: filepath.Clean(imagePath),
	}, nil
}

// FitnessHistory reads the best-fitness series from the store, falling
// back to the run directory's CSV when the store has no record of the run.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]model.FitnessSample, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.RunID == "" && !req.Latest {
		return nil, errors.New("fitness history requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	if err := c.coordinator.Init(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]model.FitnessSample(nil), history...), nil
}

func (c *Client) Checkpoints(ctx context.Context, req CheckpointsRequest) ([]CheckpointItem, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return nil, errors.New("checkpoints requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	if err := c.coordinator.Init(ctx); err != nil {
		return nil, err
	}
	checkpoints, err := c.store.ListCheckpoints(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]CheckpointItem, 0, len(checkpoints))
	for _, cp := range checkpoints {
		out = append(out, CheckpointItem{Name: cp.Name, Cycle: cp.Cycle, Final: cp.Final, Fitness: cp.Fitness})
	}
	return out, nil
}

// Render converts a raw grayscale buffer to PNG or BMP, chosen by the
// output file extension.
func (c *Client) Render(_ context.Context, req RenderRequest) error {
	if req.InputPath == "" || req.OutputPath == "" {
		return errors.New("render requires input and output paths")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("%w: width and height must be > 0", evo.ErrConfiguration)
	}
	if req.Scale <= 0 {
		req.Scale = 1
	}
	pixels, err := raster.ReadRaw(req.InputPath, req.Width*req.Height)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(req.OutputPath)) {
	case ".png":
		return raster.ExportPNG(req.OutputPath, pixels, req.Width, req.Height, req.Scale)
	case ".bmp":
		return raster.ExportBMP(req.OutputPath, pixels, req.Width, req.Height, req.Scale)
	default:
		return fmt.Errorf("unsupported render format: %s", filepath.Ext(req.OutputPath))
	}
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) finalCandidate(ctx context.Context, runID string, cfg stats.RunConfig) (model.Candidate, error) {
	if err := c.coordinator.Init(ctx); err != nil {
		return nil, err
	}
	checkpoint, ok, err := c.store.GetCheckpoint(ctx, runID, raster.FinalName)
	if err != nil {
		return nil, err
	}
	if ok {
		return checkpoint.Pixels, nil
	}
	return raster.ReadRaw(filepath.Join(cfg.OutputDir, raster.FinalName), cfg.Width*cfg.Height)
}
