package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"

	"grayevo/internal/render"
	"grayevo/internal/storage"
	"grayevo/pkg/grayevo"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
	defaultDBPath = "grayevo.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "checkpoints":
		return runCheckpoints(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "render":
		return runRender(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*grayevo.Client, error) {
	return grayevo.New(grayevo.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	targetPath := fs.String("target", "", "raw 8-bit grayscale target image")
	width := fs.Int("width", grayevo.DefaultWidth, "image width in pixels")
	height := fs.Int("height", grayevo.DefaultHeight, "image height in pixels")
	population := fs.Int("pop", 0, "population size (default 300)")
	elites := fs.Int("elites", 0, "elite buffer size (default min(10, pop))")
	cycles := fs.Int("cycles", grayevo.DefaultCycles, "cycle count (ignored with --live)")
	printRate := fs.Int("print-rate", 0, "report and checkpoint every N cycles (default 100)")
	live := fs.Bool("live", false, "open a window and run until it is closed")
	scale := fs.Int("scale", 3, "live window scale factor")
	order := fs.String("order", "reseed-first", "stage order: reseed-first|mutate-first")
	evaluator := fs.String("evaluator", "l1", "fitness evaluator: l1|squared")
	mutator := fs.String("mutator", "rect_blend", "mutation operator")
	crosser := fs.String("crosser", "elite_copy", "re-seeding strategy")
	fill := fs.Int("fill", 0, "initial placeholder gray level 0..255")
	seedImage := fs.String("seed-image", "", "continue from a previous result.raw")
	seed := fs.Int64("seed", 1, "rng seed")
	outDir := fs.String("out", "", "checkpoint directory (default benchmarks/<run-id>/frames)")
	quiet := fs.Bool("quiet", false, "suppress progress lines")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = grayevo.RunRequest{
			RunID:         *runID,
			TargetPath:    *targetPath,
			Width:         *width,
			Height:        *height,
			Population:    *population,
			Elites:        *elites,
			Cycles:        cycles,
			PrintRate:     *printRate,
			Live:          *live,
			Order:         *order,
			Evaluator:     *evaluator,
			Mutator:       *mutator,
			Crosser:       *crosser,
			InitialFill:   *fill,
			SeedImagePath: *seedImage,
			Seed:          *seed,
			OutputDir:     *outDir,
		}
	} else if err := overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":     *runID,
		"target":     *targetPath,
		"width":      *width,
		"height":     *height,
		"pop":        *population,
		"elites":     *elites,
		"cycles":     *cycles,
		"print-rate": *printRate,
		"live":       *live,
		"order":      *order,
		"evaluator":  *evaluator,
		"mutator":    *mutator,
		"crosser":    *crosser,
		"fill":       *fill,
		"seed-image": *seedImage,
		"seed":       *seed,
		"out":        *outDir,
	}); err != nil {
		return err
	}
	if req.TargetPath == "" {
		return errors.New("run requires --target or a config with target_path")
	}
	if !*quiet {
		req.Progress = os.Stdout
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var summary grayevo.RunSummary
	if req.Live {
		summary, err = runLive(ctx, client, req, *scale)
	} else {
		summary, err = client.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	fmt.Printf("run completed run_id=%s cycles=%s stop_reason=%s initial_fitness=%s final_fitness=%s\n",
		summary.RunID,
		humanize.Comma(int64(summary.CyclesCompleted)),
		summary.StopReason,
		humanize.Comma(int64(summary.InitialFitness)),
		humanize.Comma(int64(summary.FinalFitness)),
	)
	fmt.Printf("artifacts=%s output=%s\n", summary.ArtifactsDir, summary.OutputDir)
	return nil
}

// runLive gives the main goroutine to the window and runs the evolution
// beside it. Whichever side finishes first shuts the other down.
func runLive(ctx context.Context, client *grayevo.Client, req grayevo.RunRequest, scale int) (grayevo.RunSummary, error) {
	window, err := render.NewWindow("grayevo", req.Width, req.Height, scale)
	if err != nil {
		return grayevo.RunSummary{}, err
	}
	req.Renderer = window

	type outcome struct {
		summary grayevo.RunSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := client.Run(ctx, req)
		window.Close()
		done <- outcome{summary: summary, err: err}
	}()

	windowErr := window.Run()
	result := <-done
	if result.err != nil {
		return grayevo.RunSummary{}, result.err
	}
	if windowErr != nil {
		return grayevo.RunSummary{}, windowErr
	}
	return result.summary, nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, grayevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		type runsItem struct {
			RunID           string `json:"run_id"`
			CreatedAtUTC    string `json:"created_at_utc"`
			TargetPath      string `json:"target_path"`
			Width           int    `json:"width"`
			Height          int    `json:"height"`
			PopulationSize  int    `json:"population_size"`
			Cycles          int    `json:"cycles"`
			CyclesCompleted int    `json:"cycles_completed"`
			Order           string `json:"order"`
			Seed            int64  `json:"seed"`
			StopReason      string `json:"stop_reason"`
			FinalFitness    uint64 `json:"final_fitness"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem{
				RunID:           item.RunID,
				CreatedAtUTC:    item.CreatedAtUTC,
				TargetPath:      item.TargetPath,
				Width:           item.Width,
				Height:          item.Height,
				PopulationSize:  item.Population,
				Cycles:          item.Cycles,
				CyclesCompleted: item.CyclesCompleted,
				Order:           item.Order,
				Seed:            item.Seed,
				StopReason:      item.StopReason,
				FinalFitness:    item.FinalFitness,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	table := uitable.New()
	table.MaxColWidth = 40
	table.Wrap = false
	table.AddRow("RUN ID", "CREATED", "SIZE", "POP", "CYCLES", "ORDER", "SEED", "STOP", "FINAL FITNESS")
	for _, item := range items {
		table.AddRow(
			item.RunID,
			item.CreatedAtUTC,
			fmt.Sprintf("%dx%d", item.Width, item.Height),
			item.Population,
			humanize.Comma(int64(item.CyclesCompleted)),
			item.Order,
			item.Seed,
			item.StopReason,
			humanize.Comma(int64(item.FinalFitness)),
		)
	}
	fmt.Println(table)
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max samples to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, grayevo.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for _, sample := range history {
		fmt.Printf("cycle=%d best_fitness=%d\n", sample.Cycle, sample.Fitness)
	}
	return nil
}

func runCheckpoints(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkpoints", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "list checkpoints for the most recent run")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("checkpoints requires --run-id or --latest")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Checkpoints(ctx, grayevo.CheckpointsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no checkpoints")
		return nil
	}
	for _, item := range items {
		fmt.Printf("name=%s cycle=%d final=%t fitness=%d\n", item.Name, item.Cycle, item.Final, item.Fitness)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	scale := fs.Int("scale", 1, "result image scale factor")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, grayevo.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
		Scale:  *scale,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s image=%s\n", exported.RunID, exported.Directory, exported.ImagePath)
	return nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	input := fs.String("in", "", "raw grayscale input")
	output := fs.String("out", "", "output image (.png or .bmp)")
	width := fs.Int("width", grayevo.DefaultWidth, "image width in pixels")
	height := fs.Int("height", grayevo.DefaultHeight, "image height in pixels")
	scale := fs.Int("scale", 1, "scale factor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return errors.New("render requires --in and --out")
	}

	client, err := newClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Render(ctx, grayevo.RenderRequest{
		InputPath:  *input,
		OutputPath: *output,
		Width:      *width,
		Height:     *height,
		Scale:      *scale,
	}); err != nil {
		return err
	}
	fmt.Printf("rendered in=%s out=%s\n", *input, *output)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: grayevoctl <run|runs|fitness|checkpoints|export|render> [flags]", msg)
}
