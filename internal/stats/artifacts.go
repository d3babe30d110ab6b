package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"grayevo/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.json"
	summaryFile        = "summary.json"
	fitnessSeriesFile  = "fitness_history.csv"
	fitnessPlotFile    = "fitness.png"
)

type RunConfig struct {
	RunID          string `json:"run_id"`
	TargetPath     string `json:"target_path"`
	SeedImagePath  string `json:"seed_image_path,omitempty"`
	OutputDir      string `json:"output_dir"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	PopulationSize int    `json:"population_size"`
	EliteCount     int    `json:"elite_count"`
	Cycles         int    `json:"cycles"`
	PrintRate      int    `json:"print_rate"`
	Live           bool   `json:"live"`
	Order          string `json:"order"`
	Evaluator      string `json:"evaluator"`
	Mutator        string `json:"mutator"`
	Crosser        string `json:"crosser"`
	InitialFill    int    `json:"initial_fill"`
	Seed           int64  `json:"seed"`
}

type RunArtifacts struct {
	Config          RunConfig             `json:"config"`
	BestByCycle     []model.FitnessSample `json:"best_by_cycle"`
	CyclesCompleted int                   `json:"cycles_completed"`
	StopReason      string                `json:"stop_reason"`
	FinalFitness    uint64                `json:"final_fitness"`
}

type RunIndexEntry struct {
	RunID           string `json:"run_id"`
	TargetPath      string `json:"target_path"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	PopulationSize  int    `json:"population_size"`
	EliteCount      int    `json:"elite_count"`
	Cycles          int    `json:"cycles"`
	CyclesCompleted int    `json:"cycles_completed"`
	Order           string `json:"order"`
	Seed            int64  `json:"seed"`
	StopReason      string `json:"stop_reason"`
	FinalFitness    uint64 `json:"final_fitness"`
	CreatedAtUTC    string `json:"created_at_utc"`
}

// WriteRunArtifacts writes the run directory: config, fitness history,
// summary, the CSV series and the fitness plot.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, fitnessHistoryFile), map[string]any{
		"best_by_cycle":    artifacts.BestByCycle,
		"cycles_completed": artifacts.CyclesCompleted,
		"stop_reason":      artifacts.StopReason,
		"final_fitness":    artifacts.FinalFitness,
	}); err != nil {
		return "", err
	}
	summary := Summarize(artifacts.Config.RunID, artifacts.BestByCycle)
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByCycle); err != nil {
		return "", err
	}
	if len(artifacts.BestByCycle) > 0 {
		title := fmt.Sprintf("run %s", artifacts.Config.RunID)
		if err := PlotFitness(artifacts.BestByCycle, title, filepath.Join(runDir, fitnessPlotFile)); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's artifacts to outDir/<runID>.
// The CSV series and plot are optional.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, fitnessHistoryFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{fitnessSeriesFile, fitnessPlotFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, summaryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, false, nil
		}
		return Summary{}, false, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, false, err
	}
	return summary, true, nil
}

func WriteFitnessSeries(runDir string, history []model.FitnessSample) error {
	file, err := os.Create(filepath.Join(runDir, fitnessSeriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"cycle", "best_fitness"}); err != nil {
		return err
	}
	for _, sample := range history {
		if err := writer.Write([]string{
			strconv.Itoa(sample.Cycle),
			strconv.FormatUint(sample.Fitness, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]model.FitnessSample, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, fitnessSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.FitnessSample{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]model.FitnessSample, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		cycle, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		fitness, err := strconv.ParseUint(record[1], 10, 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, model.FitnessSample{Cycle: cycle, Fitness: fitness})
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
