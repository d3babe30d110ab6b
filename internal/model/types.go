package model

import "fmt"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Candidate is one grayscale image hypothesis stored row-major, one byte per pixel.
type Candidate []byte

func NewCandidate(length int, fill byte) Candidate {
	c := make(Candidate, length)
	if fill != 0 {
		for i := range c {
			c[i] = fill
		}
	}
	return c
}

func (c Candidate) Clone() Candidate {
	return append(Candidate(nil), c...)
}

// Assign overwrites every byte of c with src. Lengths must match.
func (c Candidate) Assign(src Candidate) {
	if len(c) != len(src) {
		panic(fmt.Sprintf("candidate length mismatch: got=%d want=%d", len(src), len(c)))
	}
	copy(c, src)
}

// TargetImage is the fixed image the population converges toward. The
// samples are private so the target cannot change after loading.
type TargetImage struct {
	width  int
	height int
	pixels []byte
}

func NewTargetImage(width, height int, pixels []byte) (TargetImage, error) {
	if width <= 0 || height <= 0 {
		return TargetImage{}, fmt.Errorf("invalid target dimensions: %dx%d", width, height)
	}
	if len(pixels) != width*height {
		return TargetImage{}, fmt.Errorf("target length mismatch: got=%d want=%d", len(pixels), width*height)
	}
	return TargetImage{
		width:  width,
		height: height,
		pixels: append([]byte(nil), pixels...),
	}, nil
}

func (t TargetImage) Width() int  { return t.width }
func (t TargetImage) Height() int { return t.height }
func (t TargetImage) Len() int    { return len(t.pixels) }

// Pixels returns a copy of the target samples. Every call allocates a
// full image, so evaluators take it once at construction and keep it.
func (t TargetImage) Pixels() []byte {
	return append([]byte(nil), t.pixels...)
}

// Population is the ordered candidate set; index is identity within a cycle.
type Population []Candidate

// NewPopulation allocates size independent copies of seed.
func NewPopulation(size int, seed Candidate) Population {
	population := make(Population, size)
	for i := range population {
		population[i] = seed.Clone()
	}
	return population
}

// ScoreEntry pairs a population index with that candidate's fitness.
// Lower fitness is better.
type ScoreEntry struct {
	Index   int    `json:"index"`
	Fitness uint64 `json:"fitness"`
}

// EliteBuffer holds the lowest-fitness candidates of the last scored
// population in ascending fitness order.
type EliteBuffer []Candidate

// NewEliteBuffer fills all size slots with copies of placeholder so the
// buffer is populated before the first cycle.
func NewEliteBuffer(size int, placeholder Candidate) EliteBuffer {
	elites := make(EliteBuffer, size)
	for i := range elites {
		elites[i] = placeholder.Clone()
	}
	return elites
}

func (e EliteBuffer) Best() Candidate {
	return e[0]
}

// FitnessSample is the best fitness observed at a reported cycle.
type FitnessSample struct {
	Cycle   int    `json:"cycle"`
	Fitness uint64 `json:"fitness"`
}

type RunRecord struct {
	VersionedRecord
	ID              string `json:"id"`
	TargetPath      string `json:"target_path"`
	OutputDir       string `json:"output_dir"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	PopulationSize  int    `json:"population_size"`
	EliteCount      int    `json:"elite_count"`
	Cycles          int    `json:"cycles"`
	PrintRate       int    `json:"print_rate"`
	Live            bool   `json:"live"`
	Order           string `json:"order"`
	Evaluator       string `json:"evaluator"`
	Mutator         string `json:"mutator"`
	Crosser         string `json:"crosser"`
	Seed            int64  `json:"seed"`
	Status          string `json:"status"`
	StopReason      string `json:"stop_reason,omitempty"`
	CyclesCompleted int    `json:"cycles_completed"`
	InitialFitness  uint64 `json:"initial_fitness"`
	FinalFitness    uint64 `json:"final_fitness"`
	CreatedAtUTC    string `json:"created_at_utc"`
}

// CheckpointRecord is a persisted best candidate. Final marks the
// end-of-run result rather than a periodic checkpoint.
type CheckpointRecord struct {
	VersionedRecord
	RunID   string    `json:"run_id"`
	Name    string    `json:"name"`
	Cycle   int       `json:"cycle"`
	Final   bool      `json:"final"`
	Fitness uint64    `json:"fitness"`
	Pixels  Candidate `json:"pixels"`
}
