// Package raster reads and writes headerless 8-bit grayscale buffers and
// converts them to standard images.
package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"grayevo/internal/model"
)

var ErrIO = errors.New("raster i/o failure")

const (
	FinalName        = "result.raw"
	checkpointPrefix = "checkpoint_"
	rawExt           = ".raw"
)

// LoadTarget reads a raw width*height grayscale file.
func LoadTarget(path string, width, height int) (model.TargetImage, error) {
	pixels, err := ReadRaw(path, width*height)
	if err != nil {
		return model.TargetImage{}, err
	}
	target, err := model.NewTargetImage(width, height, pixels)
	if err != nil {
		return model.TargetImage{}, fmt.Errorf("%w: target %s: %v", ErrIO, path, err)
	}
	return target, nil
}

// ReadRaw reads a raw buffer and checks it holds exactly length samples.
func ReadRaw(path string, length int) (model.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	if len(data) != length {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", ErrIO, path, len(data), length)
	}
	return model.Candidate(data), nil
}

// WriteRaw writes through a temp file in the same directory and renames it
// into place, so readers never observe a partial buffer.
func WriteRaw(path string, pixels []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %v", ErrIO, dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(pixels); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename %s: %v", ErrIO, path, err)
	}
	return nil
}

func CheckpointName(cycle int) string {
	return checkpointPrefix + strconv.Itoa(cycle) + rawExt
}

// Checkpointer writes checkpoint_<cycle>.raw and result.raw into Dir.
type Checkpointer struct {
	Dir string
}

func NewCheckpointer(dir string) (*Checkpointer, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: output directory is required", ErrIO)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: output directory %s: %v", ErrIO, dir, err)
	}
	return &Checkpointer{Dir: dir}, nil
}

func (c *Checkpointer) SaveCheckpoint(_ context.Context, cycle int, best model.Candidate, _ uint64) error {
	return WriteRaw(filepath.Join(c.Dir, CheckpointName(cycle)), best)
}

func (c *Checkpointer) SaveFinal(_ context.Context, _ int, best model.Candidate, _ uint64) error {
	return WriteRaw(filepath.Join(c.Dir, FinalName), best)
}
