//go:build live

package render

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"grayevo/internal/evo"
	"grayevo/internal/model"
	"grayevo/internal/raster"
)

var errWindowDone = errors.New("window done")

// Window mirrors the best candidate into an ebiten window. Run must be
// called from the main goroutine; Render may be called from any other.
type Window struct {
	title  string
	width  int
	height int
	scale  int

	mu      sync.Mutex
	pending []byte
	dirty   bool

	texture   *ebiten.Image
	closed    atomic.Bool
	cancelled atomic.Bool
	done      atomic.Bool
}

func NewWindow(title string, width, height, scale int) (*Window, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid window size %dx%d", evo.ErrRender, width, height)
	}
	if scale <= 0 {
		scale = 1
	}
	return &Window{
		title:   title,
		width:   width,
		height:  height,
		scale:   scale,
		pending: make([]byte, 4*width*height),
	}, nil
}

func (w *Window) Render(frame model.Candidate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := raster.FillRGBA(w.pending, frame); err != nil {
		return err
	}
	w.dirty = true
	return nil
}

func (w *Window) Open() bool {
	return !w.closed.Load()
}

func (w *Window) CancelRequested() bool {
	return w.cancelled.Load()
}

// Close asks the UI loop to exit at its next update.
func (w *Window) Close() {
	w.done.Store(true)
}

// Run blocks until the window is closed, Escape is pressed or Close is
// called.
func (w *Window) Run() error {
	defer w.closed.Store(true)

	ebiten.SetWindowSize(w.width*w.scale, w.height*w.scale)
	ebiten.SetWindowTitle(w.title)
	err := ebiten.RunGame(w)
	if err != nil && !errors.Is(err, errWindowDone) {
		return fmt.Errorf("%w: %v", evo.ErrRender, err)
	}
	return nil
}

func (w *Window) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		w.cancelled.Store(true)
		return errWindowDone
	}
	if w.done.Load() {
		return errWindowDone
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.texture == nil {
		w.texture = ebiten.NewImage(w.width, w.height)
	}
	w.mu.Lock()
	if w.dirty {
		w.texture.WritePixels(w.pending)
		w.dirty = false
	}
	w.mu.Unlock()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w.scale), float64(w.scale))
	screen.DrawImage(w.texture, op)
}

func (w *Window) Layout(_, _ int) (int, int) {
	return w.width * w.scale, w.height * w.scale
}
