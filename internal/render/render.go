// Package render provides displays for the best candidate of a running
// evolution.
package render

import (
	"sync"

	"grayevo/internal/model"
)

// Headless satisfies the renderer contract without a display. It keeps the
// most recent frame and can be closed or cancelled from another goroutine.
type Headless struct {
	mu         sync.Mutex
	frames     int
	last       model.Candidate
	closeAfter int
	closed     bool
	cancelled  bool
}

// NewHeadless returns a renderer that reports closed after closeAfter
// frames; zero keeps it open until Close.
func NewHeadless(closeAfter int) *Headless {
	return &Headless{closeAfter: closeAfter}
}

func (h *Headless) Render(frame model.Candidate) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cap(h.last) < len(frame) {
		h.last = make(model.Candidate, len(frame))
	}
	h.last = h.last[:len(frame)]
	copy(h.last, frame)
	h.frames++
	if h.closeAfter > 0 && h.frames >= h.closeAfter {
		h.closed = true
	}
	return nil
}

func (h *Headless) Open() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

func (h *Headless) CancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (h *Headless) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
}

func (h *Headless) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Last returns a copy of the most recent frame.
func (h *Headless) Last() model.Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last.Clone()
}
