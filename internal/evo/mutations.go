package evo

import (
	"fmt"
	"math/rand"

	"grayevo/internal/model"
)

// Region is one rectangle-blend draw. Rows span [EndY, EndY+SpanY) and
// columns span [EndX, EndX+SpanX).
type Region struct {
	EndX  int
	EndY  int
	SpanX int
	SpanY int
	Color byte
}

// RectBlendMutator blends a random rectangle of each candidate halfway
// toward a random gray level.
type RectBlendMutator struct {
	Width  int
	Height int
}

func NewRectBlendMutator(width, height int) (*RectBlendMutator, error) {
	if width <= 2 || height <= 2 {
		return nil, fmt.Errorf("%w: rect blend mutation requires width > 2 and height > 2, got %dx%d", ErrConfiguration, width, height)
	}
	return &RectBlendMutator{Width: width, Height: height}, nil
}

func (*RectBlendMutator) Name() string {
	return "rect_blend"
}

func (m *RectBlendMutator) Mutate(rng *rand.Rand, population model.Population) {
	for _, candidate := range population {
		m.Apply(candidate, m.Draw(rng))
	}
}

// Draw picks endX in [1, w-1), endY in [1, h-1), spanX in [1, w-endX),
// spanY in [1, h-endY) and a color in [0, 255).
func (m *RectBlendMutator) Draw(rng *rand.Rand) Region {
	endX := 1 + rng.Intn(m.Width-2)
	endY := 1 + rng.Intn(m.Height-2)
	return Region{
		EndX:  endX,
		EndY:  endY,
		SpanX: 1 + rng.Intn(m.Width-endX-1),
		SpanY: 1 + rng.Intn(m.Height-endY-1),
		Color: byte(rng.Intn(255)),
	}
}

// Apply sets p = p/2 + color/2 over the region. Both halves are at most
// 127, so the sum stays within a byte.
func (m *RectBlendMutator) Apply(candidate model.Candidate, region Region) {
	half := region.Color / 2
	for row := region.EndY; row < region.EndY+region.SpanY; row++ {
		offset := row * m.Width
		for col := region.EndX; col < region.EndX+region.SpanX; col++ {
			candidate[offset+col] = candidate[offset+col]/2 + half
		}
	}
}
