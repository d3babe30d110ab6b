//go:build !live

package render

import (
	"fmt"

	"grayevo/internal/evo"
	"grayevo/internal/model"
)

// Window is unavailable without the live build tag.
type Window struct{}

func NewWindow(_ string, _, _, _ int) (*Window, error) {
	return nil, fmt.Errorf("%w: live renderer unavailable in this build; rebuild with -tags live", evo.ErrRender)
}

func (*Window) Render(model.Candidate) error { return evo.ErrRender }
func (*Window) Open() bool                   { return false }
func (*Window) CancelRequested() bool        { return true }
func (*Window) Close()                       {}
func (*Window) Run() error                   { return evo.ErrRender }
