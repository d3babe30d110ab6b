package stats

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// ProgressPrinter writes one key=value line per reported cycle. On a
// terminal the line is rewritten in place.
type ProgressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	inPlace bool
	dirty   bool
}

func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, inPlace: isTerminal(w)}
}

func (p *ProgressPrinter) Print(cycle int, bestFitness uint64, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := FormatProgress(cycle, bestFitness, elapsed)
	if p.inPlace {
		fmt.Fprintf(p.w, "\r%s\x1b[K", line)
		p.dirty = true
		return
	}
	fmt.Fprintln(p.w, line)
}

// Done terminates an in-place line so later output starts on a fresh line.
func (p *ProgressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

func FormatProgress(cycle int, bestFitness uint64, elapsed time.Duration) string {
	return fmt.Sprintf("cycle=%s best_fitness=%s elapsed=%s",
		humanize.Comma(int64(cycle)),
		humanize.Comma(int64(bestFitness)),
		elapsed.Round(time.Millisecond),
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
