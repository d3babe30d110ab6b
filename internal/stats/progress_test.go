package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatProgress(t *testing.T) {
	got := FormatProgress(12000, 1234567, 1500*time.Millisecond)
	want := "cycle=12,000 best_fitness=1,234,567 elapsed=1.5s"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
}

func TestProgressPrinterWritesLinesToNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	printer := NewProgressPrinter(&buf)
	printer.Print(0, 10, 0)
	printer.Print(100, 5, time.Second)
	printer.Done()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "\r") {
		t.Fatal("expected no carriage returns outside a terminal")
	}
	if lines[1] != "cycle=100 best_fitness=5 elapsed=1s" {
		t.Fatalf("unexpected line: %q", lines[1])
	}
}
