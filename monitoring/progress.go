package monitoring

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sarchlab/stepsim/sim"
)

// A ProgressBar tracks the progress of a run. It can be passed to a network
// as its progress reporter.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Start     float64   `json:"start"`
	Duration  float64   `json:"duration"`
	Completed float64   `json:"completed"`
	Elapsed   float64   `json:"elapsed"`
}

// Report updates the bar.
func (b *ProgressBar) Report(p sim.Progress) {
	b.Lock()
	defer b.Unlock()

	b.Start = float64(p.Start)
	b.Duration = float64(p.Duration)
	b.Completed = p.Completed
	b.Elapsed = p.Elapsed.Seconds()
}

type progressBarRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Start     float64   `json:"start"`
	Duration  float64   `json:"duration"`
	Completed float64   `json:"completed"`
	Elapsed   float64   `json:"elapsed"`
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Start:     b.Start,
		Duration:  b.Duration,
		Completed: b.Completed,
		Elapsed:   b.Elapsed,
	}
}

// TextReporter prints the progress of a run as lines of text.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a TextReporter that writes to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Report prints one line. The line that starts a run announces the start
// time and the duration; later lines estimate the remaining wall time.
func (r *TextReporter) Report(p sim.Progress) {
	if p.Elapsed == 0 && p.Completed == 0 {
		fmt.Fprintf(r.w, "Starting simulation at t=%g s for a duration of %g s\n",
			p.Start, p.Duration)
		return
	}

	simulated := float64(p.Duration) * p.Completed
	line := fmt.Sprintf("%g s (%d%%) simulated in %s",
		simulated, int(p.Completed*100), roundDuration(p.Elapsed))

	if p.Completed > 0 && p.Completed < 1 {
		total := time.Duration(float64(p.Elapsed) / p.Completed)
		line += fmt.Sprintf(", estimated %s remaining.",
			roundDuration(total-p.Elapsed))
	}

	fmt.Fprintln(r.w, line)
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}

	return d.Round(time.Second)
}
