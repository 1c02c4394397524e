package sim

import "time"

// RunInfo describes the run that a network is about to perform.
type RunInfo struct {
	Start    VTimeInSec
	Duration VTimeInSec
	End      VTimeInSec
}

// TickInfo describes one tick of the network: the time the tick lands on and
// the clocks that fire in it, in registration order.
type TickInfo struct {
	Time   VTimeInSec
	Clocks []*Clock
}

// RunReport summarizes a finished run.
type RunReport struct {
	// Elapsed is the wall-clock time the run took.
	Elapsed time.Duration

	// CompletedFraction is the share of the requested duration that was
	// simulated, in [0, 1]. It is below 1 only if the run was stopped early.
	CompletedFraction float64
}

// Progress is what a network tells its reporter while running.
type Progress struct {
	Elapsed   time.Duration
	Completed float64
	Start     VTimeInSec
	Duration  VTimeInSec
}

// A ProgressReporter is told how far a run has come.
type ProgressReporter interface {
	Report(p Progress)
}

// ProgressReporterFunc turns a function into a ProgressReporter.
type ProgressReporterFunc func(p Progress)

// Report calls f.
func (f ProgressReporterFunc) Report(p Progress) {
	f(p)
}

// A WallClock tells the real-world time. Networks use it to measure run time
// and to pace progress reports.
type WallClock interface {
	Now() time.Time
}

type systemWallClock struct{}

func (systemWallClock) Now() time.Time {
	return time.Now()
}

// SystemWallClock returns a WallClock backed by time.Now.
func SystemWallClock() WallClock {
	return systemWallClock{}
}
