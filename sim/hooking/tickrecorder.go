package hooking

import (
	"sync"

	"github.com/sarchlab/stepsim/datarecording"
	"github.com/sarchlab/stepsim/sim"
	"github.com/tebeka/atexit"
)

// TickEntry is a row of the tick trace table.
type TickEntry struct {
	Time  float64
	Clock string
	Step  int64
}

// RunEntry is a row of the run trace table.
type RunEntry struct {
	Start             float64
	Duration          float64
	ElapsedSeconds    float64
	CompletedFraction float64
}

// TickRecorder writes every tick and every finished run into a data
// recorder.
type TickRecorder struct {
	lock               sync.Mutex
	recorder           datarecording.DataRecorder
	tickTable          string
	runTable           string
	startTime, endTime float64
	currentRun         sim.RunInfo
}

// TickTable returns the name of the tick table of a TickRecorder created
// with prefix.
func TickTable(prefix string) string {
	return prefix + "_tick"
}

// RunTable returns the name of the run table of a TickRecorder created with
// prefix.
func RunTable(prefix string) string {
	return prefix + "_run"
}

// NewTickRecorder creates a TickRecorder that writes into the tables
// prefix_tick and prefix_run.
func NewTickRecorder(
	recorder datarecording.DataRecorder,
	prefix string,
) *TickRecorder {
	t := &TickRecorder{
		recorder:  recorder,
		tickTable: TickTable(prefix),
		runTable:  RunTable(prefix),
	}

	recorder.CreateTable(t.tickTable, TickEntry{})
	recorder.CreateTable(t.runTable, RunEntry{})

	atexit.Register(func() { t.recorder.Flush() })

	return t
}

// SetTimeRange limits the recorded ticks to [startTime, endTime]. A
// non-positive bound is ignored.
func (t *TickRecorder) SetTimeRange(startTime, endTime float64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// Func records ticks and runs.
func (t *TickRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosRunStart:
		t.lock.Lock()
		t.currentRun = ctx.Item.(sim.RunInfo)
		t.lock.Unlock()
	case sim.HookPosAfterTick:
		t.recordTick(ctx.Item.(sim.TickInfo))
	case sim.HookPosRunEnd:
		t.recordRun(ctx.Item.(sim.RunReport))
	}
}

func (t *TickRecorder) inRange(now float64) bool {
	if t.startTime > 0 && now < t.startTime {
		return false
	}

	if t.endTime > 0 && now > t.endTime {
		return false
	}

	return true
}

func (t *TickRecorder) recordTick(info sim.TickInfo) {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := float64(info.Time)
	if !t.inRange(now) {
		return
	}

	for _, c := range info.Clocks {
		t.recorder.InsertData(t.tickTable, TickEntry{
			Time:  now,
			Clock: c.Name(),
			Step:  c.Step(),
		})
	}
}

func (t *TickRecorder) recordRun(report sim.RunReport) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.recorder.InsertData(t.runTable, RunEntry{
		Start:             float64(t.currentRun.Start),
		Duration:          float64(t.currentRun.Duration),
		ElapsedSeconds:    report.Elapsed.Seconds(),
		CompletedFraction: report.CompletedFraction,
	})
}
