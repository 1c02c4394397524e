package hooking

import (
	"sync"
	"time"

	"github.com/sarchlab/stepsim/sim"
)

// TickTimeTracer measures the wall-clock time spent in the callbacks of each
// clock. When several clocks fire in the same tick, the time is split evenly
// among them.
type TickTimeTracer struct {
	lock      sync.Mutex
	wallClock sim.WallClock
	tickStart time.Time
	busyTime  map[string]time.Duration
}

// NewTickTimeTracer creates a new TickTimeTracer
func NewTickTimeTracer(wallClock sim.WallClock) *TickTimeTracer {
	return &TickTimeTracer{
		wallClock: wallClock,
		busyTime:  make(map[string]time.Duration),
	}
}

// Func records the start and end of each tick.
func (t *TickTimeTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeTick:
		t.lock.Lock()
		t.tickStart = t.wallClock.Now()
		t.lock.Unlock()
	case sim.HookPosAfterTick:
		t.endTick(ctx.Item.(sim.TickInfo))
	}
}

func (t *TickTimeTracer) endTick(info sim.TickInfo) {
	if len(info.Clocks) == 0 {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	spent := t.wallClock.Now().Sub(t.tickStart)
	share := spent / time.Duration(len(info.Clocks))

	for _, c := range info.Clocks {
		t.busyTime[c.Name()] += share
	}
}

// BusyTime returns the time spent in the callbacks of the named clock.
func (t *TickTimeTracer) BusyTime(clockName string) time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime[clockName]
}
