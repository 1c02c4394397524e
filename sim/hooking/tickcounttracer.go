package hooking

import (
	"sync"

	"github.com/sarchlab/stepsim/sim"
)

// TickCountTracer counts the ticks of every clock it sees.
type TickCountTracer struct {
	lock       sync.Mutex
	clockNames []string
	tickCount  map[string]uint64
	runs       uint64
}

// NewTickCountTracer creates a new TickCountTracer
func NewTickCountTracer() *TickCountTracer {
	return &TickCountTracer{
		tickCount: make(map[string]uint64),
	}
}

// Func counts the clocks of each tick.
func (t *TickCountTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosAfterTick:
		t.countTick(ctx.Item.(sim.TickInfo))
	case sim.HookPosRunStart:
		t.lock.Lock()
		t.runs++
		t.lock.Unlock()
	}
}

func (t *TickCountTracer) countTick(info sim.TickInfo) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, c := range info.Clocks {
		_, ok := t.tickCount[c.Name()]
		if !ok {
			t.clockNames = append(t.clockNames, c.Name())
		}

		t.tickCount[c.Name()]++
	}
}

// GetClockNames returns the names of the clocks that ticked, in the order
// they first ticked.
func (t *TickCountTracer) GetClockNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.clockNames...)
}

// GetTickCount returns the number of ticks of the named clock.
func (t *TickCountTracer) GetTickCount(clockName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tickCount[clockName]
}

// GetRunCount returns the number of runs started.
func (t *TickCountTracer) GetRunCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.runs
}
