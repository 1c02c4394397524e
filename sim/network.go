package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// A Network drives a set of clocks and the callbacks bound to them. Clocks
// tick independently, each at its own step size; the network always fires
// the clocks whose next tick lands earliest, invoking their callbacks in the
// order they were added.
type Network struct {
	*HookableBase

	name      string
	logger    *zap.Logger
	wallClock WallClock

	bindingsLock sync.RWMutex
	bindings     []Binding

	// stateLock orders the start and the end of a run against Stop.
	stateLock     sync.Mutex
	running       atomic.Bool
	stopRequested atomic.Bool

	reportLock sync.RWMutex
	lastReport RunReport
}

// NetworkOption configures a Network.
type NetworkOption func(*Network)

// WithName sets the name the network uses in logs.
func WithName(name string) NetworkOption {
	return func(n *Network) {
		n.name = name
	}
}

// WithLogger sets the logger of the network.
func WithLogger(logger *zap.Logger) NetworkOption {
	return func(n *Network) {
		n.logger = logger
	}
}

// WithWallClock replaces the real-world clock used for run statistics and
// progress reports.
func WithWallClock(c WallClock) NetworkOption {
	return func(n *Network) {
		n.wallClock = c
	}
}

// NewNetwork creates a network with no bindings.
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		HookableBase: NewHookableBase(),
		name:         "network",
		logger:       zap.NewNop(),
		wallClock:    SystemWallClock(),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Name returns the name of the network.
func (n *Network) Name() string {
	return n.name
}

// Clear drops all the bindings. Clocks keep their state.
func (n *Network) Clear() {
	n.mustNotBeRunning("clear")

	n.bindingsLock.Lock()
	n.bindings = nil
	n.bindingsLock.Unlock()
}

// Add binds a callback to a clock. Callbacks that fire in the same tick run
// in the order they were added.
func (n *Network) Add(clock *Clock, callback Callback) {
	if clock == nil || callback == nil {
		panic("network: clock and callback must not be nil")
	}

	n.mustNotBeRunning("add")

	n.bindingsLock.Lock()
	n.bindings = append(n.bindings, Binding{Clock: clock, Callback: callback})
	n.bindingsLock.Unlock()
}

// Bindings returns a copy of the registered bindings.
func (n *Network) Bindings() []Binding {
	n.bindingsLock.RLock()
	defer n.bindingsLock.RUnlock()

	return append([]Binding(nil), n.bindings...)
}

// Clocks returns the distinct clocks of the network in the order they were
// first added.
func (n *Network) Clocks() []*Clock {
	n.bindingsLock.RLock()
	defer n.bindingsLock.RUnlock()

	clocks, _ := distinctClocks(n.bindings)

	return clocks
}

// Now returns the earliest current time among the registered clocks.
func (n *Network) Now() VTimeInSec {
	clocks := n.Clocks()
	if len(clocks) == 0 {
		return 0
	}

	now := clocks[0].CurrentTime()
	for _, c := range clocks[1:] {
		now = min(now, c.CurrentTime())
	}

	return now
}

func (n *Network) mustNotBeRunning(op string) {
	if n.running.Load() {
		panic(fmt.Sprintf("network %s: cannot %s while running", n.name, op))
	}
}

// IsRunning tells if a run is in progress.
func (n *Network) IsRunning() bool {
	return n.running.Load()
}

// StopRequested tells if the current (or last) run has been asked to stop.
func (n *Network) StopRequested() bool {
	return n.stopRequested.Load()
}

// Stop asks the running network to stop at the next tick boundary. It
// returns true only if this call is the one that made the request. Calling
// Stop when no run is in progress does nothing.
func (n *Network) Stop() bool {
	n.stateLock.Lock()
	defer n.stateLock.Unlock()

	if !n.running.Load() {
		return false
	}

	return n.stopRequested.CompareAndSwap(false, true)
}

// enterRun marks the network as running with no stop requested, so that a
// Stop accepted from now on is seen by the run.
func (n *Network) enterRun() bool {
	n.stateLock.Lock()
	defer n.stateLock.Unlock()

	if n.running.Load() {
		return false
	}

	n.stopRequested.Store(false)
	n.running.Store(true)

	return true
}

func (n *Network) leaveRun() {
	n.stateLock.Lock()
	n.running.Store(false)
	n.stateLock.Unlock()
}

// LastReport returns the statistics of the last finished run.
func (n *Network) LastReport() RunReport {
	n.reportLock.RLock()
	defer n.reportLock.RUnlock()

	return n.lastReport
}

// LastRunTime returns the wall-clock time the last run took.
func (n *Network) LastRunTime() time.Duration {
	return n.LastReport().Elapsed
}

// LastRunCompletedFraction returns the share of the requested duration the
// last run simulated.
func (n *Network) LastRunCompletedFraction() float64 {
	return n.LastReport().CompletedFraction
}

// runState is the bookkeeping of a single run.
type runState struct {
	ctx      context.Context
	info     RunInfo
	reporter ProgressReporter
	period   time.Duration

	bindings     []Binding
	clocks       []*Clock
	bindingClock []int
	fired        []bool

	wallStart  time.Time
	lastReport time.Time
	reached    VTimeInSec
	completed  bool
	finished   bool
}

// Run advances the network by duration, measured from the latest current
// time among its clocks. Progress is sent to reporter, if not nil, at the
// start, every reportPeriod of wall-clock time and at the end.
//
// The run stops early, without error, when Stop is called or ctx is done;
// the returned report then has a completed fraction below 1. Configuration
// problems are reported before any callback runs. An error returned by a
// callback ends the run and is returned wrapped in ErrCallback.
func (n *Network) Run(
	ctx context.Context,
	duration VTimeInSec,
	reporter ProgressReporter,
	reportPeriod time.Duration,
) (RunReport, error) {
	if !n.enterRun() {
		return RunReport{}, ErrAlreadyRunning
	}

	s, err := n.prepare(ctx, duration, reporter, reportPeriod)
	if err != nil {
		n.leaveRun()
		return RunReport{}, err
	}

	defer func() {
		if !s.finished {
			n.finish(s)
		}
	}()

	n.start(s)
	err = n.loop(s)

	report := n.finish(s)
	if reporter != nil {
		reporter.Report(Progress{
			Elapsed:   report.Elapsed,
			Completed: report.CompletedFraction,
			Start:     s.info.Start,
			Duration:  s.info.Duration,
		})
	}

	return report, err
}

func (n *Network) prepare(
	ctx context.Context,
	duration VTimeInSec,
	reporter ProgressReporter,
	reportPeriod time.Duration,
) (*runState, error) {
	d := float64(duration)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return nil, wrapConfigf("invalid duration %g", d)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bindings := n.Bindings()
	clocks, bindingClock := distinctClocks(bindings)

	for _, c := range clocks {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}

	start := VTimeInSec(0)
	for i, c := range clocks {
		if i == 0 {
			start = c.CurrentTime()
			continue
		}
		start = max(start, c.CurrentTime())
	}

	s := &runState{
		ctx: ctx,
		info: RunInfo{
			Start:    start,
			Duration: duration,
			End:      start + duration,
		},
		reporter:     reporter,
		period:       reportPeriod,
		bindings:     bindings,
		clocks:       clocks,
		bindingClock: bindingClock,
		fired:        make([]bool, len(clocks)),
		reached:      start,
	}

	return s, nil
}

func (n *Network) start(s *runState) {
	s.wallStart = n.wallClock.Now()
	s.lastReport = s.wallStart

	n.logger.Debug("run started",
		zap.String("network", n.name),
		zap.Float64("start", float64(s.info.Start)),
		zap.Float64("duration", float64(s.info.Duration)),
		zap.Int("clocks", len(s.clocks)),
		zap.Int("bindings", len(s.bindings)),
	)

	n.InvokeHook(HookCtx{
		Domain: n,
		Pos:    HookPosRunStart,
		Item:   s.info,
	})

	if s.reporter != nil {
		s.reporter.Report(Progress{
			Elapsed:   0,
			Completed: 0,
			Start:     s.info.Start,
			Duration:  s.info.Duration,
		})
	}
}

func (n *Network) loop(s *runState) error {
	for {
		tickTime, ok := n.nextTick(s)
		if !ok {
			s.completed = true
			return nil
		}

		if n.shouldStop(s) {
			return nil
		}

		if err := n.tick(s, tickTime); err != nil {
			return err
		}

		s.reached = tickTime
		n.reportIfDue(s)
	}
}

func (n *Network) shouldStop(s *runState) bool {
	if n.stopRequested.Load() {
		n.logger.Info("stop requested",
			zap.String("network", n.name),
			zap.Float64("time", float64(s.reached)))
		return true
	}

	select {
	case <-s.ctx.Done():
		n.logger.Info("run cancelled",
			zap.String("network", n.name),
			zap.Float64("time", float64(s.reached)),
			zap.Error(s.ctx.Err()))
		return true
	default:
		return false
	}
}

// nextTick finds the earliest next tick among the clocks that have not
// reached the end of the run and marks the clocks that fire at that time.
func (n *Network) nextTick(s *runState) (VTimeInSec, bool) {
	found := false
	earliest := VTimeInSec(0)

	for i, c := range s.clocks {
		s.fired[i] = false

		if !pending(c, s.info.End) {
			continue
		}

		next := c.NextTime()
		if !found || next < earliest {
			earliest = next
			found = true
		}
	}

	if !found {
		return 0, false
	}

	for i, c := range s.clocks {
		if !pending(c, s.info.End) {
			continue
		}

		if SameTime(c.NextTime(), earliest) {
			s.fired[i] = true
		}
	}

	return earliest, true
}

func (n *Network) tick(s *runState, tickTime VTimeInSec) error {
	info := TickInfo{Time: tickTime}
	for i, c := range s.clocks {
		if s.fired[i] {
			info.Clocks = append(info.Clocks, c)
		}
	}

	hookCtx := HookCtx{
		Domain: n,
		Pos:    HookPosBeforeTick,
		Item:   info,
	}
	n.InvokeHook(hookCtx)

	for i, b := range s.bindings {
		if !s.fired[s.bindingClock[i]] {
			continue
		}

		if err := b.Callback.Run(); err != nil {
			n.logger.Warn("callback failed",
				zap.String("network", n.name),
				zap.String("clock", b.Clock.Name()),
				zap.Int("binding", i),
				zap.Float64("time", float64(tickTime)),
				zap.Error(err))

			return wrapCallback(b.Clock.Name(), i, err)
		}
	}

	for _, c := range info.Clocks {
		c.Advance()
	}

	hookCtx.Pos = HookPosAfterTick
	n.InvokeHook(hookCtx)

	return nil
}

func (n *Network) reportIfDue(s *runState) {
	if s.reporter == nil || s.period <= 0 {
		return
	}

	now := n.wallClock.Now()
	if now.Sub(s.lastReport) < s.period {
		return
	}

	s.lastReport = now
	s.reporter.Report(Progress{
		Elapsed:   now.Sub(s.wallStart),
		Completed: s.fraction(),
		Start:     s.info.Start,
		Duration:  s.info.Duration,
	})
}

func (s *runState) fraction() float64 {
	if s.completed || s.info.Duration == 0 {
		return 1
	}

	f := float64(s.reached-s.info.Start) / float64(s.info.Duration)

	return math.Min(1, math.Max(0, f))
}

// finish records the statistics of the run and releases the network. It
// also runs, without progress reporting, when a callback panics.
func (n *Network) finish(s *runState) RunReport {
	s.finished = true

	report := RunReport{
		Elapsed:           n.wallClock.Now().Sub(s.wallStart),
		CompletedFraction: s.fraction(),
	}

	n.reportLock.Lock()
	n.lastReport = report
	n.reportLock.Unlock()

	n.leaveRun()

	n.InvokeHook(HookCtx{
		Domain: n,
		Pos:    HookPosRunEnd,
		Item:   report,
	})

	n.logger.Info("run finished",
		zap.String("network", n.name),
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("completed", report.CompletedFraction),
		zap.Float64("time", float64(s.reached)),
	)

	return report
}

// pending tells if c has not yet reached end. A clock within rounding
// distance of end counts as having reached it.
func pending(c *Clock, end VTimeInSec) bool {
	return c.IsDue(end, -c.Tolerance(end))
}

func distinctClocks(bindings []Binding) ([]*Clock, []int) {
	clocks := make([]*Clock, 0)
	index := make(map[*Clock]int)
	bindingClock := make([]int, len(bindings))

	for i, b := range bindings {
		idx, ok := index[b.Clock]
		if !ok {
			idx = len(clocks)
			index[b.Clock] = idx
			clocks = append(clocks, b.Clock)
		}

		bindingClock[i] = idx
	}

	return clocks, bindingClock
}
