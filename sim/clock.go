package sim

import (
	"fmt"
	"math"
	"sync"
)

// DefaultDT is the step size a clock starts with unless told otherwise.
const DefaultDT VTimeInSec = 1e-4

// A Clock counts ticks of a fixed step size. The current time is always
// derived from the step counter, so it never drifts from step*dt.
type Clock struct {
	lock sync.RWMutex
	name string
	dt   VTimeInSec
	step int64
}

// NewClock creates a clock with the given name and step size.
func NewClock(name string, dt VTimeInSec) *Clock {
	return &Clock{
		name: name,
		dt:   dt,
	}
}

// NewClockWithFreq creates a clock that ticks at the given frequency.
func NewClockWithFreq(name string, freq Freq) *Clock {
	return NewClock(name, freq.Period())
}

// NewDefaultClock creates a clock with the default step size.
func NewDefaultClock() *Clock {
	return NewClock("defaultclock", DefaultDT)
}

// Name returns the name of the clock.
func (c *Clock) Name() string {
	return c.name
}

// DT returns the step size.
func (c *Clock) DT() VTimeInSec {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.dt
}

// SetDT overwrites the step size. The value is validated when the clock is
// used in a run, not here.
func (c *Clock) SetDT(dt VTimeInSec) {
	c.lock.Lock()
	c.dt = dt
	c.lock.Unlock()
}

// Step returns the number of ticks since the last reset.
func (c *Clock) Step() int64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.step
}

// SetStep restores the tick counter, for example from a saved state.
func (c *Clock) SetStep(step int64) {
	if step < 0 {
		panic(fmt.Sprintf("clock %s: negative step %d", c.name, step))
	}

	c.lock.Lock()
	c.step = step
	c.lock.Unlock()
}

// Reset moves the clock back to step 0.
func (c *Clock) Reset() {
	c.SetStep(0)
}

// Advance moves the clock forward by one tick.
func (c *Clock) Advance() {
	c.lock.Lock()
	c.step++
	c.lock.Unlock()
}

// CurrentTime returns step*dt.
func (c *Clock) CurrentTime() VTimeInSec {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return VTimeInSec(c.step) * c.dt
}

// NextTime returns the time at which the next tick lands.
func (c *Clock) NextTime() VTimeInSec {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return VTimeInSec(c.step+1) * c.dt
}

// Tolerance returns the slack allowed when comparing this clock's time with
// target.
func (c *Clock) Tolerance(target VTimeInSec) VTimeInSec {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return timeTolerance(c.dt, VTimeInSec(c.step)*c.dt, target)
}

// IsDue tells if the clock's current time is at or before target, allowing
// for tol.
func (c *Clock) IsDue(target, tol VTimeInSec) bool {
	return c.CurrentTime() <= target+tol
}

func (c *Clock) validate() error {
	dt := c.DT()
	if !(dt > 0) || math.IsInf(float64(dt), 0) {
		return wrapConfigf("clock %s has invalid step size %g", c.name, dt)
	}

	return nil
}
