// Package hooking provides tracers that attach to a sim.Network as hooks and
// observe its ticks: how often each clock fires, how much wall-clock time
// the callbacks of each clock take, and a tick-by-tick trace written to a
// data recorder.
package hooking
