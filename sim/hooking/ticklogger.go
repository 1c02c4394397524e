package hooking

import (
	"go.uber.org/zap"

	"github.com/sarchlab/stepsim/sim"
)

// TickLogger is a hook that logs every tick and every run.
type TickLogger struct {
	logger *zap.Logger
}

// NewTickLogger returns a TickLogger that writes into logger at debug level.
func NewTickLogger(logger *zap.Logger) *TickLogger {
	return &TickLogger{logger: logger}
}

// Func writes the tick information into the logger.
func (h *TickLogger) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosAfterTick:
		info, ok := ctx.Item.(sim.TickInfo)
		if !ok {
			return
		}

		names := make([]string, len(info.Clocks))
		for i, c := range info.Clocks {
			names[i] = c.Name()
		}

		h.logger.Debug("tick",
			zap.Float64("time", float64(info.Time)),
			zap.Strings("clocks", names))
	case sim.HookPosRunStart:
		info, ok := ctx.Item.(sim.RunInfo)
		if !ok {
			return
		}

		h.logger.Debug("run start",
			zap.Float64("start", float64(info.Start)),
			zap.Float64("end", float64(info.End)))
	}
}
