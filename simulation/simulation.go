// Package simulation puts together the services a stepsim run needs: the
// network and its default clock, the random sources, the data recorder,
// the monitor and the results directory.
package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/sarchlab/stepsim/datarecording"
	"github.com/sarchlab/stepsim/interrupt"
	"github.com/sarchlab/stepsim/monitoring"
	"github.com/sarchlab/stepsim/results"
	"github.com/sarchlab/stepsim/sim"
	"github.com/sarchlab/stepsim/sim/hooking"
	"github.com/sarchlab/stepsim/sim/rand"
	"go.uber.org/zap"
)

// RunInfoTable is the data recorder table that holds one row per run.
const RunInfoTable = "run_info"

// TickTablePrefix names the tick trace tables, TickTablePrefix_tick and
// TickTablePrefix_run.
const TickTablePrefix = "network"

// RunInfoEntry is a row of the run info table.
type RunInfoEntry struct {
	Simulation        string
	Start             float64
	Duration          float64
	ElapsedSeconds    float64
	CompletedFraction float64
}

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	logger *zap.Logger

	network      *sim.Network
	defaultClock *sim.Clock
	randomPool   *rand.Pool

	dataRecorder datarecording.DataRecorder
	outputPath   string
	tickRecorder *hooking.TickRecorder
	monitor      *monitoring.Monitor
	results      *results.Writer

	textReporter *monitoring.TextReporter
	reportPeriod time.Duration
	handleSIGINT bool
	lastRun      sim.RunInfo

	components    []any
	compNames     []string
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetLogger returns the logger of the simulation.
func (s *Simulation) GetLogger() *zap.Logger {
	return s.logger
}

// GetNetwork returns the network that drives the simulation.
func (s *Simulation) GetNetwork() *sim.Network {
	return s.network
}

// GetDefaultClock returns the clock models use unless they bring their own.
func (s *Simulation) GetDefaultClock() *sim.Clock {
	return s.defaultClock
}

// GetRandomPool returns the random sources, one per execution context.
func (s *Simulation) GetRandomPool() *rand.Pool {
	return s.randomPool
}

// GetDataRecorder returns the data recorder used in the simulation. It is
// nil if recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetOutputPath returns the file of the data recorder.
func (s *Simulation) GetOutputPath() string {
	return s.outputPath
}

// GetTickRecorder returns the tick recorder, if tick recording is enabled.
func (s *Simulation) GetTickRecorder() *hooking.TickRecorder {
	return s.tickRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetResults returns the writer of the results directory.
func (s *Simulation) GetResults() *results.Writer {
	return s.results
}

// RegisterComponent registers an object, usually a model, with the
// simulation. Registered components can be inspected through the monitor.
func (s *Simulation) RegisterComponent(name string, c any) {
	if _, ok := s.compNameIndex[name]; ok {
		panic("component " + name + " already registered")
	}

	s.components = append(s.components, c)
	s.compNames = append(s.compNames, name)
	s.compNameIndex[name] = len(s.components) - 1

	if s.monitor != nil {
		s.monitor.RegisterComponent(name, c)
	}
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) any {
	i, ok := s.compNameIndex[name]
	if !ok {
		return nil
	}

	return s.components[i]
}

// Components returns all the registered components.
func (s *Simulation) Components() []any {
	return append([]any(nil), s.components...)
}

// Run advances the network by duration. Progress goes to the monitor and
// the text reporter, if any. The run report is written into the results
// directory and the data recorder, also when the run ends with an error.
func (s *Simulation) Run(
	ctx context.Context,
	duration sim.VTimeInSec,
) (sim.RunReport, error) {
	if s.handleSIGINT {
		h := interrupt.NewHandler(s.network, s.logger)
		h.Start()
		defer h.Close()
	}

	var reporters multiReporter
	if s.textReporter != nil {
		reporters = append(reporters, s.textReporter)
	}

	if s.monitor != nil {
		bar := s.monitor.CreateProgressBar("run")
		defer s.monitor.CompleteProgressBar(bar)
		reporters = append(reporters, bar)
	}

	var reporter sim.ProgressReporter
	if len(reporters) > 0 {
		reporter = reporters
	}

	report, err := s.network.Run(ctx, duration, reporter, s.reportPeriod)
	if errors.Is(err, sim.ErrConfig) || errors.Is(err, sim.ErrAlreadyRunning) {
		return report, err
	}

	if writeErr := s.results.WriteRunInfo(report); writeErr != nil && err == nil {
		err = writeErr
	}

	if s.dataRecorder != nil {
		s.dataRecorder.InsertData(RunInfoTable, RunInfoEntry{
			Simulation:        s.id,
			Start:             float64(s.lastRun.Start),
			Duration:          float64(s.lastRun.Duration),
			ElapsedSeconds:    report.Elapsed.Seconds(),
			CompletedFraction: report.CompletedFraction,
		})
	}

	return report, err
}

func (s *Simulation) captureRunInfo(ctx sim.HookCtx) {
	if ctx.Pos == sim.HookPosRunStart {
		s.lastRun = ctx.Item.(sim.RunInfo)
	}
}

// Terminate terminates the simulation.
func (s *Simulation) Terminate() {
	if s.dataRecorder == nil {
		return
	}

	if err := s.dataRecorder.Close(); err != nil {
		s.logger.Error("closing data recorder", zap.Error(err))
	}
}

type multiReporter []sim.ProgressReporter

func (m multiReporter) Report(p sim.Progress) {
	for _, r := range m {
		r.Report(p)
	}
}
