package simulation

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/stepsim/datarecording"
	"github.com/sarchlab/stepsim/monitoring"
	"github.com/sarchlab/stepsim/results"
	"github.com/sarchlab/stepsim/sim"
	"github.com/sarchlab/stepsim/sim/hooking"
	"github.com/sarchlab/stepsim/sim/rand"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	tickRecording  bool
	outputFileName string
	resultsDir     string
	dt             sim.VTimeInSec
	contexts       int
	seed           uint32
	seeded         bool
	reportPeriod   time.Duration
	reportWriter   io.Writer
	handleSIGINT   bool
	logger         *zap.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:   true,
		recordingOn: true,
		resultsDir:  results.DefaultDir,
		dt:          sim.DefaultDT,
		contexts:    1,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutDataRecording disables the SQLite data recorder.
func (b Builder) WithoutDataRecording() Builder {
	b.recordingOn = false
	return b
}

// WithTickRecording records every tick of the network into the data
// recorder.
func (b Builder) WithTickRecording() Builder {
	b.tickRecording = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
// The recorder appends the .sqlite3 extension.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithResultsDir sets the directory that run info and array dumps go to.
func (b Builder) WithResultsDir(dir string) Builder {
	b.resultsDir = dir
	return b
}

// WithDT sets the step size of the default clock.
func (b Builder) WithDT(dt sim.VTimeInSec) Builder {
	b.dt = dt
	return b
}

// WithContexts sets the number of random sources, one per execution
// context.
func (b Builder) WithContexts(n int) Builder {
	b.contexts = n
	return b
}

// WithSeed seeds the random sources deterministically. Source i gets
// seed+i. Without a seed, sources are seeded from OS entropy.
func (b Builder) WithSeed(seed uint32) Builder {
	b.seed = seed
	b.seeded = true
	return b
}

// WithProgressReport prints progress lines to w every period of wall time,
// as well as at the start and the end of each run.
func (b Builder) WithProgressReport(w io.Writer, period time.Duration) Builder {
	b.reportWriter = w
	b.reportPeriod = period
	return b
}

// WithInterruptHandling makes the first SIGINT of a run stop the run
// cleanly.
func (b Builder) WithInterruptHandling() Builder {
	b.handleSIGINT = true
	return b
}

// WithLogger sets the logger of the simulation and its network.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && (b.tickRecording || b.outputFileName != "") {
		panic("data recording options cannot be set when recording is disabled")
	}

	if !(b.dt > 0) {
		panic(fmt.Sprintf("dt must be positive, got %g", b.dt))
	}

	if b.contexts <= 0 {
		panic(fmt.Sprintf("number of contexts must be positive, got %d",
			b.contexts))
	}

	if b.reportPeriod < 0 {
		panic("report period must not be negative")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		compNameIndex: make(map[string]int),
		reportPeriod:  b.reportPeriod,
		handleSIGINT:  b.handleSIGINT,
	}

	s.id = xid.New().String()

	s.logger = b.logger
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("simulation", s.id))

	s.network = sim.NewNetwork(
		sim.WithName("network"),
		sim.WithLogger(s.logger),
	)
	s.network.AcceptHook(sim.HookFunc(s.captureRunInfo))
	if s.logger.Core().Enabled(zapcore.DebugLevel) {
		s.network.AcceptHook(hooking.NewTickLogger(s.logger))
	}
	s.defaultClock = sim.NewClock("defaultclock", b.dt)

	s.randomPool = rand.NewPool(b.contexts)
	if b.seeded {
		s.randomPool.SeedAll(b.seed)
	}

	w, err := results.NewWriter(b.resultsDir, s.logger)
	if err != nil {
		panic(err)
	}
	s.results = w

	if b.reportWriter != nil {
		s.textReporter = monitoring.NewTextReporter(b.reportWriter)
	}

	if b.recordingOn {
		b.buildDataRecorder(s)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.RegisterNetwork(s.network)
		s.monitor.StartServer()
	}

	s.logger.Debug("simulation built",
		zap.Float64("dt", float64(b.dt)),
		zap.Int("contexts", b.contexts),
		zap.Bool("seeded", b.seeded),
		zap.String("results", b.resultsDir),
		zap.Bool("monitor", b.monitorOn),
		zap.Bool("recording", b.recordingOn),
	)

	return s
}

func (b Builder) buildDataRecorder(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = filepath.Join(b.resultsDir, "stepsim_"+s.id)
	}

	s.outputPath = outputPath + ".sqlite3"
	s.dataRecorder = datarecording.New(outputPath)
	s.dataRecorder.CreateTable(RunInfoTable, RunInfoEntry{})

	if b.tickRecording {
		s.tickRecorder = hooking.NewTickRecorder(s.dataRecorder, TickTablePrefix)
		s.network.AcceptHook(s.tickRecorder)
	}
}
