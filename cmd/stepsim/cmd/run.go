package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/browser"
	"github.com/sarchlab/stepsim/config"
	"github.com/sarchlab/stepsim/examples/ou"
	"github.com/sarchlab/stepsim/simulation"
	"github.com/sarchlab/stepsim/sim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [name=value...]",
	Short: "Run the Ornstein-Uhlenbeck demo model.",
	Long: "`run` simulates an Ornstein-Uhlenbeck process and writes the " +
		"results into the results directory. Arguments of the form " +
		"name=value override model variables, for example ou.tau=0.25. " +
		"A value that is not a number or a boolean names a file holding " +
		"the raw bytes of the whole array.",
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.String("config", "", "YAML configuration file")
	f.Float64("duration", ou.DefaultDuration, "Simulated time to advance, in seconds")
	f.Float64("dt", float64(sim.DefaultDT), "Step size of the default clock, in seconds")
	f.Int64("seed", -1, "Seed of the random sources, negative for OS entropy")
	f.Int("contexts", 1, "Number of random sources")
	f.String("results-dir", "results", "Directory the results are written to")
	f.Bool("record", true, "Record monitored samples into a SQLite database")
	f.Bool("record-ticks", false, "Record every tick into the database")
	f.String("output", "", "Name of the SQLite database, without extension")
	f.Bool("monitor", false, "Serve the monitoring API while running")
	f.Int("monitor-port", 0, "Port of the monitoring server, 0 for random")
	f.Bool("open-browser", false, "Open the monitoring page in a browser")
	f.Bool("report", false, "Print progress to stderr")
	f.Duration("report-period", 0, "Wall time between progress lines")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.StringArray("set", nil, "Override a model variable, as name=value")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s := buildSimulation(cfg, cmd, logger)
	defer s.Terminate()

	model := ou.NewModel(1, s.GetDefaultClock(), s.GetRandomPool().Get(0))
	model.Register(s.GetNetwork())
	s.RegisterComponent("ou", model)

	if s.GetDataRecorder() != nil {
		model.AttachRecorder(s.GetDataRecorder())
	}

	if err := applyOverrides(cmd, cfg, model, args); err != nil {
		return err
	}

	if s.GetMonitor() != nil && cfg.Monitor.OpenBrowser {
		if err := browser.OpenURL(s.GetMonitor().URL()); err != nil {
			logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	report, err := s.Run(cmd.Context(), sim.VTimeInSec(cfg.Run.Duration))
	if err != nil {
		return err
	}

	if err := model.WriteResults(s.GetResults()); err != nil {
		return err
	}

	logger.Info("simulation finished",
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("completed", report.CompletedFraction),
		zap.String("results", s.GetResults().Dir()))

	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	path, _ := f.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if f.Changed("duration") {
		cfg.Run.Duration, _ = f.GetFloat64("duration")
	}
	if f.Changed("dt") {
		cfg.Run.DT, _ = f.GetFloat64("dt")
	}
	if f.Changed("seed") {
		cfg.Run.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("contexts") {
		cfg.Run.Contexts, _ = f.GetInt("contexts")
	}
	if f.Changed("results-dir") {
		cfg.Results.Dir, _ = f.GetString("results-dir")
	}
	if f.Changed("record") {
		cfg.Recording.Enabled, _ = f.GetBool("record")
	}
	if f.Changed("record-ticks") {
		cfg.Recording.Ticks, _ = f.GetBool("record-ticks")
	}
	if f.Changed("output") {
		cfg.Recording.Path, _ = f.GetString("output")
	}
	if f.Changed("monitor") {
		cfg.Monitor.Enabled, _ = f.GetBool("monitor")
	}
	if f.Changed("monitor-port") {
		cfg.Monitor.Port, _ = f.GetInt("monitor-port")
	}
	if f.Changed("open-browser") {
		cfg.Monitor.OpenBrowser, _ = f.GetBool("open-browser")
	}
	if f.Changed("report") {
		cfg.Run.Report, _ = f.GetBool("report")
	}
	if f.Changed("report-period") {
		cfg.Run.ReportPeriod, _ = f.GetDuration("report-period")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildSimulation(
	cfg *config.Config,
	cmd *cobra.Command,
	logger *zap.Logger,
) *simulation.Simulation {
	b := simulation.MakeBuilder().
		WithLogger(logger).
		WithDT(sim.VTimeInSec(cfg.Run.DT)).
		WithContexts(cfg.Run.Contexts).
		WithResultsDir(cfg.Results.Dir).
		WithInterruptHandling()

	if cfg.Run.Seeded() {
		b = b.WithSeed(uint32(cfg.Run.Seed))
	}

	if cfg.Run.Report {
		b = b.WithProgressReport(cmd.ErrOrStderr(), cfg.Run.ReportPeriod)
	}

	if cfg.Monitor.Enabled {
		b = b.WithMonitorPort(cfg.Monitor.Port)
	} else {
		b = b.WithoutMonitoring()
	}

	if !cfg.Recording.Enabled {
		b = b.WithoutDataRecording()
	} else {
		if cfg.Recording.Path != "" {
			b = b.WithOutputFileName(cfg.Recording.Path)
		}
		if cfg.Recording.Ticks {
			b = b.WithTickRecording()
		}
	}

	return b.Build()
}

func applyOverrides(
	cmd *cobra.Command,
	cfg *config.Config,
	model *ou.Model,
	args []string,
) error {
	names := make([]string, 0, len(cfg.Overrides))
	for name := range cfg.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := model.Set(name, cfg.Overrides[name]); err != nil {
			return err
		}
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	if err := model.SetFromArgs(sets); err != nil {
		return err
	}

	if err := model.SetFromArgs(args); err != nil {
		fmt.Fprintf(os.Stderr, "Known variables: %v\n", model.Variables())
		return err
	}

	return nil
}
