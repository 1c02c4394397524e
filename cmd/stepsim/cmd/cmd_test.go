package cmd

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/stepsim/datarecording"
	"github.com/sarchlab/stepsim/results"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var _ = Describe("Commands", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = bytes.NewBuffer(nil)
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
		for _, c := range []*cobra.Command{runCmd, inspectCmd} {
			c.Flags().VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
	})

	It("should print the version", func() {
		rootCmd.SetArgs([]string{"version"})

		Expect(rootCmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("stepsim dev\n"))
	})

	It("should run the demo model", func() {
		dir := GinkgoT().TempDir()
		rootCmd.SetArgs([]string{
			"run",
			"--duration", "0.001",
			"--seed", "42",
			"--results_dir", dir,
			"--record=false",
			"--report",
			"--log-level", "error",
			"ou.tau=0.25",
		})

		Expect(rootCmd.Execute()).To(Succeed())

		_, completed, err := results.ReadRunInfo(
			filepath.Join(dir, results.RunInfoFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(completed).To(Equal(1.0))

		tau := make([]float64, 1)
		Expect(results.ReadArray(filepath.Join(dir, "ou_tau"), tau)).
			To(Succeed())
		Expect(tau).To(Equal([]float64{0.25}))

		ts := make([]float64, 10)
		Expect(results.ReadArray(filepath.Join(dir, "statemonitor_t"), ts)).
			To(Succeed())

		Expect(out.String()).To(ContainSubstring("Starting simulation at t=0 s"))
	})

	It("should inspect a recording", func() {
		dir := GinkgoT().TempDir()
		rootCmd.SetArgs([]string{
			"run",
			"--duration", "0.001",
			"--seed", "42",
			"--results-dir", dir,
			"--output", filepath.Join(dir, "recording"),
			"--record-ticks",
			"--log-level", "error",
		})
		Expect(rootCmd.Execute()).To(Succeed())

		out.Reset()
		rootCmd.SetArgs([]string{
			"inspect", filepath.Join(dir, "recording.sqlite3"),
			"--limit", "2",
		})
		Expect(rootCmd.Execute()).To(Succeed())

		text := out.String()
		Expect(text).To(ContainSubstring("run_info (1 rows)"))
		Expect(text).To(ContainSubstring("statemonitor (10 rows)"))
		Expect(text).To(ContainSubstring("network_tick (10 rows)"))
		Expect(text).To(ContainSubstring("network_run (1 rows)"))
		Expect(text).To(MatchRegexp(`Time\s+Element\s+Y`))
		Expect(text).To(ContainSubstring("... 8 more"))

		out.Reset()
		rootCmd.SetArgs([]string{
			"inspect", filepath.Join(dir, "recording.sqlite3"),
			"--table", "run_info",
		})
		Expect(rootCmd.Execute()).To(Succeed())
		Expect(out.String()).To(HavePrefix("run_info (1 rows)\n"))
		Expect(out.String()).NotTo(ContainSubstring("statemonitor"))
	})

	It("should reject a missing table", func() {
		dir := GinkgoT().TempDir()
		rootCmd.SetArgs([]string{
			"run",
			"--duration", "0.001",
			"--results-dir", dir,
			"--output", filepath.Join(dir, "recording"),
			"--log-level", "error",
		})
		Expect(rootCmd.Execute()).To(Succeed())

		rootCmd.SetArgs([]string{
			"inspect", filepath.Join(dir, "recording.sqlite3"),
			"--table", "nothing",
		})
		Expect(rootCmd.Execute()).To(MatchError(datarecording.ErrNoTable))
	})

	It("should reject a missing recording", func() {
		rootCmd.SetArgs([]string{
			"inspect", filepath.Join(GinkgoT().TempDir(), "none.sqlite3"),
		})

		Expect(rootCmd.Execute()).NotTo(Succeed())
	})

	It("should reject unknown variables", func() {
		rootCmd.SetArgs([]string{
			"run",
			"--duration", "0.001",
			"--results-dir", GinkgoT().TempDir(),
			"--record=false",
			"--log-level", "error",
			"ou.v=1",
		})

		Expect(rootCmd.Execute()).To(MatchError(ContainSubstring("unknown variable")))
	})

	It("should reject invalid settings", func() {
		rootCmd.SetArgs([]string{
			"run",
			"--dt", "0",
			"--results-dir", GinkgoT().TempDir(),
		})

		Expect(rootCmd.Execute()).NotTo(Succeed())
	})
})
