// Package cmd provides the command-line interface for stepsim.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stepsim",
	Short: "stepsim runs time-stepped simulations.",
	Long: `stepsim advances a network of clocks and invokes the callbacks ` +
		`bound to them until a simulated duration is reached. It ships ` +
		`with an Ornstein-Uhlenbeck demo model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(underscoreToDash)
}

// underscoreToDash lets flags be spelled with underscores, as in
// --results_dir.
func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
