package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"matisse/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "matisse",
	Short: "Out-of-SSA lowering for the MATISSE C backend",
	Long: `matisse reads functions in SSA text form, converts them to conventional SSA,
computes liveness and interference, and partitions their names into C variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRun,
	PersistentPostRun: func(*cobra.Command, []string) { teardownRun() },
}

// main registers the subcommands and persistent flags, then runs the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(cfgCmd)
	rootCmd.AddCommand(cssaCmd)
	rootCmd.AddCommand(versionCmd)

	registerRootFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics per file")
	flags.Int("jobs", 0, "max parallel workers (0=auto)")
	flags.String("strategy", "", "allocation strategy (priority|single-pass)")
	flags.String("config", "", "path to matisse.toml (default: search upward from the working directory)")
	flags.Bool("no-cache", false, "disable the allocation disk cache")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both|tlog)")
	flags.Int("trace-ring-size", 0, "ring buffer capacity for --trace-mode ring|both")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0=off)")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// run holds the state shared by every subcommand of one invocation.
var run struct {
	manifest *projectManifest
	cleanups []func()
}

func setupRun(cmd *cobra.Command, _ []string) error {
	if err := applyColorFlag(cmd); err != nil {
		return err
	}
	manifest, err := loadManifestForCommand(cmd)
	if err != nil {
		return err
	}
	run.manifest = manifest
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	run.cleanups = append(run.cleanups, stopProfiling)
	stopTracing, err := setupTracing(cmd, manifest)
	if err != nil {
		teardownRun()
		return err
	}
	run.cleanups = append(run.cleanups, stopTracing)
	return nil
}

// teardownRun undoes setupRun in reverse order.
func teardownRun() {
	for i := len(run.cleanups) - 1; i >= 0; i-- {
		run.cleanups[i]()
	}
	run.cleanups = nil
}

func applyColorFlag(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch value {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return errInvalidFlag("color", value, "auto|on|off")
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
