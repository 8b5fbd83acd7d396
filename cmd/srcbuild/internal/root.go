package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

// errFailed reports that at least one job failed. The summary has already
// been printed, so Execute only sets the exit code.
var errFailed = errors.New("one or more builds failed")

type flags struct {
	jobs       int
	tail       int
	workDir    string
	prefix     string
	configPath string
	extractor  string
	require    []string
	verbose    bool
	noColor    bool
}

func newRootCmd(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "srcbuild [source-dir]",
		Short: "srcbuild builds a directory of versioned source archives",
		Long: `srcbuild extracts every versioned source archive of a directory, picks the
upstream build system for each version and builds them in version order,
enabling optional features for the native libraries found on this machine.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, f, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (default <source-dir>/srcbuild.yaml)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Echo build output and enable debug logging")
	pf.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	pf.StringSliceVar(&f.require, "require", nil, "Fail before building when this dependency is missing (repeatable)")
	pf.IntVarP(&f.jobs, "jobs", "j", 0, "Compile parallelism (default: number of CPUs)")
	pf.IntVar(&f.tail, "tail", 0, "Log lines shown for a failed step (default 20)")
	pf.StringVar(&f.workDir, "work-dir", "", "Extraction root (default <source-dir>)")
	pf.StringVar(&f.prefix, "prefix", "", "Install root (default <source-dir>/install)")
	pf.StringVar(&f.extractor, "extractor", "", "Archive extractor: builtin or tar")

	rootCmd.AddCommand(newDepsCmd(f), newPlanCmd(f))
	return rootCmd
}

// Execute runs the srcbuild command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := newRootCmd(&flags{}).Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, color.Danger.Sprint("error:"), err)
		}
		os.Exit(1)
	}
}
