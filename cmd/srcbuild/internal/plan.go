package internal

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/srcbuild/internal/build"
	"github.com/goplus/srcbuild/internal/report"
)

func newPlanCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [source-dir]",
		Short: "List the jobs a build would run",
		Long: `Plan lists the archives of the source directory in build order with the
toolchain each one would use. Nothing is extracted or written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, f, args)
		},
	}
}

func runPlan(cmd *cobra.Command, f *flags, args []string) error {
	s, err := setup(cmd.Context(), cmd, f, args)
	if err != nil {
		return err
	}
	defer s.flush()

	jobs, invalid, err := report.Discover(s.opts)
	if err != nil {
		return err
	}
	out := s.opts.Out
	for i, j := range jobs {
		tc, err := s.opts.Driver.Select(j, "")
		switch {
		case errors.Is(err, build.ErrNoToolchain):
			tc = "detect"
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "%s %-24s %-10s %s\n", color.Info.Sprintf("%2d.", i+1), j.ID(), tc, j.LogDir)
	}
	for _, j := range invalid {
		fmt.Fprintf(out, "%s %-24s %s\n", color.Danger.Sprint("  -"), filepath.Base(j.Archive), "unparsable version, skipped")
	}
	return nil
}
