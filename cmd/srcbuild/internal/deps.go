package internal

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/srcbuild/internal/report"
)

func newDepsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [source-dir]",
		Short: "Show which optional native libraries were found",
		Long: `Deps runs the dependency probes a build would run and prints where each
library was found, without building anything.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, f, args)
		},
	}
}

func runDeps(cmd *cobra.Command, f *flags, args []string) error {
	ctx := cmd.Context()
	s, err := setup(ctx, cmd, f, args)
	if err != nil {
		return err
	}
	defer s.flush()

	out := s.opts.Out
	deps := s.opts.Locator.LocateAll(ctx, s.opts.Specs)
	var missing []string
	for _, spec := range s.opts.Specs {
		res := deps[spec.Name]
		if res == nil {
			fmt.Fprintf(out, "%-10s %s\n", spec.Name, color.Warn.Sprint("not found"))
			continue
		}
		fmt.Fprintf(out, "%-10s %s\n", spec.Name, color.Success.Sprint(res.Root))
		fmt.Fprintf(out, "%-10s lib %s\n", "", res.LibDir)
		if res.IncludeDir != "" {
			fmt.Fprintf(out, "%-10s include %s\n", "", res.IncludeDir)
		}
	}
	for _, name := range s.opts.Require {
		if deps[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &report.MissingRequiredError{Names: missing}
	}
	return nil
}
