package internal

import (
	"github.com/spf13/cobra"

	"github.com/goplus/srcbuild/internal/report"
)

func runBuild(cmd *cobra.Command, f *flags, args []string) error {
	ctx := cmd.Context()
	s, err := setup(ctx, cmd, f, args)
	if err != nil {
		return err
	}
	defer s.flush()

	summary, err := report.Run(ctx, s.opts)
	if err != nil {
		return err
	}
	if summary.ExitCode() != 0 {
		return errFailed
	}
	return nil
}
