package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goplus/srcbuild/internal/build"
	"github.com/goplus/srcbuild/internal/config"
	"github.com/goplus/srcbuild/internal/locate"
	"github.com/goplus/srcbuild/internal/logger"
	"github.com/goplus/srcbuild/internal/report"
	"github.com/goplus/srcbuild/internal/stage"
	"github.com/goplus/srcbuild/internal/toolenv"
	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// session is the assembled state shared by all subcommands.
type session struct {
	cfg   *config.Config
	opts  report.Options
	flush func()
}

// setup loads the configuration for the source directory named in args and
// assembles the run options. Flags override SRCBUILD_* variables, which
// override the config file.
func setup(ctx context.Context, cmd *cobra.Command, f *flags, args []string) (*session, error) {
	if f.noColor {
		color.Enable = false
	}
	flush, err := logger.Init(f.verbose, color.Enable)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	sourceDir := "."
	if len(args) > 0 {
		sourceDir = args[0]
	}
	if sourceDir, err = filepath.Abs(sourceDir); err != nil {
		flush()
		return nil, err
	}

	cfg, err := config.Load(f.configPath, sourceDir)
	if err != nil {
		flush()
		return nil, err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		flush()
		return nil, err
	}
	if cfg.Path != "" {
		zap.S().Debugw("loaded config", "path", cfg.Path)
	}

	s := &session{cfg: cfg, flush: flush}
	if s.opts, err = assemble(ctx, cfg, sourceDir); err != nil {
		flush()
		return nil, err
	}
	s.opts.Out = cmd.OutOrStdout()
	if f.verbose {
		s.opts.Driver.Echo = s.opts.Out
	}
	return s, nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if fl.Changed("tail") {
		cfg.Tail = f.tail
	}
	if fl.Changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if fl.Changed("prefix") {
		cfg.Prefix = f.prefix
	}
	if fl.Changed("extractor") {
		cfg.Extractor = f.extractor
	}
	if fl.Changed("require") {
		cfg.Require = f.require
	}
}

func assemble(ctx context.Context, cfg *config.Config, sourceDir string) (report.Options, error) {
	runner := toolchain.ExecRunner{}
	base := toolchain.NewEnv(os.Environ())
	if s := cfg.EnvScript; s != nil {
		vars, err := toolenv.Capture(ctx, runner, s.Path, s.Args, runtime.GOOS)
		if err != nil {
			return report.Options{}, err
		}
		base.Merge(vars)
		zap.S().Debugw("captured toolchain environment", "script", s.Path, "vars", len(vars))
	}

	extractor, err := stage.NewExtractor(cfg.Extractor, runner)
	if err != nil {
		return report.Options{}, err
	}

	driver := &build.Driver{
		Runner:         runner,
		Policy:         cfg.FullPolicy(),
		Profiles:       cfg.Profiles(),
		Env:            base,
		Jobs:           cfg.Jobs,
		TailLines:      cfg.Tail,
		Make:           cfg.Make,
		CMakeGenerator: cfg.CMakeGenerator,
		BuildType:      cfg.BuildType,
	}
	if cfg.CMakeToolchainFile != "" {
		abs, err := filepath.Abs(cfg.CMakeToolchainFile)
		if err != nil {
			return report.Options{}, err
		}
		driver.CMakeToolchainFile = abs
	}

	opts := report.Options{
		SourceDir: sourceDir,
		Stager:    &stage.Stager{Extractor: extractor},
		Driver:    driver,
		Locator:   &locate.Locator{Runner: runner},
		Specs:     cfg.Specs(runtime.GOOS),
		Require:   cfg.Require,
	}
	for _, p := range []struct {
		dst *string
		src string
	}{{&opts.WorkDir, cfg.WorkDir}, {&opts.Prefix, cfg.Prefix}} {
		if p.src == "" {
			continue
		}
		abs, err := filepath.Abs(p.src)
		if err != nil {
			return report.Options{}, err
		}
		*p.dst = abs
	}
	return opts, nil
}
