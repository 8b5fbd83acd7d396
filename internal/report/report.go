// Package report discovers the archives of a source directory, builds them
// in version order and reports the outcome of each.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/goplus/srcbuild/internal/build"
	"github.com/goplus/srcbuild/internal/env"
	"github.com/goplus/srcbuild/internal/job"
	"github.com/goplus/srcbuild/internal/locate"
	"github.com/goplus/srcbuild/internal/stage"
	"github.com/goplus/srcbuild/pkgs/version"
)

var (
	// ErrSourceDir means the source directory is missing or not a directory.
	ErrSourceDir = errors.New("source directory not found")
	// ErrNoArchives means the source directory holds no archive.
	ErrNoArchives = errors.New("no archives found")
)

// MissingRequiredError lists dependencies that were required but not found.
type MissingRequiredError struct {
	Names []string
}

func (e *MissingRequiredError) Error() string {
	return "required dependencies not found: " + strings.Join(e.Names, ", ")
}

// Options configures a run.
type Options struct {
	SourceDir string // directory holding the archives
	WorkDir   string // extraction root; defaults to SourceDir
	Prefix    string // install root; defaults to <SourceDir>/install

	Stager  *stage.Stager
	Driver  *build.Driver
	Locator *locate.Locator
	Specs   []locate.Spec
	Require []string // dependencies whose absence is fatal

	Out io.Writer // status lines; defaults to os.Stdout
}

// Summary is the result of a run.
type Summary struct {
	LogRoot  string
	Deps     map[string]*locate.Resolved
	Outcomes []*job.Outcome
}

// Succeeded returns the outcomes of successful jobs.
func (s *Summary) Succeeded() []*job.Outcome {
	return s.filter(false)
}

// Failed returns the outcomes of failed jobs.
func (s *Summary) Failed() []*job.Outcome {
	return s.filter(true)
}

func (s *Summary) filter(failed bool) []*job.Outcome {
	var out []*job.Outcome
	for _, o := range s.Outcomes {
		if o.Failed() == failed {
			out = append(out, o)
		}
	}
	return out
}

// ExitCode returns 1 when any job failed, 0 otherwise.
func (s *Summary) ExitCode() int {
	if len(s.Failed()) > 0 {
		return 1
	}
	return 0
}

// Discover lists the archives of dir as jobs sorted by ascending version.
// Archives whose names do not parse are returned separately, by name, and
// carry a zero Version.
func Discover(opts Options) (jobs, invalid []*job.Job, err error) {
	fi, err := os.Stat(opts.SourceDir)
	if err != nil || !fi.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrSourceDir, opts.SourceDir)
	}
	entries, err := os.ReadDir(opts.SourceDir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !version.IsArchive(e.Name()) {
			continue
		}
		archive := filepath.Join(opts.SourceDir, e.Name())
		pkg, v, err := version.ParseArchive(e.Name())
		if err != nil {
			invalid = append(invalid, &job.Job{Archive: archive})
			continue
		}
		jobs = append(jobs, &job.Job{Archive: archive, Package: pkg, Version: v})
	}
	if len(jobs)+len(invalid) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoArchives, opts.SourceDir)
	}
	slices.SortStableFunc(jobs, func(a, b *job.Job) int {
		if c := version.Compare(a.Version, b.Version); c != 0 {
			return c
		}
		return strings.Compare(a.Package, b.Package)
	})

	workDir := orDefault(opts.WorkDir, opts.SourceDir)
	prefix := orDefault(opts.Prefix, filepath.Join(opts.SourceDir, env.InstallDirName))
	logRoot := filepath.Join(opts.SourceDir, env.LogDirName)
	usedLogs := make(map[string]bool)
	for _, j := range jobs {
		id := j.Package + "-" + j.Version.Raw
		j.SourceDir = filepath.Join(workDir, id)
		j.BuildDir = filepath.Join(j.SourceDir, env.BuildDirName)
		j.InstallDir = filepath.Join(prefix, id)
		logName := j.Version.Raw
		if usedLogs[logName] {
			logName = id
		}
		usedLogs[logName] = true
		j.LogDir = filepath.Join(logRoot, logName)
	}
	return jobs, invalid, nil
}

// Run builds every archive of opts.SourceDir. Only a missing source
// directory, an empty one, or a missing required dependency is returned as
// an error, and always before the log directory is created. Job failures
// are recorded in the summary.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	jobs, invalid, err := Discover(opts)
	if err != nil {
		return nil, err
	}

	l := opts.Locator
	if l == nil {
		l = &locate.Locator{}
	}
	deps := l.LocateAll(ctx, opts.Specs)
	var missing []string
	for _, name := range opts.Require {
		if deps[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredError{Names: missing}
	}

	logRoot := filepath.Join(opts.SourceDir, env.LogDirName)
	if err := os.MkdirAll(logRoot, 0o755); err != nil {
		return nil, err
	}
	printDeps(out, opts.Specs, deps)

	driver := opts.Driver
	if driver == nil {
		driver = &build.Driver{}
	}
	driver.Deps = deps
	stager := opts.Stager
	if stager == nil {
		stager = &stage.Stager{Extractor: &stage.Builtin{}}
	}

	s := &Summary{LogRoot: logRoot, Deps: deps}
	total := len(jobs) + len(invalid)
	for i, j := range jobs {
		fmt.Fprintf(out, "%s %s %s\n", color.Info.Sprintf("[%d/%d]", i+1, total), color.Bold.Sprint(j.Package), j.Version)
		o := runJob(ctx, stager, driver, j)
		printOutcome(out, o)
		s.Outcomes = append(s.Outcomes, o)
	}
	for i, j := range invalid {
		fmt.Fprintf(out, "%s %s\n", color.Info.Sprintf("[%d/%d]", len(jobs)+i+1, total), color.Bold.Sprint(filepath.Base(j.Archive)))
		_, _, perr := version.ParseArchive(filepath.Base(j.Archive))
		o := &job.Outcome{
			Job:    j,
			Status: job.Failed,
			Stage:  job.Parse,
			Err:    &job.VersionParseError{Name: filepath.Base(j.Archive), Err: perr},
		}
		printOutcome(out, o)
		s.Outcomes = append(s.Outcomes, o)
	}

	if err := saveSummary(filepath.Join(logRoot, summaryFile), s, time.Now()); err != nil {
		zap.S().Warnw("cannot write summary", "err", err)
	}
	printSummary(out, s)
	return s, nil
}

func runJob(ctx context.Context, stager *stage.Stager, driver *build.Driver, j *job.Job) *job.Outcome {
	start := time.Now()
	o := &job.Outcome{Job: j, Status: job.Succeeded}
	defer func() { o.Duration = time.Since(start) }()

	if err := os.MkdirAll(j.LogDir, 0o755); err != nil {
		o.Status, o.Stage, o.Err = job.Failed, job.Extract, &job.ExtractionError{Archive: j.Archive, Err: err}
		return o
	}
	srcDir, err := stager.Stage(ctx, j, nil)
	if err != nil {
		o.Status, o.Stage, o.Err = job.Failed, job.Extract, err
		return o
	}
	tc, err := driver.Build(ctx, j, srcDir)
	o.Toolchain = tc
	if err != nil {
		o.Status, o.Err = job.Failed, err
		o.Stage = job.Configure
		var se *job.StepError
		if errors.As(err, &se) {
			o.Stage = se.Stage
		}
	}
	return o
}

func printDeps(out io.Writer, specs []locate.Spec, deps map[string]*locate.Resolved) {
	for _, spec := range specs {
		if res := deps[spec.Name]; res != nil {
			fmt.Fprintf(out, "%s %s %s\n", color.Success.Sprint("found"), spec.Name, res.Root)
		} else {
			fmt.Fprintf(out, "%s %s, building without it\n", color.Warn.Sprint("missing"), spec.Name)
		}
	}
}

func printOutcome(out io.Writer, o *job.Outcome) {
	if !o.Failed() {
		fmt.Fprintf(out, "  %s with %s in %s\n", color.Success.Sprint("ok"), o.Toolchain, o.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(out, "  %s at %s: %v\n", color.Danger.Sprint("FAILED"), o.Stage, o.Err)
	var se *job.StepError
	if errors.As(o.Err, &se) {
		for _, line := range se.Tail {
			fmt.Fprintf(out, "    | %s\n", line)
		}
	}
}

func printSummary(out io.Writer, s *Summary) {
	ok, failed := s.Succeeded(), s.Failed()
	fmt.Fprintf(out, "\n%s: %d succeeded, %d failed\n", color.Bold.Sprint("summary"), len(ok), len(failed))
	if len(ok) > 0 {
		fmt.Fprintf(out, "  %s %s\n", color.Success.Sprint("succeeded:"), ids(ok))
	}
	if len(failed) > 0 {
		fmt.Fprintf(out, "  %s %s\n", color.Danger.Sprint("failed:"), ids(failed))
	}
	fmt.Fprintf(out, "  logs: %s\n", s.LogRoot)
}

func ids(outcomes []*job.Outcome) string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		name := o.Job.ID()
		if o.Failed() {
			name += " (" + o.Stage.String() + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
