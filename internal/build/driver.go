// Package build drives the upstream build system of one extracted source
// tree through configure, compile and install.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/goplus/srcbuild/internal/job"
	"github.com/goplus/srcbuild/internal/locate"
	"github.com/goplus/srcbuild/pkgs/toolchain"
	"github.com/goplus/srcbuild/x/autotools"
	"github.com/goplus/srcbuild/x/cmake"
	"github.com/goplus/srcbuild/x/meson"
)

// Log file names inside a job's log directory.
const (
	ConfigureLog = "configure.log"
	CompileLog   = "make.log"
	InstallLog   = "install.log"
)

// DefaultTailLines is the number of log lines attached to a step failure.
const DefaultTailLines = 20

// ErrNoToolchain is returned when neither the policy nor the tree names a
// build system.
var ErrNoToolchain = errors.New("no build system detected")

// State is a step of the per-job state machine.
type State int

const (
	Staged State = iota
	Configuring
	Compiling
	Installing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Staged:
		return "Staged"
	case Configuring:
		return "Configuring"
	case Compiling:
		return "Compiling"
	case Installing:
		return "Installing"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition is reported to Driver.OnState on every state change.
type Transition struct {
	Job   *job.Job
	State State
	Stage job.Stage // failing stage when State is Failed
}

// Driver builds one job at a time. Deps and Env are shared read-only by all
// jobs; each job works on its own copy of Env.
type Driver struct {
	Runner   toolchain.Runner
	Policy   Policy
	Profiles Profiles
	Deps     map[string]*locate.Resolved
	Env      *toolchain.Env // base environment; nil means the process environment
	GOOS     string         // defaults to runtime.GOOS

	Jobs      int // compile parallelism; defaults to runtime.NumCPU()
	TailLines int // defaults to DefaultTailLines

	Make           string // make program for autotools; defaults to gmake on BSDs
	CMakeGenerator string
	// BuildType uses the CMake names (Release, Debug, RelWithDebInfo,
	// MinSizeRel) and is translated for meson. Empty keeps each
	// toolchain's release default.
	BuildType          string
	CMakeToolchainFile string

	// Echo also receives every step's output when non-nil.
	Echo io.Writer
	// OnState observes state transitions.
	OnState func(Transition)
}

func (d *Driver) goos() string {
	if d.GOOS != "" {
		return d.GOOS
	}
	return runtime.GOOS
}

// Select returns the toolchain for j. Policy rules come first; when none
// matches and srcDir is not empty, the tree is inspected.
func (d *Driver) Select(j *job.Job, srcDir string) (string, error) {
	name, err := d.Policy.Select(j.Package, d.goos(), j.Version)
	if err != nil || name != "" {
		return name, err
	}
	if srcDir != "" {
		name = Detect(srcDir)
	}
	if name == "" {
		return "", ErrNoToolchain
	}
	return name, nil
}

// Build runs configure, compile and install for j on the tree at srcDir.
// It returns the selected toolchain name, and a *job.StepError tagged with
// the failing stage on failure.
func (d *Driver) Build(ctx context.Context, j *job.Job, srcDir string) (string, error) {
	d.transition(j, Staged, job.StageNone)
	log := zap.S().With("job", j.ID())

	if err := os.MkdirAll(j.LogDir, 0o755); err != nil {
		return "", d.fail(j, &job.StepError{Stage: job.Configure, Err: err})
	}

	name, err := d.Select(j, srcDir)
	if err != nil {
		return "", d.fail(j, d.note(j, job.Configure, ConfigureLog, err))
	}
	factory, ok := toolchains[name]
	if !ok {
		return name, d.fail(j, d.note(j, job.Configure, ConfigureLog, fmt.Errorf("unknown toolchain %q", name)))
	}

	env := d.jobEnv()
	buildDir := j.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join(srcDir, "_build")
	}
	tc := factory(d.Runner, env, toolchain.Dirs{Source: srcDir, Build: buildDir, Install: j.InstallDir})
	d.tune(tc)
	args := d.Profiles.Lookup(j.Package).Args(name, d.Deps)
	log.Debugw("toolchain selected", "toolchain", name, "args", args)

	jobs := d.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	d.transition(j, Configuring, job.StageNone)
	err = d.step(j, job.Configure, ConfigureLog, func(w io.Writer) error {
		fmt.Fprintf(w, "# %s %s with %s\n", j.Package, j.Version, name)
		for _, dep := range sortedNames(d.Deps) {
			created, err := locate.Relocate(d.Deps[dep], name)
			for _, f := range created {
				fmt.Fprintf(w, "# relocated %s\n", f)
			}
			if err != nil {
				return err
			}
		}
		return tc.Configure(ctx, w, args...)
	})
	if err != nil {
		return name, d.fail(j, err)
	}

	d.transition(j, Compiling, job.StageNone)
	if err := d.step(j, job.Compile, CompileLog, func(w io.Writer) error {
		return tc.Build(ctx, w, jobs)
	}); err != nil {
		return name, d.fail(j, err)
	}

	d.transition(j, Installing, job.StageNone)
	if err := d.step(j, job.Install, InstallLog, func(w io.Writer) error {
		return tc.Install(ctx, w)
	}); err != nil {
		return name, d.fail(j, err)
	}

	d.transition(j, Done, job.StageNone)
	log.Debugw("built", "output", tc.OutputDir())
	return name, nil
}

// jobEnv clones the base environment and widens its search paths for every
// located dependency.
func (d *Driver) jobEnv() *toolchain.Env {
	var env *toolchain.Env
	if d.Env != nil {
		env = d.Env.Clone()
	} else {
		env = toolchain.NewEnv(os.Environ())
	}
	env.GOOS = d.goos()
	for _, name := range sortedNames(d.Deps) {
		if res := d.Deps[name]; res != nil {
			env.Use(res.Root, res.IncludeDir, res.LibDir)
		}
	}
	return env
}

func (d *Driver) tune(tc toolchain.Toolchain) {
	switch tc := tc.(type) {
	case *autotools.AutoTools:
		if d.Make != "" {
			tc.Make(d.Make)
		} else if isBSD(d.goos()) {
			tc.Make("gmake")
		}
	case *cmake.CMake:
		if d.CMakeGenerator != "" {
			tc.Generator(d.CMakeGenerator)
		}
		if d.BuildType != "" {
			tc.BuildType(d.BuildType)
		}
		if d.CMakeToolchainFile != "" {
			tc.Toolchain(d.CMakeToolchainFile)
		}
	case *meson.Meson:
		if d.BuildType != "" {
			tc.BuildType(mesonBuildType(d.BuildType))
		}
	}
}

func mesonBuildType(name string) string {
	switch strings.ToLower(name) {
	case "relwithdebinfo":
		return "debugoptimized"
	case "minsizerel":
		return "minsize"
	}
	return strings.ToLower(name)
}

// step runs fn with its output going to a fresh log file, truncated on each
// run. On failure the last lines of output are kept on the error.
func (d *Driver) step(j *job.Job, stage job.Stage, logName string, fn func(w io.Writer) error) error {
	path := filepath.Join(j.LogDir, logName)
	f, err := os.Create(path)
	if err != nil {
		return &job.StepError{Stage: stage, LogPath: path, Err: err}
	}
	n := d.TailLines
	if n <= 0 {
		n = DefaultTailLines
	}
	t := newTail(n)
	writers := []io.Writer{f, t}
	if d.Echo != nil {
		writers = append(writers, d.Echo)
	}
	runErr := fn(io.MultiWriter(writers...))
	if runErr != nil {
		fmt.Fprintf(io.MultiWriter(f, t), "# %s failed: %v\n", logName, runErr)
	}
	closeErr := f.Close()
	if runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return &job.StepError{Stage: stage, LogPath: path, Tail: t.Lines(), Err: runErr}
	}
	return nil
}

// note records err in the stage log before any tool ran.
func (d *Driver) note(j *job.Job, stage job.Stage, logName string, err error) error {
	return d.step(j, stage, logName, func(io.Writer) error { return err })
}

func (d *Driver) fail(j *job.Job, err error) error {
	stage := job.Configure
	var se *job.StepError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	d.transition(j, Failed, stage)
	return err
}

func (d *Driver) transition(j *job.Job, s State, stage job.Stage) {
	zap.S().Debugw("state", "job", j.ID(), "state", s.String())
	if d.OnState != nil {
		d.OnState(Transition{Job: j, State: s, Stage: stage})
	}
}

func sortedNames(deps map[string]*locate.Resolved) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isBSD(goos string) bool {
	switch goos {
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return true
	}
	return false
}
