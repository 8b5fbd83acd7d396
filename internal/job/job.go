// Package job defines the unit of work of a run and the error taxonomy
// recorded into its outcome.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/goplus/srcbuild/pkgs/version"
)

// Stage names the step at which a job stopped.
type Stage int

const (
	StageNone Stage = iota
	Parse
	Extract
	Configure
	Compile
	Install
)

var stageNames = [...]string{"", "Parse", "Extract", "Configure", "Compile", "Install"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", b)
}

// Status is the final state of a job.
type Status int

const (
	Succeeded Status = iota
	Failed
)

func (s Status) String() string {
	if s == Succeeded {
		return "Succeeded"
	}
	return "Failed"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Succeeded":
		*s = Succeeded
	case "Failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Job is one archive to build. It is not modified after creation.
type Job struct {
	Archive    string          // archive path
	Package    string          // package name parsed from the archive
	Version    version.Version // parsed version; zero when parsing failed
	SourceDir  string          // extraction target
	BuildDir   string          // out-of-tree build directory inside SourceDir
	LogDir     string          // per-job log directory
	InstallDir string          // install prefix
}

// ID returns "<package>-<version>", or the archive base name for a job whose
// name did not parse.
func (j *Job) ID() string {
	if j.Version.IsZero() {
		return baseName(j.Archive)
	}
	return j.Package + "-" + j.Version.Raw
}

// Outcome is the result of one job. It is produced once and never mutated.
type Outcome struct {
	Job       *Job
	Status    Status
	Stage     Stage // stage that failed; StageNone on success
	Err       error
	Toolchain string
	Duration  time.Duration
}

// Failed reports whether the job failed.
func (o *Outcome) Failed() bool { return o.Status == Failed }

// VersionParseError reports an archive whose name does not carry a valid
// version.
type VersionParseError struct {
	Name string
	Err  error
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse version: %v", e.Name, e.Err)
}

func (e *VersionParseError) Unwrap() error { return e.Err }

// ExtractionError reports a failed decompression.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// LayoutError reports an extraction that did not produce a recognizable tree.
type LayoutError struct {
	Archive string
	Want    string // expected directory name
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("extract %s: no %s directory or plausible fallback found", e.Archive, e.Want)
}

// StepError reports a non-zero exit of the underlying build tool. Stage is
// Configure, Compile or Install.
type StepError struct {
	Stage   Stage
	LogPath string
	Tail    []string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v (see %s)", strings.ToLower(e.Stage.String()), e.Err, e.LogPath)
}

func (e *StepError) Unwrap() error { return e.Err }

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
