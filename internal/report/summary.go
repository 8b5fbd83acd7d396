package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/srcbuild/internal/job"
)

// Log directory layout:
//
//	<source>/logs/
//	  summary.json            # one entry per job of the last run
//	  <version>/              # per-job logs; <package>-<version> on collision
//	    configure.log
//	    make.log
//	    install.log
const summaryFile = "summary.json"

// summaryEntry records the outcome of one job.
type summaryEntry struct {
	Archive   string     `json:"archive"`
	Package   string     `json:"package,omitempty"`
	Version   string     `json:"version,omitempty"`
	Status    job.Status `json:"status"`
	Stage     job.Stage  `json:"stage,omitempty"`
	Error     string     `json:"error,omitempty"`
	Toolchain string     `json:"toolchain,omitempty"`
	LogDir    string     `json:"log_dir,omitempty"`
	Duration  string     `json:"duration"`
}

// summaryRecord is the content of summary.json.
type summaryRecord struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Deps      map[string]string `json:"deps"`
	Jobs      []summaryEntry    `json:"jobs"`
	BuildTime time.Time         `json:"build_time"`
}

func newSummaryRecord(s *Summary, now time.Time) *summaryRecord {
	rec := &summaryRecord{
		Succeeded: len(s.Succeeded()),
		Failed:    len(s.Failed()),
		Deps:      make(map[string]string, len(s.Deps)),
		BuildTime: now,
	}
	for name, res := range s.Deps {
		if res != nil {
			rec.Deps[name] = res.Root
		} else {
			rec.Deps[name] = ""
		}
	}
	for _, o := range s.Outcomes {
		e := summaryEntry{
			Archive:   filepath.Base(o.Job.Archive),
			Package:   o.Job.Package,
			Version:   o.Job.Version.Raw,
			Status:    o.Status,
			Stage:     o.Stage,
			Toolchain: o.Toolchain,
			LogDir:    o.Job.LogDir,
			Duration:  o.Duration.Round(time.Millisecond).String(),
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		rec.Jobs = append(rec.Jobs, e)
	}
	return rec
}

// saveSummary writes the summary of s to path.
func saveSummary(path string, s *Summary, now time.Time) error {
	data, err := json.MarshalIndent(newSummaryRecord(s, now), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadSummary reads a summary written by saveSummary.
func loadSummary(path string) (*summaryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec summaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
