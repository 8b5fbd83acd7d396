// Package stage extracts source archives into their build location.
package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/goplus/srcbuild/internal/job"
)

// Stager extracts the archive of a job into job.SourceDir.
type Stager struct {
	Extractor Extractor
}

// Stage extracts j.Archive into a fresh staging directory next to
// j.SourceDir, picks the extracted tree and moves it into place, replacing
// any tree left by a previous run. It returns the final source directory.
//
// The tree is picked in this order: a directory named <package>-<version>;
// the staging root itself when the archive has no top-level directory; the
// most recently modified directory named <package>-<major> followed by '.',
// '_', '-' or nothing, such as postgresql-16.0-docs for postgresql-16.2.
func (s *Stager) Stage(ctx context.Context, j *job.Job, out io.Writer) (string, error) {
	parent := filepath.Dir(j.SourceDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", &job.ExtractionError{Archive: j.Archive, Err: err}
	}
	staging, err := os.MkdirTemp(parent, ".stage-"+j.ID()+"-")
	if err != nil {
		return "", &job.ExtractionError{Archive: j.Archive, Err: err}
	}
	defer os.RemoveAll(staging)

	if err := s.Extractor.Extract(ctx, j.Archive, staging, out); err != nil {
		return "", &job.ExtractionError{Archive: j.Archive, Err: err}
	}

	want := j.Package + "-" + j.Version.Raw
	tree, err := pickTree(staging, j.Package, want, j.Version.Major)
	if err != nil {
		return "", &job.ExtractionError{Archive: j.Archive, Err: err}
	}
	if tree == "" {
		return "", &job.LayoutError{Archive: j.Archive, Want: want}
	}
	if err := replace(tree, j.SourceDir); err != nil {
		return "", &job.ExtractionError{Archive: j.Archive, Err: err}
	}
	zap.S().Debugw("staged", "archive", j.Archive, "tree", filepath.Base(tree), "dir", j.SourceDir)
	return j.SourceDir, nil
}

func pickTree(staging, pkg, want string, major int) (string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(filepath.Join(staging, want)); err == nil && fi.IsDir() {
		return filepath.Join(staging, want), nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			return staging, nil
		}
	}

	majorRe := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(pkg+"-"+strconv.Itoa(major)) + `([._-]|$)`)
	var (
		best    string
		bestMod int64
	)
	for _, e := range entries {
		if !majorRe.MatchString(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return "", err
		}
		mod := fi.ModTime().UnixNano()
		if best == "" || mod > bestMod || (mod == bestMod && e.Name() > filepath.Base(best)) {
			best, bestMod = filepath.Join(staging, e.Name()), mod
		}
	}
	return best, nil
}

// replace moves tree to dst. An existing dst is moved aside first and removed
// only after tree is in place, so dst never holds a mix of two extractions.
func replace(tree, dst string) error {
	var stale string
	if _, err := os.Lstat(dst); err == nil {
		aside, err := os.MkdirTemp(filepath.Dir(dst), ".stale-")
		if err != nil {
			return err
		}
		stale = filepath.Join(aside, "tree")
		if err := os.Rename(dst, stale); err != nil {
			os.RemoveAll(aside)
			return fmt.Errorf("move previous tree aside: %w", err)
		}
		defer os.RemoveAll(aside)
	}
	if err := os.Rename(tree, dst); err != nil {
		if stale != "" {
			os.Rename(stale, dst)
		}
		return err
	}
	return nil
}
