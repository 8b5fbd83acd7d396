package stage

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Extractor names accepted by NewExtractor.
const (
	ExtractorBuiltin = "builtin"
	ExtractorTar     = "tar"
)

// Extractor unpacks an archive into an existing empty directory.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string, out io.Writer) error
}

// NewExtractor returns the extractor called name. An empty name selects the
// builtin one.
func NewExtractor(name string, r toolchain.Runner) (Extractor, error) {
	switch name {
	case "", ExtractorBuiltin:
		return &Builtin{Progress: ProgressWriter()}, nil
	case ExtractorTar:
		if r == nil {
			r = toolchain.ExecRunner{}
		}
		return &Tar{Runner: r}, nil
	}
	return nil, fmt.Errorf("unknown extractor %q (want %s or %s)", name, ExtractorBuiltin, ExtractorTar)
}

// ProgressWriter returns stderr when it is a terminal, nil otherwise.
func ProgressWriter() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return os.Stderr
	}
	return nil
}

// Tar extracts with the system tar.
type Tar struct {
	Runner toolchain.Runner
}

func (t *Tar) Extract(ctx context.Context, archive, dest string, out io.Writer) error {
	return t.Runner.Run(ctx, &toolchain.Cmd{
		Dir:    dest,
		Name:   "tar",
		Args:   []string{"xf", archive, "-C", dest},
		Stdout: out,
	})
}

// Builtin extracts in process. Entries that would land outside the
// destination, by name or through an extracted symlink, are rejected. Modes
// and timestamps are preserved.
type Builtin struct {
	// Progress receives a byte progress bar when non-nil.
	Progress io.Writer
}

func (b *Builtin) Extract(ctx context.Context, archive, dest string, out io.Writer) error {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	lower := strings.ToLower(archive)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(archive, dest)
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if b.Progress != nil {
		if fi, err := f.Stat(); err == nil {
			bar := progressbar.NewOptions64(fi.Size(),
				progressbar.OptionSetWriter(b.Progress),
				progressbar.OptionSetDescription(filepath.Base(archive)),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			defer bar.Finish()
			r = io.TeeReader(f, bar)
		}
	}

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("xz: %w", err)
		}
		r = xr
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		r = bzip2.NewReader(r)
	case strings.HasSuffix(lower, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(lower, ".tar"):
	default:
		return fmt.Errorf("unsupported archive format: %s", archive)
	}

	n, err := extractTar(ctx, tar.NewReader(r), dest)
	if err != nil {
		return err
	}
	if out != nil {
		fmt.Fprintf(out, "extracted %d entries from %s\n", n, filepath.Base(archive))
	}
	return nil
}

type dirTime struct {
	path         string
	atime, mtime time.Time
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) (int, error) {
	var dirs []dirTime
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read tar header: %w", err)
		}
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		target, err := within(dest, hdr.Name)
		if err != nil {
			return n, err
		}
		if target == dest {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return n, err
		}
		atime := hdr.AccessTime
		if atime.IsZero() {
			atime = hdr.ModTime
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := mkdirEntry(target, hdr.Name); err != nil {
				return n, err
			}
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
				return n, err
			}
			dirs = append(dirs, dirTime{target, atime, hdr.ModTime})
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return n, err
			}
			if err := os.Chtimes(target, atime, hdr.ModTime); err != nil {
				return n, err
			}
		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return n, err
			}
			if err := lchtimes(target, atime, hdr.ModTime); err != nil {
				zap.S().Debugw("symlink times not preserved", "path", target, "err", err)
			}
		case tar.TypeLink:
			if path.IsAbs(hdr.Linkname) || filepath.IsAbs(hdr.Linkname) {
				return n, fmt.Errorf("illegal hard link in archive: %s -> %s", hdr.Name, hdr.Linkname)
			}
			src, err := within(dest, hdr.Linkname)
			if err != nil {
				return n, err
			}
			if fi, err := os.Lstat(src); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				return n, fmt.Errorf("illegal hard link in archive: %s -> symlink %s", hdr.Name, hdr.Linkname)
			}
			os.Remove(target)
			if err := os.Link(src, target); err != nil {
				return n, err
			}
		default:
			zap.S().Debugw("skipping tar entry", "type", string(hdr.Typeflag), "name", hdr.Name)
			continue
		}
		n++
	}
	// Directory times last: writing their children bumps them.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chtimes(d.path, d.atime, d.mtime); err != nil {
			return n, err
		}
	}
	return n, nil
}

func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	var dirs []dirTime
	for _, f := range r.File {
		target, err := within(dest, f.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}
		mode := f.Mode()
		if f.FileInfo().IsDir() {
			if err := mkdirEntry(target, f.Name); err != nil {
				return err
			}
			if err := os.MkdirAll(target, mode.Perm()|0o700); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{target, f.Modified, f.Modified})
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		if mode&os.ModeSymlink != 0 {
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(string(link), target); err != nil {
				return err
			}
			continue
		}
		err = writeFile(target, rc, mode.Perm())
		rc.Close()
		if err != nil {
			return err
		}
		if err := os.Chtimes(target, f.Modified, f.Modified); err != nil {
			return err
		}
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Chtimes(dirs[i].path, dirs[i].atime, dirs[i].mtime)
	}
	return nil
}

// within joins name onto dest and rejects results outside dest, either by
// name or through a symlink extracted earlier.
func within(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target == dest {
		return target, nil
	}
	if !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	rel, err := filepath.Rel(dest, filepath.Dir(target))
	if err != nil {
		return "", err
	}
	p := dest
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if part == "." {
			continue
		}
		p = filepath.Join(p, part)
		fi, err := os.Lstat(p)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			link, _ := filepath.Rel(dest, p)
			return "", fmt.Errorf("illegal file path in archive: %s goes through symlink %s", name, filepath.ToSlash(link))
		}
	}
	return target, nil
}

// mkdirEntry rejects a directory entry that names an extracted symlink.
func mkdirEntry(target, name string) error {
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("illegal directory in archive: %s is a symlink", name)
	}
	return nil
}

// writeFile replaces path with the contents of r. An earlier entry at path,
// such as a symlink, is removed rather than written through.
func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if fi, err := os.Lstat(path); err == nil && !fi.IsDir() {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
