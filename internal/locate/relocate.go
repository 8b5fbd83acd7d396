package locate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Relocation copies library files a build system expects in a hardcoded
// subdirectory. It applies only when building with Toolchain.
type Relocation struct {
	Toolchain string   `yaml:"toolchain"`
	Files     []string `yaml:"files"` // globs relative to the dependency root
	To        string   `yaml:"to"`    // directory relative to the dependency root
}

// Relocate applies every rule of res that targets toolchain and returns the
// files it created. Files already present at the destination are left alone,
// so repeated calls are no-ops.
func Relocate(res *Resolved, toolchain string) ([]string, error) {
	if res == nil {
		return nil, nil
	}
	var created []string
	for _, rule := range res.Relocate {
		if rule.Toolchain != toolchain {
			continue
		}
		dest := joinRoot(res.Root, rule.To)
		for _, pattern := range rule.Files {
			matches, err := filepath.Glob(joinRoot(res.Root, pattern))
			if err != nil {
				return created, fmt.Errorf("relocate %s: %w", res.Name, err)
			}
			for _, src := range matches {
				target := filepath.Join(dest, filepath.Base(src))
				if _, err := os.Stat(target); err == nil {
					continue
				}
				if err := os.MkdirAll(dest, 0o755); err != nil {
					return created, fmt.Errorf("relocate %s: %w", res.Name, err)
				}
				if err := copyFile(src, target); err != nil {
					return created, fmt.Errorf("relocate %s: %w", res.Name, err)
				}
				created = append(created, target)
			}
		}
	}
	return created, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
