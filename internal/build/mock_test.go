package build

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// fakeRunner records commands and plays scripted output. A command whose
// line contains a key of fail exits with an error after printing output.
type fakeRunner struct {
	mu     sync.Mutex
	cmds   []*toolchain.Cmd
	output map[string]string
	fail   map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, c *toolchain.Cmd) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, c)
	line := c.String()
	for key, out := range f.output {
		if strings.Contains(line, key) && c.Stdout != nil {
			fmt.Fprint(c.Stdout, out)
		}
	}
	for key := range f.fail {
		if strings.Contains(line, key) {
			return fmt.Errorf("%s: exit status 1", c.Name)
		}
	}
	return nil
}

func (f *fakeRunner) lines() []string {
	var out []string
	for _, c := range f.cmds {
		out = append(out, c.String())
	}
	return out
}
