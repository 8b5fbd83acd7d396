package build

import (
	"bytes"
	"strings"
)

// tail keeps the last n lines written to it.
type tail struct {
	n       int
	lines   []string
	partial []byte
}

func newTail(n int) *tail { return &tail{n: n} }

func (t *tail) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			t.partial = append(t.partial, p...)
			break
		}
		t.push(string(append(t.partial, p[:i]...)))
		t.partial = t.partial[:0]
		p = p[i+1:]
	}
	return written, nil
}

func (t *tail) push(line string) {
	if t.n <= 0 {
		return
	}
	line = strings.TrimSuffix(line, "\r")
	if len(t.lines) == t.n {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.n-1]
	}
	t.lines = append(t.lines, line)
}

// Lines returns the retained lines, including an unterminated last line.
func (t *tail) Lines() []string {
	out := append([]string(nil), t.lines...)
	if len(t.partial) > 0 && t.n > 0 {
		out = append(out, string(t.partial))
		if len(out) > t.n {
			out = out[len(out)-t.n:]
		}
	}
	return out
}
