// Package toolenv captures the environment set up by a toolchain init
// script such as vcvarsall.bat, so it can be handed to builds explicitly.
package toolenv

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Capture runs script with args in a shell, then prints the resulting
// environment and returns it. On windows the script runs under cmd.exe;
// elsewhere sh sources it with args as positional parameters.
func Capture(ctx context.Context, r toolchain.Runner, script string, args []string, goos string) (map[string]string, error) {
	if r == nil {
		r = toolchain.ExecRunner{}
	}
	var c *toolchain.Cmd
	if goos == "windows" {
		cmdArgs := append([]string{"/d", "/c", "call", script}, args...)
		cmdArgs = append(cmdArgs, ">nul", "&&", "set")
		c = &toolchain.Cmd{Name: "cmd", Args: cmdArgs}
	} else {
		shArgs := append([]string{"-c", `. "$0" >/dev/null && env`, script}, args...)
		c = &toolchain.Cmd{Name: "sh", Args: shArgs}
	}
	var out bytes.Buffer
	c.Stdout = &out
	if err := r.Run(ctx, c); err != nil {
		return nil, fmt.Errorf("capture %s: %w", script, err)
	}
	return Parse(out.Bytes()), nil
}

// Parse reads "key=value" lines. Lines without a key, such as the "=C:=C:\"
// entries printed by cmd.exe, are skipped.
func Parse(data []byte) map[string]string {
	vars := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" || strings.ContainsAny(k, " \t") {
			continue
		}
		vars[k] = v
	}
	return vars
}
