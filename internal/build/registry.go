package build

import (
	"sort"

	"github.com/goplus/srcbuild/pkgs/toolchain"
	"github.com/goplus/srcbuild/x/autotools"
	"github.com/goplus/srcbuild/x/cmake"
	"github.com/goplus/srcbuild/x/gotool"
	"github.com/goplus/srcbuild/x/meson"
	"github.com/goplus/srcbuild/x/msvc"
)

var toolchains = map[string]toolchain.Factory{
	autotools.Name: func(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) toolchain.Toolchain {
		return autotools.New(r, env, dirs)
	},
	cmake.Name: func(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) toolchain.Toolchain {
		return cmake.New(r, env, dirs)
	},
	meson.Name: func(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) toolchain.Toolchain {
		return meson.New(r, env, dirs)
	},
	msvc.Name: func(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) toolchain.Toolchain {
		return msvc.New(r, env, dirs)
	},
	gotool.Name: func(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) toolchain.Toolchain {
		return gotool.New(r, env, dirs)
	},
}

// Toolchains returns the registered toolchain names, sorted.
func Toolchains() []string {
	names := make([]string, 0, len(toolchains))
	for name := range toolchains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
