package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/srcbuild/internal/locate"
)

const sample = `
jobs: 4
tail: 50
extractor: tar
require: [openssl]
env_script:
  path: C:\VS\vcvarsall.bat
  args: [x64]
cmake_generator: Ninja
build_type: RelWithDebInfo
cmake_toolchain_file: /opt/tc.cmake
dependencies:
  - name: openssl
    roots: ["/opt/openssl-3"]
    markers: ["libssl.so*"]
  - name: zlib
    roots: ["/usr"]
    markers: ["libz.so"]
packages:
  postgresql:
    zlib:
      autotools:
        enable: [--with-zlib]
        disable: [--without-zlib]
policy:
  - package: postgresql
    versions: ">=16"
    toolchain: meson
`

func isolate(t *testing.T) {
	t.Helper()
	// keep the per-user config and real variables out of the tests
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())
	for _, k := range []string{"SRCBUILD_JOBS", "SRCBUILD_TAIL", "SRCBUILD_WORK_DIR", "SRCBUILD_PREFIX"} {
		t.Setenv(k, "")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 4 || cfg.Tail != 50 || cfg.Extractor != "tar" || cfg.CMakeGenerator != "Ninja" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.BuildType != "RelWithDebInfo" || cfg.CMakeToolchainFile != "/opt/tc.cmake" {
		t.Errorf("build settings = %q %q", cfg.BuildType, cfg.CMakeToolchainFile)
	}
	if cfg.EnvScript == nil || cfg.EnvScript.Path != `C:\VS\vcvarsall.bat` || cfg.EnvScript.Args[0] != "x64" {
		t.Errorf("env_script = %+v", cfg.EnvScript)
	}

	specs := cfg.Specs("linux")
	var ssl, zlib *locate.Spec
	for i := range specs {
		switch specs[i].Name {
		case "openssl":
			ssl = &specs[i]
		case "zlib":
			zlib = &specs[i]
		}
	}
	if ssl == nil || ssl.Roots[0] != "/opt/openssl-3" || zlib == nil {
		t.Errorf("specs = %+v", specs)
	}

	if f := cfg.Profiles().Lookup("postgresql")["zlib"]["autotools"]; f.Enable[0] != "--with-zlib" {
		t.Errorf("zlib flags = %+v", f)
	}
	pol := cfg.FullPolicy()
	if pol[0].Toolchain != "meson" || len(pol) != 1+5 {
		t.Errorf("policy = %+v", pol)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("jobz: 3\n")); err == nil {
		t.Fatal("expected error for unknown key")
	}
	cfg, err := Parse(nil)
	if err != nil || cfg == nil {
		t.Fatalf("empty document: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative jobs", "jobs: -1"},
		{"negative tail", "tail: -2"},
		{"extractor", "extractor: 7z"},
		{"build type", "build_type: Fastest"},
		{"unnamed dependency", "dependencies: [{roots: [/usr]}]"},
		{"script without path", "env_script: {args: [x64]}"},
		{"bad policy", "policy: [{package: pg, toolchain: scons}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadSearchOrder(t *testing.T) {
	isolate(t)
	src := t.TempDir()

	cfg, err := Load("", src)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" || cfg.Jobs != 0 {
		t.Errorf("no file: cfg = %+v", cfg)
	}

	os.WriteFile(filepath.Join(src, "srcbuild.yaml"), []byte("jobs: 2\n"), 0o644)
	cfg, err = Load("", src)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 2 || cfg.Path != filepath.Join(src, "srcbuild.yaml") {
		t.Errorf("source file: cfg = %+v", cfg)
	}

	explicit := filepath.Join(t.TempDir(), "other.yaml")
	os.WriteFile(explicit, []byte("jobs: 7\n"), 0o644)
	cfg, err = Load(explicit, src)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 7 {
		t.Errorf("explicit file: jobs = %d", cfg.Jobs)
	}

	if _, err := Load(filepath.Join(src, "missing.yaml"), src); err == nil {
		t.Error("missing explicit file: expected error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	src := t.TempDir()
	os.WriteFile(filepath.Join(src, "srcbuild.yaml"), []byte("jobs: 2\ntail: 10\nprefix: /from/yaml\n"), 0o644)
	os.WriteFile(filepath.Join(src, ".env"), []byte("SRCBUILD_TAIL=30\nSRCBUILD_WORK_DIR=/from/dotenv\n"), 0o644)
	t.Setenv("SRCBUILD_JOBS", "5")
	// .env must not override a variable that is already set
	t.Setenv("SRCBUILD_WORK_DIR", "/from/env")
	os.Unsetenv("SRCBUILD_TAIL")

	cfg, err := Load("", src)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 5 {
		t.Errorf("jobs = %d, want 5 from env", cfg.Jobs)
	}
	if cfg.Tail != 30 {
		t.Errorf("tail = %d, want 30 from .env", cfg.Tail)
	}
	if cfg.WorkDir != "/from/env" {
		t.Errorf("work_dir = %q, want /from/env", cfg.WorkDir)
	}
	if cfg.Prefix != "/from/yaml" {
		t.Errorf("prefix = %q, want /from/yaml", cfg.Prefix)
	}
}

func TestLoadBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SRCBUILD_JOBS", "many")
	_, err := Load("", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "SRCBUILD_JOBS") {
		t.Errorf("err = %v", err)
	}
}
