// Package config loads srcbuild settings from a YAML file, a .env file and
// SRCBUILD_* environment variables. Command-line flags are applied on top
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goplus/srcbuild/internal/build"
	"github.com/goplus/srcbuild/internal/env"
	"github.com/goplus/srcbuild/internal/locate"
	"github.com/goplus/srcbuild/internal/stage"
)

// Script is a toolchain init script run once per run, e.g.
// vcvarsall.bat x64.
type Script struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// Config holds srcbuild settings. Zero values mean "use the default".
type Config struct {
	Jobs           int      `yaml:"jobs,omitempty"`
	Tail           int      `yaml:"tail,omitempty"`
	WorkDir        string   `yaml:"work_dir,omitempty"`
	Prefix         string   `yaml:"prefix,omitempty"`
	Extractor      string   `yaml:"extractor,omitempty"`
	Require        []string `yaml:"require,omitempty"`
	EnvScript      *Script  `yaml:"env_script,omitempty"`
	Make           string   `yaml:"make,omitempty"`
	CMakeGenerator string   `yaml:"cmake_generator,omitempty"`
	// BuildType takes the CMake names; meson gets the matching buildtype.
	BuildType          string `yaml:"build_type,omitempty"`
	CMakeToolchainFile string `yaml:"cmake_toolchain_file,omitempty"`

	// Dependencies replace or extend the built-in probe lists by name.
	Dependencies []locate.Spec `yaml:"dependencies,omitempty"`
	// Packages replace or extend the built-in feature vocabulary.
	Packages build.Profiles `yaml:"packages,omitempty"`
	// Policy rules are consulted before the built-in ones.
	Policy build.Policy `yaml:"policy,omitempty"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Load reads the configuration for sourceDir. The file is path when set
// (and must exist), else <sourceDir>/srcbuild.yaml, else the per-user
// config file; a missing default file is not an error. <sourceDir>/.env is
// loaded first without overriding variables already set.
func Load(path, sourceDir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(sourceDir, env.DotEnvName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", env.DotEnvName, err)
	}

	cfg := &Config{}
	file, err := findFile(path, sourceDir)
	if err != nil {
		return nil, err
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", file, err)
		}
		cfg.Path = file
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg, nil
}

func findFile(path, sourceDir string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	candidates := []string{filepath.Join(sourceDir, env.ConfigFileName)}
	if user, err := env.UserConfigFile(); err == nil {
		candidates = append(candidates, user)
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(env.Jobs); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", env.Jobs, err)
		}
		c.Jobs = n
	}
	if v, ok := lookup(env.Tail); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", env.Tail, err)
		}
		c.Tail = n
	}
	if v, ok := lookup(env.WorkDir); ok && v != "" {
		c.WorkDir = v
	}
	if v, ok := lookup(env.Prefix); ok && v != "" {
		c.Prefix = v
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if c.Tail < 0 {
		return fmt.Errorf("tail must not be negative, got %d", c.Tail)
	}
	switch c.Extractor {
	case "", stage.ExtractorBuiltin, stage.ExtractorTar:
	default:
		return fmt.Errorf("unknown extractor %q", c.Extractor)
	}
	for i, d := range c.Dependencies {
		if d.Name == "" {
			return fmt.Errorf("dependency %d: missing name", i)
		}
	}
	switch strings.ToLower(c.BuildType) {
	case "", "release", "debug", "relwithdebinfo", "minsizerel":
	default:
		return fmt.Errorf("unknown build_type %q (want Release, Debug, RelWithDebInfo or MinSizeRel)", c.BuildType)
	}
	if c.EnvScript != nil && c.EnvScript.Path == "" {
		return errors.New("env_script: missing path")
	}
	return c.Policy.Validate()
}

// Specs returns the built-in probe lists for goos overlaid with the
// configured ones.
func (c *Config) Specs(goos string) []locate.Spec {
	return locate.Merge(locate.DefaultSpecs(goos), c.Dependencies)
}

// Profiles returns the built-in feature vocabulary overlaid with the
// configured one.
func (c *Config) Profiles() build.Profiles {
	return build.DefaultProfiles().Merge(c.Packages)
}

// FullPolicy returns the configured rules followed by the built-in ones.
func (c *Config) FullPolicy() build.Policy {
	return append(append(build.Policy(nil), c.Policy...), build.DefaultPolicy()...)
}
