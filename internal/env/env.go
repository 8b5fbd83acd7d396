// Package env holds the well-known names and default locations of srcbuild.
package env

import (
	"os"
	"path/filepath"
)

// Directory names derived from the source directory.
const (
	LogDirName     = "logs"
	InstallDirName = "install"
	BuildDirName   = "_build"
)

// Configuration file names.
const (
	ConfigFileName = "srcbuild.yaml"
	UserConfigName = "config.yaml"
	DotEnvName     = ".env"
)

// Environment variables read by the CLI.
const (
	Jobs    = "SRCBUILD_JOBS"
	Tail    = "SRCBUILD_TAIL"
	WorkDir = "SRCBUILD_WORK_DIR"
	Prefix  = "SRCBUILD_PREFIX"
)

// ConfigDir returns the per-user configuration directory of srcbuild.
func ConfigDir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "srcbuild"), nil
}

// UserConfigFile returns the path of the per-user configuration file.
func UserConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigName), nil
}
