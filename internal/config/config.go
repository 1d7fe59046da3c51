// Package config loads the machine-wide and per-project configuration into
// explicit structs that are passed into the domain layer. Nothing in the
// core logic reads configuration ambiently.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	m "doscc.dev/pkg/doscc/internal/model"
)

// Well-known configuration locations.
const (
	GlobalDirName   = ".doscc"
	GlobalFileName  = "config.toml"
	ProjectFileName = "doscc.toml"
	LibsDirName     = "libs"

	envPrefix = "DOSCC"

	DefaultToolchain = "msc50"
)

// GlobalDir returns ~/.doscc.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, GlobalDirName), nil
}

// LoadGlobal reads ~/.doscc/config.toml. A missing file yields defaults
// rather than an error so commands can report "not configured" themselves.
func LoadGlobal() (m.GlobalConfig, error) {
	cfg := m.GlobalConfig{
		XTPath:     "xt",
		Toolchains: map[string]m.ToolchainConfig{},
		SDKs:       map[string]m.SDKConfig{},
	}

	dir, err := GlobalDir()
	if err != nil {
		return cfg, err
	}

	cfg.LibsDir = filepath.Join(dir, LibsDirName)

	return loadGlobalFrom(filepath.Join(dir, GlobalFileName), cfg)
}

func loadGlobalFrom(path string, cfg m.GlobalConfig) (m.GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("xt.path", cfg.XTPath)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("reading global config %s: %w", path, err)
	}

	cfg.XTPath = v.GetString("xt.path")

	for name := range v.GetStringMap("toolchains") {
		cfg.Toolchains[name] = m.ToolchainConfig{
			Name: name,
			Path: v.GetString("toolchains." + name + ".path"),
		}
	}

	for name := range v.GetStringMap("sdks") {
		cfg.SDKs[name] = m.SDKConfig{
			Name: name,
			Path: v.GetString("sdks." + name + ".path"),
		}
	}

	return cfg, nil
}

// FindProjectRoot walks up from start looking for doscc.toml.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ProjectFileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &m.ConfigError{Msg: "no " + ProjectFileName + " found (searched up to filesystem root)"}
		}

		dir = parent
	}
}

// LoadProject reads <root>/doscc.toml into a ProjectConfig.
func LoadProject(root string) (m.ProjectConfig, error) {
	var cfg m.ProjectConfig

	path := filepath.Join(root, ProjectFileName)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("project.name", filepath.Base(root))
	v.SetDefault("project.target", string(m.TargetDosExe))
	v.SetDefault("project.toolchain", DefaultToolchain)
	v.SetDefault("project.output_dir", ".")
	v.SetDefault("compiler.model", "small")
	v.SetDefault("linker.map_file", true)
	v.SetDefault("sources.files", []string{"*.c"})

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("reading project config %s: %w", path, err)
	}

	cfg.Name = v.GetString("project.name")
	cfg.Target = m.TargetKind(v.GetString("project.target"))
	cfg.Toolchain = v.GetString("project.toolchain")
	cfg.SDK = v.GetString("project.sdk")
	cfg.OutputDir = v.GetString("project.output_dir")

	cfg.Compiler.Model = v.GetString("compiler.model")
	cfg.Compiler.Optimization = v.GetString("compiler.optimization")
	cfg.Compiler.Warnings = v.GetInt("compiler.warnings")
	cfg.Compiler.Defines = v.GetStringSlice("compiler.defines")
	cfg.Compiler.Includes = v.GetStringSlice("compiler.includes")
	cfg.Compiler.ExtraFlags = v.GetStringSlice("compiler.extra_flags")

	cfg.Linker.Libraries = v.GetStringSlice("linker.libraries")
	cfg.Linker.MapFile = v.GetBool("linker.map_file")
	cfg.Linker.StackSize = v.GetInt("linker.stack_size")
	cfg.Linker.ExtraFlags = v.GetStringSlice("linker.extra_flags")

	cfg.SourceFiles = v.GetStringSlice("sources.files")

	// Targets that need an SDK imply the conventional one unless the project
	// names its own.
	if cfg.SDK == "" {
		switch cfg.Target {
		case m.TargetHP95LX, m.TargetHP200LX:
			cfg.SDK = "hp95lx"
		case m.TargetWin16:
			cfg.SDK = "win3x"
		}
	}

	return cfg, nil
}
