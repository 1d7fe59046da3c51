package domain

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	m "doscc.dev/pkg/doscc/internal/model"
)

// Composer assembles the build root that all tool invocations operate
// against: toolchain binaries, merged headers and libraries, SDK tools and
// project sources, unified under <project>/.doscc/build and mapped by the
// emulator as C:\.
type Composer struct {
	projectRoot string
	project     m.ProjectConfig
	toolchain   m.ToolchainConfig
	sdk         *m.SDKConfig
	libsDir     string
}

// NewComposer builds a Composer from already-resolved configuration. sdk may
// be nil; libsDir may point at a nonexistent directory.
func NewComposer(projectRoot string, project m.ProjectConfig, toolchain m.ToolchainConfig, sdk *m.SDKConfig, libsDir string) *Composer {
	return &Composer{
		projectRoot: projectRoot,
		project:     project,
		toolchain:   toolchain,
		sdk:         sdk,
		libsDir:     libsDir,
	}
}

// BuildDir returns the workspace root the composer produces.
func (c *Composer) BuildDir() string {
	return filepath.Join(c.projectRoot, ".doscc", "build")
}

// Compose wipes any previous build root and assembles a fresh one, returning
// the source units to compile in deterministic order. Builds are always
// clean; nothing from a previous run survives.
func (c *Composer) Compose() ([]m.SourceUnit, error) {
	buildDir := c.BuildDir()

	if err := os.RemoveAll(buildDir); err != nil {
		return nil, fmt.Errorf("removing previous build root: %w", err)
	}

	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating build root: %w", err)
	}

	if err := c.linkBin(); err != nil {
		return nil, err
	}

	if err := c.mergeIncludes(); err != nil {
		return nil, err
	}

	if err := c.mergeLibs(); err != nil {
		return nil, err
	}

	if err := c.linkTools(); err != nil {
		return nil, err
	}

	sources, err := c.copySources()
	if err != nil {
		return nil, err
	}

	slog.Debug("composed workspace", "buildDir", buildDir, "sources", len(sources))

	return sources, nil
}

// linkBin binds the toolchain's executable directory into the root. A
// toolchain without BIN is a configuration error, not a skippable layer.
func (c *Composer) linkBin() error {
	src := filepath.Join(c.toolchain.Path, "BIN")
	if _, err := os.Stat(src); err != nil {
		return &m.ConfigError{Msg: fmt.Sprintf("toolchain %q has no BIN directory at %s", c.toolchain.Name, src)}
	}

	return os.Symlink(src, filepath.Join(c.BuildDir(), "BIN"))
}

// libraryDirs returns the installed shared-library unit directories in name
// sort order.
func (c *Composer) libraryDirs() []string {
	items, err := os.ReadDir(c.libsDir)
	if err != nil {
		return nil
	}

	var dirs []string

	for _, item := range items {
		if item.IsDir() {
			dirs = append(dirs, filepath.Join(c.libsDir, item.Name()))
		}
	}

	sort.Strings(dirs)

	return dirs
}

// mergeIncludes overlays header layers into INCLUDE: toolchain, SDK, shared
// libraries in name order, then project include directories in declared
// order. First occurrence per filename wins.
func (c *Composer) mergeIncludes() error {
	ov := NewOverlay()
	ov.AddLayer("toolchain", dirEntries(filepath.Join(c.toolchain.Path, "INCLUDE"), nil))

	if c.sdk != nil {
		ov.AddLayer("sdk", dirEntries(filepath.Join(c.sdk.Path, "HEADERS"), nil))
	}

	for _, dir := range c.libraryDirs() {
		ov.AddLayer("lib:"+filepath.Base(dir), dirEntries(dir, withExt(".H")))
	}

	for _, inc := range c.project.Compiler.Includes {
		ov.AddLayer("project:"+inc, dirEntries(filepath.Join(c.projectRoot, inc), nil))
	}

	dest := filepath.Join(c.BuildDir(), "INCLUDE")
	if err := os.Mkdir(dest, 0o750); err != nil {
		return err
	}

	return ov.Materialize(dest)
}

// mergeLibs applies the identical precedence rule, independently, to LIB.
func (c *Composer) mergeLibs() error {
	ov := NewOverlay()
	ov.AddLayer("toolchain", dirEntries(filepath.Join(c.toolchain.Path, "LIB"), nil))

	if c.sdk != nil {
		ov.AddLayer("sdk", dirEntries(filepath.Join(c.sdk.Path, "LIB"), nil))
	}

	for _, dir := range c.libraryDirs() {
		ov.AddLayer("lib:"+filepath.Base(dir), dirEntries(dir, withExt(".LIB")))
	}

	dest := filepath.Join(c.BuildDir(), "LIB")
	if err := os.Mkdir(dest, 0o750); err != nil {
		return err
	}

	return ov.Materialize(dest)
}

// linkTools binds the SDK's auxiliary tool/object directory when present.
func (c *Composer) linkTools() error {
	if c.sdk == nil {
		return nil
	}

	src := filepath.Join(c.sdk.Path, "TOOLS")
	if _, err := os.Stat(src); err != nil {
		return nil
	}

	return os.Symlink(src, filepath.Join(c.BuildDir(), "TOOLS"))
}

// copySources resolves the project's source patterns and copies each match
// into SRC/ under its DOS-uppercased name, deriving the virtual paths the
// tools will use.
func (c *Composer) copySources() ([]m.SourceUnit, error) {
	srcDir := filepath.Join(c.BuildDir(), "SRC")
	if err := os.Mkdir(srcDir, 0o750); err != nil {
		return nil, err
	}

	var units []m.SourceUnit

	for _, pattern := range c.project.SourceFiles {
		matches, err := doublestar.Glob(os.DirFS(c.projectRoot), filepath.ToSlash(pattern))
		if err != nil {
			return nil, &m.ConfigError{Msg: fmt.Sprintf("bad source pattern %q: %v", pattern, err)}
		}

		sort.Strings(matches)

		for _, rel := range matches {
			hostPath := filepath.Join(c.projectRoot, filepath.FromSlash(rel))

			info, err := os.Stat(hostPath)
			if err != nil || info.IsDir() {
				continue
			}

			dosName := strings.ToUpper(filepath.Base(hostPath))
			wsPath := filepath.Join(srcDir, dosName)

			if err := copyFile(hostPath, wsPath); err != nil {
				return nil, fmt.Errorf("copying source %s: %w", hostPath, err)
			}

			dosPath := `SRC\` + dosName
			units = append(units, m.SourceUnit{
				HostPath:      hostPath,
				WorkspacePath: wsPath,
				DOSPath:       dosPath,
				ObjPath:       m.ObjectPath(dosPath),
				Kind:          m.KindForName(dosName),
			})
		}
	}

	return units, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}
