package domain

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doscc.dev/pkg/doscc/internal/adapter"
	m "doscc.dev/pkg/doscc/internal/model"
)

// depsFileName is the per-unit dependency declaration: one unit name per
// line, blank lines and #-comments ignored.
const depsFileName = "DEPS"

// libCompileFlags is the fixed flag set library units are compiled with;
// the shared store is built small-model with stack probes off, independent
// of any project profile.
const libCompileFlags = `/c /AS /Zl /Gs /IINCLUDE`

// LibraryBuilder builds the units of the shared library store in dependency
// order, one temporary workspace per unit.
type LibraryBuilder struct {
	toolchain   m.ToolchainConfig
	libsDir     string
	newEmulator adapter.Factory
}

// NewLibraryBuilder wires a builder against one toolchain and library store.
// The factory supplies an emulator per temporary workspace.
func NewLibraryBuilder(toolchain m.ToolchainConfig, libsDir string, factory adapter.Factory) *LibraryBuilder {
	return &LibraryBuilder{toolchain: toolchain, libsDir: libsDir, newEmulator: factory}
}

// Discover scans the library store. Each subdirectory is one unit named by
// its directory name. A missing store yields no units, not an error.
func (b *LibraryBuilder) Discover() ([]m.LibraryUnit, error) {
	items, err := os.ReadDir(b.libsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("scanning library store %s: %w", b.libsDir, err)
	}

	var units []m.LibraryUnit

	for _, item := range items {
		if !item.IsDir() {
			continue
		}

		dir := filepath.Join(b.libsDir, item.Name())

		deps, err := readDependencies(filepath.Join(dir, depsFileName))
		if err != nil {
			return nil, err
		}

		units = append(units, m.LibraryUnit{Name: item.Name(), Dir: dir, Depends: deps})
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	return units, nil
}

// Status reports what a unit currently holds, the archive's presence being
// the completion marker.
func (b *LibraryBuilder) Status(unit m.LibraryUnit) m.LibraryStatus {
	if _, err := os.Stat(filepath.Join(unit.Dir, unit.ArchiveName())); err == nil {
		return m.LibraryBuilt
	}

	if len(unitSourceFiles(unit.Dir)) > 0 {
		return m.LibrarySourceOnly
	}

	if hasHeaders(unit.Dir) {
		return m.LibraryHeaderOnly
	}

	return m.LibraryEmpty
}

// Build compiles and archives one unit. Every declared dependency's archive
// must already exist; a missing one fails the unit before any tool runs.
// Header-only units complete without invoking anything and return an empty
// path.
func (b *LibraryBuilder) Build(unit m.LibraryUnit, installed []m.LibraryUnit) (string, error) {
	for _, dep := range unit.Depends {
		if !b.dependencyBuilt(dep, installed) {
			return "", &m.MissingDependencyError{Unit: unit.Name, Dependency: dep}
		}
	}

	sources := unitSourceFiles(unit.Dir)
	if len(sources) == 0 {
		if hasHeaders(unit.Dir) {
			slog.Debug("header-only library, nothing to compile", "unit", unit.Name)
			return "", nil
		}

		return "", &m.ConfigError{Msg: fmt.Sprintf("library %s has neither sources nor headers", unit.Name)}
	}

	tmp, err := os.MkdirTemp("", "doscc-lib-*")
	if err != nil {
		return "", fmt.Errorf("creating library workspace: %w", err)
	}

	defer func() { _ = os.RemoveAll(tmp) }()

	units, err := b.composeUnitWorkspace(tmp, installed, sources)
	if err != nil {
		return "", err
	}

	em := b.newEmulator(tmp)

	objs := make([]string, 0, len(units))

	for _, src := range units {
		if src.Kind == m.SourceAssembly {
			if err := assemble(em, src); err != nil {
				return "", err
			}
		} else {
			args := libCompileFlags + ` /FoSRC\ ` + src.DOSPath
			if _, err := em.RunChecked(`BIN\CL.EXE`, args, "CL.EXE"); err != nil {
				return "", err
			}
		}

		objs = append(objs, src.ObjPath)
	}

	archive := unit.ArchiveName()

	// Additive member syntax: LIB archive +obj1 +obj2 ;
	ops := make([]string, 0, len(objs))
	for _, obj := range objs {
		ops = append(ops, "+"+obj)
	}

	args := fmt.Sprintf(`LIB\%s %s;`, archive, strings.Join(ops, " "))
	if _, err := em.RunChecked(`BIN\LIB.EXE`, args, "LIB.EXE"); err != nil {
		return "", err
	}

	built := filepath.Join(tmp, "LIB", archive)
	if _, err := os.Stat(built); err != nil {
		return "", &m.ArtifactError{Path: built, Tool: "LIB.EXE"}
	}

	dest := filepath.Join(unit.Dir, archive)
	if err := copyFile(built, dest); err != nil {
		return "", fmt.Errorf("installing %s: %w", archive, err)
	}

	return dest, nil
}

// composeUnitWorkspace assembles the minimal build root for one unit:
// toolchain BIN, toolchain headers overlaid with every installed unit's
// headers (full cross-unit visibility, broader than the project composer's
// rule), the unit's sources under SRC and an empty LIB for the archive.
func (b *LibraryBuilder) composeUnitWorkspace(tmp string, installed []m.LibraryUnit, sources []string) ([]m.SourceUnit, error) {
	bin := filepath.Join(b.toolchain.Path, "BIN")
	if _, err := os.Stat(bin); err != nil {
		return nil, &m.ConfigError{Msg: fmt.Sprintf("toolchain %q has no BIN directory at %s", b.toolchain.Name, bin)}
	}

	if err := os.Symlink(bin, filepath.Join(tmp, "BIN")); err != nil {
		return nil, err
	}

	ov := NewOverlay()
	ov.AddLayer("toolchain", dirEntries(filepath.Join(b.toolchain.Path, "INCLUDE"), nil))

	byName := append([]m.LibraryUnit(nil), installed...)
	sort.Slice(byName, func(i, j int) bool { return byName[i].Name < byName[j].Name })

	for _, u := range byName {
		ov.AddLayer("lib:"+u.Name, dirEntries(u.Dir, withExt(".H")))
	}

	incDir := filepath.Join(tmp, "INCLUDE")
	if err := os.Mkdir(incDir, 0o750); err != nil {
		return nil, err
	}

	if err := ov.Materialize(incDir); err != nil {
		return nil, err
	}

	srcDir := filepath.Join(tmp, "SRC")
	if err := os.Mkdir(srcDir, 0o750); err != nil {
		return nil, err
	}

	if err := os.Mkdir(filepath.Join(tmp, "LIB"), 0o750); err != nil {
		return nil, err
	}

	units := make([]m.SourceUnit, 0, len(sources))

	for _, hostPath := range sources {
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

	return units, nil
}

// dependencyBuilt checks the completion marker of a declared dependency.
func (b *LibraryBuilder) dependencyBuilt(dep string, installed []m.LibraryUnit) bool {
	for _, u := range installed {
		if strings.EqualFold(u.Name, dep) {
			_, err := os.Stat(filepath.Join(u.Dir, u.ArchiveName()))
			return err == nil
		}
	}

	return false
}

// SortUnits orders units so dependencies build before dependents, using
// Kahn's algorithm with the lexicographically smallest ready unit chosen
// next. Units caught in a dependency cycle are not rejected: they are
// appended at the end in name order and their builds attempted anyway.
func SortUnits(units []m.LibraryUnit) []m.LibraryUnit {
	byName := make(map[string]m.LibraryUnit, len(units))
	for _, u := range units {
		byName[u.Name] = u
	}

	pending := make(map[string]int, len(units))
	dependents := make(map[string][]string)

	for _, u := range units {
		for _, dep := range u.Depends {
			// Names that don't resolve to an installed unit contribute no
			// edge; they surface later as missing-archive preconditions.
			if _, known := byName[dep]; !known || dep == u.Name {
				continue
			}

			pending[u.Name]++
			dependents[dep] = append(dependents[dep], u.Name)
		}
	}

	var ready []string

	for _, u := range units {
		if pending[u.Name] == 0 {
			ready = append(ready, u.Name)
		}
	}

	ordered := make([]m.LibraryUnit, 0, len(units))
	done := make(map[string]bool, len(units))

	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]

		ordered = append(ordered, byName[name])
		done[name] = true

		for _, dependent := range dependents[name] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) < len(units) {
		var cyclic []string

		for _, u := range units {
			if !done[u.Name] {
				cyclic = append(cyclic, u.Name)
			}
		}

		sort.Strings(cyclic)
		slog.Warn("dependency cycle in library store, building in name order", "units", cyclic)

		for _, name := range cyclic {
			ordered = append(ordered, byName[name])
		}
	}

	return ordered
}

// ParseDependencies reads a dependency declaration: one identifier per
// line, blank lines and #-prefixed comments ignored.
func ParseDependencies(r io.Reader) []string {
	var deps []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		deps = append(deps, line)
	}

	return deps
}

func readDependencies(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	defer func() { _ = f.Close() }()

	return ParseDependencies(f), nil
}

// unitSourceFiles lists a unit's compilable sources: C files first, then
// assembly, each in sorted order.
func unitSourceFiles(dir string) []string {
	var cFiles, asmFiles []string

	items, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	for _, item := range items {
		if item.IsDir() {
			continue
		}

		switch strings.ToUpper(filepath.Ext(item.Name())) {
		case ".C":
			cFiles = append(cFiles, filepath.Join(dir, item.Name()))
		case ".ASM":
			asmFiles = append(asmFiles, filepath.Join(dir, item.Name()))
		}
	}

	sort.Strings(cFiles)
	sort.Strings(asmFiles)

	return append(cFiles, asmFiles...)
}

func hasHeaders(dir string) bool {
	items, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, item := range items {
		if !item.IsDir() && strings.EqualFold(filepath.Ext(item.Name()), ".H") {
			return true
		}
	}

	return false
}
