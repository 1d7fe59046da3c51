package domain

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"doscc.dev/pkg/doscc/internal/adapter"
	m "doscc.dev/pkg/doscc/internal/model"
)

// Target captures the per-kind behavior of the build pipeline: how compile
// flags are derived, how objects are linked, and what post-link conversion
// runs. All five kinds share the same stage orchestration in Pipeline.
type Target interface {
	Kind() m.TargetKind

	// CompileFlags returns the compiler flag string for a C-like unit,
	// without the output-directory flag or the source file.
	CompileFlags() string

	// Link joins the objects into an executable and returns its virtual path.
	Link(objs []string, sources []m.SourceUnit) (string, error)

	// PostProcess converts the linked output if the kind requires it and
	// resolves the virtual path to a host path.
	PostProcess(outputPath string) (string, error)
}

// NewTarget builds the variant for the configured kind.
func NewTarget(cfg m.ProjectConfig, em adapter.Emulator, buildDir string) (Target, error) {
	b := base{cfg: cfg, em: em, buildDir: buildDir}

	switch cfg.Target {
	case m.TargetDosExe:
		return &dosExeTarget{base: b}, nil
	case m.TargetDosCom:
		b.modelOverride = "T"
		return &dosComTarget{base: b}, nil
	case m.TargetHP95LX:
		b.modelOverride = "S"
		return &hp95lxTarget{base: b}, nil
	case m.TargetHP200LX:
		b.modelOverride = "S"
		return &hp200lxTarget{hp95lxTarget{base: b}}, nil
	case m.TargetWin16:
		b.modelOverride = "S"
		return &win16Target{base: b}, nil
	default:
		return nil, &m.ConfigError{Msg: fmt.Sprintf("unknown target %q (valid: %s)", cfg.Target, joinKinds())}
	}
}

func joinKinds() string {
	names := make([]string, 0, len(m.TargetKinds))
	for _, k := range m.TargetKinds {
		names = append(names, string(k))
	}

	return strings.Join(names, ", ")
}

// Pipeline drives one build through compile, link, post-process and publish.
// Stages run strictly in sequence; the first failure aborts the rest and the
// workspace is left on disk for inspection.
type Pipeline struct {
	cfg      m.ProjectConfig
	em       adapter.Emulator
	target   Target
	buildDir string
}

// NewPipeline wires a pipeline for one composed workspace.
func NewPipeline(cfg m.ProjectConfig, em adapter.Emulator, target Target, buildDir string) *Pipeline {
	return &Pipeline{cfg: cfg, em: em, target: target, buildDir: buildDir}
}

// Build runs the full pipeline and returns the published result.
func (p *Pipeline) Build(sources []m.SourceUnit, projectRoot string) (m.BuildResult, error) {
	objs, err := p.compile(sources)
	if err != nil {
		return m.BuildResult{}, err
	}

	outputPath, err := p.target.Link(objs, sources)
	if err != nil {
		return m.BuildResult{}, err
	}

	hostPath, err := p.target.PostProcess(outputPath)
	if err != nil {
		return m.BuildResult{}, err
	}

	return p.publish(hostPath, projectRoot)
}

// compile turns every source unit into an object file, in source order.
// Any failing invocation aborts the whole build; there is no partial
// continuation.
func (p *Pipeline) compile(sources []m.SourceUnit) ([]string, error) {
	objs := make([]string, 0, len(sources))

	for _, src := range sources {
		if src.Kind == m.SourceAssembly {
			if err := assemble(p.em, src); err != nil {
				return nil, err
			}
		} else {
			args := p.target.CompileFlags() + ` /FoSRC\ ` + src.DOSPath
			if _, err := p.em.RunChecked(`BIN\CL.EXE`, args, "CL.EXE"); err != nil {
				return nil, err
			}
		}

		slog.Debug("compiled", "source", src.DOSPath, "object", src.ObjPath)
		objs = append(objs, src.ObjPath)
	}

	return objs, nil
}

// assemble runs MASM on one unit. /ML keeps names case-sensitive, which C
// linkage requires; the positional fields are source,object,listing,xref.
func assemble(em adapter.Emulator, src m.SourceUnit) error {
	args := fmt.Sprintf(`/ML /IINCLUDE %s,%s,NUL,NUL;`, src.DOSPath, src.ObjPath)
	_, err := em.RunChecked(`BIN\MASM.EXE`, args, "MASM.EXE")

	return err
}

// publish copies the artifact (and its map-file sibling, if any) into the
// configured output directory and returns the final path.
func (p *Pipeline) publish(hostPath, projectRoot string) (m.BuildResult, error) {
	if _, err := os.Stat(hostPath); err != nil {
		return m.BuildResult{}, &m.ArtifactError{Path: hostPath}
	}

	outDir := filepath.Join(projectRoot, p.cfg.OutputDir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return m.BuildResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	dest := filepath.Join(outDir, filepath.Base(hostPath))
	if err := copyFile(hostPath, dest); err != nil {
		return m.BuildResult{}, fmt.Errorf("publishing %s: %w", hostPath, err)
	}

	result := m.BuildResult{Artifact: dest, Target: p.cfg.Target}

	mapPath := strings.TrimSuffix(hostPath, filepath.Ext(hostPath)) + ".MAP"
	if _, err := os.Stat(mapPath); err == nil {
		mapDest := filepath.Join(outDir, filepath.Base(mapPath))
		if err := copyFile(mapPath, mapDest); err != nil {
			return m.BuildResult{}, fmt.Errorf("publishing %s: %w", mapPath, err)
		}

		result.MapFile = mapDest
	}

	return result, nil
}

// base carries the state and flag helpers shared by all target variants.
type base struct {
	cfg      m.ProjectConfig
	em       adapter.Emulator
	buildDir string

	// modelOverride forces the /A model letter regardless of configuration;
	// empty means use the configured memory model.
	modelOverride string
}

func (b *base) modelLetter() string {
	if b.modelOverride != "" {
		return b.modelOverride
	}

	if letter, ok := m.ModelFlags[b.cfg.Compiler.Model]; ok {
		return letter
	}

	return "S"
}

// commonCompileFlags assembles the flag set every kind starts from: compile
// only, model letter, no default-library records (we link explicitly), then
// optimization, warnings, defines, the merged include dir and extras.
func (b *base) commonCompileFlags() string {
	parts := []string{"/c", "/A" + b.modelLetter(), "/Zl"}

	switch b.cfg.Compiler.Optimization {
	case "speed":
		parts = append(parts, "/Ot")
	case "size":
		parts = append(parts, "/Os")
	case "debug":
		parts = append(parts, "/Od", "/Zi")
	}

	if w := b.cfg.Compiler.Warnings; w >= 1 {
		if w > 3 {
			w = 3
		}

		parts = append(parts, fmt.Sprintf("/W%d", w))
	}

	for _, d := range b.cfg.Compiler.Defines {
		parts = append(parts, "/D"+d)
	}

	parts = append(parts, "/IINCLUDE")
	parts = append(parts, b.cfg.Compiler.ExtraFlags...)

	return strings.Join(parts, " ")
}

func (b *base) outputName(ext string) string {
	return strings.ToUpper(b.cfg.Name) + ext
}

// linkFlags returns the common linker flags. /NOE and /NOI are always on
// unless the project already passes them explicitly.
func (b *base) linkFlags() []string {
	var flags []string

	if !containsFlag(b.cfg.Linker.ExtraFlags, "/NOE") {
		flags = append(flags, "/NOE")
	}

	if !containsFlag(b.cfg.Linker.ExtraFlags, "/NOI") {
		flags = append(flags, "/NOI")
	}

	flags = append(flags, b.cfg.Linker.ExtraFlags...)

	if b.cfg.Linker.StackSize > 0 {
		flags = append(flags, fmt.Sprintf("/STACK:%d", b.cfg.Linker.StackSize))
	}

	return flags
}

// mapArg returns the map-file positional field, or the NUL discard sentinel
// when map output is disabled.
func (b *base) mapArg() string {
	if b.cfg.Linker.MapFile {
		return `SRC\` + b.outputName(".MAP")
	}

	return "NUL"
}

// hostPath resolves a workspace virtual path to the host filesystem.
func (b *base) hostPath(dosPath string) string {
	parts := strings.Split(dosPath, `\`)

	return filepath.Join(append([]string{b.buildDir}, parts...)...)
}

// PostProcess is the default no-op conversion: resolve the virtual path.
func (b *base) PostProcess(outputPath string) (string, error) {
	return b.hostPath(outputPath), nil
}

// normalizeLibs uppercases library names and ensures they carry the .LIB
// extension.
func normalizeLibs(libs []string) []string {
	result := make([]string, 0, len(libs))

	for _, lib := range libs {
		lib = strings.ToUpper(lib)
		if !strings.HasSuffix(lib, ".LIB") {
			lib += ".LIB"
		}

		result = append(result, lib)
	}

	return result
}

func appendIfMissing(libs []string, lib string) []string {
	for _, l := range libs {
		if strings.EqualFold(l, lib) {
			return libs
		}
	}

	return append(libs, lib)
}

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}

	return false
}
