package domain_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doscc.dev/pkg/doscc/internal/domain"
	m "doscc.dev/pkg/doscc/internal/model"
)

type invocation struct {
	program string
	args    string
}

// fakeEmulator records invocations instead of launching XT. Programs listed
// in fail exit non-zero; onRun lets a test drop artifact files into the
// workspace the way the real tools would.
type fakeEmulator struct {
	calls []invocation
	fail  map[string]int
	onRun func(program, args string)
}

func (f *fakeEmulator) Run(program, args string, _ map[string]string) (m.Outcome, error) {
	f.calls = append(f.calls, invocation{program: program, args: args})

	if f.onRun != nil {
		f.onRun(program, args)
	}

	if code, ok := f.fail[program]; ok {
		return m.Outcome{ExitCode: code, Output: "simulated tool failure"}, nil
	}

	return m.Outcome{}, nil
}

func (f *fakeEmulator) RunChecked(program, args, toolName string) (m.Outcome, error) {
	outcome, err := f.Run(program, args, nil)
	if err != nil {
		return outcome, err
	}

	if !outcome.Success() {
		return outcome, &m.ToolError{Tool: toolName, ExitCode: outcome.ExitCode, Output: outcome.Output}
	}

	return outcome, nil
}

func (f *fakeEmulator) programs() []string {
	names := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		names = append(names, c.program)
	}

	return names
}

// touch creates an empty file under the workspace at a DOS virtual path.
func touch(t *testing.T, buildDir, dosPath string) {
	t.Helper()

	hostPath := filepath.Join(append([]string{buildDir}, strings.Split(dosPath, `\`)...)...)
	require.NoError(t, os.WriteFile(hostPath, []byte("MZ"), 0o644))
}

func newWorkspace(t *testing.T) string {
	t.Helper()

	buildDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(buildDir, "SRC"), 0o750))

	return buildDir
}

func TestPipeline_Build_DosExe(t *testing.T) {
	buildDir := newWorkspace(t)
	projectRoot := t.TempDir()

	cfg := m.ProjectConfig{
		Name:      "hello",
		Target:    m.TargetDosExe,
		OutputDir: "dist",
		Compiler:  m.CompilerOptions{Model: "small"},
		Linker:    m.LinkerOptions{MapFile: true},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\HELLO.EXE`)
				touch(t, buildDir, `SRC\HELLO.MAP`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	result, err := domain.NewPipeline(cfg, em, target, buildDir).Build(sources, projectRoot)
	require.NoError(t, err)

	require.Len(t, em.calls, 2)
	assert.Equal(t, `BIN\CL.EXE`, em.calls[0].program)
	assert.Equal(t, `/c /AS /Zl /IINCLUDE /FoSRC\ SRC\MAIN.C`, em.calls[0].args)

	assert.Equal(t, `BIN\LINK.EXE`, em.calls[1].program)
	assert.Equal(t,
		`/NOE /NOI SRC\MAIN.OBJ,SRC\HELLO.EXE,SRC\HELLO.MAP,SLIBC.LIB+LIBH.LIB+SLIBFP.LIB+EM.LIB;`,
		em.calls[1].args)

	assert.Equal(t, filepath.Join(projectRoot, "dist", "HELLO.EXE"), result.Artifact)
	assert.FileExists(t, result.Artifact)
	assert.Equal(t, filepath.Join(projectRoot, "dist", "HELLO.MAP"), result.MapFile)
	assert.Equal(t, m.TargetDosExe, result.Target)
}

func TestPipeline_Build_LargeModelRuntime(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "big",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "large"},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\BIG.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, em.calls[0].args, "/AL")
	assert.Contains(t, em.calls[1].args, "LLIBC.LIB+LIBH.LIB+LLIBFP.LIB+EM.LIB;")
}

func TestPipeline_Build_UserLibrariesKeepPosition(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "app",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "small"},
		Linker:   m.LinkerOptions{Libraries: []string{"math", "SLIBC.LIB"}},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\APP.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	// User libraries come first; defaults only fill in what is missing, and
	// an explicitly listed runtime archive is not duplicated.
	assert.Contains(t, em.calls[1].args, "MATH.LIB+SLIBC.LIB+LIBH.LIB+SLIBFP.LIB+EM.LIB;")
}

func TestPipeline_Build_AssemblySource(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "mix",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "small"},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\MIX.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{
		{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC},
		{DOSPath: `SRC\FAST.ASM`, ObjPath: `SRC\FAST.OBJ`, Kind: m.SourceAssembly},
	}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	require.Len(t, em.calls, 3)
	assert.Equal(t, `BIN\MASM.EXE`, em.calls[1].program)
	assert.Equal(t, `/ML /IINCLUDE SRC\FAST.ASM,SRC\FAST.OBJ,NUL,NUL;`, em.calls[1].args)
	assert.Contains(t, em.calls[2].args, `SRC\MAIN.OBJ+SRC\FAST.OBJ,`)
}

func TestPipeline_Build_CompileFailureAborts(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "bad",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "small"},
	}

	em := &fakeEmulator{fail: map[string]int{`BIN\CL.EXE`: 2}}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{
		{DOSPath: `SRC\A.C`, ObjPath: `SRC\A.OBJ`, Kind: m.SourceC},
		{DOSPath: `SRC\B.C`, ObjPath: `SRC\B.OBJ`, Kind: m.SourceC},
	}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.Error(t, err)

	var toolErr *m.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "CL.EXE", toolErr.Tool)
	assert.Equal(t, 2, toolErr.ExitCode)

	// The first failure stops everything: no second compile, no link.
	assert.Equal(t, []string{`BIN\CL.EXE`}, em.programs())
}

func TestPipeline_Build_MissingArtifact(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "ghost",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "small"},
	}

	// Every tool exits zero but nothing ever writes the executable.
	em := &fakeEmulator{}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.Error(t, err)

	var artErr *m.ArtifactError
	assert.ErrorAs(t, err, &artErr)
}

func TestPipeline_Build_DosComForcesTinyModel(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "tsr",
		Target:   m.TargetDosCom,
		Compiler: m.CompilerOptions{Model: "large"},
		Linker:   m.LinkerOptions{MapFile: true},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\TSR.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	// The configured large model is overridden; .COM is tiny by definition.
	assert.Contains(t, em.calls[0].args, "/AT")
	assert.NotContains(t, em.calls[0].args, "/AL")

	// /T output, no map file and no runtime archives, map_file setting or not.
	assert.Equal(t, `/NOE /NOI /T SRC\MAIN.OBJ,SRC\TSR.EXE,NUL,;`, em.calls[1].args)
}

func TestPipeline_Build_HP95LX(t *testing.T) {
	buildDir := newWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(buildDir, "TOOLS"), 0o750))

	projectRoot := t.TempDir()

	cfg := m.ProjectConfig{
		Name:     "palm",
		Target:   m.TargetHP95LX,
		Compiler: m.CompilerOptions{Model: "large"},
		Linker:   m.LinkerOptions{Libraries: []string{"CSVC"}, MapFile: true},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			switch program {
			case `BIN\LINK.EXE`:
				touch(t, buildDir, `SRC\PALM.EXE`)
			case `TOOLS\E2M.EXE`:
				touch(t, buildDir, `SRC\PALM.EXM`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	result, err := domain.NewPipeline(cfg, em, target, buildDir).Build(sources, projectRoot)
	require.NoError(t, err)

	require.Len(t, em.calls, 3)

	// Small model is forced and stack probes are disabled for System Manager.
	assert.Contains(t, em.calls[0].args, "/AS")
	assert.Contains(t, em.calls[0].args, "/Gs")

	assert.Equal(t, `BIN\LINK.EXE`, em.calls[1].program)
	assert.Equal(t,
		`/M /NOE /NOI SRC\MAIN.OBJ+TOOLS\CSVC.OBJ+TOOLS\CRT0.OBJ,SRC\PALM.EXE,SRC\PALM.MAP,CSVC.LIB;`,
		em.calls[1].args)

	assert.Equal(t, `TOOLS\E2M.EXE`, em.calls[2].program)
	assert.Equal(t, `SRC\PALM`, em.calls[2].args)

	assert.Equal(t, filepath.Join(projectRoot, "PALM.EXM"), result.Artifact)
}

func TestNewTarget_HP200LXSharesHP95Pipeline(t *testing.T) {
	cfg := m.ProjectConfig{Name: "x", Target: m.TargetHP200LX}

	target, err := domain.NewTarget(cfg, &fakeEmulator{}, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, m.TargetHP200LX, target.Kind())
	assert.Contains(t, target.CompileFlags(), "/AS")
	assert.Contains(t, target.CompileFlags(), "/Gs")
}

func TestPipeline_Build_Win16(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "winapp",
		Target:   m.TargetWin16,
		Compiler: m.CompilerOptions{Model: "medium"},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\WINAPP.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	// Windows prolog/epilog generation on top of the forced small model.
	assert.Contains(t, em.calls[0].args, "/AS")
	assert.Contains(t, em.calls[0].args, "/Gw")

	// LINK4 is absent from this workspace, so plain LINK runs with segment
	// alignment and the Windows default libraries.
	assert.Equal(t, `BIN\LINK.EXE`, em.calls[1].program)
	assert.Equal(t, `/NOE /NOI /ALIGN:16 SRC\MAIN.OBJ,SRC\WINAPP.EXE,NUL,SLIBCEW+LIBW,;`, em.calls[1].args)
}

func TestPipeline_Build_Win16Resources(t *testing.T) {
	buildDir := newWorkspace(t)
	touch(t, buildDir, `SRC\WINAPP.RC`)

	cfg := m.ProjectConfig{
		Name:     "winapp",
		Target:   m.TargetWin16,
		Compiler: m.CompilerOptions{Model: "small"},
	}

	em := &fakeEmulator{
		onRun: func(program, _ string) {
			if program == `BIN\LINK.EXE` {
				touch(t, buildDir, `SRC\WINAPP.EXE`)
			}
		},
	}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	sources := []m.SourceUnit{{DOSPath: `SRC\MAIN.C`, ObjPath: `SRC\MAIN.OBJ`, Kind: m.SourceC}}

	_, err = domain.NewPipeline(cfg, em, target, buildDir).Build(sources, t.TempDir())
	require.NoError(t, err)

	require.Len(t, em.calls, 4)
	assert.Equal(t, `BIN\RC.EXE`, em.calls[2].program)
	assert.Equal(t, `/r SRC\WINAPP.RC`, em.calls[2].args)
	assert.Equal(t, `BIN\RC.EXE`, em.calls[3].program)
	assert.Equal(t, `SRC\WINAPP.RES SRC\WINAPP.EXE`, em.calls[3].args)
}

func TestNewTarget_UnknownKind(t *testing.T) {
	cfg := m.ProjectConfig{Name: "x", Target: m.TargetKind("os2")}

	_, err := domain.NewTarget(cfg, &fakeEmulator{}, t.TempDir())
	require.Error(t, err)

	var cfgErr *m.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "os2")
}

func TestTarget_CompileFlagVariants(t *testing.T) {
	tests := []struct {
		name     string
		compiler m.CompilerOptions
		want     string
	}{
		{
			name:     "defaults",
			compiler: m.CompilerOptions{Model: "small"},
			want:     `/c /AS /Zl /IINCLUDE`,
		},
		{
			name:     "speed optimization",
			compiler: m.CompilerOptions{Model: "compact", Optimization: "speed"},
			want:     `/c /AC /Zl /Ot /IINCLUDE`,
		},
		{
			name:     "debug with warnings",
			compiler: m.CompilerOptions{Model: "medium", Optimization: "debug", Warnings: 2},
			want:     `/c /AM /Zl /Od /Zi /W2 /IINCLUDE`,
		},
		{
			name:     "warnings capped at three",
			compiler: m.CompilerOptions{Model: "small", Warnings: 9},
			want:     `/c /AS /Zl /W3 /IINCLUDE`,
		},
		{
			name:     "defines and extra flags",
			compiler: m.CompilerOptions{Model: "small", Defines: []string{"NDEBUG", "VER=2"}, ExtraFlags: []string{"/J"}},
			want:     `/c /AS /Zl /DNDEBUG /DVER=2 /IINCLUDE /J`,
		},
		{
			name:     "unknown model falls back to small",
			compiler: m.CompilerOptions{Model: "huge"},
			want:     `/c /AS /Zl /IINCLUDE`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := m.ProjectConfig{Name: "x", Target: m.TargetDosExe, Compiler: tt.compiler}

			target, err := domain.NewTarget(cfg, &fakeEmulator{}, t.TempDir())
			require.NoError(t, err)

			assert.Equal(t, tt.want, target.CompileFlags())
		})
	}
}

func TestTarget_LinkFlagPassthrough(t *testing.T) {
	buildDir := newWorkspace(t)

	cfg := m.ProjectConfig{
		Name:     "x",
		Target:   m.TargetDosExe,
		Compiler: m.CompilerOptions{Model: "small"},
		Linker: m.LinkerOptions{
			ExtraFlags: []string{"/NOE", "/CPARM:1"},
			StackSize:  8192,
		},
	}

	em := &fakeEmulator{}

	target, err := domain.NewTarget(cfg, em, buildDir)
	require.NoError(t, err)

	_, err = target.Link([]string{`SRC\MAIN.OBJ`}, nil)
	require.NoError(t, err)

	// /NOE is already given explicitly, so only /NOI is injected.
	assert.True(t, strings.HasPrefix(em.calls[0].args, "/NOI /NOE /CPARM:1 /STACK:8192 "))
}
