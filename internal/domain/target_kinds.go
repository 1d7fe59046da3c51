package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	m "doscc.dev/pkg/doscc/internal/model"
)

// modelRuntimeLibs is the default C runtime archive per memory model.
var modelRuntimeLibs = map[string]string{
	"tiny":    "SLIBC.LIB",
	"small":   "SLIBC.LIB",
	"medium":  "MLIBC.LIB",
	"compact": "CLIBC.LIB",
	"large":   "LLIBC.LIB",
}

// modelFloatLibs provides __fltused and the FI*RQQ symbols per memory model.
var modelFloatLibs = map[string]string{
	"tiny":    "SLIBFP.LIB",
	"small":   "SLIBFP.LIB",
	"medium":  "MLIBFP.LIB",
	"compact": "CLIBFP.LIB",
	"large":   "LLIBFP.LIB",
}

// dosExeTarget builds a standard DOS .EXE against the MS C runtime.
type dosExeTarget struct {
	base
}

func (t *dosExeTarget) Kind() m.TargetKind {
	return m.TargetDosExe
}

func (t *dosExeTarget) CompileFlags() string {
	return t.commonCompileFlags()
}

func (t *dosExeTarget) Link(objs []string, _ []m.SourceUnit) (string, error) {
	exePath := `SRC\` + t.outputName(".EXE")

	libs := normalizeLibs(t.cfg.Linker.Libraries)

	crt, ok := modelRuntimeLibs[t.cfg.Compiler.Model]
	if !ok {
		crt = "SLIBC.LIB"
	}

	fp, ok := modelFloatLibs[t.cfg.Compiler.Model]
	if !ok {
		fp = "SLIBFP.LIB"
	}

	libs = appendIfMissing(libs, crt)
	libs = appendIfMissing(libs, "LIBH.LIB")
	libs = appendIfMissing(libs, fp)
	libs = appendIfMissing(libs, "EM.LIB")

	// LINK positional format: LINK [flags] objs,exe,map,libs;
	args := fmt.Sprintf("%s %s,%s,%s,%s;",
		strings.Join(t.linkFlags(), " "),
		strings.Join(objs, "+"),
		exePath,
		t.mapArg(),
		strings.Join(libs, "+"))

	if _, err := t.em.RunChecked(`BIN\LINK.EXE`, args, "LINK.EXE"); err != nil {
		return "", err
	}

	return exePath, nil
}

// dosComTarget builds a DOS .COM. The tiny addressing model is forced no
// matter what the project configures.
type dosComTarget struct {
	base
}

func (t *dosComTarget) Kind() m.TargetKind {
	return m.TargetDosCom
}

func (t *dosComTarget) CompileFlags() string {
	return t.commonCompileFlags()
}

func (t *dosComTarget) Link(objs []string, _ []m.SourceUnit) (string, error) {
	exePath := `SRC\` + t.outputName(".EXE")

	// /T makes LINK emit COM-format output; it keeps the configured output
	// name. No map file and no runtime archives for .COM.
	args := fmt.Sprintf("%s /T %s,%s,NUL,;",
		strings.Join(t.linkFlags(), " "),
		strings.Join(objs, "+"),
		exePath)

	if _, err := t.em.RunChecked(`BIN\LINK.EXE`, args, "LINK.EXE"); err != nil {
		return "", err
	}

	return exePath, nil
}

// hp95lxTarget builds a System Manager compliant .EXM for the HP 95LX.
type hp95lxTarget struct {
	base
}

func (t *hp95lxTarget) Kind() m.TargetKind {
	return m.TargetHP95LX
}

func (t *hp95lxTarget) CompileFlags() string {
	flags := t.commonCompileFlags()
	if !strings.Contains(flags, "/Gs") {
		flags += " /Gs"
	}

	return flags
}

func (t *hp95lxTarget) Link(objs []string, _ []m.SourceUnit) (string, error) {
	exePath := `SRC\` + t.outputName(".EXE")

	// The System Manager service-call stub and startup stub from the SDK go
	// after the project objects.
	sdkObjs := `TOOLS\CSVC.OBJ+TOOLS\CRT0.OBJ`

	flags := strings.Join(t.linkFlags(), " ")
	if !strings.Contains(flags, "/M") {
		flags = "/M " + flags
	}

	args := fmt.Sprintf("%s %s+%s,%s,%s,%s;",
		flags,
		strings.Join(objs, "+"),
		sdkObjs,
		exePath,
		t.mapArg(),
		strings.Join(normalizeLibs(t.cfg.Linker.Libraries), "+"))

	if _, err := t.em.RunChecked(`BIN\LINK.EXE`, args, "LINK.EXE"); err != nil {
		return "", err
	}

	return exePath, nil
}

// PostProcess converts the linked .EXE into the platform's .EXM format.
func (t *hp95lxTarget) PostProcess(outputPath string) (string, error) {
	// E2M takes the base name without extension; it appends .EXE and .MAP
	// itself and writes the .EXM alongside.
	baseDOS := strings.TrimSuffix(outputPath, ".EXE")
	if _, err := t.em.RunChecked(`TOOLS\E2M.EXE`, baseDOS, "E2M.EXE"); err != nil {
		return "", err
	}

	hostExe := t.hostPath(outputPath)

	return strings.TrimSuffix(hostExe, ".EXE") + ".EXM", nil
}

// hp200lxTarget is pipeline-identical to the HP 95LX variant.
type hp200lxTarget struct {
	hp95lxTarget
}

func (t *hp200lxTarget) Kind() m.TargetKind {
	return m.TargetHP200LX
}

// win16Target builds a Windows 3.x 16-bit .EXE.
type win16Target struct {
	base
}

func (t *win16Target) Kind() m.TargetKind {
	return m.TargetWin16
}

func (t *win16Target) CompileFlags() string {
	flags := t.commonCompileFlags()
	if !strings.Contains(flags, "/Gw") {
		flags += " /Gw"
	}

	return flags
}

func (t *win16Target) Link(objs []string, _ []m.SourceUnit) (string, error) {
	exePath := `SRC\` + t.outputName(".EXE")

	libs := append([]string(nil), t.cfg.Linker.Libraries...)
	for _, def := range []string{"SLIBCEW", "LIBW"} {
		libs = appendIfMissing(libs, def)
	}

	defFile := ""
	if _, err := os.Stat(filepath.Join(t.buildDir, "SRC", t.outputName(".DEF"))); err == nil {
		defFile = `SRC\` + t.outputName(".DEF")
	}

	flags := append(t.linkFlags(), "/ALIGN:16")

	// The Windows-aware LINK4 is preferred when the toolchain ships it.
	linker := `BIN\LINK4.EXE`
	if _, err := os.Stat(filepath.Join(t.buildDir, "BIN", "LINK4.EXE")); err != nil {
		linker = `BIN\LINK.EXE`
	}

	args := fmt.Sprintf("%s %s,%s,%s,%s,%s;",
		strings.Join(flags, " "),
		strings.Join(objs, "+"),
		exePath,
		t.mapArg(),
		strings.Join(libs, "+"),
		defFile)

	if _, err := t.em.RunChecked(linker, args, "LINK"); err != nil {
		return "", err
	}

	return exePath, nil
}

// PostProcess compiles and binds a resource script when the project ships
// one in its sources.
func (t *win16Target) PostProcess(outputPath string) (string, error) {
	rcName := t.outputName(".RC")
	if _, err := os.Stat(filepath.Join(t.buildDir, "SRC", rcName)); err == nil {
		resPath := `SRC\` + t.outputName(".RES")

		if _, err := t.em.RunChecked(`BIN\RC.EXE`, `/r SRC\`+rcName, "RC.EXE"); err != nil {
			return "", err
		}

		if _, err := t.em.RunChecked(`BIN\RC.EXE`, resPath+" "+outputPath, "RC.EXE"); err != nil {
			return "", err
		}
	}

	return t.hostPath(outputPath), nil
}
