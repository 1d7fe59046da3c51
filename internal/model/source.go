package model

import "strings"

// SourceKind distinguishes how a source unit is turned into an object file.
type SourceKind string

const (
	// SourceC is compiled with CL.EXE.
	SourceC SourceKind = "c"
	// SourceAssembly is assembled with MASM.EXE.
	SourceAssembly SourceKind = "asm"
)

// SourceUnit is one project source file selected for compilation, together
// with the virtual paths it is addressed by inside the composed workspace.
type SourceUnit struct {
	HostPath      string // original file on the host
	WorkspacePath string // copy under <build root>/SRC
	DOSPath       string // path as seen by the tools, e.g. SRC\FOO.C
	ObjPath       string // expected object path, e.g. SRC\FOO.OBJ
	Kind          SourceKind
}

// ObjectPath derives the object virtual path from a source virtual path by
// replacing the extension with .OBJ. Object names are not checked for
// uniqueness; colliding basenames across patterns are a caller error.
func ObjectPath(dosPath string) string {
	if i := strings.LastIndex(dosPath, "."); i >= 0 {
		return dosPath[:i] + ".OBJ"
	}

	return dosPath + ".OBJ"
}

// KindForName classifies a source file by its (case-insensitive) extension.
func KindForName(name string) SourceKind {
	if strings.HasSuffix(strings.ToUpper(name), ".ASM") {
		return SourceAssembly
	}

	return SourceC
}
