// Package model defines the data types shared across the doscc CLI.
package model

// TargetKind identifies one of the fixed output formats the pipeline can produce.
type TargetKind string

// Supported target kinds.
const (
	TargetDosExe  TargetKind = "dos-exe"
	TargetDosCom  TargetKind = "dos-com"
	TargetHP95LX  TargetKind = "hp95lx"
	TargetHP200LX TargetKind = "hp200lx"
	TargetWin16   TargetKind = "win16"
)

// TargetKinds lists every supported kind in display order.
var TargetKinds = []TargetKind{TargetDosExe, TargetDosCom, TargetHP95LX, TargetHP200LX, TargetWin16}

// TargetExtensions maps a target kind to the extension of its published artifact.
var TargetExtensions = map[TargetKind]string{
	TargetDosExe:  ".EXE",
	TargetDosCom:  ".COM",
	TargetHP95LX:  ".EXM",
	TargetHP200LX: ".EXM",
	TargetWin16:   ".EXE",
}

// ModelFlags maps memory model names to the CL.EXE /A flag letter.
var ModelFlags = map[string]string{
	"tiny":    "T",
	"small":   "S",
	"medium":  "M",
	"compact": "C",
	"large":   "L",
}

// ToolchainConfig is a registered compiler toolchain root. The root is
// expected to contain BIN, INCLUDE and LIB directories.
type ToolchainConfig struct {
	Name string
	Path string
}

// SDKConfig is a registered platform SDK root. The root is expected to
// contain HEADERS, LIB and TOOLS directories.
type SDKConfig struct {
	Name string
	Path string
}

// GlobalConfig holds the machine-wide configuration loaded from
// ~/.doscc/config.toml. It is constructed once at startup and passed
// explicitly into the domain layer.
type GlobalConfig struct {
	XTPath     string
	LibsDir    string
	Toolchains map[string]ToolchainConfig
	SDKs       map[string]SDKConfig
}

// CompilerOptions holds the [compiler] section of a project config.
type CompilerOptions struct {
	Model        string
	Optimization string
	Warnings     int
	Defines      []string
	Includes     []string
	ExtraFlags   []string
}

// LinkerOptions holds the [linker] section of a project config.
type LinkerOptions struct {
	Libraries  []string
	MapFile    bool
	StackSize  int
	ExtraFlags []string
}

// ProjectConfig is the target profile for one build, loaded from the
// project's doscc.toml. Immutable for the duration of a build.
type ProjectConfig struct {
	Name        string
	Target      TargetKind
	Toolchain   string
	SDK         string
	Compiler    CompilerOptions
	Linker      LinkerOptions
	SourceFiles []string
	OutputDir   string
}
