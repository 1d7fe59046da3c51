package model

import "fmt"

// ConfigError reports a problem detected before any tool invocation, such as
// a missing toolchain or SDK registration. Builds failing this way never
// start.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// ToolError reports an invoked program exiting non-zero. It carries the
// logical tool name, the exit status and the combined captured output.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.Tool, e.ExitCode)
}

// MissingDependencyError reports a library unit whose declared dependency
// has not been built yet. It is raised before any tool invocation for the
// unit; dependencies are never built implicitly.
type MissingDependencyError struct {
	Unit       string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("library %s depends on %s, which is not built", e.Unit, e.Dependency)
}

// ArtifactError reports an expected output file that is absent even though
// the tool that should have produced it exited zero.
type ArtifactError struct {
	Path string
	Tool string
}

func (e *ArtifactError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s exited cleanly but %s was not produced", e.Tool, e.Path)
	}

	return fmt.Sprintf("expected artifact %s was not produced", e.Path)
}
