package model

import "time"

// Outcome is the result of one tool invocation: exit status plus the
// combined captured output. It lives only for the duration of the call.
type Outcome struct {
	ExitCode int
	Output   string
}

// Success reports whether the invoked tool exited cleanly.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// BuildResult describes the published output of one successful pipeline run.
type BuildResult struct {
	Artifact string        `yaml:"artifact"`
	MapFile  string        `yaml:"map_file,omitempty"`
	Target   TargetKind    `yaml:"target"`
	Duration time.Duration `yaml:"duration"`
}
