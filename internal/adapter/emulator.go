// Package adapter contains the process, filesystem and persistence adapters
// that back the doscc domain layer.
package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	m "doscc.dev/pkg/doscc/internal/model"
)

// Emulator abstracts running a DOS program inside a composed build root via
// the XT emulator. Implementations block until the program exits; there is
// no retry and no timeout.
type Emulator interface {
	// Run executes a program and returns its outcome regardless of exit
	// status. env entries override the default DOS environment per call.
	Run(program, args string, env map[string]string) (m.Outcome, error)

	// RunChecked is Run with a nil env, converting any non-zero exit into a
	// *model.ToolError carrying toolName, the exit status and the captured
	// output. All pipeline stages use this form.
	RunChecked(program, args, toolName string) (m.Outcome, error)
}

// Factory builds an Emulator bound to a specific build root. The library
// builder uses it to get a runner per temporary workspace.
type Factory func(buildDir string) Emulator

// XTEmulator runs DOS programs through the `xt` emulator binary with the
// build root mapped as C:\.
type XTEmulator struct {
	xtPath   string
	buildDir string
	verbose  bool
	echo     io.Writer

	// defaultEnv is injected into every invocation as XT_DOS_ENV_* variables.
	defaultEnv map[string]string
}

// NewXTEmulator constructs an XTEmulator for one build root. When verbose is
// set, every invoked command and its captured output are echoed to stderr;
// this never affects control flow.
func NewXTEmulator(xtPath, buildDir string, verbose bool) *XTEmulator {
	return &XTEmulator{
		xtPath:   xtPath,
		buildDir: buildDir,
		verbose:  verbose,
		echo:     os.Stderr,
		defaultEnv: map[string]string{
			"LIB":     `C:\LIB`,
			"INCLUDE": `C:\INCLUDE`,
			"PATH":    `C:\;C:\BIN`,
		},
	}
}

// Run executes one DOS program via XT and captures its combined output.
func (x *XTEmulator) Run(program, args string, env map[string]string) (m.Outcome, error) {
	argv := []string{"run", "-c", x.buildDir, program}
	if args != "" {
		argv = append(argv, args)
	}

	cmd := exec.Command(x.xtPath, argv...)
	cmd.Env = x.environ(env)

	var combined bytes.Buffer

	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if x.verbose {
		fmt.Fprintf(x.echo, "  > %s\n", strings.TrimSpace(program+" "+args))
	}

	err := cmd.Run()

	outcome := m.Outcome{Output: combined.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return outcome, fmt.Errorf("invoking %s via %s: %w", program, x.xtPath, err)
		}

		outcome.ExitCode = exitErr.ExitCode()
	}

	if x.verbose && outcome.Output != "" {
		for _, line := range strings.Split(strings.TrimRight(outcome.Output, "\n"), "\n") {
			fmt.Fprintf(x.echo, "    %s\n", line)
		}
	}

	return outcome, nil
}

// RunChecked runs a program and maps a non-zero exit to a *model.ToolError.
func (x *XTEmulator) RunChecked(program, args, toolName string) (m.Outcome, error) {
	outcome, err := x.Run(program, args, nil)
	if err != nil {
		return outcome, err
	}

	if !outcome.Success() {
		if toolName == "" {
			toolName = program
		}

		return outcome, &m.ToolError{
			Tool:     toolName,
			ExitCode: outcome.ExitCode,
			Output:   strings.TrimSpace(outcome.Output),
		}
	}

	return outcome, nil
}

// Interactive runs a program with the caller's terminal attached, for
// `doscc run`. No output capture, no environment injection beyond defaults.
func (x *XTEmulator) Interactive(program string, args string) error {
	argv := []string{"run", "-c", x.buildDir, program}
	if args != "" {
		argv = append(argv, args)
	}

	cmd := exec.Command(x.xtPath, argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// environ merges the process environment with the default DOS variables and
// any per-call overrides, encoded as XT_DOS_ENV_<NAME>.
func (x *XTEmulator) environ(overrides map[string]string) []string {
	merged := make(map[string]string, len(x.defaultEnv)+len(overrides))
	for k, v := range x.defaultEnv {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	env := os.Environ()
	for k, v := range merged {
		env = append(env, "XT_DOS_ENV_"+k+"="+v)
	}

	return env
}
