package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"doscc.dev/pkg/doscc/internal/adapter"
	"doscc.dev/pkg/doscc/internal/config"
	m "doscc.dev/pkg/doscc/internal/model"
)

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [program] [args...]",
		Short: "Run a built program via XT",
		Long: `Run the project's published output (or an explicitly named program)
inside the XT emulator, with the output directory mapped as C:\.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return runProgram(args)
		},
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runProgram(args []string) error {
	global, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	root, rootErr := config.FindProjectRoot(".")

	dir := "."
	program := ""
	extra := ""

	switch {
	case len(args) > 0:
		program = args[0]
		extra = strings.Join(args[1:], " ")

		if rootErr == nil {
			if project, err := config.LoadProject(root); err == nil {
				dir = filepath.Join(root, project.OutputDir)
			}
		}
	case rootErr == nil:
		project, err := config.LoadProject(root)
		if err != nil {
			return err
		}

		ext, ok := m.TargetExtensions[project.Target]
		if !ok {
			ext = ".EXE"
		}

		program = strings.ToUpper(project.Name) + ext
		dir = filepath.Join(root, project.OutputDir)

		if _, err := os.Stat(filepath.Join(dir, program)); err != nil {
			return &m.ConfigError{Msg: fmt.Sprintf("%s not found (run 'doscc build' first)", program)}
		}

		extra = strings.Join(args, " ")
	default:
		return &m.ConfigError{Msg: "no " + config.ProjectFileName + " found and no program specified"}
	}

	em := adapter.NewXTEmulator(global.XTPath, dir, false)

	return em.Interactive(program, extra)
}
