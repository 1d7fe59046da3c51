package cmd

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"doscc.dev/pkg/doscc/internal/config"
	"doscc.dev/pkg/doscc/internal/controller"
)

// infoCmd represents the info command.
var infoCmd = newInfoCmd()

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display configuration and project info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(controller.NewSimple(cmd))
		},
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(ui controller.UI) error {
	global, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	ui.Info("XT path: %s", global.XTPath)

	if len(global.Toolchains) == 0 && len(global.SDKs) == 0 {
		ui.Info("no toolchains or SDKs configured")
	} else {
		var rows [][]string

		for _, tc := range global.Toolchains {
			rows = append(rows, []string{"toolchain", tc.Name, tc.Path, pathStatus(tc.Path)})
		}

		for _, sdk := range global.SDKs {
			rows = append(rows, []string{"sdk", sdk.Name, sdk.Path, pathStatus(sdk.Path)})
		}

		sort.Slice(rows, func(i, j int) bool {
			return rows[i][0]+rows[i][1] < rows[j][0]+rows[j][1]
		})
		ui.Table([]string{"Kind", "Name", "Path", "Status"}, rows)
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		ui.Info("project: no %s found in current directory tree", config.ProjectFileName)
		return nil
	}

	project, err := config.LoadProject(root)
	if err != nil {
		return err
	}

	ui.Info("")
	ui.Info("project:   %s", project.Name)
	ui.Info("root:      %s", root)
	ui.Info("target:    %s", project.Target)
	ui.Info("toolchain: %s", project.Toolchain)

	if project.SDK != "" {
		ui.Info("SDK:       %s", project.SDK)
	}

	ui.Info("model:     %s", project.Compiler.Model)

	if len(project.Compiler.Defines) > 0 {
		ui.Info("defines:   %s", strings.Join(project.Compiler.Defines, ", "))
	}

	if len(project.Compiler.Includes) > 0 {
		ui.Info("includes:  %s", strings.Join(project.Compiler.Includes, ", "))
	}

	ui.Info("sources:   %s", strings.Join(project.SourceFiles, ", "))

	if last, err := reportStore.Load(filepath.Join(root, config.GlobalDirName, "last-build.yaml")); err == nil {
		ui.Info("")
		ui.Info("last build: %s (%s, %.1fs)", last.Artifact, last.Target, last.Duration.Seconds())
	}

	return nil
}

func pathStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "NOT FOUND"
	}

	return "ok"
}
