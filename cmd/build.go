package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"doscc.dev/pkg/doscc/internal/adapter"
	"doscc.dev/pkg/doscc/internal/config"
	"doscc.dev/pkg/doscc/internal/controller"
	"doscc.dev/pkg/doscc/internal/domain"
	m "doscc.dev/pkg/doscc/internal/model"
)

// buildCmd represents the build command.
var buildCmd = newBuildCmd()

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Compile and link the project",
		Long: `Compose the build workspace and run the full pipeline for the project's
configured target: compile, link, post-process and publish.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(controller.NewSimple(cmd))
		},
	}
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(ui controller.UI) error {
	start := time.Now()

	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}

	global, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	project, err := config.LoadProject(root)
	if err != nil {
		return err
	}

	toolchain, ok := global.Toolchains[project.Toolchain]
	if !ok {
		return &m.ConfigError{Msg: fmt.Sprintf("toolchain %q is not configured in the global config", project.Toolchain)}
	}

	var sdk *m.SDKConfig

	if project.SDK != "" {
		s, ok := global.SDKs[project.SDK]
		if !ok {
			return &m.ConfigError{Msg: fmt.Sprintf("SDK %q is not configured in the global config", project.SDK)}
		}

		sdk = &s
	}

	slog.Info("building", "project", project.Name, "target", project.Target, "root", root)

	composer := domain.NewComposer(root, project, toolchain, sdk, global.LibsDir)

	sources, err := composer.Compose()
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		return &m.ConfigError{Msg: "no source files matched the configured patterns"}
	}

	em := adapter.NewXTEmulator(global.XTPath, composer.BuildDir(), verboseFlag)

	target, err := domain.NewTarget(project, em, composer.BuildDir())
	if err != nil {
		return err
	}

	pipeline := domain.NewPipeline(project, em, target, composer.BuildDir())

	result, err := pipeline.Build(sources, root)
	if err != nil {
		var toolErr *m.ToolError
		if errors.As(err, &toolErr) && toolErr.Output != "" {
			ui.Error("%s", toolErr.Output)
		}

		return err
	}

	result.Duration = time.Since(start)

	reportPath := filepath.Join(root, config.GlobalDirName, "last-build.yaml")
	if err := reportStore.Save(reportPath, result); err != nil {
		slog.Error("saving build report", "path", reportPath, "error", err)
	}

	ui.Success("built %s (%.1fs)", filepath.Base(result.Artifact), result.Duration.Seconds())

	return nil
}
