package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"doscc.dev/pkg/doscc/internal/config"
	"doscc.dev/pkg/doscc/internal/controller"
)

// cleanCmd represents the clean command.
var cleanCmd = newCleanCmd()

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove build artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(controller.NewSimple(cmd))
		},
	}
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(ui controller.UI) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}

	buildDir := filepath.Join(root, config.GlobalDirName)
	if _, err := os.Stat(buildDir); err != nil {
		ui.Info("nothing to clean")
		return nil
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return fmt.Errorf("removing %s: %w", buildDir, err)
	}

	ui.Info("cleaned build directory")

	return nil
}
