package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"doscc.dev/pkg/doscc/internal/adapter"
	"doscc.dev/pkg/doscc/internal/config"
	"doscc.dev/pkg/doscc/internal/controller"
	"doscc.dev/pkg/doscc/internal/domain"
	m "doscc.dev/pkg/doscc/internal/model"
)

// libCmd represents the lib command group.
var libCmd = newLibCmd()

func newLibCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lib",
		Short: "Manage pre-built shared libraries",
		Long: `List and build the units of the shared library store (~/.doscc/libs).
Units are built in dependency order; a unit's DEPS file names the units
whose archives must exist before it builds.`,
	}

	cmd.AddCommand(newLibListCmd(), newLibBuildCmd())

	return cmd
}

func newLibListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed libraries and their build status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLibList(controller.NewSimple(cmd))
		},
	}
}

func newLibBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [name]",
		Short: "Build a library (or all libraries) in dependency order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			return runLibBuild(controller.NewSimple(cmd), name)
		},
	}
}

func init() {
	rootCmd.AddCommand(libCmd)
}

func newLibraryBuilder(global m.GlobalConfig) (*domain.LibraryBuilder, error) {
	// Library units are always built with the fixed default toolchain, not
	// a per-project profile.
	toolchain, ok := global.Toolchains[config.DefaultToolchain]
	if !ok {
		return nil, &m.ConfigError{Msg: fmt.Sprintf("toolchain %q is not configured in the global config", config.DefaultToolchain)}
	}

	factory := func(buildDir string) adapter.Emulator {
		return adapter.NewXTEmulator(global.XTPath, buildDir, verboseFlag)
	}

	return domain.NewLibraryBuilder(toolchain, global.LibsDir, factory), nil
}

func runLibList(ui controller.UI) error {
	global, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	// Listing never compiles, so a missing toolchain is fine here.
	toolchain := global.Toolchains[config.DefaultToolchain]
	builder := domain.NewLibraryBuilder(toolchain, global.LibsDir, nil)

	units, err := builder.Discover()
	if err != nil {
		return err
	}

	if len(units) == 0 {
		ui.Info("no libraries installed in %s", global.LibsDir)
		return nil
	}

	rows := make([][]string, 0, len(units))
	for _, unit := range units {
		rows = append(rows, []string{
			strings.ToUpper(unit.Name),
			string(builder.Status(unit)),
			strings.Join(unit.Depends, ", "),
		})
	}

	ui.Table([]string{"Library", "Status", "Depends"}, rows)

	return nil
}

func runLibBuild(ui controller.UI, name string) error {
	global, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	builder, err := newLibraryBuilder(global)
	if err != nil {
		return err
	}

	units, err := builder.Discover()
	if err != nil {
		return err
	}

	if len(units) == 0 {
		ui.Info("no libraries installed in %s", global.LibsDir)
		return nil
	}

	if name != "" {
		for _, unit := range units {
			if strings.EqualFold(unit.Name, name) {
				return buildUnit(ui, builder, unit, units)
			}
		}

		return &m.ConfigError{Msg: fmt.Sprintf("library %q not found in %s", name, global.LibsDir)}
	}

	built := 0

	for _, unit := range domain.SortUnits(units) {
		if builder.Status(unit) == m.LibraryEmpty {
			continue
		}

		if err := buildUnit(ui, builder, unit, units); err != nil {
			return err
		}

		built++
	}

	if built == 0 {
		ui.Info("no buildable libraries found")
	}

	return nil
}

func buildUnit(ui controller.UI, builder *domain.LibraryBuilder, unit m.LibraryUnit, installed []m.LibraryUnit) error {
	start := time.Now()

	dest, err := builder.Build(unit, installed)
	if err != nil {
		var toolErr *m.ToolError
		if errors.As(err, &toolErr) && toolErr.Output != "" {
			ui.Error("%s", toolErr.Output)
		}

		return fmt.Errorf("building library %s: %w", unit.Name, err)
	}

	if dest == "" {
		ui.Info("%s: header only, nothing to compile", strings.ToUpper(unit.Name))
		return nil
	}

	ui.Success("built %s (%.1fs)", filepath.Base(dest), time.Since(start).Seconds())

	return nil
}
