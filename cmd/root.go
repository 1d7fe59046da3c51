// Package cmd provides the root command and CLI setup for doscc.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"doscc.dev/pkg/doscc/internal/adapter"
)

// reportStore is the shared persistence adapter for build records.
var reportStore adapter.ReportStore

// verboseFlag echoes every tool invocation and its captured output.
var verboseFlag bool

func init() {
	reportStore = adapter.NewReportStore()
}

const rootLongDescription = `doscc builds C and assembly projects for 16-bit DOS-family targets by
driving a real toolchain inside the XT emulator. It composes a build
workspace from the toolchain, an optional platform SDK, installed shared
libraries and the project sources, then compiles, links, post-processes
and publishes the output binary.

Targets: dos-exe, dos-com, hp95lx, hp200lx, win16.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "doscc",
		Short:        "DOS cross-compiler build orchestrator",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// The flag binding resolves flag > environment, so DOSCC_VERBOSE
			// takes effect when the flag is not given on the command line.
			verboseFlag = viper.GetBool(verboseFlagName)

			configureLogger(viper.GetString(logFilenameKey), verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", false,
		"show each tool invocation and its output")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), verboseFlagName)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr("flag for config key " + key + " not found")
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
