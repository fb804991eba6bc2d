// Package cli defines beamfleetctl's root Cobra command: the
// administrative surface (init, version) around the beamfleetd
// daemon. The operation surface itself (start-node, list-nodes, ...)
// is not a CLI concern — it is served over HTTP by cmd/beamfleetd for
// the outer tool-dispatch framework to invoke (spec §1, §6).
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/f9-o/beamfleet/internal/cli/commands"
	"github.com/f9-o/beamfleet/pkg/pprint"
)

// rootCmd is the base command for beamfleetctl.
var rootCmd = &cobra.Command{
	Use:           "beamfleetctl",
	Short:         "beamfleetctl — scaffold and inspect a beamfleetd deployment",
	Long:          ``, // help output is wrapped with the banner by SetHelpFunc in Execute
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI. Called by main().
func Execute() {
	origHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		pprint.PrintBanner(commands.Version, commands.BuildDate)
		origHelp(cmd, args)
	})

	if err := rootCmd.Execute(); err != nil {
		pprint.Error("%s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&commands.JSONOutput, "json", false, "Output in machine-readable JSON")

	rootCmd.AddCommand(
		commands.NewInitCmd(),
		commands.NewVersionCmd(),
	)
}
