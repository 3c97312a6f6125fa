package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "pdcconf",
	Short:   "Load and validate training-run configuration files",
	Version: version,
	Long: `Pdcconf loads, validates and queries the YAML configuration files
that parameterize protein-structure and binding-affinity training runs.
It type-checks every recognized key, applies documented defaults, and
reports every problem in one pass with a dotted field path.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	// Add subcommands to root command
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(showCmd)
	RootCmd.AddCommand(getCmd)
}
