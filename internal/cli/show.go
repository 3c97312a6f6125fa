package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smiles724/pdcconf/internal/config"
	"github.com/smiles724/pdcconf/internal/output"
)

var showCmd = &cobra.Command{
	Use:     "show PATH",
	Aliases: []string{"load"},
	Short:   "Print the normalized form of a configuration file",
	Long: `Load and validate a configuration file, then print its normalized
form with all defaults applied. Downstream tooling consumes this output
instead of re-implementing the defaulting policy.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		format, _ := cmd.Flags().GetString("format")
		lenient, _ := cmd.Flags().GetBool("lenient")
		strict, _ := cmd.Flags().GetBool("strict")
		noColor, _ := cmd.Flags().GetBool("no-color")

		if format != "yaml" && format != "json" {
			fmt.Fprintf(os.Stderr, "Error: unknown format %q (expected yaml or json)\n", format)
			os.Exit(1)
		}

		if !noColor && !output.IsTerminal() {
			noColor = true
		}
		formatter := output.NewFormatter(false, noColor)

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprint(os.Stderr, formatter.FormatError(path, err))
			os.Exit(1)
		}

		errs := cfg.Check(config.Options{Lenient: lenient, Strict: strict})
		// Warnings go to stderr so the normalized output stays parseable.
		fmt.Fprint(os.Stderr, formatter.FormatFindings(path, errs))
		if errs.HasErrors() {
			os.Exit(1)
		}

		switch format {
		case "json":
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		default:
			fmt.Printf("# %s\n", config.ConfigName(path))
			out, err := yaml.Marshal(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(out))
		}
	},
}

func init() {
	showCmd.Flags().StringP("format", "f", "yaml", "Output format: yaml or json")
	showCmd.Flags().BoolP("lenient", "l", false, "Allow unrecognized keys (reported as warnings)")
	showCmd.Flags().BoolP("strict", "s", false, "Treat warnings as errors")
	showCmd.Flags().Bool("no-color", false, "Disable colored output")
}
