package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/smiles724/pdcconf/internal/config"
	"github.com/smiles724/pdcconf/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get PATH FIELD",
	Short: "Print a single field of a configuration file",
	Long: `Load a configuration file and print one field by its dotted path,
for example:

  pdcconf get train.yml train.optimizer.lr
  pdcconf get train.yml data.transform[0].type

Defaults are applied before the lookup, so omitted optional fields
resolve to their documented default values.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path, field := args[0], args[1]
		lenient, _ := cmd.Flags().GetBool("lenient")
		noColor, _ := cmd.Flags().GetBool("no-color")

		if !noColor && !output.IsTerminal() {
			noColor = true
		}
		formatter := output.NewFormatter(false, noColor)

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprint(os.Stderr, formatter.FormatError(path, err))
			os.Exit(1)
		}

		errs := cfg.Check(config.Options{Lenient: lenient})
		if errs.HasErrors() {
			fmt.Fprint(os.Stderr, formatter.FormatFindings(path, errs))
			os.Exit(1)
		}
		// Warnings go to stderr so the field value on stdout stays clean.
		for _, w := range errs.Warnings() {
			fmt.Fprintln(os.Stderr, formatter.FormatFinding(path, w))
		}

		doc, err := json.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result := gjson.GetBytes(doc, toGjsonPath(field))
		if !result.Exists() {
			fmt.Fprintf(os.Stderr, "Error: field not found: %s\n", field)
			os.Exit(1)
		}
		fmt.Println(result.String())
	},
}

// toGjsonPath converts bracketed sequence indices to gjson's dotted form:
// data.transform[0].type -> data.transform.0.type
func toGjsonPath(field string) string {
	field = strings.ReplaceAll(field, "[", ".")
	return strings.ReplaceAll(field, "]", "")
}

func init() {
	getCmd.Flags().BoolP("lenient", "l", false, "Allow unrecognized keys")
	getCmd.Flags().Bool("no-color", false, "Disable colored output")
}
