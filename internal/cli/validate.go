package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smiles724/pdcconf/internal/config"
	"github.com/smiles724/pdcconf/internal/output"
	"github.com/smiles724/pdcconf/pkg/jsonschema"
)

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Validate configuration files or directories of them",
	Long: `Validate one or more configuration files. A directory argument
contributes every .yml/.yaml file directly inside it. Files are checked
concurrently; success prints nothing and exits 0, any problem prints one
line per finding and exits 1.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		lenient, _ := cmd.Flags().GetBool("lenient")
		strict, _ := cmd.Flags().GetBool("strict")
		verbose, _ := cmd.Flags().GetBool("verbose")
		quiet, _ := cmd.Flags().GetBool("quiet")
		noColor, _ := cmd.Flags().GetBool("no-color")
		jobs, _ := cmd.Flags().GetInt("jobs")
		schemaPath, _ := cmd.Flags().GetString("json-schema")

		if !noColor && !output.IsTerminal() {
			noColor = true
		}
		formatter := output.NewFormatter(verbose, noColor)

		files, err := collectConfigFiles(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var schemaStr string
		if schemaPath != "" {
			data, err := os.ReadFile(schemaPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading schema: %v\n", err)
				os.Exit(1)
			}
			schemaStr = string(data)
		}

		opts := config.Options{Lenient: lenient, Strict: strict}

		if jobs < 1 {
			jobs = runtime.NumCPU()
		}

		// One result slot per file; each worker writes only its own index,
		// so no synchronization beyond the group wait is needed.
		reports := make([]string, len(files))
		passed := make([]bool, len(files))

		g := new(errgroup.Group)
		g.SetLimit(jobs)
		for i, file := range files {
			i, file := i, file
			g.Go(func() error {
				reports[i], passed[i] = validateFile(file, opts, schemaStr, formatter, verbose)
				return nil
			})
		}
		g.Wait()

		ok := true
		for i := range files {
			if !quiet && reports[i] != "" {
				fmt.Print(reports[i])
			}
			if !passed[i] {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

// validateFile loads and validates one file and returns its report and
// pass/fail status. Pure aside from reading the file, so it is safe to run
// from parallel workers.
func validateFile(path string, opts config.Options, schemaStr string, formatter *output.Formatter, verbose bool) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.FormatError(path, err), false
	}

	cfg, err := config.Parse(data)
	if err != nil {
		var verrs *config.ValidationErrors
		if errors.As(err, &verrs) {
			return formatter.FormatFindings(path, verrs), false
		}
		return formatter.FormatError(path, err), false
	}

	var buf strings.Builder
	errs := cfg.Check(opts)
	buf.WriteString(formatter.FormatFindings(path, errs))
	ok := !errs.HasErrors()

	if schemaStr != "" {
		docJSON, err := config.DocumentJSON(data)
		if err != nil {
			return formatter.FormatError(path, err), false
		}
		valid, schemaErrs := jsonschema.ValidateWithErrors(docJSON, schemaStr)
		if !valid {
			ok = false
			for _, serr := range schemaErrs {
				buf.WriteString(formatter.FormatFinding(path, &config.ValidationError{
					Kind:     config.KindSchema,
					Severity: config.SeverityError,
					Message:  serr.Error(),
				}))
				buf.WriteString("\n")
			}
		}
	}

	if ok && verbose {
		buf.WriteString(formatter.FormatSuccess(path))
	}
	return buf.String(), ok
}

// collectConfigFiles expands directory arguments into the YAML files they
// contain, keeping explicit file arguments as-is.
func collectConfigFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch filepath.Ext(entry.Name()) {
			case ".yml", ".yaml":
				found = append(found, filepath.Join(arg, entry.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no .yml or .yaml files in directory %s", arg)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func init() {
	validateCmd.Flags().BoolP("lenient", "l", false, "Allow unrecognized keys (reported as warnings)")
	validateCmd.Flags().BoolP("strict", "s", false, "Treat warnings as errors")
	validateCmd.Flags().BoolP("verbose", "v", false, "Also report files that pass")
	validateCmd.Flags().BoolP("quiet", "q", false, "Suppress per-finding output, only set the exit code")
	validateCmd.Flags().Bool("no-color", false, "Disable colored output")
	validateCmd.Flags().IntP("jobs", "j", 0, "Number of files validated in parallel (default: number of CPUs)")
	validateCmd.Flags().String("json-schema", "", "Additionally validate documents against a JSON Schema file")
}
