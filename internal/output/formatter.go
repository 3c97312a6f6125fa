// Package output formats validation diagnostics for the terminal.
package output

import (
	"fmt"
	"strings"

	"github.com/smiles724/pdcconf/internal/config"
)

// Formatter renders validation findings, one line per finding, each naming
// the file, the dotted field path and the reason.
type Formatter struct {
	Verbose bool
	NoColor bool

	scheme *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  scheme,
	}
}

// FormatFinding formats a single validation finding.
func (f *Formatter) FormatFinding(file string, e *config.ValidationError) string {
	var buf strings.Builder

	if e.Severity == config.SeverityWarning {
		buf.WriteString(WarningIcon(f.NoColor))
		buf.WriteString(" ")
		buf.WriteString(f.scheme.Warning.Sprint("warning"))
	} else {
		buf.WriteString(ErrorIcon(f.NoColor))
		buf.WriteString(" ")
		buf.WriteString(f.scheme.Error.Sprint("error"))
	}

	buf.WriteString(" ")
	buf.WriteString(f.scheme.File.Sprint(file))
	if e.Field != "" {
		buf.WriteString(" ")
		buf.WriteString(f.scheme.FieldPath.Sprint(e.Field))
	}
	buf.WriteString(fmt.Sprintf(": %s (%s)", e.Message, e.Kind))

	return buf.String()
}

// FormatFindings formats every finding of a file, one per line.
func (f *Formatter) FormatFindings(file string, errs *config.ValidationErrors) string {
	var buf strings.Builder
	for _, e := range errs.Errors {
		buf.WriteString(f.FormatFinding(file, e))
		buf.WriteString("\n")
	}
	return buf.String()
}

// FormatSuccess formats the per-file success line shown in verbose mode.
// Non-verbose success is silent.
func (f *Formatter) FormatSuccess(file string) string {
	return fmt.Sprintf("%s %s %s\n", SuccessIcon(f.NoColor), f.scheme.File.Sprint(file), f.scheme.Success.Sprint("valid"))
}

// FormatError formats a file-level failure such as a parse error.
func (f *Formatter) FormatError(file string, err error) string {
	return fmt.Sprintf("%s %s %s: %v\n", ErrorIcon(f.NoColor), f.scheme.Error.Sprint("error"), f.scheme.File.Sprint(file), err)
}
