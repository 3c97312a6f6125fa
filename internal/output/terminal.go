package output

import "os"

// IsTerminal reports whether stdout is attached to a terminal. The CLI
// disables colored diagnostics when it is not.
func IsTerminal() bool {
	return checkIsTerminal(os.Stdout)
}
