// The main package for the vanitycheck executable.
package main

import (
	"os"

	"github.com/JakeFAU/steam-vanity-checker/cmd"
)

// main defers all execution to the Cobra CLI and exits with its status.
func main() {
	os.Exit(cmd.Execute())
}
