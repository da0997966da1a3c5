// The main package for the brochure-capture executable.
package main

import (
	"github.com/JakeFAU/brochure-capture/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
