// The main package for the instasweep executable.
package main

import (
	"github.com/instasweep/instasweep/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
