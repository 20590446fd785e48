// The main package for the watcher executable.
package main

import (
	"github.com/JakeFAU/homework-watcher/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
