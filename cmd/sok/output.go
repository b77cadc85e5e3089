package main

import (
	"fmt"
	"os"
)

// outputHuman writes a message to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// outputWarning writes a warning to stderr.
func outputWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
}

// exitWithError writes an error message to stderr and exits.
func exitWithError(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(code)
}
