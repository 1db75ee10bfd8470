package config

import (
	"fmt"
	"os"
)

// Exitf prints a formatted fatal message to stderr and exits with status 1.
// It is the shared failure path for the registry CLIs.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
