// Command lift drives the go-lift compiler pipeline: semantic analysis,
// typed IR lowering, and JIT execution via internal/backend, with a
// reference-interpreter parity mode for spec-level sanity checks. There
// is no parser in this module (the grammar is an external collaborator,
// out of scope here) — `lift run` selects from a small built-in program
// registry rather than reading lift source files.
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-lift/cmd/lift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
