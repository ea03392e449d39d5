package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lift",
	Short: "lift compiler pipeline driver",
	Long: `lift drives the go-lift compiler pipeline: semantic analysis
(internal/semantic), typed IR lowering (internal/lower), and JIT
execution via wazero (internal/backend).

There is no source-level parser in this module — the grammar is an
external collaborator out of scope for the compiler core. "lift run"
and "lift compile" select from a small built-in program registry
instead of reading lift source files from disk.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
