package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-lift/internal/lower"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
)

var compileCmd = &cobra.Command{
	Use:   "compile <program>",
	Short: "Lower a built-in program to IR and print a summary",
	Long: `Compile binds, type-checks, and lowers a built-in program to
internal/ir, then prints the resulting module's function and import
list without executing it.`,
	Args: cobra.ExactArgs(1),
	RunE: compileProgram,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func compileProgram(_ *cobra.Command, args []string) error {
	name := args[0]
	build, ok := programs[name]
	if !ok {
		return fmt.Errorf("unknown program %q (available: %s)", name, strings.Join(programNames(), ", "))
	}

	table := symbols.NewTable()
	bound, err := semantic.Bind(build(), table)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if _, err := semantic.Check(bound, table); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	mod, err := lower.Lower(bound, table)
	if err != nil {
		return fmt.Errorf("lower: %w", err)
	}

	fmt.Printf("module: %d import(s), %d string(s), %d function(s)\n", len(mod.Imports), len(mod.Strings), len(mod.Funcs))
	for _, fn := range mod.Funcs {
		fmt.Printf("  func %s: %d param(s), %d local(s), %d instruction(s)\n", fn.Name, len(fn.Params), len(fn.Locals), len(fn.Body))
	}
	return nil
}
