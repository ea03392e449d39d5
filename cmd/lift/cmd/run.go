package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/backend"
	"github.com/cwbudde/go-lift/internal/interp"
	"github.com/cwbudde/go-lift/internal/lower"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
)

var (
	useInterp bool
	parity    bool
)

var runCmd = &cobra.Command{
	Use:   "run <program>",
	Short: "Run a built-in program through the full pipeline",
	Long: `Run binds, type-checks, lowers, and JIT-executes a built-in
program by name, printing whatever it wrote via output.

Available programs:
  ` + strings.Join(programNames(), "\n  ") + `

Examples:
  lift run recursive-sum
  lift run list-index --interp
  lift run map-index --parity`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&useInterp, "interp", false, "evaluate with the reference interpreter instead of the JIT")
	runCmd.Flags().BoolVar(&parity, "parity", false, "run both the JIT and the reference interpreter and compare results")
}

func runProgram(_ *cobra.Command, args []string) error {
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

	if useInterp {
		_, output, err := interp.New(table).Run(bound)
		if err != nil {
			return fmt.Errorf("interp: %w", err)
		}
		fmt.Print(output)
		fmt.Println()
		return nil
	}

	jitResult, jitOutput, err := runJIT(bound, table)
	if err != nil {
		return err
	}
	fmt.Print(jitOutput)
	fmt.Println()

	if parity {
		if err := interp.Parity(interp.New(table), bound, jitResult, jitOutput); err != nil {
			return fmt.Errorf("parity check failed: %w", err)
		}
		if verbose {
			fmt.Println("parity: jit and interp agree")
		}
	}
	return nil
}

// runJIT lowers bound to IR, compiles it to a WASM module, and runs it
// under wazero's ahead-of-time compiler engine via internal/backend.
func runJIT(bound ast.Expr, table *symbols.Table) (int64, string, error) {
	mod, err := lower.Lower(bound, table)
	if err != nil {
		return 0, "", fmt.Errorf("lower: %w", err)
	}

	ctx := context.Background()
	driver := backend.NewDriver(ctx)
	defer driver.Close(ctx)

	program, err := driver.Compile(ctx, mod)
	if err != nil {
		return 0, "", fmt.Errorf("compile: %w", err)
	}
	result, output, err := program.Run(ctx)
	if err != nil {
		return 0, output, fmt.Errorf("run: %w", err)
	}
	return result, output, nil
}
