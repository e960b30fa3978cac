// Command rvcc is the compiler's command-line frontend (A6): it drives the
// pipeline from source text through lexing, parsing, semantic checking, IR
// construction, and RISC-V code generation, and manages the five product
// files named in spec.md §6.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/codegen"
	"github.com/anxi710/toy-compiler-sub000/pkg/dot"
	"github.com/anxi710/toy-compiler-sub000/pkg/irbuild"
	"github.com/anxi710/toy-compiler-sub000/pkg/lexer"
	"github.com/anxi710/toy-compiler-sub000/pkg/parser"
	"github.com/anxi710/toy-compiler-sub000/pkg/preproc"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/semcheck"
	"github.com/anxi710/toy-compiler-sub000/pkg/semctx"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Flags
var (
	inputPath      string
	outputBase     string
	tokenStage     bool
	parseStage     bool
	semanticStage  bool
	generateStage  bool
	showVersion    bool
	showVersionAlt bool
)

// exitCode carries the process exit status out of RunE, which cobra calls
// with SilenceErrors/SilenceUsage set so the stage pipeline can print its own
// diagnostics instead of cobra's generic error line.
var exitCode int

func main() {
	os.Exit(run())
}

func run() int {
	exitCode = 0
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
		fmt.Fprintln(os.Stderr, "rvcc: try 'rvcc --help' for usage")
		return 1
	}
	return exitCode
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rvcc",
		Short: "rvcc compiles a small Rust-like language to 32-bit RISC-V assembly",
		Long: `rvcc is a compiler frontend for a small Rust-like imperative
language: i32/bool primitives, fixed-size arrays and tuples, let bindings,
functions, if/while/for/loop, and expression-valued blocks. It lowers
source through lexing, parsing, semantic checking and a quad IR down to
32-bit RISC-V assembly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion || showVersionAlt {
				fmt.Fprintf(out, "rvcc version %s\n", version)
				return nil
			}
			if inputPath == "" {
				fmt.Fprintln(errOut, "rvcc: missing required flag -i/--input")
				exitCode = 1
				return nil
			}

			stage := stageAssembly
			switch {
			case tokenStage:
				stage = stageToken
			case parseStage:
				stage = stageParse
			case semanticStage:
				stage = stageSemantic
			case generateStage:
				stage = stageGenerate
			}

			if err := doCompile(inputPath, outputBase, stage, out, errOut); err != nil {
				exitCode = 1
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input source file (required)")
	rootCmd.Flags().StringVarP(&outputBase, "output", "o", "output", "output base name")
	rootCmd.Flags().BoolVarP(&tokenStage, "token", "t", false, "emit the token list only")
	rootCmd.Flags().BoolVarP(&parseStage, "parse", "p", false, "emit the AST in DOT")
	rootCmd.Flags().BoolVarP(&semanticStage, "semantic", "s", false, "emit the symbol table")
	rootCmd.Flags().BoolVarP(&generateStage, "generate", "g", false, "emit the IR")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&showVersionAlt, "", "V", false, "print version and exit")

	return rootCmd
}

// stage names the last pipeline step whose product file this invocation
// asked for. Exactly one stage flag wins; with none given the default is
// the full assembly stage.
type stage int

const (
	stageToken stage = iota
	stageParse
	stageSemantic
	stageGenerate
	stageAssembly
)

// products names the five fixed product-file paths derived from the output
// base name, per spec.md §6.
type products struct {
	token, dot, symbol, ir, asm string
}

func newProducts(base string) products {
	return products{
		token:  base + ".token",
		dot:    base + ".dot",
		symbol: base + ".symbol",
		ir:     base + ".ir",
		asm:    base + ".s",
	}
}

func (p products) all() []string {
	return []string{p.token, p.dot, p.symbol, p.ir, p.asm}
}

// removeExcept deletes every product file except keep (pass "" to delete
// them all), so a failed or not-requested stage never leaves a stale file
// from an earlier run sitting next to this invocation's output.
func removeExcept(p products, keep string) {
	for _, path := range p.all() {
		if path != keep {
			os.Remove(path)
		}
	}
}

func writeProduct(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// doCompile runs the pipeline up to the requested stage, writes that
// stage's single product file on success, and cleans up the other four.
func doCompile(filename, base string, target stage, out, errOut io.Writer) error {
	files := newProducts(base)

	raw, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "rvcc: error reading %s: %v\n", filename, err)
		removeExcept(files, "")
		return err
	}

	source, err := preproc.Strip(string(raw), &preproc.Options{})
	if err != nil {
		fmt.Fprintf(errOut, "rvcc: preprocessing error: %v\n", err)
		removeExcept(files, "")
		return err
	}

	rep := reporter.New(source)
	tokens := scanTokens(source, rep)
	if rep.HasErrors() {
		fmt.Fprint(errOut, rep.Format())
		removeExcept(files, "")
		return fmt.Errorf("lexical errors")
	}
	if target == stageToken {
		if err := writeProduct(files.token, formatTokens(tokens)); err != nil {
			return err
		}
		removeExcept(files, files.token)
		return nil
	}

	reg := types.NewRegistry()
	p := parser.New(lexer.New(source), rep, reg)
	prog := p.ParseProgram()
	if rep.HasErrors() {
		fmt.Fprint(errOut, rep.Format())
		removeExcept(files, "")
		return fmt.Errorf("parse errors")
	}
	if target == stageParse {
		if err := writeProduct(files.dot, dot.Emit(prog)); err != nil {
			return err
		}
		removeExcept(files, files.dot)
		return nil
	}

	ctx := semctx.NewWithRegistry(reg)
	checker := semcheck.New(ctx, rep)
	checker.CheckProgram(prog)

	// The IR builder runs regardless of semantic errors: it never consults
	// the checker's symbol table, only what the checker already attached to
	// each node, so it tolerates a partially-checked program and still
	// produces a usable IR/symbol dump for -s and -g.
	b := irbuild.New()
	b.BuildProgram(prog)

	switch target {
	case stageSemantic:
		if err := writeProduct(files.symbol, formatSymbols(prog)); err != nil {
			return err
		}
		removeExcept(files, files.symbol)
	case stageGenerate:
		if err := writeProduct(files.ir, formatIR(prog)); err != nil {
			return err
		}
		removeExcept(files, files.ir)
	default:
		if rep.HasErrors() {
			removeExcept(files, "")
		} else {
			if err := writeProduct(files.asm, codegen.Generate(prog)); err != nil {
				return err
			}
			removeExcept(files, files.asm)
		}
	}

	if rep.HasErrors() {
		fmt.Fprint(errOut, rep.Format())
		return fmt.Errorf("semantic errors")
	}
	return nil
}

// scanTokens drives the lexer to completion, reporting every illegal
// character it finds as a lexical diagnostic instead of silently passing
// TokenIllegal through to the parser.
func scanTokens(source string, rep *reporter.Reporter) []lexer.Token {
	l := lexer.New(source)
	var tokens []lexer.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == lexer.TokenIllegal {
			rep.Report(reporter.Diagnostic{
				Severity: reporter.SeverityLexer,
				Kind:     reporter.KindUnknownToken,
				Cause:    fmt.Sprintf("unexpected character %q", tok.Literal),
				Scope:    "global",
				Pos:      reporter.Position{Line: tok.Line, Col: tok.Column},
			})
		}
		if tok.Type == lexer.TokenEOF {
			break
		}
	}
	return tokens
}

func formatTokens(tokens []lexer.Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&b, "%-12s %-10q (%d:%d)\n", tok.Type.String(), tok.Literal, tok.Line, tok.Column)
	}
	return b.String()
}

// formatSymbols dumps every declared function's signature and the locals
// the IR builder introduced while lowering its body.
func formatSymbols(prog *ast.Program) string {
	var b strings.Builder
	for _, fn := range prog.Functions {
		if fn.Symbol == nil {
			continue
		}
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			mut := ""
			if p.Mutable {
				mut = "mut "
			}
			params[i] = fmt.Sprintf("%s%s: %s", mut, p.Name, p.Type.String())
		}
		fmt.Fprintf(&b, "fn %s(%s) -> %s\n", fn.Name, strings.Join(params, ", "), fn.Return.String())

		names := make([]string, 0, len(fn.Locals))
		for name := range fn.Locals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, fn.Locals[name].String())
		}
	}
	return b.String()
}

func formatIR(prog *ast.Program) string {
	var b strings.Builder
	for _, fn := range prog.Functions {
		for _, q := range fn.Quads {
			b.WriteString(q.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}
