package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"vonktaal/internal/ast"
	"vonktaal/internal/chunk"
	"vonktaal/internal/compiler"
	"vonktaal/internal/lexer"
	"vonktaal/internal/modules"
	"vonktaal/internal/parser"
	"vonktaal/internal/store"
	"vonktaal/internal/token"
	"vonktaal/internal/vm"
)

const version = "v0.1.0"

func main() {
	showDisasm := flag.Bool("disassembly", false, "Show bytecode disassembly")
	verbose := flag.Bool("v", false, "Show compile/run statistics")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Gebruik: vonktaal [opsies] [lêer]\n\nOpsies:\n")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  --%s\n\t%s\n", f.Name, f.Usage)
		})
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("Vonktaal %s\n", version)
		return
	}

	args := flag.Args()
	if len(args) > 1 {
		flag.Usage()
		os.Exit(64)
	}

	if len(args) == 0 {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			startREPL(*showDisasm)
			return
		}
		runStdin(*showDisasm, *verbose)
		return
	}

	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kon nie lêer lees nie: %v\n", err)
		os.Exit(66)
	}

	runFile(filename, string(content), *showDisasm, *verbose)
}

func runStdin(showDisasm, verbose bool) {
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kon nie van stdin lees nie: %v\n", err)
		os.Exit(66)
	}
	runFile("<stdin>", string(content), showDisasm, verbose)
}

func runFile(filename, input string, showDisasm, verbose bool) {
	start := time.Now()

	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		for _, msg := range p.Errors() {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(70)
	}

	c := compiler.New(filename)
	mainChunk, functions, err := c.Compile(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "samestellingsfout: %v\n", err)
		os.Exit(70)
	}
	compileElapsed := time.Since(start)

	if showDisasm {
		mainChunk.DisassembleAll(filename, functions)
	}

	machine := newMachine(filepath.Dir(filename))
	runStart := time.Now()
	if _, err := machine.Run(mainChunk, functions); err != nil {
		fmt.Fprintf(os.Stderr, "looptydfout: %v\n", err)
		os.Exit(70)
	}

	if verbose {
		printStats(mainChunk, functions, compileElapsed, time.Since(runStart))
	}
}

func printStats(mainChunk *chunk.Chunk, functions []*chunk.Chunk, compileElapsed, runElapsed time.Duration) {
	instructions := mainChunk.Offset()
	for _, fn := range functions {
		instructions += fn.Offset()
	}
	fmt.Fprintf(os.Stderr, "instruksies: %s\n", humanize.Comma(int64(instructions)))
	fmt.Fprintf(os.Stderr, "funksies: %s\n", humanize.Comma(int64(len(functions))))
	fmt.Fprintf(os.Stderr, "samestellingstyd: %s\n", humanize.Time(time.Now().Add(-compileElapsed)))
	fmt.Fprintf(os.Stderr, "looptyd: %s\n", runElapsed)
}

func newMachine(rootPath string) *vm.VM {
	machine := vm.New()
	st, err := store.Open(filepath.Join(rootPath, ".vonk-store.db"))
	if err == nil {
		machine.Store = st
	}
	loader := modules.NewLoader(rootPath, machine.Store)
	machine.ModuleLoader = loader.Load
	return machine
}

func startREPL(showDisasm bool) {
	fmt.Printf("Vonktaal %s\n", version)
	fmt.Println("Tik 'verlaat' om af te sluit.")

	machine := newMachine(".")
	scanner := bufio.NewScanner(os.Stdin)

	var inputBuffer string

	for {
		if inputBuffer == "" {
			fmt.Print(">>> ")
		} else {
			fmt.Print("... ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if strings.TrimSpace(line) == "verlaat" {
			break
		}
		if strings.TrimSpace(line) == "" && inputBuffer == "" {
			continue
		}

		if inputBuffer == "" {
			inputBuffer = line
		} else {
			inputBuffer += "\n" + line
		}

		l := lexer.New(inputBuffer)
		p := parser.New(l)
		program := p.ParseProgram()

		if len(p.Errors()) > 0 {
			incomplete := false
			for _, msg := range p.Errors() {
				if strings.Contains(msg, "end of file gekry") {
					incomplete = true
					break
				}
			}
			if incomplete {
				continue
			}
			for _, msg := range p.Errors() {
				fmt.Println(msg)
			}
			inputBuffer = ""
			continue
		}

		// REPL magic: a single bare expression prints its value instead of
		// being silently discarded.
		if len(program.Statements) == 1 {
			if exprStmt, ok := program.Statements[0].(*ast.ExpressionStmt); ok {
				program.Statements[0] = &ast.PrintStmt{
					Token: token.Token{Type: token.DRUK, Literal: "druk"},
					Value: exprStmt.Expression,
				}
			}
		}

		c := compiler.New("<repl>")
		compiled, functions, err := c.Compile(program)
		if err != nil {
			fmt.Printf("samestellingsfout: %v\n", err)
			inputBuffer = ""
			continue
		}

		if showDisasm {
			compiled.DisassembleAll("<repl>", functions)
		}

		if _, err := machine.Run(compiled, functions); err != nil {
			fmt.Printf("looptydfout: %v\n", err)
		}

		inputBuffer = ""
	}
}
