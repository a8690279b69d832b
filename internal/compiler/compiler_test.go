package compiler

import (
	"testing"

	"vonktaal/internal/ast"
	"vonktaal/internal/chunk"
	"vonktaal/internal/lexer"
	"vonktaal/internal/parser"
)

type compilerTestCase struct {
	input string
}

func TestCompilerSmoke(t *testing.T) {
	tests := []compilerTestCase{
		{"1 + 2"},
		{`laat x = 1
laat y = x + 2`},
		{`funksie optel(a, b) { gee a + b }`},
		{`funksie teken(n) { gee "pos" as (n > 0) anders "neg" }`},
		{`tipe Vorm { Sirkel(radius), Vierkant(sy) }`},
		{`funksie oppervlak(v) {
	gee pas (v) {
		geval Sirkel(r) => r * r,
		geval Vierkant(s) => s * s
	}
}`},
		{`laat plus1 = fn(x) => x + 1`},
		{`terwyl (vals) { druk("nooit") }`},
	}

	runCompilerTests(t, tests)
}

func TestCompileRejectsEmptyMatch(t *testing.T) {
	program := parse(`funksie f(v) { gee pas (v) { } }`)
	c := New("<toets>")
	_, _, err := c.Compile(program)
	if err == nil {
		t.Fatal("verwag 'n fout vir 'n 'pas'-uitdrukking sonder gevalle")
	}
}

func TestCompileEmitsMatchFailAfterArms(t *testing.T) {
	program := parse(`
tipe Vorm { Sirkel(radius) }
funksie f(v) {
	gee pas (v) {
		geval Sirkel(r) => r
	}
}`)
	c := New("<toets>")
	_, functions, err := c.Compile(program)
	if err != nil {
		t.Fatalf("samestellingsfout: %v", err)
	}

	found := false
	for _, fn := range functions {
		for _, op := range fn.Code {
			if chunk.OpCode(op) == chunk.OP_MATCH_FAIL {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("verwag OP_MATCH_FAIL in die funksie se bytecode")
	}
}

func TestCompileExportedSymbols(t *testing.T) {
	program := parse(`uitvoer laat antwoord = 42`)
	c := New("<toets>")
	if _, _, err := c.Compile(program); err != nil {
		t.Fatalf("samestellingsfout: %v", err)
	}
	if !c.ExportedSymbols()["antwoord"] {
		t.Fatalf("verwag 'antwoord' in uitgevoerde simbole, kry: %v", c.ExportedSymbols())
	}
}

func TestCompileTailCallUsesTailCallOpcode(t *testing.T) {
	program := parse(`
funksie telAf(n, acc) {
	gee acc as (n == 0) anders telAf(n - 1, acc + 1)
}`)
	c := New("<toets>")
	_, functions, err := c.Compile(program)
	if err != nil {
		t.Fatalf("samestellingsfout: %v", err)
	}

	found := false
	for _, fn := range functions {
		for _, op := range fn.Code {
			if chunk.OpCode(op) == chunk.OP_TAIL_CALL {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("verwag OP_TAIL_CALL in die rekursiewe funksie se bytecode")
	}
}

func parse(input string) *ast.Program {
	l := lexer.New(input)
	p := parser.New(l)
	return p.ParseProgram()
}

func runCompilerTests(t *testing.T, tests []compilerTestCase) {
	t.Helper()
	for _, tt := range tests {
		program := parse(tt.input)
		c := New("<toets>")
		_, _, err := c.Compile(program)
		if err != nil {
			t.Fatalf("samestellingsfout vir %q: %s", tt.input, err)
		}
	}
}
