package vm

import (
	"fmt"
	"strings"
	"testing"

	"vonktaal/internal/compiler"
	"vonktaal/internal/lexer"
	"vonktaal/internal/parser"
	"vonktaal/internal/value"
)

type vmTestCase struct {
	input    string
	expected interface{}
}

func TestArithmetic(t *testing.T) {
	tests := []vmTestCase{
		{"1", 1.0},
		{"1 + 2", 3.0},
		{"1 - 2", -1.0},
		{"2 * 3", 6.0},
		{"10 / 2", 5.0},
		{"7 % 3", 1.0},
		{"(1 + 2) * 3", 9.0},
		{"-5 + 2", -3.0},
	}
	runVmTests(t, tests)
}

func TestComparisonAndLogic(t *testing.T) {
	tests := []vmTestCase{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"1 == 1", true},
		{"1 != 2", true},
		{"waar && vals", false},
		{"waar || vals", true},
		{"!waar", false},
	}
	runVmTests(t, tests)
}

func TestStringsAndLists(t *testing.T) {
	tests := []vmTestCase{
		{`"voor" + "kant"`, "voorkant"},
		{`"telling: " + 5`, "telling: 5"},
		{`5 + " pond"`, "5 pond"},
		{"lengte([1, 2, 3])", 3.0},
		{"kop([1, 2, 3])", 1.0},
		{"lengte(stert([1, 2, 3]))", 2.0},
		{"kop(voeg_by([1, 2], 3))", 1.0},
		{"kop(heg_aan(0, [1, 2]))", 0.0},
		{"kop(omgekeer([1, 2, 3]))", 3.0},
		{"lengte(ketting([1], [2, 3]))", 3.0},
		{"leeg([])", true},
	}
	runVmTests(t, tests)
}

func TestGuardReturn(t *testing.T) {
	input := `
funksie teken(n) {
	gee "pos" as (n > 0) anders "nie-pos"
}
verifieer(teken(5))
`
	runScriptTest(t, input, "pos")

	input2 := `
funksie teken(n) {
	gee "pos" as (n > 0) anders "nie-pos"
}
verifieer(teken(-1))
`
	runScriptTest(t, input2, "nie-pos")
}

func TestClosuresCaptureUpvalues(t *testing.T) {
	input := `
funksie maakOptel(x) {
	gee fn(y) => x + y
}
laat optelBy5 = maakOptel(5)
verifieer(optelBy5(10))
`
	runScriptTest(t, input, 15.0)
}

func TestHigherOrderNatives(t *testing.T) {
	input := `
laat verdubbel = fn(x) => x * 2
laat verdubbelde = kaart([1, 2, 3], verdubbel)
verifieer(verdubbelde[1])
`
	runScriptTest(t, input, 4.0)

	input2 := `
laat isEwe = fn(x) => x % 2 == 0
laat ewes = filter([1, 2, 3, 4, 5], isEwe)
verifieer(lengte(ewes))
`
	runScriptTest(t, input2, 2.0)

	input3 := `
laat optel = fn(acc, x) => acc + x
verifieer(vou([1, 2, 3, 4], 0, optel))
`
	runScriptTest(t, input3, 10.0)
}

func runVmTests(t *testing.T, tests []vmTestCase) {
	t.Helper()
	for _, tt := range tests {
		runScriptTest(t, fmt.Sprintf("verifieer(%s)", tt.input), tt.expected)
	}
}

func runScriptTest(t *testing.T, input string, expected interface{}) {
	t.Helper()

	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("ontledingsfoute vir %q: %v", input, p.Errors())
	}

	c := compiler.New("<toets>")
	mainChunk, functions, err := c.Compile(program)
	if err != nil {
		t.Fatalf("samestellingsfout vir %q: %v", input, err)
	}

	machine := New()
	var captured = value.NewNil()
	machine.Globals["verifieer"] = value.NewNative(&value.NativeFunction{
		Name:  "verifieer",
		Arity: 1,
		Fn: func(args []value.Value) (value.Value, error) {
			captured = args[0]
			return value.NewNil(), nil
		},
	})

	if _, err := machine.Run(mainChunk, functions); err != nil {
		t.Fatalf("looptydfout vir %q: %v", input, err)
	}

	testExpectedObject(t, input, expected, captured)
}

func testExpectedObject(t *testing.T, input string, expected interface{}, actual value.Value) {
	t.Helper()
	switch want := expected.(type) {
	case float64:
		if actual.Type != value.VAL_NUMBER {
			t.Errorf("%q: verwag 'n getal, kry %v", input, actual.Type)
			return
		}
		if actual.AsNumber != want {
			t.Errorf("%q: verwag %v, kry %v", input, want, actual.AsNumber)
		}
	case bool:
		if actual.Type != value.VAL_BOOL {
			t.Errorf("%q: verwag 'n boolean, kry %v", input, actual.Type)
			return
		}
		if actual.AsBool != want {
			t.Errorf("%q: verwag %v, kry %v", input, want, actual.AsBool)
		}
	case string:
		if actual.Type != value.VAL_STRING {
			t.Errorf("%q: verwag 'n string, kry %v", input, actual.Type)
			return
		}
		if actual.AsString() != want {
			t.Errorf("%q: verwag %q, kry %q", input, want, actual.AsString())
		}
	case nil:
		if actual.Type != value.VAL_NIL {
			t.Errorf("%q: verwag nil, kry %v", input, actual.Type)
		}
	}
}

func TestADTPatternMatching(t *testing.T) {
	input := `
tipe Vorm {
	Sirkel(radius),
	Vierkant(sy)
}
funksie oppervlak(v) {
	gee pas (v) {
		geval Sirkel(r) => r * r,
		geval Vierkant(s) => s * s
	}
}
verifieer(oppervlak(Sirkel(3)))
`
	runScriptTest(t, input, 9.0)

	input2 := `
tipe Vorm {
	Sirkel(radius),
	Vierkant(sy)
}
funksie oppervlak(v) {
	gee pas (v) {
		geval Sirkel(r) => r * r,
		geval Vierkant(s) => s * s
	}
}
verifieer(oppervlak(Vierkant(4)))
`
	runScriptTest(t, input2, 16.0)
}

func TestMatchFallthroughRaisesRuntimeError(t *testing.T) {
	input := `
tipe Vorm {
	Sirkel(radius),
	Vierkant(sy)
}
funksie oppervlak(v) {
	gee pas (v) {
		geval Sirkel(r) => r * r
	}
}
oppervlak(Vierkant(4))
`
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("ontledingsfoute: %v", p.Errors())
	}

	c := compiler.New("<toets>")
	mainChunk, functions, err := c.Compile(program)
	if err != nil {
		t.Fatalf("samestellingsfout: %v", err)
	}

	machine := New()
	_, err = machine.Run(mainChunk, functions)
	if err == nil {
		t.Fatal("verwag 'n looptydfout toe geen patroon ooreenstem nie")
	}
	if !strings.Contains(err.Error(), "geen arm pas nie") {
		t.Errorf("verwag 'geen arm pas nie' in die fout, kry: %v", err)
	}
}

func TestTailCallDoesNotGrowFrameStack(t *testing.T) {
	input := `
funksie telAf(n, acc) {
	gee acc as (n == 0) anders telAf(n - 1, acc + 1)
}
verifieer(telAf(100000, 0))
`
	runScriptTest(t, input, 100000.0)
}

func TestEmptyMatchIsACompileError(t *testing.T) {
	input := `
funksie f(v) {
	gee pas (v) {
	}
}
`
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("ontledingsfoute: %v", p.Errors())
	}

	c := compiler.New("<toets>")
	_, _, err := c.Compile(program)
	if err == nil {
		t.Fatal("verwag 'n samestellingsfout vir 'n 'pas'-uitdrukking sonder gevalle")
	}
}
