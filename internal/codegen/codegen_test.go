// Grounded on pkg/compiler/codegen_test.go's style: drive the pipeline up
// to code generation and inspect the emitted bytes directly, rather than
// running an assembled image, when the property under test is about the
// bytes themselves.
package codegen_test

import (
	"testing"

	"actionz80/internal/codegen"
	"actionz80/internal/diag"
	"actionz80/internal/lexer"
	"actionz80/internal/parser"
	"actionz80/internal/sema"
)

func generate(t *testing.T, src string, codeStart int) (code []byte, mainAddr int) {
	t.Helper()
	tokens, err := lexer.LexAll([]byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	unit, err := parser.Parse(tokens, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := sema.Check(unit, sema.DefaultRAMBase)
	if err != nil {
		t.Fatalf("sema: %v", err)
	}
	code, _, mainAddr, _, err = codegen.Generate(unit, result.Table, result.Warnings, codeStart, map[string]int{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return code, mainAddr
}

func TestEmptyProcBodyEmitsJustRet(t *testing.T) {
	const codeStart = 0x5000
	src := `PROC nop()
RETURN
PROC main()
nop()
RETURN
`
	code, mainAddr := generate(t, src, codeStart)
	if len(code) == 0 || code[0] != 0xC9 {
		t.Fatalf("expected the first routine (nop) to open with a bare RET, got % X", code)
	}
	if mainAddr != codeStart+1 {
		t.Fatalf("expected main to start right after nop's single RET byte, got main at 0x%04X (codeStart 0x%04X)", mainAddr, codeStart)
	}
}

func TestUnresolvedRoutineCallIsInternalError(t *testing.T) {
	// codegen.Generate is only ever called with a sema-checked unit, where
	// every call target is guaranteed to resolve; this exercises the
	// patch-resolution failure path directly by omitting a builtin's
	// address from builtinAddrs.
	const codeStart = 0x5000
	src := `PROC main()
PrintE()
RETURN
`
	tokens, err := lexer.LexAll([]byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	unit, err := parser.Parse(tokens, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := sema.Check(unit, sema.DefaultRAMBase)
	if err != nil {
		t.Fatalf("sema: %v", err)
	}
	_, _, _, _, err = codegen.Generate(unit, result.Table, result.Warnings, codeStart, map[string]int{})
	if err == nil {
		t.Fatalf("expected an internal error when a builtin's address was never supplied")
	}
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Kind != diag.KindInternal {
		t.Fatalf("expected a KindInternal diagnostic, got %v", err)
	}
}
