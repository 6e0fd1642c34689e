// Grounded on pkg/compiler/symtable_test.go's style: drive the lexer and
// parser to build a real *ast.Unit, then exercise Check directly rather
// than hand-building AST nodes.
package sema_test

import (
	"testing"

	"actionz80/internal/diag"
	"actionz80/internal/lexer"
	"actionz80/internal/parser"
	"actionz80/internal/sema"
)

func check(t *testing.T, src string) (*sema.Result, error) {
	t.Helper()
	tokens, err := lexer.LexAll([]byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	unit, err := parser.Parse(tokens, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return sema.Check(unit, sema.DefaultRAMBase)
}

func TestDirectRecursionRejected(t *testing.T) {
	_, err := check(t, `PROC loop()
loop()
RETURN
PROC main()
loop()
RETURN
`)
	if err == nil {
		t.Fatalf("expected direct recursion to be rejected")
	}
	if d, ok := err.(*diag.Diagnostic); !ok || d.Kind != diag.KindResolution {
		t.Fatalf("expected a KindResolution diagnostic, got %v", err)
	}
}

func TestMutualRecursionRejected(t *testing.T) {
	_, err := check(t, `PROC a()
b()
RETURN
PROC b()
a()
RETURN
PROC main()
a()
RETURN
`)
	if err == nil {
		t.Fatalf("expected mutual recursion to be rejected")
	}
}

func TestNonRecursiveCallGraphAccepted(t *testing.T) {
	_, err := check(t, `PROC helper()
RETURN
PROC main()
helper()
helper()
RETURN
`)
	if err != nil {
		t.Fatalf("expected a call graph with no cycles to pass, got %v", err)
	}
}

func TestMissingMainIsRejected(t *testing.T) {
	_, err := check(t, `PROC notMain()
RETURN
`)
	if err == nil {
		t.Fatalf("expected a missing main PROC to be rejected")
	}
	if d, ok := err.(*diag.Diagnostic); !ok || d.Kind != diag.KindResolution {
		t.Fatalf("expected a KindResolution diagnostic, got %v", err)
	}
}

func TestDuplicateGlobalDeclarationRejected(t *testing.T) {
	_, err := check(t, `BYTE x
BYTE x
PROC main()
RETURN
`)
	if err == nil {
		t.Fatalf("expected a duplicate global declaration to be rejected")
	}
}

func TestArrayIndexOnNonArrayRejected(t *testing.T) {
	_, err := check(t, `PROC main()
BYTE x
x=0
x(0)=1
RETURN
`)
	if err == nil {
		t.Fatalf("expected indexing a non-array variable to be rejected")
	}
}
