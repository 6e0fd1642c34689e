package parser

import (
	"testing"

	"actionz80/internal/ast"
	"actionz80/internal/lexer"
	"actionz80/internal/token"
	"actionz80/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Unit {
	t.Helper()
	toks, err := lexer.LexAll([]byte(src))
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	unit, err := Parse(toks, src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return unit
}

func TestParseGlobalScalarAndArrayDecls(t *testing.T) {
	unit := mustParse(t, `
BYTE x, y
CARD total
BYTE ARRAY buf(10)
PROC main()
RETURN
`)
	if len(unit.Globals) != 4 {
		t.Fatalf("got %d globals, want 4", len(unit.Globals))
	}
	if unit.Globals[0].Name != "x" || unit.Globals[0].Type.Kind != types.Byte {
		t.Errorf("global 0: %+v", unit.Globals[0])
	}
	if unit.Globals[1].Name != "y" || unit.Globals[1].Type.Kind != types.Byte {
		t.Errorf("global 1: %+v", unit.Globals[1])
	}
	if unit.Globals[2].Name != "total" || unit.Globals[2].Type.Kind != types.Card {
		t.Errorf("global 2: %+v", unit.Globals[2])
	}
	if unit.Globals[3].Name != "buf" || unit.Globals[3].Type.Kind != types.ByteArray || unit.Globals[3].Type.Len != 10 {
		t.Errorf("global 3: %+v", unit.Globals[3])
	}
	if len(unit.Routines) != 1 || unit.Routines[0].Name != "main" {
		t.Fatalf("routines: %+v", unit.Routines)
	}
}

func TestParseProcWithParamsAndLocals(t *testing.T) {
	unit := mustParse(t, `
PROC add(BYTE a, BYTE b)
  CARD sum
  sum = a + b
RETURN
`)
	r := unit.Routines[0]
	if r.IsFunc {
		t.Fatal("expected PROC, got FUNC")
	}
	if len(r.Params) != 2 || r.Params[0].Name != "a" || r.Params[1].Name != "b" {
		t.Fatalf("params: %+v", r.Params)
	}
	if len(r.Locals) != 1 || r.Locals[0].Name != "sum" {
		t.Fatalf("locals: %+v", r.Locals)
	}
	if len(r.Body) != 1 {
		t.Fatalf("body: %+v", r.Body)
	}
	assign, ok := r.Body[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("body[0] is %T, want *ast.AssignStmt", r.Body[0])
	}
	if _, ok := assign.Target.(*ast.Ident); !ok {
		t.Errorf("target is %T, want *ast.Ident", assign.Target)
	}
	if _, ok := assign.Value.(*ast.BinaryExpr); !ok {
		t.Errorf("value is %T, want *ast.BinaryExpr", assign.Value)
	}
}

func TestParseFuncNoTrailingReturnKeyword(t *testing.T) {
	unit := mustParse(t, `
FUNC CARD square(CARD n)
RETURN(n * n)

PROC main()
RETURN
`)
	if len(unit.Routines) != 2 {
		t.Fatalf("got %d routines, want 2", len(unit.Routines))
	}
	square := unit.Routines[0]
	if !square.IsFunc || square.ReturnType.Kind != types.Card {
		t.Fatalf("square: %+v", square)
	}
	ret, ok := square.Body[0].(*ast.ReturnStmt)
	if !ok || ret.Expr == nil {
		t.Fatalf("square body[0]: %+v", square.Body[0])
	}
}

func TestParseArrayIndexAssignVsCallStmt(t *testing.T) {
	unit := mustParse(t, `
BYTE ARRAY buf(10)
PROC fill()
  buf(0) = 1
  clearScreen()
RETURN
`)
	body := unit.Routines[0].Body
	if len(body) != 2 {
		t.Fatalf("got %d statements, want 2", len(body))
	}
	assign, ok := body[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("stmt 0 is %T, want *ast.AssignStmt", body[0])
	}
	idx, ok := assign.Target.(*ast.IndexExpr)
	if !ok || idx.Array.Name != "buf" {
		t.Fatalf("target: %+v", assign.Target)
	}
	call, ok := body[1].(*ast.CallStmt)
	if !ok || call.Call.Name != "clearScreen" {
		t.Fatalf("stmt 1: %+v", body[1])
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	unit := mustParse(t, `
PROC classify(BYTE n)
  IF n = 0 THEN
    RETURN
  ELSEIF n < 10 THEN
    RETURN
  ELSE
    RETURN
  FI
RETURN
`)
	stmt, ok := unit.Routines[0].Body[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("body[0] is %T, want *ast.IfStmt", unit.Routines[0].Body[0])
	}
	if len(stmt.Clauses) != 2 {
		t.Fatalf("got %d clauses, want 2", len(stmt.Clauses))
	}
	if stmt.Else == nil {
		t.Fatal("expected an ELSE arm")
	}
}

func TestParseWhileForUntil(t *testing.T) {
	unit := mustParse(t, `
PROC loops()
  BYTE i
  WHILE i < 10 DO
    i = i + 1
  OD
  FOR i = 1 TO 10 STEP 2 DO
    i = i
  OD
  UNTIL i = 0 DO
    i = i - 1
  OD
RETURN
`)
	body := unit.Routines[0].Body
	if _, ok := body[0].(*ast.WhileStmt); !ok {
		t.Errorf("stmt 0 is %T, want *ast.WhileStmt", body[0])
	}
	forStmt, ok := body[1].(*ast.ForStmt)
	if !ok {
		t.Fatalf("stmt 1 is %T, want *ast.ForStmt", body[1])
	}
	if forStmt.Step == nil {
		t.Error("expected an explicit STEP expression")
	}
	if _, ok := body[2].(*ast.UntilStmt); !ok {
		t.Errorf("stmt 2 is %T, want *ast.UntilStmt", body[2])
	}
}

func TestParseNotBindsInsideComparison(t *testing.T) {
	// "NOT a + b = c" should parse as "(NOT (a + b)) = c", i.e. NOT applies
	// to the additive expression, and the whole thing is one comparand.
	unit := mustParse(t, `
PROC check(BYTE a, BYTE b, BYTE c)
  IF NOT a + b = c THEN
    RETURN
  FI
RETURN
`)
	ifStmt := unit.Routines[0].Body[0].(*ast.IfStmt)
	cmp, ok := ifStmt.Clauses[0].Cond.(*ast.BinaryExpr)
	if !ok || cmp.Op != token.ASSIGN {
		t.Fatalf("cond: %+v", ifStmt.Clauses[0].Cond)
	}
	not, ok := cmp.Left.(*ast.UnaryExpr)
	if !ok || not.Op != token.NOT {
		t.Fatalf("left of =: %+v, want NOT unary", cmp.Left)
	}
	if _, ok := not.Operand.(*ast.BinaryExpr); !ok {
		t.Fatalf("NOT operand is %T, want *ast.BinaryExpr (a + b)", not.Operand)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	unit := mustParse(t, `
PROC main()
  BYTE r
  r = 1 + 2 * 3
RETURN
`)
	assign := unit.Routines[0].Body[0].(*ast.AssignStmt)
	top, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || top.Op != token.PLUS {
		t.Fatalf("top: %+v", assign.Value)
	}
	if _, ok := top.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("right of +: %+v, want the 2*3 multiplication", top.Right)
	}
}

func TestParseCallExpressionInExpressionPosition(t *testing.T) {
	unit := mustParse(t, `
FUNC CARD square(CARD n)
RETURN(n * n)

PROC main()
  CARD r
  r = square(4)
RETURN
`)
	assign := unit.Routines[1].Body[0].(*ast.AssignStmt)
	ioc, ok := assign.Value.(*ast.IndexOrCall)
	if !ok || ioc.Name != "square" || len(ioc.Args) != 1 {
		t.Fatalf("value: %+v", assign.Value)
	}
}

func TestParseStringAndCharLiterals(t *testing.T) {
	unit := mustParse(t, `
PROC main()
  Print("hello")
  PrintC('A')
RETURN
`)
	body := unit.Routines[0].Body
	call0 := body[0].(*ast.CallStmt)
	if call0.Call.Name != "Print" {
		t.Fatalf("call 0: %+v", call0.Call)
	}
	if _, ok := call0.Call.Args[0].(*ast.StringLiteral); !ok {
		t.Fatalf("arg 0: %T", call0.Call.Args[0])
	}
	call1 := body[1].(*ast.CallStmt)
	if _, ok := call1.Call.Args[0].(*ast.CharLiteral); !ok {
		t.Fatalf("arg 0: %T", call1.Call.Args[0])
	}
}

func TestParseMissingFiIsError(t *testing.T) {
	toks, err := lexer.LexAll([]byte(`
PROC main()
  IF 1 = 1 THEN
    RETURN
RETURN
`))
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	if _, err := Parse(toks, ""); err == nil {
		t.Fatal("expected a parse error for a missing FI")
	}
}
