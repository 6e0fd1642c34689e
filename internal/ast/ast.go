// Package ast defines the abstract syntax tree produced by the parser and
// annotated in place by the symbol table / type checker.
//
// Grounded on pkg/compiler/ast.go's tagged-interface shape (Expr/Stmt
// marker interfaces, one concrete struct per node kind, a String method
// on each for debug dumps) generalized to this language's statement and
// expression forms.
package ast

import (
	"fmt"

	"actionz80/internal/token"
	"actionz80/internal/types"
)

// Expr is implemented by every node that produces a value. After type
// checking, ResolvedType() returns the type assigned to the expression.
type Expr interface {
	exprNode()
	String() string
	ResolvedType() types.Type
	SetResolvedType(types.Type)
}

type exprBase struct {
	Typ types.Type
}

func (e *exprBase) ResolvedType() types.Type       { return e.Typ }
func (e *exprBase) SetResolvedType(t types.Type)   { e.Typ = t }

// IntLiteral is a decimal or $hex integer constant.
type IntLiteral struct {
	exprBase
	Value int32
	Line, Column int
}

func (*IntLiteral) exprNode() {}
func (n *IntLiteral) String() string { return fmt.Sprintf("%d", n.Value) }

// CharLiteral is a 'c' constant; its value is the byte c.
type CharLiteral struct {
	exprBase
	Value byte
	Line, Column int
}

func (*CharLiteral) exprNode() {}
func (n *CharLiteral) String() string { return fmt.Sprintf("'%c'", n.Value) }

// StringLiteral is a "..." constant; it yields a pointer to a static,
// nul-terminated byte run interned by the code generator.
type StringLiteral struct {
	exprBase
	Value []byte
	Line, Column int
}

func (*StringLiteral) exprNode() {}
func (n *StringLiteral) String() string { return fmt.Sprintf("%q", n.Value) }

// Ident is a reference to a variable, parameter, procedure, or function.
type Ident struct {
	exprBase
	Name string
	Line, Column int
}

func (*Ident) exprNode() {}
func (n *Ident) String() string { return n.Name }

// IndexExpr is arr(index): an array read (as Expr) or, on the left of an
// assignment, an array write target.
type IndexExpr struct {
	exprBase
	Array *Ident
	Index Expr
	Line, Column int
}

func (*IndexExpr) exprNode() {}
func (n *IndexExpr) String() string { return fmt.Sprintf("%s(%s)", n.Array, n.Index) }

// BinaryExpr is Left Op Right for every binary operator: + - * / MOD
// AND OR XOR = <> < > <= >= & % !.
type BinaryExpr struct {
	exprBase
	Op    token.Type
	Left  Expr
	Right Expr
	Line, Column int
}

func (*BinaryExpr) exprNode() {}
func (n *BinaryExpr) String() string { return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right) }

// UnaryExpr is Op Operand for - NOT ^ @.
type UnaryExpr struct {
	exprBase
	Op      token.Type
	Operand Expr
	Line, Column int
}

func (*UnaryExpr) exprNode() {}
func (n *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", n.Op, n.Operand) }

// CallExpr is name(args) used in expression position (a FUNC call whose
// result is used).
type CallExpr struct {
	exprBase
	Name string
	Args []Expr
	Line, Column int
}

func (*CallExpr) exprNode() {}
func (n *CallExpr) String() string { return fmt.Sprintf("%s(%v)", n.Name, n.Args) }

// IndexOrCall is what the parser produces for the syntax `name(args)` in
// expression position, where the grammar alone cannot tell an array index
// (arr(i), exactly one arg) from a function call (f(a, b, ...)) without
// consulting the symbol table. Symbol resolution (internal/sema) rewrites
// every IndexOrCall in expression position into either an IndexExpr or a
// CallExpr once Name's kind is known; the one kept past resolution is a
// CallStmt's Call (see CallStmt).
type IndexOrCall struct {
	exprBase
	Name string
	Args []Expr
	Line, Column int
}

func (*IndexOrCall) exprNode() {}
func (n *IndexOrCall) String() string { return fmt.Sprintf("%s(%v)", n.Name, n.Args) }

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
	String() string
}

// AssignStmt is lvalue = expr. Target is either *Ident or *IndexExpr.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Line   int
}

func (*AssignStmt) stmtNode() {}
func (n *AssignStmt) String() string { return fmt.Sprintf("%s = %s", n.Target, n.Value) }

// IfClause is one THEN/ELSEIF arm: a condition and the statements that run
// when it is the first true condition in the chain.
type IfClause struct {
	Cond Expr
	Body []Stmt
}

// IfStmt is IF ... THEN ... (ELSEIF ... THEN ...)* (ELSE ...)? FI.
type IfStmt struct {
	Clauses []IfClause // Clauses[0] is the IF/THEN arm, rest are ELSEIF/THEN
	Else    []Stmt     // nil when there is no ELSE
	Line    int
}

func (*IfStmt) stmtNode() {}
func (n *IfStmt) String() string { return fmt.Sprintf("IF(%d clauses)", len(n.Clauses)) }

// WhileStmt is WHILE cond DO body OD.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Line int
}

func (*WhileStmt) stmtNode() {}
func (n *WhileStmt) String() string { return fmt.Sprintf("WHILE %s DO ...", n.Cond) }

// ForStmt is FOR ident = start TO end (STEP step)? DO body OD.
// Step is nil when omitted, defaulting to +1.
type ForStmt struct {
	Var   *Ident
	Start Expr
	End   Expr
	Step  Expr // nil => literal 1
	Body  []Stmt
	Line  int
}

func (*ForStmt) stmtNode() {}
func (n *ForStmt) String() string { return fmt.Sprintf("FOR %s = %s TO %s DO ...", n.Var, n.Start, n.End) }

// UntilStmt is UNTIL cond DO body OD: a post-test loop that runs body at
// least once and exits once cond becomes true.
type UntilStmt struct {
	Cond Expr
	Body []Stmt
	Line int
}

func (*UntilStmt) stmtNode() {}
func (n *UntilStmt) String() string { return fmt.Sprintf("UNTIL %s DO ...", n.Cond) }

// CallStmt is name(args) used as a statement: a PROC call, or a FUNC call
// whose result is discarded. Call is the parser's generic IndexOrCall;
// once symbol resolution confirms Name names a routine, it replaces Call
// with a new IndexOrCall holding the type-checked arguments.
type CallStmt struct {
	Call *IndexOrCall
	Line int
}

func (*CallStmt) stmtNode() {}
func (n *CallStmt) String() string { return n.Call.String() }

// ReturnStmt is RETURN or RETURN(expr). Expr is nil inside a PROC.
type ReturnStmt struct {
	Expr Expr
	Line int
}

func (*ReturnStmt) stmtNode() {}
func (n *ReturnStmt) String() string {
	if n.Expr == nil {
		return "RETURN"
	}
	return fmt.Sprintf("RETURN(%s)", n.Expr)
}

// VarDecl is a scalar or array declaration: a global when it appears at
// translation-unit scope, a local when it appears in a routine body.
type VarDecl struct {
	Name string
	Type types.Type
	Line int
}

// Param is one ordered parameter of a routine.
type Param struct {
	Name string
	Type types.Type
}

// RoutineDecl is a PROC or FUNC declaration. IsFunc distinguishes the two;
// ReturnType is types.Void for a PROC.
type RoutineDecl struct {
	Name       string
	IsFunc     bool
	Params     []Param
	Locals     []VarDecl
	Body       []Stmt
	ReturnType types.Type
	Line       int
}

// Unit is the translation unit: an ordered list of globals and routines.
// Exactly one routine must be named "main", a PROC with no parameters.
type Unit struct {
	Globals  []VarDecl
	Routines []*RoutineDecl
}
