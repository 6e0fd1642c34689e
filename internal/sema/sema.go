package sema

import (
	"actionz80/internal/ast"
	"actionz80/internal/diag"
	"actionz80/internal/token"
	"actionz80/internal/types"
)

// Result is the frozen output of a successful Check: the symbol table
// (read-only from here on, consumed by the code generator) and any
// non-fatal warnings collected along the way.
type Result struct {
	Table    *Table
	Warnings *diag.Bag
}

// Check resolves every identifier in unit, assigns a type to every
// expression, rewrites every ast.IndexOrCall in expression position into
// an ast.IndexExpr or ast.CallExpr (a CallStmt keeps an IndexOrCall with
// checked arguments), lays out static storage, and rejects recursive call
// graphs. It returns the first fatal diagnostic encountered, matching the
// single-shot "first fatal error terminates compilation" rule.
func Check(unit *ast.Unit, ramBase int) (*Result, error) {
	c := &checker{
		table:    NewTable(ramBase),
		warnings: &diag.Bag{},
	}
	registerBuiltins(c.table)

	for _, g := range unit.Globals {
		if _, exists := c.table.Globals[g.Name]; exists {
			return nil, diag.New(diag.KindResolution, g.Line, 0, "duplicate global declaration %q", g.Name)
		}
		c.table.declareGlobal(g.Name, g.Type)
	}

	var mainDecl *ast.RoutineDecl
	for _, r := range unit.Routines {
		if _, exists := c.table.Routines[r.Name]; exists {
			return nil, diag.New(diag.KindResolution, r.Line, 0, "duplicate routine declaration %q", r.Name)
		}
		if _, exists := c.table.Globals[r.Name]; exists {
			return nil, diag.New(diag.KindResolution, r.Line, 0, "%q is already declared as a variable", r.Name)
		}
		paramAddrs := make([]int, len(r.Params))
		for i, p := range r.Params {
			paramAddrs[i] = c.table.alloc(p.Type.Size())
		}
		kind := KindProc
		retType := types.TVoid
		if r.IsFunc {
			kind = KindFunc
			retType = r.ReturnType
		}
		c.table.Routines[r.Name] = &Symbol{
			Name: r.Name,
			Kind: kind,
			Type: retType,
			Routine: &RoutineInfo{
				Decl:       r,
				ParamAddrs: paramAddrs,
			},
		}
		if r.Name == "main" {
			mainDecl = r
		}
	}

	if mainDecl == nil {
		return nil, diag.NoPos(diag.KindResolution, "no PROC named \"main\" found")
	}
	if mainDecl.IsFunc || len(mainDecl.Params) != 0 {
		return nil, diag.New(diag.KindResolution, mainDecl.Line, 0, "\"main\" must be a PROC with no parameters")
	}

	for _, r := range unit.Routines {
		if err := c.checkRoutine(r); err != nil {
			return nil, err
		}
	}

	if err := detectRecursion(unit, c.table); err != nil {
		return nil, err
	}

	return &Result{Table: c.table, Warnings: c.warnings}, nil
}

type checker struct {
	table    *Table
	warnings *diag.Bag
	routine  *ast.RoutineDecl
}

func (c *checker) checkRoutine(r *ast.RoutineDecl) error {
	c.table.beginRoutine(r.Name)
	defer c.table.endRoutine()
	c.routine = r

	sym := c.table.Routines[r.Name]
	seen := map[string]bool{}
	for i, p := range r.Params {
		if seen[p.Name] {
			return diag.New(diag.KindResolution, r.Line, 0, "duplicate parameter %q in %q", p.Name, r.Name)
		}
		seen[p.Name] = true
		lsym := c.table.declareLocal(p.Name, p.Type, KindParam)
		lsym.Addr = sym.Routine.ParamAddrs[i]
	}
	for _, l := range r.Locals {
		if seen[l.Name] {
			return diag.New(diag.KindResolution, l.Line, 0, "%q is already declared as a parameter in %q", l.Name, r.Name)
		}
		seen[l.Name] = true
		c.table.declareLocal(l.Name, l.Type, KindLocal)
	}

	sawReturnExpr := false
	for i, stmt := range r.Body {
		rewritten, err := c.checkStmt(stmt)
		if err != nil {
			return err
		}
		r.Body[i] = rewritten
		if ret, ok := rewritten.(*ast.ReturnStmt); ok && ret.Expr != nil {
			sawReturnExpr = true
		}
	}
	if r.IsFunc && !sawReturnExpr {
		return diag.New(diag.KindResolution, r.Line, 0, "FUNC %q must contain at least one RETURN(expr)", r.Name)
	}
	return nil
}

func (c *checker) checkStmt(stmt ast.Stmt) (ast.Stmt, error) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return c.checkAssign(s)
	case *ast.IfStmt:
		for i := range s.Clauses {
			cond, err := c.checkExpr(s.Clauses[i].Cond)
			if err != nil {
				return nil, err
			}
			s.Clauses[i].Cond = cond
			if err := c.checkBlock(s.Clauses[i].Body); err != nil {
				return nil, err
			}
		}
		if s.Else != nil {
			if err := c.checkBlock(s.Else); err != nil {
				return nil, err
			}
		}
		return s, nil
	case *ast.WhileStmt:
		cond, err := c.checkExpr(s.Cond)
		if err != nil {
			return nil, err
		}
		s.Cond = cond
		if err := c.checkBlock(s.Body); err != nil {
			return nil, err
		}
		return s, nil
	case *ast.UntilStmt:
		cond, err := c.checkExpr(s.Cond)
		if err != nil {
			return nil, err
		}
		s.Cond = cond
		if err := c.checkBlock(s.Body); err != nil {
			return nil, err
		}
		return s, nil
	case *ast.ForStmt:
		return c.checkFor(s)
	case *ast.CallStmt:
		expr, err := c.resolveIndexOrCall(s.Call)
		if err != nil {
			return nil, err
		}
		if callExpr, ok := expr.(*ast.CallExpr); ok {
			return &ast.CallStmt{Call: &ast.IndexOrCall{Name: callExpr.Name, Args: callExpr.Args, Line: s.Line}, Line: s.Line}, nil
		}
		return nil, diag.New(diag.KindResolution, s.Line, 0, "%q does not name a procedure or function", s.Call.Name)
	case *ast.ReturnStmt:
		if s.Expr == nil {
			if c.routine.IsFunc {
				return nil, diag.New(diag.KindResolution, s.Line, 0, "FUNC %q must RETURN a value", c.routine.Name)
			}
			return s, nil
		}
		if !c.routine.IsFunc {
			return nil, diag.New(diag.KindResolution, s.Line, 0, "PROC %q cannot RETURN a value", c.routine.Name)
		}
		expr, err := c.checkExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		ok, narrows := c.routine.ReturnType.AssignableFrom(expr.ResolvedType())
		if !ok {
			return nil, diag.New(diag.KindType, s.Line, 0, "cannot return %s from FUNC declared to return %s", expr.ResolvedType(), c.routine.ReturnType)
		}
		if narrows {
			c.warnings.Warn(s.Line, 0, "return value narrows from %s to %s", expr.ResolvedType(), c.routine.ReturnType)
		}
		s.Expr = expr
		return s, nil
	default:
		return nil, diag.NoPos(diag.KindInternal, "unhandled statement type %T", stmt)
	}
}

func (c *checker) checkBlock(stmts []ast.Stmt) error {
	for i, s := range stmts {
		rewritten, err := c.checkStmt(s)
		if err != nil {
			return err
		}
		stmts[i] = rewritten
	}
	return nil
}

func (c *checker) checkAssign(s *ast.AssignStmt) (ast.Stmt, error) {
	var target ast.Expr
	switch t := s.Target.(type) {
	case *ast.Ident:
		sym, ok := c.table.Lookup(t.Name)
		if !ok {
			return nil, diag.New(diag.KindResolution, t.Line, t.Column, "undefined identifier %q", t.Name)
		}
		if !sym.IsVariable() {
			return nil, diag.New(diag.KindResolution, t.Line, t.Column, "%q is not a variable", t.Name)
		}
		t.SetResolvedType(sym.Type)
		target = t
	case *ast.IndexExpr:
		idx, err := c.checkIndex(t)
		if err != nil {
			return nil, err
		}
		target = idx
	default:
		return nil, diag.NoPos(diag.KindInternal, "unhandled assignment target %T", s.Target)
	}

	value, err := c.checkExpr(s.Value)
	if err != nil {
		return nil, err
	}
	if err := c.checkLiteralFits(value, target.ResolvedType()); err != nil {
		return nil, err
	}
	ok, narrows := target.ResolvedType().AssignableFrom(value.ResolvedType())
	if !ok {
		return nil, diag.New(diag.KindType, s.Line, 0, "cannot assign %s to %s", value.ResolvedType(), target.ResolvedType())
	}
	if narrows {
		c.warnings.Warn(s.Line, 0, "assignment narrows from %s to %s", value.ResolvedType(), target.ResolvedType())
	}
	s.Target, s.Value = target, value
	return s, nil
}

func (c *checker) checkFor(s *ast.ForStmt) (ast.Stmt, error) {
	sym, ok := c.table.Lookup(s.Var.Name)
	if !ok {
		return nil, diag.New(diag.KindResolution, s.Var.Line, s.Var.Column, "undefined identifier %q", s.Var.Name)
	}
	if !sym.IsVariable() || !sym.Type.IsNumeric() {
		return nil, diag.New(diag.KindResolution, s.Var.Line, s.Var.Column, "%q cannot be used as a FOR loop variable", s.Var.Name)
	}
	s.Var.SetResolvedType(sym.Type)

	start, err := c.checkExpr(s.Start)
	if err != nil {
		return nil, err
	}
	end, err := c.checkExpr(s.End)
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if s.Step != nil {
		step, err = c.checkExpr(s.Step)
		if err != nil {
			return nil, err
		}
	}
	s.Start, s.End, s.Step = start, end, step
	if err := c.checkBlock(s.Body); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *checker) checkIndex(idx *ast.IndexExpr) (*ast.IndexExpr, error) {
	sym, ok := c.table.Lookup(idx.Array.Name)
	if !ok {
		return nil, diag.New(diag.KindResolution, idx.Array.Line, idx.Array.Column, "undefined identifier %q", idx.Array.Name)
	}
	if !sym.IsVariable() || !sym.Type.IsArray() {
		return nil, diag.New(diag.KindResolution, idx.Line, idx.Column, "%q is not an array", idx.Array.Name)
	}
	idx.Array.SetResolvedType(sym.Type)
	index, err := c.checkExpr(idx.Index)
	if err != nil {
		return nil, err
	}
	if !index.ResolvedType().IsNumeric() {
		return nil, diag.New(diag.KindType, idx.Line, idx.Column, "array index must be numeric, got %s", index.ResolvedType())
	}
	idx.Index = index
	idx.SetResolvedType(sym.Type.ElemType())
	return idx, nil
}

func (c *checker) checkExpr(expr ast.Expr) (ast.Expr, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		if e.Value > 255 {
			e.SetResolvedType(types.TCard)
		} else {
			e.SetResolvedType(types.TByte)
		}
		return e, nil
	case *ast.CharLiteral:
		e.SetResolvedType(types.TChar)
		return e, nil
	case *ast.StringLiteral:
		e.SetResolvedType(types.NewPointer(types.TByte))
		return e, nil
	case *ast.Ident:
		sym, ok := c.table.Lookup(e.Name)
		if !ok {
			return nil, diag.New(diag.KindResolution, e.Line, e.Column, "undefined identifier %q", e.Name)
		}
		if !sym.IsVariable() {
			return nil, diag.New(diag.KindResolution, e.Line, e.Column, "%q is not a variable", e.Name)
		}
		e.SetResolvedType(sym.Type)
		return e, nil
	case *ast.IndexExpr:
		return c.checkIndex(e)
	case *ast.IndexOrCall:
		return c.resolveIndexOrCall(e)
	case *ast.BinaryExpr:
		return c.checkBinary(e)
	case *ast.UnaryExpr:
		return c.checkUnary(e)
	case *ast.CallExpr:
		return c.checkCallExpr(e.Name, e.Args, e.Line, e.Column)
	default:
		return nil, diag.NoPos(diag.KindInternal, "unhandled expression type %T", expr)
	}
}

// resolveIndexOrCall disambiguates the parser's generic name(args) node:
// an array symbol with exactly one argument becomes an IndexExpr, a
// routine symbol becomes a CallExpr. Anything else is a resolution error.
func (c *checker) resolveIndexOrCall(ioc *ast.IndexOrCall) (ast.Expr, error) {
	sym, ok := c.table.Lookup(ioc.Name)
	if !ok {
		return nil, diag.New(diag.KindResolution, ioc.Line, ioc.Column, "undefined identifier %q", ioc.Name)
	}
	switch {
	case sym.IsVariable() && sym.Type.IsArray():
		if len(ioc.Args) != 1 {
			return nil, diag.New(diag.KindResolution, ioc.Line, ioc.Column, "array index %q takes exactly one index, got %d", ioc.Name, len(ioc.Args))
		}
		return c.checkIndex(&ast.IndexExpr{Array: &ast.Ident{Name: ioc.Name, Line: ioc.Line, Column: ioc.Column}, Index: ioc.Args[0], Line: ioc.Line, Column: ioc.Column})
	case sym.IsRoutine():
		return c.checkCallExpr(ioc.Name, ioc.Args, ioc.Line, ioc.Column)
	default:
		return nil, diag.New(diag.KindResolution, ioc.Line, ioc.Column, "%q is neither an array nor a routine", ioc.Name)
	}
}

func (c *checker) checkCallExpr(name string, args []ast.Expr, line, col int) (ast.Expr, error) {
	sym, ok := c.table.Lookup(name)
	if !ok {
		return nil, diag.New(diag.KindResolution, line, col, "undefined identifier %q", name)
	}
	if !sym.IsRoutine() {
		return nil, diag.New(diag.KindResolution, line, col, "%q is not a procedure or function", name)
	}

	var paramTypes []types.Type
	if sym.Routine.IsBuiltin {
		sig, _ := builtinSignature(sym.Routine.BuiltinLabel)
		paramTypes = sig.Params
	} else {
		for _, p := range sym.Routine.Decl.Params {
			paramTypes = append(paramTypes, p.Type)
		}
	}
	if len(args) != len(paramTypes) {
		return nil, diag.New(diag.KindResolution, line, col, "%q takes %d argument(s), got %d", name, len(paramTypes), len(args))
	}

	checked := make([]ast.Expr, len(args))
	for i, a := range args {
		arg, err := c.checkExpr(a)
		if err != nil {
			return nil, err
		}
		if err := c.checkLiteralFits(arg, paramTypes[i]); err != nil {
			return nil, err
		}
		ok, narrows := paramTypes[i].AssignableFrom(arg.ResolvedType())
		if !ok {
			return nil, diag.New(diag.KindType, line, col, "argument %d to %q: cannot use %s as %s", i+1, name, arg.ResolvedType(), paramTypes[i])
		}
		if narrows {
			c.warnings.Warn(line, col, "argument %d to %q narrows from %s to %s", i+1, name, arg.ResolvedType(), paramTypes[i])
		}
		checked[i] = arg
	}

	call := &ast.CallExpr{Name: name, Args: checked, Line: line, Column: col}
	call.SetResolvedType(sym.Type)
	return call, nil
}

func (c *checker) checkUnary(u *ast.UnaryExpr) (ast.Expr, error) {
	operand, err := c.checkExpr(u.Operand)
	if err != nil {
		return nil, err
	}
	u.Operand = operand
	switch u.Op {
	case token.MINUS:
		if !operand.ResolvedType().IsNumeric() {
			return nil, diag.New(diag.KindType, u.Line, u.Column, "unary - requires a numeric operand, got %s", operand.ResolvedType())
		}
		if operand.ResolvedType().IsWord() {
			u.SetResolvedType(types.TInt)
		} else {
			u.SetResolvedType(types.TByte)
		}
	case token.NOT:
		u.SetResolvedType(types.TByte)
	case token.CARET:
		if operand.ResolvedType().Kind != types.Pointer {
			return nil, diag.New(diag.KindType, u.Line, u.Column, "^ requires a pointer operand, got %s", operand.ResolvedType())
		}
		u.SetResolvedType(*operand.ResolvedType().Inner)
	case token.AT:
		switch operand.(type) {
		case *ast.Ident, *ast.IndexExpr:
		default:
			return nil, diag.New(diag.KindType, u.Line, u.Column, "@ requires an lvalue operand")
		}
		u.SetResolvedType(types.NewPointer(operand.ResolvedType()))
	default:
		return nil, diag.NoPos(diag.KindInternal, "unhandled unary operator %s", u.Op)
	}
	return u, nil
}

func (c *checker) checkBinary(b *ast.BinaryExpr) (ast.Expr, error) {
	left, err := c.checkExpr(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.checkExpr(b.Right)
	if err != nil {
		return nil, err
	}
	b.Left, b.Right = left, right

	switch b.Op {
	case token.AND, token.OR, token.XOR:
		b.SetResolvedType(types.TByte)
		return b, nil
	case token.ASSIGN, token.NOTEQ, token.LT, token.GT, token.LE, token.GE:
		if !left.ResolvedType().IsNumeric() || !right.ResolvedType().IsNumeric() {
			return nil, diag.New(diag.KindType, b.Line, b.Column, "comparison requires numeric operands, got %s and %s", left.ResolvedType(), right.ResolvedType())
		}
		b.SetResolvedType(types.TByte)
		return b, nil
	case token.PLUS, token.MINUS, token.STAR, token.BITAND, token.BITOR, token.BITXOR:
		if !left.ResolvedType().IsNumeric() || !right.ResolvedType().IsNumeric() {
			return nil, diag.New(diag.KindType, b.Line, b.Column, "%s requires numeric operands, got %s and %s", b.Op, left.ResolvedType(), right.ResolvedType())
		}
		b.SetResolvedType(types.WidenBinary(left.ResolvedType(), right.ResolvedType()))
		return b, nil
	case token.SLASH, token.MOD:
		if !left.ResolvedType().IsNumeric() || !right.ResolvedType().IsNumeric() {
			return nil, diag.New(diag.KindType, b.Line, b.Column, "%s requires numeric operands, got %s and %s", b.Op, left.ResolvedType(), right.ResolvedType())
		}
		if lit, ok := right.(*ast.IntLiteral); ok && lit.Value == 0 {
			return nil, diag.New(diag.KindType, b.Line, b.Column, "division by literal zero")
		}
		b.SetResolvedType(types.WidenBinary(left.ResolvedType(), right.ResolvedType()))
		return b, nil
	default:
		return nil, diag.NoPos(diag.KindInternal, "unhandled binary operator %s", b.Op)
	}
}

// checkLiteralFits rejects an integer literal that cannot be represented
// in target's width. This is stricter than the general narrows-with-
// warning rule for AssignableFrom: a literal is a compile-time constant,
// so an out-of-range one is always a mistake, never a legitimate runtime
// truncation.
func (c *checker) checkLiteralFits(value ast.Expr, target types.Type) error {
	lit, ok := value.(*ast.IntLiteral)
	if !ok {
		return nil
	}
	switch target.Kind {
	case types.Byte, types.Char:
		if lit.Value > 255 {
			return diag.New(diag.KindType, lit.Line, lit.Column, "integer literal %d exceeds the range of %s", lit.Value, target)
		}
	case types.Int:
		if lit.Value > 32767 {
			return diag.New(diag.KindType, lit.Line, lit.Column, "integer literal %d exceeds the range of %s", lit.Value, target)
		}
	}
	return nil
}
