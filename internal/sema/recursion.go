package sema

import (
	"actionz80/internal/ast"
	"actionz80/internal/diag"
)

// detectRecursion walks the resolved call graph and rejects any cycle.
// Locals are statically allocated (no stack frame), so a routine calling
// itself, directly or transitively, would corrupt its own parameter slots
// on the second entry: this must be caught here rather than miscompiled.
//
// Grounded on pkg/compiler/optimize.go's worklist walk over the call
// graph, repurposed from dead-routine elimination to cycle detection.
func detectRecursion(unit *ast.Unit, table *Table) error {
	graph := buildCallGraph(unit)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(unit.Routines))
	for _, r := range unit.Routines {
		color[r.Name] = white
	}

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		color[name] = gray
		path = append(path, name)
		for _, callee := range graph[name] {
			switch color[callee] {
			case gray:
				return diag.NoPos(diag.KindResolution, "recursive call cycle detected: %s", cyclePath(path, callee))
			case white:
				if err := visit(callee, path); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for _, r := range unit.Routines {
		if color[r.Name] == white {
			if err := visit(r.Name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(path []string, back string) string {
	s := ""
	started := false
	for _, name := range path {
		if name == back {
			started = true
		}
		if started {
			if s != "" {
				s += " -> "
			}
			s += name
		}
	}
	if s == "" {
		return back
	}
	return s + " -> " + back
}

// buildCallGraph collects, per routine, the set of user routines it calls
// directly (builtins are excluded: they are leaves outside the graph).
func buildCallGraph(unit *ast.Unit) map[string][]string {
	graph := make(map[string][]string, len(unit.Routines))
	userRoutine := make(map[string]bool, len(unit.Routines))
	for _, r := range unit.Routines {
		userRoutine[r.Name] = true
	}

	var walkExpr func(e ast.Expr, out *[]string)
	walkExpr = func(e ast.Expr, out *[]string) {
		switch n := e.(type) {
		case *ast.CallExpr:
			if userRoutine[n.Name] {
				*out = append(*out, n.Name)
			}
			for _, a := range n.Args {
				walkExpr(a, out)
			}
		case *ast.BinaryExpr:
			walkExpr(n.Left, out)
			walkExpr(n.Right, out)
		case *ast.UnaryExpr:
			walkExpr(n.Operand, out)
		case *ast.IndexExpr:
			walkExpr(n.Index, out)
		}
	}

	var walkStmts func(stmts []ast.Stmt, out *[]string)
	walkStmts = func(stmts []ast.Stmt, out *[]string) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *ast.AssignStmt:
				walkExpr(s.Value, out)
				walkExpr(s.Target, out)
			case *ast.CallStmt:
				if userRoutine[s.Call.Name] {
					*out = append(*out, s.Call.Name)
				}
				for _, a := range s.Call.Args {
					walkExpr(a, out)
				}
			case *ast.IfStmt:
				for _, clause := range s.Clauses {
					walkExpr(clause.Cond, out)
					walkStmts(clause.Body, out)
				}
				walkStmts(s.Else, out)
			case *ast.WhileStmt:
				walkExpr(s.Cond, out)
				walkStmts(s.Body, out)
			case *ast.UntilStmt:
				walkExpr(s.Cond, out)
				walkStmts(s.Body, out)
			case *ast.ForStmt:
				walkExpr(s.Start, out)
				walkExpr(s.End, out)
				if s.Step != nil {
					walkExpr(s.Step, out)
				}
				walkStmts(s.Body, out)
			case *ast.ReturnStmt:
				if s.Expr != nil {
					walkExpr(s.Expr, out)
				}
			}
		}
	}

	for _, r := range unit.Routines {
		var callees []string
		walkStmts(r.Body, &callees)
		graph[r.Name] = callees
	}
	return graph
}
