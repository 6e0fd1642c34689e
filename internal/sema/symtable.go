// Package sema resolves identifiers to symbols, assigns a type to every
// expression, lays out static storage for globals and locals, and rejects
// recursive call graphs (locals have no stack frame, so recursion would
// corrupt a routine's parameter slots).
//
// Grounded on pkg/compiler/symtable.go's scope/TypeInfo shape, generalized
// to this language's two-scope (global, current-routine) model, and on
// pkg/compiler/optimize.go's worklist call-graph walk, repurposed here to
// detect cycles instead of dead code.
package sema

import (
	"actionz80/internal/ast"
	"actionz80/internal/types"
)

// Kind classifies a Symbol.
type Kind int

const (
	KindGlobal Kind = iota
	KindParam
	KindLocal
	KindProc
	KindFunc
)

// RoutineInfo carries the extra bookkeeping a PROC/FUNC symbol needs beyond
// a plain variable: its declaration, the RAM slot assigned to each
// parameter (the caller writes these before CALL; there is no stack
// frame), and whether it is one of the six fixed runtime entry points.
type RoutineInfo struct {
	Decl         *ast.RoutineDecl
	ParamAddrs   []int
	IsBuiltin    bool
	BuiltinLabel string // one of PrintB, PrintC, PrintE, Print, PutD, GetD
}

// Symbol is a resolved name: a variable with a fixed RAM address, or a
// routine with a parameter slot layout.
type Symbol struct {
	Name    string
	Kind    Kind
	Type    types.Type
	Addr    int // absolute RAM address; meaningful for Global/Param/Local
	Routine *RoutineInfo
}

func (s *Symbol) IsRoutine() bool { return s.Kind == KindProc || s.Kind == KindFunc }
func (s *Symbol) IsVariable() bool {
	return s.Kind == KindGlobal || s.Kind == KindParam || s.Kind == KindLocal
}

// Table is the frozen-after-resolution symbol table: one global scope plus,
// while resolving a routine's body, that routine's local scope. Local
// lookup shadows global. Each routine's local scope is retained (keyed by
// routine name) after checking moves on to the next routine, since code
// generation walks every routine again in a later, separate pass and
// still needs to resolve its parameter and local addresses.
type Table struct {
	Globals  map[string]*Symbol
	Routines map[string]*Symbol            // proc/func symbols, keyed by name, same map keyspace as Globals conceptually but kept apart for clarity
	locals   map[string]map[string]*Symbol // routine name -> its param/local scope

	local          map[string]*Symbol // scratch: the routine currently being resolved
	currentRoutine string

	RAMBase   int
	ramCursor int
}

// DefaultRAMBase is the first address of variable storage when the caller
// does not override it.
const DefaultRAMBase = 0x2000

// NewTable creates an empty table with the RAM bump allocator starting at
// ramBase (default 0x2000 per the language's default memory map).
func NewTable(ramBase int) *Table {
	return &Table{
		Globals:   make(map[string]*Symbol),
		Routines:  make(map[string]*Symbol),
		locals:    make(map[string]map[string]*Symbol),
		RAMBase:   ramBase,
		ramCursor: ramBase,
	}
}

// alloc bumps the RAM cursor by n bytes and returns the address assigned to
// the first byte.
func (t *Table) alloc(n int) int {
	addr := t.ramCursor
	t.ramCursor += n
	return addr
}

// RAMEnd returns one past the last RAM byte in use, for the layout overlap
// check performed once the code+data length is known.
func (t *Table) RAMEnd() int { return t.ramCursor }

func (t *Table) beginRoutine(name string) {
	t.local = make(map[string]*Symbol)
	t.currentRoutine = name
}

func (t *Table) endRoutine() {
	t.locals[t.currentRoutine] = t.local
	t.local = nil
	t.currentRoutine = ""
}

// declareGlobal allocates storage for a global variable or array.
func (t *Table) declareGlobal(name string, typ types.Type) *Symbol {
	sym := &Symbol{Name: name, Kind: KindGlobal, Type: typ, Addr: t.alloc(typ.Size())}
	t.Globals[name] = sym
	return sym
}

// declareLocal allocates storage for a parameter or local variable inside
// the routine currently being resolved.
func (t *Table) declareLocal(name string, typ types.Type, kind Kind) *Symbol {
	sym := &Symbol{Name: name, Kind: kind, Type: typ, Addr: t.alloc(typ.Size())}
	t.local[name] = sym
	return sym
}

// Lookup resolves name against the local scope first, then global. Valid
// only while a routine is being checked (t.local is live); code generation
// uses LookupIn instead, since by then every routine's local scope has
// been retained but none is "current".
func (t *Table) Lookup(name string) (*Symbol, bool) {
	if t.local != nil {
		if sym, ok := t.local[name]; ok {
			return sym, true
		}
	}
	if sym, ok := t.Globals[name]; ok {
		return sym, true
	}
	if sym, ok := t.Routines[name]; ok {
		return sym, true
	}
	return nil, false
}

// LookupIn resolves name the same way Lookup does during checking, but
// against a specific routine's retained local scope rather than whichever
// routine happens to be "current" — the shape code generation needs when
// it revisits every routine body in its own later pass.
func (t *Table) LookupIn(routine, name string) (*Symbol, bool) {
	if scope, ok := t.locals[routine]; ok {
		if sym, ok := scope[name]; ok {
			return sym, true
		}
	}
	if sym, ok := t.Globals[name]; ok {
		return sym, true
	}
	if sym, ok := t.Routines[name]; ok {
		return sym, true
	}
	return nil, false
}
