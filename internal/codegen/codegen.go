// Package codegen walks a resolved AST and emits Z80 machine bytes into a
// single growing buffer, tracking a patch list for every forward
// reference (a call to a not-yet-emitted routine, a jump to a
// not-yet-reached label, or the address of an interned string appended
// after all routine code). Everything is resolved in one linear walk once
// emission finishes.
//
// Grounded on pkg/compiler/codegen.go's walk-the-AST-emit-bytes shape and
// pkg/asm/asm.go's label/patch bookkeeping, redesigned from that package's
// two-pass text assembler into direct single-pass byte patching: this
// generator is its own assembler, there is no intermediate text form.
package codegen

import (
	"actionz80/internal/ast"
	"actionz80/internal/diag"
	"actionz80/internal/sema"
	"actionz80/internal/token"
	"actionz80/internal/types"
	"actionz80/internal/z80"
)

// patchKind names what a placeholder word will eventually hold.
type patchKind int

const (
	patchLabel patchKind = iota
	patchRoutine
	patchString
)

type patchRecord struct {
	site    int // absolute address of the 2 placeholder bytes
	kind    patchKind
	label   int
	routine string
	strKey  string
}

// ListingRecord pairs one statement's source line with the address range
// its emitted bytes occupy.
type ListingRecord struct {
	SourceLine int
	Address    int
	ByteCount  int
}

// Generator owns the single code buffer and patch list for one compile.
type Generator struct {
	e         z80.Emitter
	codeStart int // absolute address of buffer[0]
	sym       *sema.Table
	warnings  *diag.Bag

	routineAddr    map[string]int // filled as each routine's emission begins
	labelAddr      map[int]int
	nextLabel      int
	patches        []patchRecord
	currentRoutine string // name of the routine genRoutine is currently walking

	dataBuf     []byte
	dataOffsets map[string]int // interned string content -> offset in dataBuf

	haveDivMod8, haveDivMod16 bool
	divMod8Addr, divMod16Addr int
	haveMul8, haveMul16       bool
	mul8Addr, mul16Addr       int

	Listing []ListingRecord
}

// New creates a Generator that will emit user code starting at codeStart,
// the address immediately after the fixed JP + runtime prelude + CALL
// main/HALT trampoline.
func New(sym *sema.Table, warnings *diag.Bag, codeStart int) *Generator {
	return &Generator{
		sym:         sym,
		warnings:    warnings,
		codeStart:   codeStart,
		routineAddr: make(map[string]int),
		labelAddr:   make(map[int]int),
		dataOffsets: make(map[string]int),
	}
}

func (g *Generator) absAddr() int { return g.codeStart + g.e.Len() }

func (g *Generator) newLabel() int {
	g.nextLabel++
	return g.nextLabel
}

func (g *Generator) markLabel(label int) {
	g.labelAddr[label] = g.absAddr()
}

// emitJumpToLabel writes a JP-family opcode targeting label: the label's
// address directly when it is already marked, otherwise a placeholder
// 16-bit operand plus a patch record resolved once emission finishes.
func (g *Generator) emitJumpToLabel(opcode byte, label int) {
	if addr, ok := g.labelAddr[label]; ok {
		g.e.Byte(opcode)
		g.e.Word(addr)
		return
	}
	g.e.Byte(opcode)
	site := g.absAddr()
	g.e.Word(0)
	g.patches = append(g.patches, patchRecord{site: site, kind: patchLabel, label: label})
}

func (g *Generator) emitCallRoutine(name string) {
	if addr, ok := g.routineAddr[name]; ok {
		g.e.Call(addr)
		return
	}
	g.e.Byte(0xCD)
	site := g.absAddr()
	g.e.Word(0)
	g.patches = append(g.patches, patchRecord{site: site, kind: patchRoutine, routine: name})
}

// internString records key's bytes in the data pool (once per distinct
// content) and returns a key used to patch its address once the pool's
// base address is known.
func (g *Generator) internString(content []byte) string {
	key := string(content)
	if _, ok := g.dataOffsets[key]; !ok {
		g.dataOffsets[key] = len(g.dataBuf)
		g.dataBuf = append(g.dataBuf, content...)
		g.dataBuf = append(g.dataBuf, 0)
	}
	return key
}

func (g *Generator) emitLoadStringAddr(content []byte) {
	key := g.internString(content)
	g.e.Byte(0x21) // LD HL, nn
	site := g.absAddr()
	g.e.Word(0)
	g.patches = append(g.patches, patchRecord{site: site, kind: patchString, strKey: key})
}

// Generate emits every routine's body, in declaration order, and returns
// the code bytes, the data pool bytes, and the resolved address of "main".
// builtinAddrs supplies the six runtime entry points' resolved absolute
// addresses up front, since (unlike user routines) they are never emitted
// by this walk and would otherwise dead-end as unresolved patches.
func Generate(unit *ast.Unit, sym *sema.Table, warnings *diag.Bag, codeStart int, builtinAddrs map[string]int) (code, data []byte, mainAddr int, listing []ListingRecord, err error) {
	g := New(sym, warnings, codeStart)
	for name, addr := range builtinAddrs {
		g.routineAddr[name] = addr
	}

	for _, r := range unit.Routines {
		g.routineAddr[r.Name] = g.absAddr()
		if err := g.genRoutine(r); err != nil {
			return nil, nil, 0, nil, err
		}
	}

	dataBase := g.codeStart + g.e.Len()
	for _, p := range g.patches {
		var target int
		switch p.kind {
		case patchLabel:
			addr, ok := g.labelAddr[p.label]
			if !ok {
				return nil, nil, 0, nil, diag.NoPos(diag.KindInternal, "unresolved local label %d", p.label)
			}
			target = addr
		case patchRoutine:
			addr, ok := g.routineAddr[p.routine]
			if !ok {
				return nil, nil, 0, nil, diag.NoPos(diag.KindInternal, "unresolved call to routine %q", p.routine)
			}
			target = addr
		case patchString:
			off, ok := g.dataOffsets[p.strKey]
			if !ok {
				return nil, nil, 0, nil, diag.NoPos(diag.KindInternal, "unresolved string reference")
			}
			target = dataBase + off
		}
		g.e.PatchWord(p.site-g.codeStart, target)
	}

	mainAddr, ok := g.routineAddr["main"]
	if !ok {
		return nil, nil, 0, nil, diag.NoPos(diag.KindInternal, "\"main\" was never emitted")
	}
	return g.e.Buf, g.dataBuf, mainAddr, g.Listing, nil
}

func (g *Generator) recordListing(line int) func() {
	startAddr := g.absAddr()
	return func() {
		count := g.absAddr() - startAddr
		if count > 0 {
			g.Listing = append(g.Listing, ListingRecord{SourceLine: line, Address: startAddr, ByteCount: count})
		}
	}
}

func (g *Generator) genRoutine(r *ast.RoutineDecl) error {
	g.currentRoutine = r.Name
	if len(r.Body) == 0 {
		g.e.Ret()
		return nil
	}
	for _, stmt := range r.Body {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	// A FUNC with every path already ending in RETURN(expr) never falls
	// through, but a PROC (or a FUNC body ending in a bare block) needs a
	// trailing RET as a backstop.
	if !endsInReturn(r.Body) {
		g.e.Ret()
	}
	return nil
}

func endsInReturn(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*ast.ReturnStmt)
	return ok
}

func (g *Generator) genStmt(stmt ast.Stmt) error {
	done := g.recordListing(stmtLine(stmt))
	defer done()

	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return g.genAssign(s)
	case *ast.CallStmt:
		return g.genCall(s.Call.Name, s.Call.Args)
	case *ast.IfStmt:
		return g.genIf(s)
	case *ast.WhileStmt:
		return g.genWhile(s)
	case *ast.UntilStmt:
		return g.genUntil(s)
	case *ast.ForStmt:
		return g.genFor(s)
	case *ast.ReturnStmt:
		return g.genReturn(s)
	default:
		return diag.NoPos(diag.KindInternal, "unhandled statement type %T", stmt)
	}
}

func stmtLine(stmt ast.Stmt) int {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return s.Line
	case *ast.CallStmt:
		return s.Line
	case *ast.IfStmt:
		return s.Line
	case *ast.WhileStmt:
		return s.Line
	case *ast.UntilStmt:
		return s.Line
	case *ast.ForStmt:
		return s.Line
	case *ast.ReturnStmt:
		return s.Line
	default:
		return 0
	}
}

func (g *Generator) genBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genAssign(s *ast.AssignStmt) error {
	switch t := s.Target.(type) {
	case *ast.Ident:
		sym, _ := g.sym.LookupIn(g.currentRoutine, t.Name)
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.genStoreVar(sym, s.Value.ResolvedType())
		return nil
	case *ast.IndexExpr:
		return g.genIndexStore(t, s.Value)
	default:
		return diag.NoPos(diag.KindInternal, "unhandled assignment target %T", s.Target)
	}
}

// genEffectiveAddr leaves the array element's absolute address in HL.
func (g *Generator) genEffectiveAddr(idx *ast.IndexExpr) error {
	sym, _ := g.sym.LookupIn(g.currentRoutine, idx.Array.Name)
	if err := g.genExpr(idx.Index); err != nil {
		return err
	}
	if !idx.Index.ResolvedType().IsWord() {
		g.e.LdLa()
		g.e.LdHn(0)
	}
	if sym.Type.ElemSize() == 2 {
		g.e.AddHLhl()
	}
	g.e.LdDEnn(sym.Addr)
	g.e.AddHLde()
	return nil
}

func (g *Generator) genIndexLoad(idx *ast.IndexExpr) error {
	if err := g.genEffectiveAddr(idx); err != nil {
		return err
	}
	sym, _ := g.sym.LookupIn(g.currentRoutine, idx.Array.Name)
	if sym.Type.ElemSize() == 2 {
		g.e.LdEhl()
		g.e.IncHL()
		g.e.LdDhl()
		g.e.ExDEHL()
	} else {
		g.e.LdAhl()
	}
	return nil
}

func (g *Generator) genIndexStore(idx *ast.IndexExpr, value ast.Expr) error {
	if err := g.genEffectiveAddr(idx); err != nil {
		return err
	}
	g.e.PushHL()
	if err := g.genExpr(value); err != nil {
		return err
	}
	sym, _ := g.sym.LookupIn(g.currentRoutine, idx.Array.Name)
	if sym.Type.ElemSize() == 2 {
		if !value.ResolvedType().IsWord() {
			g.e.LdLa()
			g.e.LdHn(0)
		}
		// value in HL, address on the stack
		g.e.ExDEHL() // DE = value
		g.e.PopHL()  // HL = address
		g.e.LdAe()   // A = low byte of value
		g.e.LdHLa()
		g.e.IncHL()
		g.e.LdAd() // A = high byte of value
		g.e.LdHLa()
	} else {
		if value.ResolvedType().IsWord() {
			g.e.LdAl() // truncate to the low byte
		}
		// value in A, address on the stack
		g.e.LdEa()
		g.e.PopHL()
		g.e.LdAe()
		g.e.LdHLa()
	}
	return nil
}

func (g *Generator) genExpr(expr ast.Expr) error {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		if n.ResolvedType().IsWord() {
			g.e.LdHLnn(int(n.Value))
		} else {
			g.e.LdAn(byte(n.Value))
		}
		return nil
	case *ast.CharLiteral:
		g.e.LdAn(n.Value)
		return nil
	case *ast.StringLiteral:
		g.emitLoadStringAddr(n.Value)
		return nil
	case *ast.Ident:
		sym, _ := g.sym.LookupIn(g.currentRoutine, n.Name)
		if sym.Type.IsWord() {
			g.e.LdHLmem(sym.Addr)
		} else {
			g.e.LdAnn(sym.Addr)
		}
		return nil
	case *ast.IndexExpr:
		return g.genIndexLoad(n)
	case *ast.BinaryExpr:
		return g.genBinary(n)
	case *ast.UnaryExpr:
		return g.genUnary(n)
	case *ast.CallExpr:
		return g.genCall(n.Name, n.Args)
	default:
		return diag.NoPos(diag.KindInternal, "unhandled expression type %T", expr)
	}
}

func (g *Generator) genUnary(u *ast.UnaryExpr) error {
	switch u.Op {
	case token.MINUS:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		if u.ResolvedType().IsWord() {
			g.e.ExDEHL()
			g.e.LdHLnn(0)
			g.e.AndA()
			g.e.SbcHLde()
		} else {
			g.e.LdEa()
			g.e.LdAn(0)
			g.e.SubE()
		}
		return nil
	case token.NOT:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		g.genBoolFromA(true)
		return nil
	case token.CARET:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		if u.ResolvedType().IsWord() {
			g.e.LdEhl()
			g.e.IncHL()
			g.e.LdDhl()
			g.e.ExDEHL()
		} else {
			g.e.LdAhl()
		}
		return nil
	case token.AT:
		switch operand := u.Operand.(type) {
		case *ast.Ident:
			sym, _ := g.sym.LookupIn(g.currentRoutine, operand.Name)
			g.e.LdHLnn(sym.Addr)
		case *ast.IndexExpr:
			return g.genEffectiveAddr(operand)
		default:
			return diag.NoPos(diag.KindInternal, "unhandled @ operand %T", u.Operand)
		}
		return nil
	default:
		return diag.NoPos(diag.KindInternal, "unhandled unary operator %s", u.Op)
	}
}

// genBoolFromA turns a nonzero-vs-zero test on A into a 0/1 result in A.
// invert=true implements NOT: zero becomes 1, nonzero becomes 0.
func (g *Generator) genBoolFromA(invert bool) {
	g.e.OrA()
	trueLbl := g.newLabel()
	endLbl := g.newLabel()
	if invert {
		g.emitJumpToLabel(0xCA /* JP Z */, trueLbl)
	} else {
		g.emitJumpToLabel(0xC2 /* JP NZ */, trueLbl)
	}
	g.e.LdAn(0)
	g.emitJumpToLabel(0xC3, endLbl)
	g.markLabel(trueLbl)
	g.e.LdAn(1)
	g.markLabel(endLbl)
}

func (g *Generator) genBinary(b *ast.BinaryExpr) error {
	switch b.Op {
	case token.AND, token.OR, token.XOR:
		return g.genLogical(b)
	}
	if b.Left.ResolvedType().IsWord() || b.Right.ResolvedType().IsWord() {
		return g.genBinaryWord(b)
	}
	return g.genBinaryByte(b)
}

// genLogical implements Action!'s AND/OR/XOR, which per the language
// reference are boolean 0/1 operators, not the bitwise family (that's &,
// %, !). Operands are normalized to 0/1 first via genBoolFromA(false).
func (g *Generator) genLogical(b *ast.BinaryExpr) error {
	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	if b.Left.ResolvedType().IsWord() {
		g.e.LdAl()
		g.e.OrH()
	}
	g.genBoolFromA(false)
	g.e.PushAF()
	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	if b.Right.ResolvedType().IsWord() {
		g.e.LdAl()
		g.e.OrH()
	}
	g.genBoolFromA(false)
	g.e.LdEa()
	g.e.PopAF()
	switch b.Op {
	case token.AND:
		g.e.AndE()
	case token.OR:
		g.e.OrE()
	case token.XOR:
		g.e.XorE()
	}
	g.genBoolFromA(false)
	return nil
}

func (g *Generator) genBinaryByte(b *ast.BinaryExpr) error {
	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	g.e.PushAF()
	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	g.e.LdEa()
	g.e.PopAF()
	switch b.Op {
	case token.PLUS:
		g.e.AddAe()
	case token.MINUS:
		g.e.SubE()
	case token.STAR:
		g.emitMul8()
	case token.BITAND:
		g.e.AndE()
	case token.BITOR:
		g.e.OrE()
	case token.BITXOR:
		g.e.XorE()
	case token.SLASH:
		g.emitDivMod8()
	case token.MOD:
		g.emitDivMod8()
		g.e.LdAe() // remainder was left in E by divmod8
	case token.ASSIGN, token.NOTEQ, token.LT, token.GT, token.LE, token.GE:
		g.e.CpE()
		g.genCompareResult(b.Op, false)
	default:
		return diag.NoPos(diag.KindInternal, "unhandled binary operator %s", b.Op)
	}
	return nil
}

func (g *Generator) genBinaryWord(b *ast.BinaryExpr) error {
	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	if !b.Left.ResolvedType().IsWord() {
		g.e.LdLa()
		g.e.LdHn(0)
	}
	g.e.PushHL()
	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	if !b.Right.ResolvedType().IsWord() {
		g.e.LdLa()
		g.e.LdHn(0)
	}
	g.e.ExDEHL()
	g.e.PopHL()
	switch b.Op {
	case token.PLUS:
		g.e.AddHLde()
	case token.MINUS:
		g.e.AndA()
		g.e.SbcHLde()
	case token.STAR:
		g.emitMul16()
	case token.BITAND:
		g.e.LdAh()
		g.e.AndD()
		g.e.LdHa()
		g.e.LdAl()
		g.e.AndE()
		g.e.LdLa()
	case token.BITOR:
		g.e.LdAh()
		g.e.OrD()
		g.e.LdHa()
		g.e.LdAl()
		g.e.OrE()
		g.e.LdLa()
	case token.BITXOR:
		g.e.LdAh()
		g.e.XorD()
		g.e.LdHa()
		g.e.LdAl()
		g.e.XorE()
		g.e.LdLa()
	case token.SLASH:
		g.emitDivMod16()
	case token.MOD:
		g.emitDivMod16()
		g.e.ExDEHL() // remainder was left in DE by divmod16
	case token.ASSIGN, token.NOTEQ, token.LT, token.GT, token.LE, token.GE:
		g.e.AndA()
		g.e.SbcHLde()
		g.genCompareResult(b.Op, true)
	default:
		return diag.NoPos(diag.KindInternal, "unhandled binary operator %s", b.Op)
	}
	return nil
}

// genCompareResult turns the flags left by a CP/SBC comparison into a 0/1
// result in A. wide tells whether the flags came from SBC HL,DE or from CP;
// both leave the same Z/C meaning, so the emitted code is the same either
// way and wide is not consulted.
func (g *Generator) genCompareResult(op token.Type, wide bool) {
	trueLbl := g.newLabel()
	falseLbl := g.newLabel()
	endLbl := g.newLabel()
	switch op {
	case token.ASSIGN:
		g.emitJumpToLabel(0xCA, trueLbl) // JP Z
		g.emitJumpToLabel(0xC3, falseLbl)
	case token.NOTEQ:
		g.emitJumpToLabel(0xC2, trueLbl) // JP NZ
		g.emitJumpToLabel(0xC3, falseLbl)
	case token.LT:
		g.emitJumpToLabel(0xDA, trueLbl) // JP C
		g.emitJumpToLabel(0xC3, falseLbl)
	case token.GE:
		g.emitJumpToLabel(0xD2, trueLbl) // JP NC
		g.emitJumpToLabel(0xC3, falseLbl)
	case token.GT:
		g.emitJumpToLabel(0xCA, falseLbl) // equal -> false
		g.emitJumpToLabel(0xDA, falseLbl) // less -> false
		g.emitJumpToLabel(0xC3, trueLbl)
	case token.LE:
		g.emitJumpToLabel(0xCA, trueLbl) // equal -> true
		g.emitJumpToLabel(0xDA, trueLbl) // less -> true
		g.emitJumpToLabel(0xC3, falseLbl)
	}
	g.markLabel(falseLbl)
	g.e.LdAn(0)
	g.emitJumpToLabel(0xC3, endLbl)
	g.markLabel(trueLbl)
	g.e.LdAn(1)
	g.markLabel(endLbl)
}

func (g *Generator) genCall(name string, args []ast.Expr) error {
	sym, _ := g.sym.LookupIn(g.currentRoutine, name)
	if sym.Routine.IsBuiltin {
		return g.genBuiltinCall(sym.Routine.BuiltinLabel, args)
	}
	for i, arg := range args {
		if err := g.genExpr(arg); err != nil {
			return err
		}
		slot := sym.Routine.ParamAddrs[i]
		if sym.Routine.Decl.Params[i].Type.IsWord() {
			if !arg.ResolvedType().IsWord() {
				g.e.LdLa()
				g.e.LdHn(0)
			}
			g.e.LdMemHL(slot)
		} else {
			if arg.ResolvedType().IsWord() {
				g.e.LdAl()
			}
			g.e.LdNNa(slot)
		}
	}
	g.emitCallRoutine(name)
	return nil
}

// genBuiltinCall calls one of the six fixed runtime entry points. Unlike
// user routines these have no RAM parameter slot: the single argument (if
// any) is evaluated straight into the register the prelude expects it in.
func (g *Generator) genBuiltinCall(label string, args []ast.Expr) error {
	if len(args) == 1 {
		if err := g.genExpr(args[0]); err != nil {
			return err
		}
		// PrintC and Print take a word in HL; PrintB and PutD take a byte in A.
		wantWord := label == "PrintC" || label == "Print"
		if wantWord && !args[0].ResolvedType().IsWord() {
			g.e.LdLa()
			g.e.LdHn(0)
		} else if !wantWord && args[0].ResolvedType().IsWord() {
			g.e.LdAl()
		}
	}
	g.emitCallRoutine(label)
	return nil
}

func (g *Generator) genIf(s *ast.IfStmt) error {
	endLbl := g.newLabel()
	for _, clause := range s.Clauses {
		nextLbl := g.newLabel()
		if err := g.genExpr(clause.Cond); err != nil {
			return err
		}
		g.genTestFalse(clause.Cond.ResolvedType())
		g.emitJumpToLabel(0xCA, nextLbl) // JP Z, next clause/else
		if err := g.genBlock(clause.Body); err != nil {
			return err
		}
		g.emitJumpToLabel(0xC3, endLbl)
		g.markLabel(nextLbl)
	}
	if s.Else != nil {
		if err := g.genBlock(s.Else); err != nil {
			return err
		}
	}
	g.markLabel(endLbl)
	return nil
}

// genTestFalse normalizes a just-evaluated condition to the Z flag: Z set
// means false (0). Byte-width conditions already leave a usable Z flag
// after OR A; word-width ones need both halves ORed together first.
func (g *Generator) genTestFalse(t types.Type) {
	if t.IsWord() {
		g.e.LdAl()
		g.e.OrH()
	} else {
		g.e.OrA()
	}
}

func (g *Generator) genWhile(s *ast.WhileStmt) error {
	topLbl := g.newLabel()
	endLbl := g.newLabel()
	g.markLabel(topLbl)
	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.genTestFalse(s.Cond.ResolvedType())
	g.emitJumpToLabel(0xCA, endLbl)
	if err := g.genBlock(s.Body); err != nil {
		return err
	}
	g.emitJumpToLabel(0xC3, topLbl)
	g.markLabel(endLbl)
	return nil
}

func (g *Generator) genUntil(s *ast.UntilStmt) error {
	topLbl := g.newLabel()
	g.markLabel(topLbl)
	if err := g.genBlock(s.Body); err != nil {
		return err
	}
	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.genTestFalse(s.Cond.ResolvedType())
	g.emitJumpToLabel(0xCA, topLbl) // loop while condition is false
	return nil
}

func (g *Generator) genFor(s *ast.ForStmt) error {
	sym, _ := g.sym.LookupIn(g.currentRoutine, s.Var.Name)

	if err := g.genExpr(s.Start); err != nil {
		return err
	}
	g.genStoreVar(sym, s.Start.ResolvedType())

	topLbl := g.newLabel()
	endLbl := g.newLabel()
	g.markLabel(topLbl)

	if err := g.genExpr(s.End); err != nil {
		return err
	}
	if sym.Type.IsWord() {
		if !s.End.ResolvedType().IsWord() {
			g.widenByteToHL(s.End)
		}
		g.e.ExDEHL()
		g.e.LdHLmem(sym.Addr)
		g.e.AndA()
		g.e.SbcHLde()
	} else {
		g.e.LdEa()
		g.e.LdAnn(sym.Addr)
		g.e.CpE()
	}

	if isNegativeConstant(s.Step) {
		// descending: flags are (var - end); carry set means var < end, stop.
		g.emitJumpToLabel(0xDA, endLbl) // JP C, end
	} else {
		// ascending: run this iteration on var == end too, so stop only on
		// the strict var > end (neither Z nor C set).
		continueLbl := g.newLabel()
		g.emitJumpToLabel(0xCA, continueLbl) // JP Z -> equal, continue
		g.emitJumpToLabel(0xDA, continueLbl) // JP C -> less, continue
		g.emitJumpToLabel(0xC3, endLbl)
		g.markLabel(continueLbl)
	}

	if err := g.genBlock(s.Body); err != nil {
		return err
	}

	step := loopStepExpr(s)
	if err := g.genExpr(step); err != nil {
		return err
	}
	if sym.Type.IsWord() {
		if !step.ResolvedType().IsWord() {
			g.widenByteToHL(step)
		}
		g.e.ExDEHL()
		g.e.LdHLmem(sym.Addr)
		g.e.AddHLde()
	} else {
		g.e.LdEa()
		g.e.LdAnn(sym.Addr)
		g.e.AddAe()
	}
	g.genStoreVar(sym, sym.Type)
	g.emitJumpToLabel(0xC3, topLbl)
	g.markLabel(endLbl)
	return nil
}

func (g *Generator) genStoreVar(sym *sema.Symbol, valType types.Type) {
	if sym.Type.IsWord() {
		if !valType.IsWord() {
			g.e.LdLa()
			g.e.LdHn(0)
		}
		g.e.LdMemHL(sym.Addr)
	} else {
		if valType.IsWord() {
			g.e.LdAl() // truncate to the low byte
		}
		g.e.LdNNa(sym.Addr)
	}
}

// widenByteToHL moves a byte result already sitting in A into HL, the way
// genBinaryWord and genStoreVar widen a byte operand for word-width use.
// A literal negative step (e.g. STEP -1) is stored as its two's-complement
// byte pattern by genUnary's MINUS case, so widening it with H=0 would turn
// -1 into 255; sign-extending on that one path keeps FOR loops with a
// negative literal STEP counting the right direction once the loop
// variable itself is word-width.
func (g *Generator) widenByteToHL(expr ast.Expr) {
	g.e.LdLa()
	if isNegativeConstant(expr) {
		g.e.LdHn(0xFF)
	} else {
		g.e.LdHn(0)
	}
}

func isNegativeConstant(step ast.Expr) bool {
	if step == nil {
		return false
	}
	if u, ok := step.(*ast.UnaryExpr); ok && u.Op == token.MINUS {
		return true
	}
	return false
}

// loopStepExpr returns the FOR loop's step expression, defaulting to the
// literal 1 when STEP was omitted.
func loopStepExpr(s *ast.ForStmt) ast.Expr {
	if s.Step != nil {
		return s.Step
	}
	lit := &ast.IntLiteral{Value: 1, Line: s.Line}
	lit.SetResolvedType(types.TByte)
	return lit
}

func (g *Generator) genReturn(s *ast.ReturnStmt) error {
	if s.Expr != nil {
		if err := g.genExpr(s.Expr); err != nil {
			return err
		}
	}
	g.e.Ret()
	return nil
}

// emitMul8 lazily emits an internal helper (entry: A=multiplicand,
// E=multiplier; exit: A=product truncated to 8 bits) the first time * is
// used on byte operands, and calls it. The Z80 has no multiply
// instruction, so this is a counted repeated-add loop: the same
// repeated-operation technique emitDivMod8 uses for division, over
// addition instead of subtraction.
func (g *Generator) emitMul8() {
	if !g.haveMul8 {
		skip := g.newLabel()
		g.emitJumpToLabel(0xC3, skip) // jump over the helper body on first use
		g.mul8Addr = g.absAddr()
		g.haveMul8 = true

		loop := g.newLabel()
		done := g.newLabel()
		g.e.LdCa()  // C = multiplicand
		g.e.LdBe()  // B = counter = multiplier
		g.e.LdDn(0) // D = running product
		g.markLabel(loop)
		g.e.LdAb()
		g.e.OrA()
		g.emitJumpToLabel(0xCA, done) // JP Z, done
		g.e.LdAd()
		g.e.AddAc()
		g.e.LdDa()
		g.e.DecB()
		g.emitJumpToLabel(0xC3, loop)
		g.markLabel(done)
		g.e.LdAd()
		g.e.Ret()
		g.markLabel(skip)
	}
	g.e.Call(g.mul8Addr)
}

// emitMul16 is emitMul8's 16-bit counterpart: entry HL=multiplicand,
// DE=multiplier; exit HL=product truncated to 16 bits. BC holds the
// multiplicand for the duration of the loop and DE counts down to zero.
func (g *Generator) emitMul16() {
	if !g.haveMul16 {
		skip := g.newLabel()
		g.emitJumpToLabel(0xC3, skip) // jump over the helper body on first use
		g.mul16Addr = g.absAddr()
		g.haveMul16 = true

		loop := g.newLabel()
		done := g.newLabel()
		g.e.LdBh()
		g.e.LdCl() // BC = multiplicand
		g.e.LdHLnn(0)
		g.markLabel(loop)
		g.e.LdAd()
		g.e.OrE()
		g.emitJumpToLabel(0xCA, done) // JP Z, done
		g.e.AddHLbc()
		g.e.DecDE()
		g.emitJumpToLabel(0xC3, loop)
		g.markLabel(done)
		g.e.Ret()
		g.markLabel(skip)
	}
	g.e.Call(g.mul16Addr)
}

// emitDivMod8 lazily emits an internal helper (entry: A=dividend, E=
// divisor; exit: A=quotient, E=remainder) the first time division or MOD
// is used on byte operands, and calls it. Implemented by repeated
// subtraction, the same technique the runtime prelude uses for decimal
// conversion.
func (g *Generator) emitDivMod8() {
	if !g.haveDivMod8 {
		skip := g.newLabel()
		g.emitJumpToLabel(0xC3, skip) // jump over the helper body on first use
		g.divMod8Addr = g.absAddr()
		g.haveDivMod8 = true

		loop := g.newLabel()
		done := g.newLabel()
		g.e.LdCa()
		g.e.LdBn(0)
		g.markLabel(loop)
		g.e.LdAc()
		g.e.CpE()
		g.emitJumpToLabel(0xDA, done) // JP C -> remainder < divisor, stop
		g.e.SubE()
		g.e.LdCa()
		g.e.IncB()
		g.emitJumpToLabel(0xC3, loop)
		g.markLabel(done)
		g.e.LdAb()
		g.e.LdEc()
		g.e.Ret()
		g.markLabel(skip)
	}
	g.e.Call(g.divMod8Addr)
}

// emitDivMod16 is emitDivMod8's 16-bit counterpart: entry HL=dividend,
// DE=divisor; exit HL=quotient, DE=remainder.
func (g *Generator) emitDivMod16() {
	if !g.haveDivMod16 {
		skip := g.newLabel()
		g.emitJumpToLabel(0xC3, skip) // jump over the helper body on first use
		g.divMod16Addr = g.absAddr()
		g.haveDivMod16 = true

		loop := g.newLabel()
		restore := g.newLabel()
		g.e.PushDE()
		g.e.LdBCnn(0)
		g.markLabel(loop)
		g.e.AndA()
		g.e.SbcHLde()
		g.emitJumpToLabel(0xDA, restore) // JP C -> undo last subtraction
		g.e.IncBC()
		g.emitJumpToLabel(0xC3, loop)
		g.markLabel(restore)
		g.e.AddHLde()
		g.e.PopDE() // divisor no longer needed; DE will hold the remainder
		g.e.ExDEHL()
		g.e.LdHB()
		g.e.LdLC()
		g.e.Ret()
		g.markLabel(skip)
	}
	g.e.Call(g.divMod16Addr)
}
