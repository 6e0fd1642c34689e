// Package runtime assembles the fixed runtime prelude: six entry points
// (PutD, GetD, PrintE, Print, PrintB, PrintC) hand-assembled once, in
// declaration order, into a single relocatable blob. Build takes the
// absolute address the blob will be loaded at so that the CALL
// instructions the routines use to reach one another (PrintB, PrintC and
// Print all call PutD) can be written as resolved absolute addresses
// instead of needing patch records: unlike user routines, every builtin's
// address is known as soon as origin is fixed, before any source is
// parsed.
//
// Grounded on the register discipline and decimal-conversion-by-repeated-
// division behavior described in original_source/src/runtime.rs,
// re-derived here with correct 16-bit handling: that source's PrintC only
// prints the low byte of its input, and was not carried forward, since the
// language reference's testable end-to-end scenarios require correct
// multi-digit CARD output (e.g. printing 1597, 2584, 4181).
package runtime

import "actionz80/internal/z80"

// Port numbers making up the host I/O contract.
const (
	PortData   = 0x00
	PortStatus = 0x01
)

// Prelude is the assembled runtime blob plus the offset of each entry
// point from the blob's base.
type Prelude struct {
	Bytes   []byte
	Offsets map[string]int
}

// EntryNames lists the six fixed entry points, matching sema's builtins.
var EntryNames = []string{"PutD", "GetD", "PrintE", "Print", "PrintB", "PrintC"}

// asm is a tiny local assembler for the self-contained prelude: labels for
// branch targets and a list of not-yet-resolved relative branches,
// resolved once the whole blob has been emitted. This mirrors the code
// generator's patch list at a much smaller scale.
type asm struct {
	e       z80.Emitter
	labels  map[string]int
	forward []forwardBranch
	nextID  int
}

type forwardBranch struct {
	at     int
	target string
}

func newAsm() *asm { return &asm{labels: make(map[string]int)} }

func (a *asm) mark(label string) { a.labels[label] = a.e.Len() }

func (a *asm) label(prefix string) string {
	a.nextID++
	return prefix + string(rune('0'+a.nextID%10)) + string(rune('a'+(a.nextID/10)%26))
}

// branch emits a relative-branch opcode with a placeholder offset,
// resolved once every label has been marked.
func (a *asm) branch(opcode byte, target string) {
	a.e.Byte(opcode)
	at := a.e.Len()
	a.e.Byte(0)
	a.forward = append(a.forward, forwardBranch{at, target})
}

func (a *asm) resolve() {
	for _, p := range a.forward {
		rel := a.labels[p.target] - (p.at + 1)
		a.e.PatchByte(p.at, int(int8(rel)))
	}
}

const (
	opJR   = 0x18
	opJRZ  = 0x28
	opJRNZ = 0x20
	opJRC  = 0x38
)

// Build assembles the prelude for a blob loaded at base.
func Build(base int) *Prelude {
	a := newAsm()
	offsets := make(map[string]int)

	offsets["PutD"] = a.e.Len()
	a.e.OutNa(PortData)
	a.e.Ret()
	putD := base + offsets["PutD"]

	offsets["GetD"] = a.e.Len()
	a.mark("getd_poll")
	a.e.InAn(PortStatus)
	a.e.AndN(0x01)
	a.branch(opJRZ, "getd_poll")
	a.e.InAn(PortData)
	a.e.Ret()

	offsets["PrintE"] = a.e.Len()
	a.e.LdAn(13)
	a.e.Call(putD)
	a.e.LdAn(10)
	a.e.Call(putD)
	a.e.Ret()

	offsets["Print"] = a.e.Len()
	a.mark("print_loop")
	a.e.LdAhl()
	a.e.OrA()
	a.branch(opJRZ, "print_done")
	a.e.Call(putD)
	a.e.IncHL()
	a.branch(opJR, "print_loop")
	a.mark("print_done")
	a.e.Ret()

	// PrintB: decimal-print the 8-bit value in A. Working registers for
	// the whole routine: C holds the value remaining to be converted, B
	// is a seen-nonzero flag (0 until the first digit is printed).
	offsets["PrintB"] = a.e.Len()
	a.e.LdCa()
	a.e.LdBn(0)
	a.printByteDigit(putD, 100, false)
	a.printByteDigit(putD, 10, false)
	a.printByteDigit(putD, 1, true)
	a.e.Ret()

	// PrintC: decimal-print the 16-bit value in HL. B is the seen-nonzero
	// flag; HL itself is reduced in place by each place-value subtraction.
	offsets["PrintC"] = a.e.Len()
	a.e.LdBn(0)
	a.printWordDigit(putD, 10000, false)
	a.printWordDigit(putD, 1000, false)
	a.printWordDigit(putD, 100, false)
	a.printWordDigit(putD, 10, false)
	a.printWordDigit(putD, 1, true)
	a.e.Ret()

	a.resolve()
	return &Prelude{Bytes: a.e.Buf, Offsets: offsets}
}

// printByteDigit converts one decimal place of the value in C by repeated
// subtraction of place, counting subtractions in E, then prints '0'+E
// unless it is a suppressed leading zero. isLast forces the digit to
// print unconditionally (the units place always shows, even for 0).
func (a *asm) printByteDigit(putD int, place byte, isLast bool) {
	loop := a.label("bl")
	restore := a.label("br")
	doprint := a.label("bp")
	skip := a.label("bs")

	a.e.LdDn(place)
	a.e.LdEn(0)
	a.mark(loop)
	a.e.LdAc()
	a.e.CpD()
	a.branch(opJRC, restore)
	a.e.SubD()
	a.e.LdCa()
	a.e.IncE()
	a.branch(opJR, loop)
	a.mark(restore)

	if isLast {
		a.e.LdBn(1)
		a.e.LdAe()
		a.e.AddAn('0')
		a.e.Call(putD)
		return
	}
	a.e.LdAe()
	a.e.OrA()
	a.branch(opJRNZ, doprint)
	a.e.LdAb()
	a.e.OrA()
	a.branch(opJRNZ, doprint)
	a.branch(opJR, skip)
	a.mark(doprint)
	a.e.LdBn(1)
	a.e.LdAe()
	a.e.AddAn('0')
	a.e.Call(putD)
	a.mark(skip)
}

// printWordDigit is printByteDigit's 16-bit counterpart: the value lives
// in HL throughout PrintC, DE holds the place value for this call, and C
// counts subtractions for this place (freed for reuse each call since
// only B, the seen-nonzero flag, needs to persist across calls).
func (a *asm) printWordDigit(putD int, place int, isLast bool) {
	loop := a.label("wl")
	restore := a.label("wr")
	doprint := a.label("wp")
	skip := a.label("ws")

	a.e.LdDEnn(place)
	a.e.LdCn(0)
	a.mark(loop)
	a.e.AndA()
	a.e.SbcHLde()
	a.branch(opJRC, restore)
	a.e.IncC()
	a.branch(opJR, loop)
	a.mark(restore)
	a.e.AddHLde()

	if isLast {
		a.e.LdBn(1)
		a.e.LdAc()
		a.e.AddAn('0')
		a.e.Call(putD)
		return
	}
	a.e.LdAc()
	a.e.OrA()
	a.branch(opJRNZ, doprint)
	a.e.LdAb()
	a.e.OrA()
	a.branch(opJRNZ, doprint)
	a.branch(opJR, skip)
	a.mark(doprint)
	a.e.LdBn(1)
	a.e.LdAc()
	a.e.AddAn('0')
	a.e.Call(putD)
	a.mark(skip)
}
