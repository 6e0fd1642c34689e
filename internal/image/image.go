// Package image assembles the final flat binary: the leading JP to the
// trampoline, the runtime prelude, the CALL main/HALT trampoline, the
// user code generated by internal/codegen, and the string data pool.
//
// Grounded on pkg/asm/asm.go's Assemble entry point, which likewise
// glues a fixed preamble to generated bytes and returns one flat slice;
// here the preamble is the runtime prelude and trampoline rather than a
// linker header.
package image

import (
	"actionz80/internal/ast"
	"actionz80/internal/codegen"
	"actionz80/internal/diag"
	"actionz80/internal/runtime"
	"actionz80/internal/sema"
	"actionz80/internal/z80"
)

// DefaultOrigin is the load address of byte 0 of the output image when
// the caller does not override it.
const DefaultOrigin = 0x4200

// Result is a fully assembled compile: the flat image bytes and the
// per-statement listing records codegen produced along the way.
type Result struct {
	Bytes   []byte
	Listing []codegen.ListingRecord
}

// Build lays out the fixed-address preamble first, so the entire prelude
// and trampoline can be computed with resolved absolute addresses
// (origin is known up front — no patch records needed for this part),
// then hands codegen the address it must start user code at.
func Build(unit *ast.Unit, sym *sema.Table, warnings *diag.Bag, origin int) (*Result, error) {
	runtimeBase := origin + 3
	prelude := runtime.Build(runtimeBase)
	trampolineAddr := runtimeBase + len(prelude.Bytes)
	codeStart := trampolineAddr + 4 // CALL main (3) + HALT (1)

	builtinAddrs := make(map[string]int, len(prelude.Offsets))
	for name, off := range prelude.Offsets {
		builtinAddrs[name] = runtimeBase + off
	}

	var e z80.Emitter
	e.Jp(trampolineAddr)
	e.Buf = append(e.Buf, prelude.Bytes...)

	code, data, mainAddr, listing, err := codegen.Generate(unit, sym, warnings, codeStart, builtinAddrs)
	if err != nil {
		return nil, err
	}

	e.Call(mainAddr)
	e.Halt()
	e.Buf = append(e.Buf, code...)
	e.Buf = append(e.Buf, data...)

	if err := checkLayout(origin, len(e.Buf), sym.RAMBase, sym.RAMEnd()); err != nil {
		return nil, err
	}

	return &Result{Bytes: e.Buf, Listing: listing}, nil
}

// addressSpaceEnd is one past the highest address a Z80 can name; the
// code+data region can never legally grow past it.
const addressSpaceEnd = 0x10000

// checkLayout enforces spec invariant I6: the code+data region, the
// variable RAM region, and the 16-bit address space itself must not
// collide. Variable storage is a fixed low block starting at ramBase
// (0x2000 by default, the first 8K of RAM below the cartridge-mapped code
// region); code and its trailing string pool load at origin (0x4200 by
// default) and grow upward from there. The two collide if the program
// declares enough globals and locals to bump the RAM cursor past origin, or
// if the caller picks an origin low enough to sit inside the variable
// block; a program's code and string pool can also simply run past the top
// of addressable memory.
func checkLayout(origin, imageLen, ramBase, ramEnd int) error {
	if ramEnd > origin {
		return diag.NoPos(diag.KindLayout, "variable storage (ending at 0x%04X) overlaps the code origin 0x%04X", ramEnd, origin)
	}
	if ramBase >= origin {
		return diag.NoPos(diag.KindLayout, "RAM base 0x%04X is not below the code origin 0x%04X", ramBase, origin)
	}
	if origin+imageLen > addressSpaceEnd {
		return diag.NoPos(diag.KindLayout, "code and data (ending at 0x%04X) run past the top of addressable memory", origin+imageLen)
	}
	return nil
}
