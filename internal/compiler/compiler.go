// Package compiler chains the pipeline stages — lex, parse, resolve,
// generate code, assemble — into the single entry point the CLI front end
// calls.
//
// Grounded on pkg/compiler/compile.go's Compile function: read source,
// run each stage in order, return on the first error with a stage-
// specific wrapped message. Preprocessing is not a stage here (see
// SPEC_FULL.md's grounded-absence note on pkg/compiler/preprocessor.go).
package compiler

import (
	"actionz80/internal/diag"
	"actionz80/internal/image"
	"actionz80/internal/lexer"
	"actionz80/internal/parser"
	"actionz80/internal/sema"
)

// Options configures one compile.
type Options struct {
	// Origin is the load address of the output image's first byte.
	Origin int
	// RAMBase is the first address of variable storage; it must not be
	// reachable from within the assembled code+data region.
	RAMBase int
}

// Result is everything a caller might want out of a successful compile.
type Result struct {
	Image    *image.Result
	Warnings []*diag.Diagnostic
}

// Compile runs the full pipeline over src and returns the assembled image,
// or the first fatal diagnostic encountered.
func Compile(src string, opts Options) (*Result, error) {
	tokens, err := lexer.LexAll([]byte(src))
	if err != nil {
		return nil, err
	}

	unit, err := parser.Parse(tokens, src)
	if err != nil {
		return nil, err
	}

	semaResult, err := sema.Check(unit, opts.RAMBase)
	if err != nil {
		return nil, err
	}

	img, err := image.Build(unit, semaResult.Table, semaResult.Warnings, opts.Origin)
	if err != nil {
		return nil, err
	}

	return &Result{Image: img, Warnings: semaResult.Warnings.Warnings()}, nil
}
