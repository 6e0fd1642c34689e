// Command actz80 is the thin CLI wrapper around internal/compiler: read a
// source file, run the pipeline, write the binary image and (optionally)
// a listing file.
//
// Grounded on the teacher's root main.go: stdlib flag, fmt.Fprintf to
// stderr for errors and verbose progress, os.Exit with a distinct code
// for usage errors versus compile failures.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"actionz80/internal/compiler"
	"actionz80/internal/diag"
	"actionz80/internal/image"
	"actionz80/internal/listing"
	"actionz80/internal/sema"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("actz80", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var input, inputShort string
	var output, outputShort string
	var org string
	var listingFlag, listingShort bool
	var verbose, verboseShort bool

	fs.StringVar(&input, "input", "", "path to Action! source (required)")
	fs.StringVar(&inputShort, "i", "", "shorthand for -input")
	fs.StringVar(&output, "output", "", "output binary path (default: input path with .bin suffix)")
	fs.StringVar(&outputShort, "o", "", "shorthand for -output")
	fs.StringVar(&org, "org", fmt.Sprintf("0x%X", image.DefaultOrigin), "load address, decimal or 0x-prefixed hex")
	fs.BoolVar(&listingFlag, "listing", false, "write a <output-stem>.lst listing file")
	fs.BoolVar(&listingShort, "l", false, "shorthand for -listing")
	fs.BoolVar(&verbose, "verbose", false, "emit progress diagnostics to stderr")
	fs.BoolVar(&verboseShort, "v", false, "shorthand for -verbose")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := firstNonEmpty(input, inputShort)
	if in == "" {
		fmt.Fprintln(os.Stderr, "actz80: -i/--input is required")
		fs.Usage()
		return 2
	}
	out := firstNonEmpty(output, outputShort)
	if out == "" {
		out = defaultOutputPath(in)
	}
	wantListing := listingFlag || listingShort
	isVerbose := verbose || verboseShort

	origin, err := parseAddress(org)
	if err != nil {
		fmt.Fprintf(os.Stderr, "actz80: --org: %v\n", err)
		return 2
	}

	src, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "actz80: failed to read %q: %v\n", in, err)
		return 1
	}

	if isVerbose {
		fmt.Fprintf(os.Stderr, "actz80: compiling %s (org=0x%04X)\n", in, origin)
	}

	result, err := compiler.Compile(string(src), compiler.Options{
		Origin:  origin,
		RAMBase: sema.DefaultRAMBase,
	})
	if err != nil {
		reportFatal(err)
		return 1
	}

	if isVerbose {
		fmt.Fprintf(os.Stderr, "actz80: assembled %d bytes\n", len(result.Image.Bytes))
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "actz80: %s\n", w.Error())
	}

	if err := os.WriteFile(out, result.Image.Bytes, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "actz80: failed to write %q: %v\n", out, err)
		return 1
	}
	if isVerbose {
		fmt.Fprintf(os.Stderr, "actz80: wrote %s\n", out)
	}

	if wantListing {
		lstPath := listingPath(out)
		text := listing.Write(result.Image.Listing, string(src))
		if err := os.WriteFile(lstPath, []byte(text), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "actz80: failed to write %q: %v\n", lstPath, err)
			return 1
		}
		if isVerbose {
			fmt.Fprintf(os.Stderr, "actz80: wrote %s\n", lstPath)
		}
	}

	return 0
}

func reportFatal(err error) {
	if d, ok := err.(*diag.Diagnostic); ok {
		fmt.Fprintf(os.Stderr, "actz80: %s\n", d.Error())
		return
	}
	fmt.Fprintf(os.Stderr, "actz80: %v\n", err)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".bin"
	}
	return strings.TrimSuffix(inPath, ext) + ".bin"
}

func listingPath(outPath string) string {
	ext := filepath.Ext(outPath)
	stem := strings.TrimSuffix(outPath, ext)
	return stem + ".lst"
}

func parseAddress(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 32)
		return int(v), err
	}
	v, err := strconv.ParseInt(s, 10, 32)
	return int(v), err
}
