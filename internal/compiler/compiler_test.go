// Grounded on the teacher's e2e_lib_test.go: compile a source string, run
// the assembled image on a small in-process machine, assert on captured
// output. internal/host stands in for the teacher's pkg/cpu VM.
package compiler_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"actionz80/internal/compiler"
	"actionz80/internal/diag"
	"actionz80/internal/host"
	"actionz80/internal/image"
	"actionz80/internal/sema"
)

func runProgram(t *testing.T, src string) string {
	t.Helper()
	result, err := compiler.Compile(src, compiler.Options{
		Origin:  image.DefaultOrigin,
		RAMBase: sema.DefaultRAMBase,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	cpu := host.New(result.Image.Bytes, image.DefaultOrigin)
	if err := cpu.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return string(cpu.Out)
}

func compileErr(t *testing.T, src string) error {
	t.Helper()
	_, err := compiler.Compile(src, compiler.Options{
		Origin:  image.DefaultOrigin,
		RAMBase: sema.DefaultRAMBase,
	})
	if err == nil {
		t.Fatalf("expected a compile error, got none")
	}
	return err
}

func TestPrintAlphabet(t *testing.T) {
	src := `PROC main()
CHAR c
FOR c=65 TO 90 DO
PutD(c)
OD
PrintE()
RETURN
`
	got := runProgram(t, src)
	want := "ABCDEFGHIJKLMNOPQRSTUVWXYZ\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCountingOneToTen(t *testing.T) {
	src := `PROC main()
BYTE i
FOR i=1 TO 10 DO
PrintB(i)
PrintE()
OD
RETURN
`
	got := runProgram(t, src)
	var want strings.Builder
	for i := 1; i <= 10; i++ {
		want.WriteString(strconv.Itoa(i))
		want.WriteString("\r\n")
	}
	if got != want.String() {
		t.Fatalf("got %q, want %q", got, want.String())
	}
}

func TestFibonacciBelow20Terms(t *testing.T) {
	src := `PROC main()
CARD a, b, t, i
a=0
b=1
FOR i=1 TO 20 DO
PrintC(a)
PrintE()
t=a+b
a=b
b=t
OD
RETURN
`
	got := runProgram(t, src)
	terms := []int{0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610, 987, 1597, 2584, 4181}
	var want strings.Builder
	for _, n := range terms {
		want.WriteString(strconv.Itoa(n))
		want.WriteString("\r\n")
	}
	if got != want.String() {
		t.Fatalf("got %q, want %q", got, want.String())
	}
}

func TestArraySum(t *testing.T) {
	src := `PROC main()
BYTE ARRAY a(4)
CARD s
BYTE i
a(0)=10
a(1)=20
a(2)=30
a(3)=40
s=0
FOR i=0 TO 3 DO
s=s+a(i)
OD
PrintC(s)
PrintE()
RETURN
`
	got := runProgram(t, src)
	want := "100\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIfElseifElse(t *testing.T) {
	body := `PROC main()
BYTE x
x=%d
IF x<5 THEN
PrintB(0)
ELSEIF x<10 THEN
PrintB(5)
ELSE
PrintB(15)
FI
PrintE()
RETURN
`
	cases := []struct {
		x    int
		want string
	}{
		{3, "0\r\n"},
		{7, "5\r\n"},
		{15, "15\r\n"},
	}
	for _, c := range cases {
		src := fmt.Sprintf(body, c.x)
		got := runProgram(t, src)
		if got != c.want {
			t.Fatalf("x=%d: got %q, want %q", c.x, got, c.want)
		}
	}
}

func TestUndefinedIdentifierIsResolutionError(t *testing.T) {
	src := `PROC main()
BYTE x
x=undeclared
RETURN
`
	err := compileErr(t, src)
	d, ok := err.(*diag.Diagnostic)
	if !ok {
		t.Fatalf("expected *diag.Diagnostic, got %T (%v)", err, err)
	}
	if d.Kind != diag.KindResolution {
		t.Fatalf("expected KindResolution, got %v", d.Kind)
	}
	if d.Line != 3 {
		t.Fatalf("expected error on line 3, got %d", d.Line)
	}
}

func TestByteLiteralBoundary(t *testing.T) {
	if _, err := compiler.Compile(`PROC main()
BYTE x
x=255
RETURN
`, compiler.Options{Origin: image.DefaultOrigin, RAMBase: sema.DefaultRAMBase}); err != nil {
		t.Fatalf("255 should fit in a BYTE: %v", err)
	}

	err := compileErr(t, `PROC main()
BYTE x
x=256
RETURN
`)
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Kind != diag.KindType {
		t.Fatalf("expected a KindType diagnostic, got %v", err)
	}
}

func TestForLoopNegativeStepCountsDownInclusive(t *testing.T) {
	src := `PROC main()
INT i
FOR i=5 TO 1 STEP -1 DO
PrintB(i)
PrintE()
OD
RETURN
`
	got := runProgram(t, src)
	want := "5\r\n4\r\n3\r\n2\r\n1\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDivisionByLiteralZeroRejected(t *testing.T) {
	err := compileErr(t, `PROC main()
BYTE x
x=5/0
RETURN
`)
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Kind != diag.KindType {
		t.Fatalf("expected a KindType diagnostic, got %v", err)
	}
}

func TestOversizedImageRejectedAsLayoutError(t *testing.T) {
	var s strings.Builder
	s.WriteString(`PROC main()
Print("`)
	for i := 0; i < 64; i++ {
		s.WriteString("0123456789")
	}
	s.WriteString(`")
RETURN
`)
	_, err := compiler.Compile(s.String(), compiler.Options{
		Origin:  0xFFF0,
		RAMBase: sema.DefaultRAMBase,
	})
	if err == nil {
		t.Fatalf("expected a layout error for an image that overruns addressable memory")
	}
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Kind != diag.KindLayout {
		t.Fatalf("expected a KindLayout diagnostic, got %v", err)
	}
}
