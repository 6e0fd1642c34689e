// Package types implements the Type tagged union of the language: the
// scalar widths (Byte, Card, Int, Char), fixed-length arrays of them,
// pointers, and Void for procedures with no return value.
//
// Grounded on pkg/compiler/symtable.go's TypeInfo (array/struct/byte/
// pointer/unsigned flags) generalized into a closed tagged union, since
// this language has no struct types (spec Non-goal).
package types

import "fmt"

// Kind is the tag of a Type.
type Kind int

const (
	Void Kind = iota
	Byte
	Card
	Int
	Char
	ByteArray
	CardArray
	Pointer
)

// Type is a fully-resolved type assigned to every expression and every
// declared storage location.
type Type struct {
	Kind  Kind
	Len   int   // element count, meaningful for ByteArray/CardArray
	Inner *Type // pointee type, meaningful for Pointer
}

var (
	TByte = Type{Kind: Byte}
	TCard = Type{Kind: Card}
	TInt  = Type{Kind: Int}
	TChar = Type{Kind: Char}
	TVoid = Type{Kind: Void}
)

// NewByteArray builds a fixed-length BYTE ARRAY type.
func NewByteArray(n int) Type { return Type{Kind: ByteArray, Len: n} }

// NewCardArray builds a fixed-length CARD ARRAY type.
func NewCardArray(n int) Type { return Type{Kind: CardArray, Len: n} }

// NewPointer builds a Pointer(inner) type.
func NewPointer(inner Type) Type { return Type{Kind: Pointer, Inner: &inner} }

// Size returns the storage width in bytes.
func (t Type) Size() int {
	switch t.Kind {
	case Byte, Char:
		return 1
	case Card, Int, Pointer:
		return 2
	case ByteArray:
		return t.Len
	case CardArray:
		return t.Len * 2
	case Void:
		return 0
	default:
		return 0
	}
}

// ElemSize returns the size of one element of an array type.
func (t Type) ElemSize() int {
	switch t.Kind {
	case ByteArray:
		return 1
	case CardArray:
		return 2
	default:
		return 0
	}
}

// ElemType returns the scalar type produced by indexing an array type.
func (t Type) ElemType() Type {
	switch t.Kind {
	case ByteArray:
		return TByte
	case CardArray:
		return TCard
	default:
		return TVoid
	}
}

// IsWord reports whether the type occupies 16 bits and lands in HL/DE/BC
// register-pair operations rather than the 8-bit A register.
func (t Type) IsWord() bool {
	return t.Kind == Card || t.Kind == Int || t.Kind == Pointer
}

// IsArray reports whether t is one of the fixed-length array kinds.
func (t Type) IsArray() bool {
	return t.Kind == ByteArray || t.Kind == CardArray
}

// IsNumeric reports whether t participates in arithmetic (scalars only).
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case Byte, Card, Int, Char:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "VOID"
	case Byte:
		return "BYTE"
	case Card:
		return "CARD"
	case Int:
		return "INT"
	case Char:
		return "CHAR"
	case ByteArray:
		return fmt.Sprintf("BYTE ARRAY(%d)", t.Len)
	case CardArray:
		return fmt.Sprintf("CARD ARRAY(%d)", t.Len)
	case Pointer:
		return fmt.Sprintf("POINTER(%s)", t.Inner)
	default:
		return "?"
	}
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case ByteArray, CardArray:
		return t.Len == o.Len
	case Pointer:
		return t.Inner.Equal(*o.Inner)
	default:
		return true
	}
}

// AssignableFrom reports whether a value of type from may be assigned (or
// implicitly converted) into a storage location of type t, per the
// widening/narrowing rules: Byte<->Char interconvert freely, Byte widens
// losslessly to Card/Int, Card/Int narrow to Byte by truncation (allowed,
// surfaced as a warning by the caller), and word types interconvert with
// each other freely (Card<->Int<->Pointer all pass through registers the
// same way, regardless of a Pointer's pointee: Action! pointers are plain
// 16-bit addresses, not a distinct static type).
func (t Type) AssignableFrom(from Type) (ok bool, narrows bool) {
	if t.Equal(from) {
		return true, false
	}
	switch {
	case (t.Kind == Byte || t.Kind == Char) && (from.Kind == Byte || from.Kind == Char):
		return true, false
	case t.IsWord() && (from.Kind == Byte || from.Kind == Char):
		return true, false
	case (t.Kind == Byte || t.Kind == Char) && from.IsWord():
		return true, true
	case t.IsWord() && from.IsWord():
		return true, false
	default:
		return false, false
	}
}

// WidenBinary computes the result type of a binary arithmetic or bitwise
// operation between two operand types, per the widening rule: if either
// operand is 16-bit the result is 16-bit; INT is preferred only when both
// operands are INT, otherwise CARD.
func WidenBinary(l, r Type) Type {
	lw, rw := l.IsWord(), r.IsWord()
	if !lw && !rw {
		return TByte
	}
	if l.Kind == Int && r.Kind == Int {
		return TInt
	}
	return TCard
}
