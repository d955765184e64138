// Package bitfield holds the run-time support shared by code that bitgen
// generates. Generated accessors never allocate or fail; only the checked
// variants return the errors defined here.
package bitfield

import (
	"strconv"
	"strings"
)

// Kind categorizes a run-time bitfield error.
type Kind string

const (
	KindValueTooLarge    Kind = "value_too_large"
	KindIndexOutOfBounds Kind = "index_out_of_bounds"
	KindNoAccess         Kind = "no_access"
	KindInvalidLength    Kind = "invalid_length"
)

// Error is returned by checked setters and checked single-bit operations.
type Error struct {
	Kind  Kind
	Type  string
	Field string
	// Index is the bit index for single-bit operations, -1 otherwise.
	Index int
	// Width is the field width for value errors and the backing width for
	// bit errors.
	Width  int
	Detail string
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrValueTooLarge    = &Error{Kind: KindValueTooLarge, Index: -1}
	ErrIndexOutOfBounds = &Error{Kind: KindIndexOutOfBounds, Index: -1}
	ErrNoAccess         = &Error{Kind: KindNoAccess, Index: -1}
	ErrInvalidLength    = &Error{Kind: KindInvalidLength, Index: -1}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("bitfield")
	if e.Type != "" {
		b.WriteByte(' ')
		b.WriteString(e.Type)
		if e.Field != "" {
			b.WriteByte('.')
			b.WriteString(e.Field)
		}
	}
	b.WriteString(": ")
	switch e.Kind {
	case KindValueTooLarge:
		b.WriteString("value is too big to fit within the field bits")
	case KindIndexOutOfBounds:
		b.WriteString("index out of bounds")
	case KindNoAccess:
		b.WriteString("no access")
	case KindInvalidLength:
		b.WriteString("invalid encoded length")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Index >= 0 {
		b.WriteString(" at bit ")
		b.WriteString(strconv.Itoa(e.Index))
	}
	if e.Width > 0 {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(e.Width))
		b.WriteString(" bits)")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// ValueTooLarge is returned by CheckedSet and CheckedWith methods when the
// value does not fit in width bits.
func ValueTooLarge(typ, field string, width int) error {
	return &Error{Kind: KindValueTooLarge, Type: typ, Field: field, Index: -1, Width: width}
}

// IndexOutOfBounds is returned when a bit index is not below the backing
// width.
func IndexOutOfBounds(typ string, index uint, width int) error {
	return &Error{Kind: KindIndexOutOfBounds, Type: typ, Index: int(index), Width: width}
}

// NoAccess is returned when a bit belongs to a field that cannot be read or
// written through single-bit operations.
func NoAccess(typ string, index uint, write bool) error {
	detail := "can't read from a write-only field"
	if write {
		detail = "can't write to a non-writable or padding field"
	}
	return &Error{Kind: KindNoAccess, Type: typ, Index: int(index), Detail: detail}
}

// InvalidLength is returned by UnmarshalBinary when data does not hold
// exactly one backing value.
func InvalidLength(typ string, got, want int) error {
	return &Error{
		Kind:   KindInvalidLength,
		Type:   typ,
		Index:  -1,
		Width:  want * 8,
		Detail: "got " + strconv.Itoa(got) + " bytes, want " + strconv.Itoa(want),
	}
}
