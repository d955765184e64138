package ir

import "go/token"

// TypeRef names the declared element type of a field.
type TypeRef struct {
	// Name is the type name as written in the generated file, for example
	// "uint8", "Mode" or "[]string".
	Name string
	// PkgPath and PkgName are set for named types declared in another
	// package.
	PkgPath string
	PkgName string
	// Repr is the unsigned integer type exchanged through the custom type's
	// IntoBits method and FromBits function.
	Repr string
	// FromBits is the name of the custom type's constructor function.
	FromBits string
	// Unsupported explains why a non-primitive type cannot be packed.
	Unsupported string
}

// String renders the type as it appears in diagnostics.
func (t TypeRef) String() string {
	if t.PkgName != "" {
		return t.PkgName + "." + t.Name
	}
	return t.Name
}

// FieldDecl is one field as written in a declaration, before validation.
type FieldDecl struct {
	Name       string
	Type       TypeRef
	Bits       *int
	Default    *string
	Access     *string
	Visibility *string
	Ignore     bool
	Pos        token.Position
}

// Declaration is a bitfield as read by a frontend.
type Declaration struct {
	// Name is the declaration's own name, such as the annotated struct.
	Name   string
	Policy Policy
	Fields []FieldDecl
	Doc    string
	Pos    token.Position
}
