package ir

import (
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StorageField is the name of the generated struct field holding the bits.
const StorageField = "bits"

// Names derives every generated identifier for a bitfield type.
type Names struct {
	Type     string
	exported bool
}

// NamesFor returns the naming scheme for the generated type name.
func NamesFor(typeName string) Names {
	return Names{Type: typeName, exported: token.IsExported(typeName)}
}

// Exported reports whether the generated type is exported.
func (n Names) Exported() bool { return n.exported }

// Func names a package-level function such as NewStatus or newStatus.
func (n Names) Func(prefix, suffix string) string {
	return ident(n.exported, prefix, n.Type, suffix)
}

// FromBits names the constructor from raw bits. Custom field types are
// expected to follow the same <Type>FromBits shape.
func (n Names) FromBits() string { return n.Type + "FromBits" }

// Builder names the builder type.
func (n Names) Builder() string { return n.Type + "Builder" }

// Field names a per-field method. The verb is prepended, so Field(f, "Set")
// yields SetMode or setMode.
func (n Names) Field(f *Field, verb string) string {
	return ident(f.Exported(n.exported), verb, f.Name)
}

// Const names a field constant such as StatusModeBits.
func (n Names) Const(f *Field, suffix string) string {
	return ident(f.Exported(n.exported), n.Type, f.Name, suffix)
}

func ident(exported bool, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(upperFirst(p))
	}
	if exported {
		return upperFirst(b.String())
	}
	return lowerFirst(b.String())
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// IsPadding reports whether a field name denotes padding.
func IsPadding(name string) bool {
	return strings.HasPrefix(name, "_")
}
