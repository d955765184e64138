package ir

import (
	"go/token"
	"strings"

	"lukechampine.com/uint128"

	"bitgen/internal/literal"
)

// BackingType is the fixed-width unsigned integer that stores a bitfield.
type BackingType int

const (
	Uint8 BackingType = iota
	Uint16
	Uint32
	Uint64
	Uint128
)

// Bits returns the width of the backing type.
func (b BackingType) Bits() int {
	switch b {
	case Uint8:
		return 8
	case Uint16:
		return 16
	case Uint32:
		return 32
	case Uint64:
		return 64
	case Uint128:
		return 128
	}
	return 0
}

// Bytes returns the width of the backing type in bytes.
func (b BackingType) Bytes() int {
	return b.Bits() / 8
}

// String returns the Go spelling of the backing type. Uint128 is stored as a
// lukechampine.com/uint128 value.
func (b BackingType) String() string {
	switch b {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Uint128:
		return "uint128"
	}
	return "invalid"
}

// ParseBackingType maps a type name to a BackingType.
func ParseBackingType(name string) (BackingType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "uint8", "byte":
		return Uint8, true
	case "uint16":
		return Uint16, true
	case "uint32":
		return Uint32, true
	case "uint64":
		return Uint64, true
	case "uint128", "uint128.uint128":
		return Uint128, true
	}
	return 0, false
}

// BitOrder decides which end of the backing store the first declared field
// occupies.
type BitOrder int

const (
	LsbFirst BitOrder = iota
	MsbFirst
)

func (o BitOrder) String() string {
	if o == MsbFirst {
		return "msb"
	}
	return "lsb"
}

// Endian selects whether a conversion swaps the bytes of the backing value.
// Big performs no swap.
type Endian int

const (
	Big Endian = iota
	Little
)

func (e Endian) String() string {
	if e == Little {
		return "little"
	}
	return "big"
}

// Access is the set of generated operations a field supports.
type Access int

const (
	ReadWrite Access = iota
	ReadOnly
	WriteOnly
	NoAccess
)

// CanRead reports whether getters are generated.
func (a Access) CanRead() bool { return a == ReadWrite || a == ReadOnly }

// CanWrite reports whether setters are generated.
func (a Access) CanWrite() bool { return a == ReadWrite || a == WriteOnly }

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "ro"
	case WriteOnly:
		return "wo"
	case NoAccess:
		return "none"
	}
	return "rw"
}

// ParseAccess accepts the short and long spellings of an access mode.
func ParseAccess(s string) (Access, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rw", "readwrite", "read_write":
		return ReadWrite, true
	case "ro", "readonly", "read_only":
		return ReadOnly, true
	case "wo", "writeonly", "write_only":
		return WriteOnly, true
	case "none", "no", "noaccess":
		return NoAccess, true
	}
	return 0, false
}

// FieldKind separates primitive fields from user types converted through
// the FromBits/IntoBits contract.
type FieldKind int

const (
	Primitive FieldKind = iota
	Custom
)

func (k FieldKind) String() string {
	if k == Custom {
		return "custom"
	}
	return "primitive"
}

// Visibility controls whether generated per-field identifiers are exported.
type Visibility int

const (
	Inherited Visibility = iota
	Exported
	Unexported
)

// ParseVisibility accepts exported/pub and unexported/priv.
func ParseVisibility(s string) (Visibility, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exported", "pub", "public":
		return Exported, true
	case "unexported", "priv", "private":
		return Unexported, true
	case "", "inherited":
		return Inherited, true
	}
	return 0, false
}

// Features toggles the optional operation families.
type Features struct {
	New         bool
	IntoBits    bool
	FromBits    bool
	Conversions bool
	Default     bool
	Debug       bool
	Builder     bool
	BitOps      bool
	SetBits     bool
	ClearBits   bool
	Neg         bool
}

// DefaultFeatures returns every family enabled except single-bit and
// inverted accessors.
func DefaultFeatures() Features {
	return Features{
		New:         true,
		IntoBits:    true,
		FromBits:    true,
		Conversions: true,
		Default:     true,
		Debug:       true,
		Builder:     true,
		SetBits:     true,
		ClearBits:   true,
	}
}

// Policy is the parsed bitfield-level configuration.
type Policy struct {
	// Name is the generated Go type name.
	Name       string
	Backing    BackingType
	Order      BitOrder
	FromEndian Endian
	IntoEndian Endian
	Features   Features
}

// DefaultPolicy returns the policy used when no key overrides a setting.
func DefaultPolicy(name string, backing BackingType) Policy {
	return Policy{
		Name:     name,
		Backing:  backing,
		Features: DefaultFeatures(),
	}
}

// DefaultValue is a field default. Literal is nil for expressions that are
// not plain integer literals; those are emitted verbatim.
type DefaultValue struct {
	Expr    string
	Literal *literal.Number
}

// Field is the resolved descriptor of one declared field.
type Field struct {
	Name string
	Type TypeRef
	Kind FieldKind
	// Width is the number of bits the field occupies. Zero for ignored fields.
	Width  int
	Offset int
	// TypeBits is the natural width of the element type, or of the custom
	// type's integer representation.
	TypeBits   int
	Signed     bool
	Bool       bool
	Padding    bool
	Ignored    bool
	Access     Access
	Default    *DefaultValue
	Visibility Visibility
	Pos        token.Position
}

// SignExtend reports whether reads must sign-extend from Width bits.
func (f *Field) SignExtend() bool {
	return f.Signed && f.Width < f.TypeBits
}

// Mask returns the unshifted field mask.
func (f *Field) Mask() uint128.Uint128 {
	return MaskOf(f.Width)
}

// ShiftedMask returns the field mask moved to the field offset.
func (f *Field) ShiftedMask() uint128.Uint128 {
	return f.Mask().Lsh(uint(f.Offset))
}

// Exported resolves the field visibility against the enclosing type.
func (f *Field) Exported(typeExported bool) bool {
	switch f.Visibility {
	case Exported:
		return true
	case Unexported:
		return false
	}
	return typeExported
}

// HasConstants reports whether Bits/Offset constants are generated.
func (f *Field) HasConstants() bool {
	return !f.Padding && !f.Ignored && f.Access != NoAccess
}

// MaskOf returns a mask with the low width bits set.
func MaskOf(width int) uint128.Uint128 {
	if width <= 0 {
		return uint128.Zero
	}
	if width >= 128 {
		return uint128.Max
	}
	return uint128.From64(1).Lsh(uint(width)).Sub64(1)
}

// Bitfield is a fully described layout. Fields holds the packed fields in
// declaration order; ignored fields are kept separately.
type Bitfield struct {
	Name string
	// Source is the name of the declaration the layout came from.
	Source  string
	Policy  Policy
	Fields  []*Field
	Ignored []*Field
	Pos     token.Position
	Doc     string
	// Resolved is set once offsets have been assigned and the budget checked.
	Resolved bool
}

// Field returns the packed field with the given name.
func (b *Bitfield) Field(name string) *Field {
	for _, f := range b.Fields {
		if f.Name == name && !f.Padding {
			return f
		}
	}
	return nil
}

// TotalWidth sums the widths of the packed fields.
func (b *Bitfield) TotalWidth() int {
	total := 0
	for _, f := range b.Fields {
		total += f.Width
	}
	return total
}
