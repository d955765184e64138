package ir

import "lukechampine.com/uint128"

// OpInfo is the identity every generated operation carries.
type OpInfo struct {
	// Name is the generated Go identifier.
	Name     string
	Exported bool
	Doc      string
}

// Info returns the operation identity.
func (i OpInfo) Info() OpInfo { return i }

// Operation is implemented by every node of an operation set.
type Operation interface {
	isOperation()
	Info() OpInfo
}

// Arith is the mask/shift arithmetic of a single field access.
type Arith struct {
	Offset int
	Width  int
	// Mask has the low Width bits set. ClearMask is the complement of the
	// mask shifted to Offset, limited to the backing width.
	Mask      uint128.Uint128
	ClearMask uint128.Uint128
	// TypeBits is the width of the value type the field is exchanged as.
	TypeBits int
	// SignShift is non-zero when reads sign-extend: TypeBits - Width.
	SignShift int
}

// ArithFor computes the arithmetic for f inside a backing of backingBits.
func ArithFor(f *Field, backingBits int) Arith {
	a := Arith{
		Offset:    f.Offset,
		Width:     f.Width,
		Mask:      f.Mask(),
		ClearMask: MaskOf(backingBits).Xor(f.ShiftedMask()),
		TypeBits:  f.TypeBits,
	}
	if f.SignExtend() {
		a.SignShift = f.TypeBits - f.Width
	}
	return a
}

// NeedsCheck reports whether a checked setter can reject a value, that is
// whether the field is narrower than the type it is exchanged as.
func (a Arith) NeedsCheck() bool {
	return a.Width < a.TypeBits
}

// ConstKind distinguishes the two generated field constants.
type ConstKind int

const (
	ConstBits ConstKind = iota
	ConstOffset
)

// FieldConstant is a <Type><Field>Bits or <Type><Field>Offset constant.
type FieldConstant struct {
	OpInfo
	Field *Field
	Kind  ConstKind
	Value int
}

func (*FieldConstant) isOperation() {}

// Getter reads one field. Inverted getters complement the bits before
// masking.
type Getter struct {
	OpInfo
	Field    *Field
	Arith    Arith
	Inverted bool
}

func (*Getter) isOperation() {}

// Setter writes one field. Checked setters reject values whose bit pattern
// does not fit and leave the storage untouched.
type Setter struct {
	OpInfo
	Field   *Field
	Arith   Arith
	Checked bool
}

func (*Setter) isOperation() {}

// Source selects where a bulk step takes a field value from.
type Source int

const (
	FromInput Source = iota
	FromDefault
	FromZero
)

func (s Source) String() string {
	switch s {
	case FromDefault:
		return "default"
	case FromZero:
		return "zero"
	}
	return "input"
}

// Step assigns one field during a bulk operation. Fields not listed in a
// bulk operation keep their previous bits.
type Step struct {
	Field  *Field
	Arith  Arith
	Source Source
}

// CtorKind enumerates the operations that build a whole value.
type CtorKind int

const (
	CtorNew CtorKind = iota
	CtorNewWithoutDefaults
	CtorFromBits
	CtorFromBitsWithDefaults
	CtorReset
	CtorUnmarshal
)

func (k CtorKind) String() string {
	switch k {
	case CtorNewWithoutDefaults:
		return "new-without-defaults"
	case CtorFromBits:
		return "from-bits"
	case CtorFromBitsWithDefaults:
		return "from-bits-with-defaults"
	case CtorReset:
		return "reset"
	case CtorUnmarshal:
		return "unmarshal"
	}
	return "new"
}

// TakesInput reports whether the constructor consumes a raw value.
func (k CtorKind) TakesInput() bool {
	return k == CtorFromBits || k == CtorFromBitsWithDefaults || k == CtorUnmarshal
}

// Constructor starts from zeroed storage and applies Steps in order. Swap
// byte-swaps the input first.
type Constructor struct {
	OpInfo
	Kind  CtorKind
	Swap  bool
	Steps []Step
}

func (*Constructor) isOperation() {}

// Encode produces the raw value, byte-swapped when Swap is set. Binary
// encodes as a big-endian byte slice instead of an integer.
type Encode struct {
	OpInfo
	Swap   bool
	Binary bool
}

func (*Encode) isOperation() {}

// BulkKind enumerates the partial bulk updates.
type BulkKind int

const (
	BulkSetBits BulkKind = iota
	BulkSetBitsWithDefaults
	BulkClearBits
	BulkClearBitsWithDefaults
)

func (k BulkKind) String() string {
	switch k {
	case BulkSetBitsWithDefaults:
		return "set-bits-with-defaults"
	case BulkClearBits:
		return "clear-bits"
	case BulkClearBitsWithDefaults:
		return "clear-bits-with-defaults"
	}
	return "set-bits"
}

// TakesInput reports whether the update consumes a raw value.
func (k BulkKind) TakesInput() bool {
	return k == BulkSetBits || k == BulkSetBitsWithDefaults
}

// BulkUpdate rewrites the fields named by Steps in place.
type BulkUpdate struct {
	OpInfo
	Kind  BulkKind
	Steps []Step
}

func (*BulkUpdate) isOperation() {}

// BitRange is an inclusive range of bit indices guarded by a single-bit
// operation.
type BitRange struct {
	Lo, Hi int
	Field  *Field
}

// BitOp reads or writes a single bit by index. Indices at or above Width are
// out of bounds; indices inside Guards are refused.
type BitOp struct {
	OpInfo
	Write   bool
	Checked bool
	Width   int
	Guards  []BitRange
}

func (*BitOp) isOperation() {}

// BuilderNew creates a builder seeded like the matching constructor.
type BuilderNew struct {
	OpInfo
	WithDefaults bool
	Steps        []Step
}

func (*BuilderNew) isOperation() {}

// BuilderWith sets one field on a builder.
type BuilderWith struct {
	OpInfo
	Field   *Field
	Arith   Arith
	Checked bool
}

func (*BuilderWith) isOperation() {}

// BuilderBuild returns the built value.
type BuilderBuild struct {
	OpInfo
}

func (*BuilderBuild) isOperation() {}

// ToBuilder converts a value back into a builder.
type ToBuilder struct {
	OpInfo
}

func (*ToBuilder) isOperation() {}

// Debug formats every packed field, most significant first.
type Debug struct {
	OpInfo
	Fields []*Field
	Arith  []Arith
}

func (*Debug) isOperation() {}

// OperationSet is the complete lowered form of one bitfield.
type OperationSet struct {
	Bitfield    *Bitfield
	Names       Names
	BuilderName string
	Ops         []Operation
}

// Find returns the operation with the given generated name.
func (s *OperationSet) Find(name string) Operation {
	for _, op := range s.Ops {
		if op.Info().Name == name {
			return op
		}
	}
	return nil
}

// PackageIdents lists the package-level identifiers the set declares: the
// type, the builder type, constructors and field constants.
func (s *OperationSet) PackageIdents() []string {
	idents := []string{s.Names.Type}
	builder := false
	for _, op := range s.Ops {
		switch o := op.(type) {
		case *FieldConstant:
			idents = append(idents, o.Name)
		case *Constructor:
			if o.Kind != CtorReset && o.Kind != CtorUnmarshal {
				idents = append(idents, o.Name)
			}
		case *BuilderNew:
			builder = true
			idents = append(idents, o.Name)
		}
	}
	if builder {
		idents = append(idents, s.BuilderName)
	}
	return idents
}
