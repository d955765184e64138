package ir

import (
	"errors"
	"fmt"
	"go/token"
	"math/big"

	"bitgen/internal/diag"
	"bitgen/internal/literal"
)

// wordBits is the widest explicit width accepted for int, uint and uintptr.
// It keeps layouts portable to 32-bit platforms.
const wordBits = 32

type primitive struct {
	bits   int
	signed bool
	word   bool
	isBool bool
}

var primitives = map[string]primitive{
	"bool":    {bits: 1, isBool: true},
	"uint8":   {bits: 8},
	"byte":    {bits: 8},
	"uint16":  {bits: 16},
	"uint32":  {bits: 32},
	"uint64":  {bits: 64},
	"int8":    {bits: 8, signed: true},
	"int16":   {bits: 16, signed: true},
	"int32":   {bits: 32, signed: true},
	"int64":   {bits: 64, signed: true},
	"uint":    {bits: 64, word: true},
	"uintptr": {bits: 64, word: true},
	"int":     {bits: 64, signed: true, word: true},
}

// IsPrimitive reports whether name is a primitive field type.
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// ReprBits returns the width of an unsigned fixed-size integer type usable as
// a custom type representation.
func ReprBits(name string) (int, bool) {
	p, ok := primitives[name]
	if !ok || p.signed || p.word || p.isBool {
		return 0, false
	}
	return p.bits, true
}

// UnsignedOf returns the unsigned counterpart of a signed primitive.
func UnsignedOf(name string) string {
	switch name {
	case "int8":
		return "uint8"
	case "int16":
		return "uint16"
	case "int32":
		return "uint32"
	case "int64":
		return "uint64"
	case "int":
		return "uint"
	}
	return name
}

type builder struct {
	decl     *Declaration
	reporter *diag.Reporter
	errCount int
	seen     map[string]token.Position
}

// BuildBitfield validates decl and produces its field descriptors. Offsets
// are assigned afterwards by the layout pass. Every problem found is
// reported; the returned error only summarizes them.
func BuildBitfield(decl *Declaration, reporter *diag.Reporter) (*Bitfield, error) {
	if decl == nil {
		return nil, fmt.Errorf("ir: declaration is nil")
	}
	b := &builder{
		decl:     decl,
		reporter: reporter,
		seen:     make(map[string]token.Position),
	}
	bf := &Bitfield{
		Name:   decl.Policy.Name,
		Source: decl.Name,
		Policy: decl.Policy,
		Pos:    decl.Pos,
		Doc:    decl.Doc,
	}

	if decl.Policy.Backing.Bits() == 0 {
		b.report(diag.UnsupportedBackingType, decl.Pos, "", "backing type %d is not one of uint8, uint16, uint32, uint64, uint128", int(decl.Policy.Backing))
	}
	if !token.IsIdentifier(decl.Policy.Name) {
		b.report(diag.UnsupportedDeclaration, decl.Pos, "", "%q is not a valid type name", decl.Policy.Name)
	}

	for i := range decl.Fields {
		f := b.buildField(&decl.Fields[i])
		if f == nil {
			continue
		}
		if f.Ignored {
			bf.Ignored = append(bf.Ignored, f)
			continue
		}
		bf.Fields = append(bf.Fields, f)
	}

	if b.errCount > 0 {
		return nil, fmt.Errorf("bitfield %s: %d error(s)", decl.Policy.Name, b.errCount)
	}
	return bf, nil
}

func (b *builder) report(code diag.Code, pos token.Position, field, format string, args ...any) {
	b.errCount++
	b.reporter.Report(diag.Diagnostic{
		Code:     code,
		Position: pos,
		Type:     b.decl.Policy.Name,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (b *builder) buildField(fd *FieldDecl) *Field {
	f := &Field{
		Name:    fd.Name,
		Type:    fd.Type,
		Padding: IsPadding(fd.Name),
		Pos:     fd.Pos,
	}

	if fd.Ignore {
		f.Ignored = true
		if fd.Default != nil {
			f.Default = &DefaultValue{Expr: *fd.Default}
		}
		b.checkDuplicate(fd, f)
		return f
	}

	ok := b.classify(fd, f)
	ok = b.resolveWidth(fd, f) && ok
	ok = b.resolveAccess(fd, f) && ok
	if vis := fd.Visibility; vis != nil {
		v, valid := ParseVisibility(*vis)
		if !valid {
			b.report(diag.InvalidFieldTag, fd.Pos, fd.Name, "unknown visibility %q (want exported or unexported)", *vis)
			ok = false
		}
		f.Visibility = v
	}
	if ok && fd.Default != nil {
		ok = b.checkDefault(fd, f)
	}
	b.checkDuplicate(fd, f)
	if !ok {
		return nil
	}
	return f
}

func (b *builder) classify(fd *FieldDecl, f *Field) bool {
	if fd.Type.PkgPath == "" {
		if p, ok := primitives[fd.Type.Name]; ok {
			f.Kind = Primitive
			f.TypeBits = p.bits
			f.Signed = p.signed
			f.Bool = p.isBool
			return true
		}
	}
	if fd.Type.Unsupported != "" {
		b.report(diag.UnsupportedFieldType, fd.Pos, fd.Name, "type %s cannot be packed: %s", fd.Type, fd.Type.Unsupported)
		return false
	}
	if fd.Type.Repr == "" || fd.Type.FromBits == "" {
		b.report(diag.UnsupportedFieldType, fd.Pos, fd.Name,
			"type %s is not a supported field type: use bool, a sized integer, or a type with an IntoBits method and a %sFromBits function", fd.Type, fd.Type.Name)
		return false
	}
	bits, ok := ReprBits(fd.Type.Repr)
	if !ok {
		b.report(diag.UnsupportedFieldType, fd.Pos, fd.Name, "type %s is represented as %s, want uint8, uint16, uint32 or uint64", fd.Type, fd.Type.Repr)
		return false
	}
	f.Kind = Custom
	f.TypeBits = bits
	return true
}

func (b *builder) resolveWidth(fd *FieldDecl, f *Field) bool {
	if f.TypeBits == 0 {
		return false
	}
	p, isPrim := primitives[fd.Type.Name]
	isPrim = isPrim && f.Kind == Primitive

	if fd.Bits == nil {
		switch {
		case isPrim && p.word:
			b.report(diag.AmbiguousWidthFieldType, fd.Pos, fd.Name,
				"type %s has a platform-dependent width; specify bits explicitly (at most %d)", fd.Type, wordBits)
			return false
		case f.Kind == Custom:
			b.report(diag.MissingExplicitWidth, fd.Pos, fd.Name, "custom type %s requires an explicit bit width", fd.Type)
			return false
		}
		f.Width = f.TypeBits
		return true
	}

	bits := *fd.Bits
	if bits <= 0 {
		b.report(diag.ZeroWidthField, fd.Pos, fd.Name, "the field bits must be greater than 0")
		return false
	}
	limit := f.TypeBits
	if isPrim && p.word {
		limit = wordBits
	}
	if bits > limit {
		b.report(diag.FieldTooWideForDeclaredType, fd.Pos, fd.Name,
			"the field type %s (%d bits) is too small to hold the specified '%d bits'", fd.Type, limit, bits)
		return false
	}
	f.Width = bits
	return true
}

func (b *builder) resolveAccess(fd *FieldDecl, f *Field) bool {
	if f.Padding {
		f.Access = NoAccess
		if fd.Access != nil {
			b.report(diag.PaddingFieldWithExplicitAccess, fd.Pos, fd.Name, "padding fields can't have a specified access")
			return false
		}
		return true
	}
	if fd.Access == nil {
		f.Access = ReadWrite
		return true
	}
	a, ok := ParseAccess(*fd.Access)
	if !ok {
		b.report(diag.InvalidFieldTag, fd.Pos, fd.Name, "unknown access %q (want rw, ro, wo or none)", *fd.Access)
		return false
	}
	f.Access = a
	return true
}

func (b *builder) checkDefault(fd *FieldDecl, f *Field) bool {
	expr := *fd.Default
	n, err := literal.Parse(expr)
	switch {
	case errors.Is(err, literal.ErrFloat):
		b.report(diag.FloatDefaultValueUnsupported, fd.Pos, fd.Name, "floating point default value %q is not supported", expr)
		return false
	case err != nil:
		f.Default = &DefaultValue{Expr: expr}
		return true
	}
	f.Default = &DefaultValue{Expr: expr, Literal: &n}
	if f.Kind == Custom {
		return true
	}

	if !n.FitsBits(f.Width) {
		b.report(diag.DefaultValueExceedsFieldWidth, fd.Pos, fd.Name,
			"the default value '%s' is too large to fit into the specified '%d bits'", n, f.Width)
		return false
	}
	if !fitsType(n, f.TypeBits, f.Signed) {
		b.report(diag.DefaultValueExceedsTypeRange, fd.Pos, fd.Name,
			"the default value '%s' is too large to fit into the field type '%s'", n, fd.Type)
		return false
	}
	return true
}

func fitsType(n literal.Number, typeBits int, signed bool) bool {
	if !signed {
		return !n.Negative || n.Magnitude.Sign() == 0
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(typeBits-1))
	if n.Negative {
		return n.Magnitude.Cmp(limit) <= 0
	}
	return n.Magnitude.Cmp(limit) < 0
}

func (b *builder) checkDuplicate(fd *FieldDecl, f *Field) {
	if f.Padding {
		return
	}
	if first, dup := b.seen[fd.Name]; dup {
		b.report(diag.DuplicateFieldName, fd.Pos, fd.Name, "field %q is already declared at %s", fd.Name, first)
		return
	}
	b.seen[fd.Name] = fd.Pos
}

// DefaultBits returns the bit pattern of a literal default truncated to the
// field width. ok is false for defaults that are not literals.
func (f *Field) DefaultBits() (*big.Int, bool) {
	if f.Default == nil {
		return new(big.Int), true
	}
	if f.Default.Literal == nil {
		return nil, false
	}
	return f.Default.Literal.BitPattern(f.Width), true
}

