package backend

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
	"lukechampine.com/uint128"

	"bitgen/internal/ir"
)

// store is the selector path to a generated value, such as s or b.s.
type store []string

func (p store) value() *jen.Statement {
	st := jen.Id(p[0])
	for _, sel := range p[1:] {
		st = st.Dot(sel)
	}
	return st
}

func (p store) bits() *jen.Statement { return p.value().Dot(ir.StorageField) }

func (p store) field(name string) *jen.Statement { return p.value().Dot(name) }

var (
	self    = store{"s"}
	builder = store{"b", "s"}
)

type emitter struct {
	f       *jen.File
	set     *ir.OperationSet
	bf      *ir.Bitfield
	typ     string
	backing ir.BackingType
	wide    bool
	runtime string

	builderDeclared bool
}

func newEmitter(f *jen.File, set *ir.OperationSet, runtime string) *emitter {
	return &emitter{
		f:       f,
		set:     set,
		bf:      set.Bitfield,
		typ:     set.Names.Type,
		backing: set.Bitfield.Policy.Backing,
		wide:    set.Bitfield.Policy.Backing == ir.Uint128,
		runtime: runtime,
	}
}

func (e *emitter) emit() error {
	e.typeDecl()
	e.constants()
	for _, op := range e.set.Ops {
		switch op := op.(type) {
		case *ir.FieldConstant:
			// Emitted as one block by constants.
		case *ir.Getter:
			e.getter(op)
		case *ir.Setter:
			e.setter(op)
		case *ir.Constructor:
			e.constructor(op)
		case *ir.Encode:
			e.encode(op)
		case *ir.BulkUpdate:
			e.bulk(op)
		case *ir.BitOp:
			e.bitOp(op)
		case *ir.BuilderNew:
			e.builderNew(op)
		case *ir.BuilderWith:
			e.builderWith(op)
		case *ir.BuilderBuild:
			e.decl(op.Doc, jen.Func().Params(jen.Id("b").Id(e.set.BuilderName)).Id(op.Name).Params().Id(e.typ).Block(
				jen.Return(builder.value()),
			))
		case *ir.ToBuilder:
			e.decl(op.Doc, jen.Func().Params(jen.Id("s").Id(e.typ)).Id(op.Name).Params().Id(e.set.BuilderName).Block(
				jen.Return(jen.Id(e.set.BuilderName).Values(jen.Dict{jen.Id("s"): jen.Id("s")})),
			))
		case *ir.Debug:
			e.debug(op)
		default:
			return fmt.Errorf("unexpected operation %T", op)
		}
	}
	return nil
}

func (e *emitter) decl(doc string, code jen.Code) {
	if doc != "" {
		for _, line := range strings.Split(doc, "\n") {
			e.f.Comment(line)
		}
	}
	e.f.Add(code)
	e.f.Line()
}

func (e *emitter) typeDecl() {
	doc := e.bf.Doc
	if doc == "" {
		doc = fmt.Sprintf("%s is a packed bitfield stored in a %s.", e.typ, e.backing)
	}
	fields := []jen.Code{jen.Id(ir.StorageField).Add(e.backingType())}
	for _, f := range e.bf.Ignored {
		fields = append(fields, jen.Id(f.Name).Add(e.fieldType(f)))
	}
	e.decl(doc, jen.Type().Id(e.typ).Struct(fields...))
}

func (e *emitter) constants() {
	var defs []jen.Code
	for _, op := range e.set.Ops {
		c, ok := op.(*ir.FieldConstant)
		if !ok {
			continue
		}
		defs = append(defs, jen.Id(c.Name).Op("=").Lit(c.Value))
	}
	if len(defs) == 0 {
		return
	}
	e.decl("", jen.Const().Defs(defs...))
}

func (e *emitter) backingType() *jen.Statement {
	if e.wide {
		return jen.Qual(uint128Path, "Uint128")
	}
	return jen.Id(e.backing.String())
}

// rawType is the type field values are extracted as.
func (e *emitter) rawType() string {
	if e.wide {
		return "uint64"
	}
	return e.backing.String()
}

func (e *emitter) fieldType(f *ir.Field) *jen.Statement {
	if f.Type.PkgPath != "" {
		return jen.Qual(f.Type.PkgPath, f.Type.Name)
	}
	return jen.Id(f.Type.Name)
}

func (e *emitter) fromBits(f *ir.Field) *jen.Statement {
	if f.Type.PkgPath != "" {
		return jen.Qual(f.Type.PkgPath, f.Type.FromBits)
	}
	return jen.Id(f.Type.FromBits)
}

func hex(v uint64) *jen.Statement {
	return jen.Id(fmt.Sprintf("%#x", v))
}

// num renders a backing-width constant.
func (e *emitter) num(v uint128.Uint128) *jen.Statement {
	if !e.wide {
		return hex(v.Lo)
	}
	if v.Hi == 0 {
		return jen.Qual(uint128Path, "From64").Call(hex(v.Lo))
	}
	return jen.Qual(uint128Path, "New").Call(hex(v.Lo), hex(v.Hi))
}

func shifted(a ir.Arith) uint128.Uint128 {
	return a.Mask.Lsh(uint(a.Offset))
}

// extract reads the raw bits of a field as rawType.
func (e *emitter) extract(p store, a ir.Arith, inverted bool) *jen.Statement {
	x := p.bits()
	if e.wide {
		if a.Offset > 0 {
			x = x.Dot("Rsh").Call(jen.Lit(a.Offset))
		}
		x = x.Dot("Lo")
		if inverted {
			x = jen.Op("^").Add(x)
		}
		if a.Width < 64 {
			x = x.Op("&").Add(hex(a.Mask.Lo))
		}
		return x
	}
	if a.Offset > 0 {
		x = jen.Parens(x.Op(">>").Lit(a.Offset))
	}
	if inverted {
		x = jen.Op("^").Add(x)
	}
	if a.Width < e.backing.Bits() {
		x = x.Op("&").Add(hex(a.Mask.Lo))
	}
	return x
}

// read converts raw field bits to the field type.
func (e *emitter) read(f *ir.Field, a ir.Arith, raw *jen.Statement) *jen.Statement {
	switch {
	case f.Bool:
		return raw.Op("!=").Lit(0)
	case f.Kind == ir.Custom:
		return e.fromBits(f).Call(jen.Id(f.Type.Repr).Call(raw))
	case a.SignShift > 0:
		shift := 64 - a.Width
		return jen.Id(f.Type.Name).Call(
			jen.Id("int64").Call(jen.Id("uint64").Call(raw).Op("<<").Lit(shift)).Op(">>").Lit(shift),
		)
	}
	return jen.Id(f.Type.Name).Call(raw)
}

// pattern converts a field value to its bit pattern as rawType.
func (e *emitter) pattern(f *ir.Field, v *jen.Statement) *jen.Statement {
	target := e.rawType()
	if f.Kind == ir.Custom {
		v = v.Dot("IntoBits").Call()
		if f.Type.Repr == target {
			return v
		}
		return jen.Id(target).Call(v)
	}
	if f.Type.Name == target {
		return v
	}
	return jen.Id(target).Call(v)
}

// write stores v into a field, truncating it to the field width.
func (e *emitter) write(p store, f *ir.Field, a ir.Arith, v *jen.Statement) jen.Code {
	if f.Bool {
		if e.wide {
			return jen.If(v).Block(
				p.bits().Op("=").Add(p.bits()).Dot("Or").Call(e.num(shifted(a))),
			).Else().Block(
				p.bits().Op("=").Add(p.bits()).Dot("And").Call(e.num(a.ClearMask)),
			)
		}
		return jen.If(v).Block(
			p.bits().Op("|=").Add(e.num(shifted(a))),
		).Else().Block(
			p.bits().Op("&^=").Add(e.num(shifted(a))),
		)
	}

	pat := e.pattern(f, v)
	if e.wide {
		if a.Width < 64 {
			pat = pat.Op("&").Add(hex(a.Mask.Lo))
		}
		val := jen.Qual(uint128Path, "From64").Call(pat)
		if a.Offset > 0 {
			val = val.Dot("Lsh").Call(jen.Lit(a.Offset))
		}
		return p.bits().Op("=").Add(p.bits()).Dot("And").Call(e.num(a.ClearMask)).Dot("Or").Call(val)
	}
	if a.Width == e.backing.Bits() {
		return p.bits().Op("=").Add(pat)
	}
	val := jen.Parens(pat.Op("&").Add(hex(a.Mask.Lo)))
	if a.Offset > 0 {
		val = val.Op("<<").Lit(a.Offset)
	}
	return p.bits().Op("=").Add(p.bits()).Op("&").Add(e.num(a.ClearMask)).Op("|").Add(val)
}

// tooLarge returns the rejection condition of a checked write of v, or nil
// when every value of the field type fits.
func (e *emitter) tooLarge(f *ir.Field, a ir.Arith, v *jen.Statement) *jen.Statement {
	if f.Bool || !a.NeedsCheck() {
		return nil
	}
	switch {
	case f.Kind == ir.Custom:
		v = v.Dot("IntoBits").Call()
	case f.Signed:
		v = jen.Id(ir.UnsignedOf(f.Type.Name)).Call(v)
	}
	return v.Op(">").Add(hex(a.Mask.Lo))
}

func (e *emitter) valueTooLarge(f *ir.Field) *jen.Statement {
	return jen.Qual(e.runtime, "ValueTooLarge").Call(jen.Lit(e.typ), jen.Lit(f.Name), jen.Lit(f.Width))
}

func (e *emitter) recv() *jen.Statement { return jen.Params(jen.Id("s").Id(e.typ)) }

func (e *emitter) ptrRecv() *jen.Statement { return jen.Params(jen.Id("s").Op("*").Id(e.typ)) }

func (e *emitter) getter(op *ir.Getter) {
	raw := e.extract(self, op.Arith, op.Inverted)
	e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params().Add(e.fieldType(op.Field)).Block(
		jen.Return(e.read(op.Field, op.Arith, raw)),
	))
}

func (e *emitter) setter(op *ir.Setter) {
	param := jen.Id("v").Add(e.fieldType(op.Field))
	if !op.Checked {
		e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(param).Block(
			e.write(self, op.Field, op.Arith, jen.Id("v")),
		))
		return
	}
	var body []jen.Code
	if cond := e.tooLarge(op.Field, op.Arith, jen.Id("v")); cond != nil {
		body = append(body, jen.If(cond).Block(jen.Return(e.valueTooLarge(op.Field))))
	}
	body = append(body, e.write(self, op.Field, op.Arith, jen.Id("v")), jen.Return(jen.Nil()))
	e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(param).Error().Block(body...))
}

// steps renders bulk steps reading from the input v. When zeroed is set the
// storage is known to be zero, so clears are skipped.
func (e *emitter) steps(p store, steps []ir.Step, zeroed bool) []jen.Code {
	var out []jen.Code
	for _, st := range steps {
		f := st.Field
		if f.Ignored {
			if st.Source == ir.FromDefault && f.Default != nil {
				out = append(out, p.field(f.Name).Op("=").Id(f.Default.Expr))
			}
			continue
		}
		a := st.Arith
		switch st.Source {
		case ir.FromInput:
			out = append(out, e.copyInput(p, a, zeroed))
		case ir.FromDefault:
			out = append(out, e.writeDefault(p, f, a, zeroed)...)
		case ir.FromZero:
			if !zeroed {
				out = append(out, e.clear(p, a))
			}
		}
	}
	return out
}

func (e *emitter) copyInput(p store, a ir.Arith, zeroed bool) jen.Code {
	if e.wide {
		in := jen.Id("v").Dot("And").Call(e.num(shifted(a)))
		if zeroed {
			return p.bits().Op("=").Add(p.bits()).Dot("Or").Call(in)
		}
		return p.bits().Op("=").Add(p.bits()).Dot("And").Call(e.num(a.ClearMask)).Dot("Or").Call(in)
	}
	if a.Width == e.backing.Bits() {
		return p.bits().Op("=").Id("v")
	}
	in := jen.Id("v").Op("&").Add(e.num(shifted(a)))
	if zeroed {
		return p.bits().Op("|=").Add(in)
	}
	return p.bits().Op("=").Add(p.bits()).Op("&").Add(e.num(a.ClearMask)).Op("|").Add(in)
}

func (e *emitter) clear(p store, a ir.Arith) jen.Code {
	if e.wide {
		return p.bits().Op("=").Add(p.bits()).Dot("And").Call(e.num(a.ClearMask))
	}
	return p.bits().Op("&=").Add(e.num(a.ClearMask))
}

func (e *emitter) writeDefault(p store, f *ir.Field, a ir.Arith, zeroed bool) []jen.Code {
	pat, literal := f.DefaultBits()
	if !literal {
		v := e.fieldType(f).Call(jen.Id(f.Default.Expr))
		return []jen.Code{e.write(p, f, a, v)}
	}
	val := uint128.FromBig(pat).Lsh(uint(a.Offset))
	if val.IsZero() {
		if zeroed {
			return nil
		}
		return []jen.Code{e.clear(p, a)}
	}
	switch {
	case e.wide && zeroed:
		return []jen.Code{p.bits().Op("=").Add(p.bits()).Dot("Or").Call(e.num(val))}
	case e.wide:
		return []jen.Code{p.bits().Op("=").Add(p.bits()).Dot("And").Call(e.num(a.ClearMask)).Dot("Or").Call(e.num(val))}
	case zeroed:
		return []jen.Code{p.bits().Op("|=").Add(e.num(val))}
	}
	return []jen.Code{p.bits().Op("=").Add(p.bits()).Op("&").Add(e.num(a.ClearMask)).Op("|").Add(e.num(val))}
}

// swap byte-swaps the input v in place.
func (e *emitter) swap() jen.Code {
	if e.wide {
		return jen.Id("v").Op("=").Id("v").Dot("ReverseBytes").Call()
	}
	if e.backing == ir.Uint8 {
		return jen.Null()
	}
	return jen.Id("v").Op("=").Add(e.reverse(jen.Id("v")))
}

func (e *emitter) reverse(v *jen.Statement) *jen.Statement {
	if e.wide {
		return v.Dot("ReverseBytes").Call()
	}
	if e.backing == ir.Uint8 {
		return v
	}
	return jen.Qual("math/bits", fmt.Sprintf("ReverseBytes%d", e.backing.Bits())).Call(v)
}

func (e *emitter) constructor(op *ir.Constructor) {
	var body []jen.Code
	if op.Swap {
		body = append(body, e.swap())
	}
	switch op.Kind {
	case ir.CtorReset:
		body = append(body, jen.Op("*").Id("s").Op("=").Id(e.typ).Values())
		body = append(body, e.steps(self, op.Steps, true)...)
		e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params().Block(body...))
		return
	case ir.CtorUnmarshal:
		e.unmarshal(op)
		return
	}

	body = append(body, jen.Var().Id("s").Id(e.typ))
	body = append(body, e.steps(self, op.Steps, true)...)
	body = append(body, jen.Return(jen.Id("s")))
	var params []jen.Code
	if op.Kind.TakesInput() {
		params = append(params, jen.Id("v").Add(e.backingType()))
	}
	e.decl(op.Doc, jen.Func().Id(op.Name).Params(params...).Id(e.typ).Block(body...))
}

func (e *emitter) unmarshal(op *ir.Constructor) {
	n := e.backing.Bytes()
	body := []jen.Code{
		jen.If(jen.Len(jen.Id("data")).Op("!=").Lit(n)).Block(
			jen.Return(jen.Qual(e.runtime, "InvalidLength").Call(jen.Lit(e.typ), jen.Len(jen.Id("data")), jen.Lit(n))),
		),
	}
	if readsInput(op.Steps) {
		switch {
		case e.wide:
			body = append(body, jen.Id("v").Op(":=").Qual(uint128Path, "FromBytesBE").Call(jen.Id("data")))
		case e.backing == ir.Uint8:
			body = append(body, jen.Id("v").Op(":=").Id("data").Index(jen.Lit(0)))
		default:
			body = append(body, jen.Id("v").Op(":=").Qual("encoding/binary", "BigEndian").Dot(fmt.Sprintf("Uint%d", e.backing.Bits())).Call(jen.Id("data")))
		}
		if op.Swap {
			body = append(body, e.swap())
		}
	}
	if e.wide {
		body = append(body, self.bits().Op("=").Qual(uint128Path, "Zero"))
	} else {
		body = append(body, self.bits().Op("=").Lit(0))
	}
	body = append(body, e.steps(self, op.Steps, true)...)
	body = append(body, jen.Return(jen.Nil()))
	e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(jen.Id("data").Index().Byte()).Error().Block(body...))
}

func readsInput(steps []ir.Step) bool {
	for _, st := range steps {
		if st.Source == ir.FromInput {
			return true
		}
	}
	return false
}

func (e *emitter) encode(op *ir.Encode) {
	if !op.Binary {
		v := self.bits()
		if op.Swap {
			v = e.reverse(v)
		}
		e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params().Add(e.backingType()).Block(jen.Return(v)))
		return
	}

	v := self.bits()
	if op.Swap {
		v = e.reverse(v)
	}
	n := e.backing.Bytes()
	var body []jen.Code
	switch {
	case e.backing == ir.Uint8:
		body = append(body, jen.Return(jen.Index().Byte().Values(v), jen.Nil()))
	case e.wide:
		body = append(body,
			jen.Id("data").Op(":=").Make(jen.Index().Byte(), jen.Lit(n)),
			v.Dot("PutBytesBE").Call(jen.Id("data")),
			jen.Return(jen.Id("data"), jen.Nil()),
		)
	default:
		body = append(body,
			jen.Id("data").Op(":=").Make(jen.Index().Byte(), jen.Lit(n)),
			jen.Qual("encoding/binary", "BigEndian").Dot(fmt.Sprintf("PutUint%d", e.backing.Bits())).Call(jen.Id("data"), v),
			jen.Return(jen.Id("data"), jen.Nil()),
		)
	}
	e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params().Params(jen.Index().Byte(), jen.Error()).Block(body...))
}

func (e *emitter) bulk(op *ir.BulkUpdate) {
	var params []jen.Code
	if op.Kind.TakesInput() {
		params = append(params, jen.Id("v").Add(e.backingType()))
	}
	e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(params...).Block(e.steps(self, op.Steps, false)...))
}

func guardCond(guards []ir.BitRange) *jen.Statement {
	var cond *jen.Statement
	for _, g := range guards {
		var c *jen.Statement
		if g.Lo == g.Hi {
			c = jen.Id("i").Op("==").Lit(g.Lo)
		} else {
			c = jen.Id("i").Op(">=").Lit(g.Lo).Op("&&").Id("i").Op("<=").Lit(g.Hi)
		}
		if cond == nil {
			cond = c
			continue
		}
		cond = cond.Op("||").Add(c)
	}
	return cond
}

func (e *emitter) bitOp(op *ir.BitOp) {
	width := op.Width
	outOfRange := jen.Id("i").Op(">=").Lit(width)
	guard := guardCond(op.Guards)

	if !op.Write {
		var get *jen.Statement
		if e.wide {
			get = self.bits().Dot("Rsh").Call(jen.Id("i")).Dot("Lo").Op("&").Lit(1).Op("!=").Lit(0)
		} else {
			get = self.bits().Op(">>").Id("i").Op("&").Lit(1).Op("!=").Lit(0)
		}
		var body []jen.Code
		if op.Checked {
			body = append(body, jen.If(outOfRange).Block(
				jen.Return(jen.False(), jen.Qual(e.runtime, "IndexOutOfBounds").Call(jen.Lit(e.typ), jen.Id("i"), jen.Lit(width))),
			))
			if guard != nil {
				body = append(body, jen.If(guard).Block(
					jen.Return(jen.False(), jen.Qual(e.runtime, "NoAccess").Call(jen.Lit(e.typ), jen.Id("i"), jen.False())),
				))
			}
			body = append(body, jen.Return(get, jen.Nil()))
			e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params(jen.Id("i").Uint()).Params(jen.Bool(), jen.Error()).Block(body...))
			return
		}
		body = append(body, jen.If(outOfRange).Block(jen.Return(jen.False())))
		if guard != nil {
			body = append(body, jen.If(guard).Block(jen.Return(jen.False())))
		}
		body = append(body, jen.Return(get))
		e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params(jen.Id("i").Uint()).Bool().Block(body...))
		return
	}

	var set jen.Code
	if e.wide {
		one := func() *jen.Statement { return jen.Qual(uint128Path, "From64").Call(jen.Lit(1)).Dot("Lsh").Call(jen.Id("i")) }
		set = jen.If(jen.Id("v")).Block(
			self.bits().Op("=").Add(self.bits()).Dot("Or").Call(one()),
		).Else().Block(
			self.bits().Op("=").Add(self.bits()).Dot("And").Call(one().Dot("Xor").Call(jen.Qual(uint128Path, "Max"))),
		)
	} else {
		set = jen.If(jen.Id("v")).Block(
			self.bits().Op("|=").Lit(1).Op("<<").Id("i"),
		).Else().Block(
			self.bits().Op("&^=").Lit(1).Op("<<").Id("i"),
		)
	}
	params := []jen.Code{jen.Id("i").Uint(), jen.Id("v").Bool()}
	var body []jen.Code
	if op.Checked {
		body = append(body, jen.If(outOfRange).Block(
			jen.Return(jen.Qual(e.runtime, "IndexOutOfBounds").Call(jen.Lit(e.typ), jen.Id("i"), jen.Lit(width))),
		))
		if guard != nil {
			body = append(body, jen.If(guard).Block(
				jen.Return(jen.Qual(e.runtime, "NoAccess").Call(jen.Lit(e.typ), jen.Id("i"), jen.True())),
			))
		}
		body = append(body, set, jen.Return(jen.Nil()))
		e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(params...).Error().Block(body...))
		return
	}
	cond := outOfRange
	if guard != nil {
		cond = cond.Op("||").Add(guard)
	}
	body = append(body, jen.If(cond).Block(jen.Return()), set)
	e.decl(op.Doc, jen.Func().Add(e.ptrRecv()).Id(op.Name).Params(params...).Block(body...))
}

func (e *emitter) builderType() {
	if e.builderDeclared {
		return
	}
	e.builderDeclared = true
	e.decl(fmt.Sprintf("%s builds a %s one field at a time.", e.set.BuilderName, e.typ),
		jen.Type().Id(e.set.BuilderName).Struct(jen.Id("s").Id(e.typ)))
}

func (e *emitter) builderNew(op *ir.BuilderNew) {
	e.builderType()
	body := []jen.Code{jen.Var().Id("b").Id(e.set.BuilderName)}
	body = append(body, e.steps(builder, op.Steps, true)...)
	body = append(body, jen.Return(jen.Id("b")))
	e.decl(op.Doc, jen.Func().Id(op.Name).Params().Id(e.set.BuilderName).Block(body...))
}

func (e *emitter) builderWith(op *ir.BuilderWith) {
	e.builderType()
	recv := jen.Params(jen.Id("b").Id(e.set.BuilderName))
	param := jen.Id("v").Add(e.fieldType(op.Field))
	if !op.Checked {
		e.decl(op.Doc, jen.Func().Add(recv).Id(op.Name).Params(param).Id(e.set.BuilderName).Block(
			e.write(builder, op.Field, op.Arith, jen.Id("v")),
			jen.Return(jen.Id("b")),
		))
		return
	}
	var body []jen.Code
	if cond := e.tooLarge(op.Field, op.Arith, jen.Id("v")); cond != nil {
		body = append(body, jen.If(cond).Block(jen.Return(jen.Id("b"), e.valueTooLarge(op.Field))))
	}
	body = append(body, e.write(builder, op.Field, op.Arith, jen.Id("v")), jen.Return(jen.Id("b"), jen.Nil()))
	e.decl(op.Doc, jen.Func().Add(recv).Id(op.Name).Params(param).Params(jen.Id(e.set.BuilderName), jen.Error()).Block(body...))
}

func (e *emitter) debug(op *ir.Debug) {
	parts := make([]string, len(op.Fields))
	args := []jen.Code{nil}
	for i, f := range op.Fields {
		parts[i] = f.Name + ": %d"
		args = append(args, e.extract(self, op.Arith[i], false))
	}
	args[0] = jen.Lit(fmt.Sprintf("%s{%s}", e.typ, strings.Join(parts, ", ")))
	e.decl(op.Doc, jen.Func().Add(e.recv()).Id(op.Name).Params().String().Block(
		jen.Return(jen.Qual("fmt", "Sprintf").Call(args...)),
	))
}
