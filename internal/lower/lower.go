package lower

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"bitgen/internal/ir"
)

type lowerer struct {
	bf      *ir.Bitfield
	names   ir.Names
	backing int
	set     *ir.OperationSet
}

// Lower builds the operation set of bf. The layout must have been resolved.
func Lower(bf *ir.Bitfield) (*ir.OperationSet, error) {
	if bf == nil {
		return nil, fmt.Errorf("lower: bitfield is nil")
	}
	if !bf.Resolved {
		return nil, fmt.Errorf("lower: bitfield %s has no resolved layout", bf.Name)
	}
	names := ir.NamesFor(bf.Name)
	l := &lowerer{
		bf:      bf,
		names:   names,
		backing: bf.Policy.Backing.Bits(),
		set: &ir.OperationSet{
			Bitfield:    bf,
			Names:       names,
			BuilderName: names.Builder(),
		},
	}

	feat := bf.Policy.Features
	l.constants()
	l.accessors(feat.Neg)
	if feat.New {
		l.constructor(ir.CtorNew, names.Func("New", ""), names.Exported())
		l.constructor(ir.CtorNewWithoutDefaults, names.Func("New", "WithoutDefaults"), names.Exported())
	}
	if feat.FromBits {
		l.constructor(ir.CtorFromBits, names.FromBits(), names.Exported())
		l.constructor(ir.CtorFromBitsWithDefaults, names.FromBits()+"WithDefaults", names.Exported())
	}
	if feat.IntoBits {
		l.add(&ir.Encode{
			OpInfo: l.method("IntoBits", "IntoBits returns the raw %s value%s.", bf.Policy.Backing, swapNote(bf.Policy.IntoEndian)),
			Swap:   bf.Policy.IntoEndian == ir.Little,
		})
	}
	if feat.Conversions {
		l.add(&ir.Encode{
			OpInfo: l.method("MarshalBinary", "MarshalBinary implements encoding.BinaryMarshaler."),
			Swap:   bf.Policy.IntoEndian == ir.Little,
			Binary: true,
		})
		l.constructor(ir.CtorUnmarshal, "UnmarshalBinary", true)
	}
	if feat.Default {
		l.constructor(ir.CtorReset, "Reset", true)
	}
	if feat.SetBits {
		l.bulk(ir.BulkSetBits, "SetBits")
		l.bulk(ir.BulkSetBitsWithDefaults, "SetBitsWithDefaults")
	}
	if feat.ClearBits {
		l.bulk(ir.BulkClearBits, "ClearBits")
		l.bulk(ir.BulkClearBitsWithDefaults, "ClearBitsWithDefaults")
	}
	if feat.BitOps {
		l.bitOps()
	}
	if feat.Builder {
		l.builder()
	}
	if feat.Debug {
		l.debug()
	}

	Logger().Debug("lowered bitfield",
		zap.String("type", bf.Name),
		zap.String("backing", bf.Policy.Backing.String()),
		zap.Int("fields", len(bf.Fields)),
		zap.Int("ops", len(l.set.Ops)),
	)
	return l.set, nil
}

func (l *lowerer) add(op ir.Operation) {
	l.set.Ops = append(l.set.Ops, op)
}

func (l *lowerer) method(name, doc string, args ...any) ir.OpInfo {
	return ir.OpInfo{Name: name, Exported: true, Doc: fmt.Sprintf(doc, args...)}
}

func (l *lowerer) arith(f *ir.Field) ir.Arith {
	return ir.ArithFor(f, l.backing)
}

func (l *lowerer) span(f *ir.Field) string {
	return ir.BitSpan(f, l.bf.Policy.Order)
}

func (l *lowerer) constants() {
	for _, f := range l.bf.Fields {
		if !f.HasConstants() {
			continue
		}
		exported := f.Exported(l.names.Exported())
		l.add(&ir.FieldConstant{
			OpInfo: ir.OpInfo{Name: l.names.Const(f, "Bits"), Exported: exported},
			Field:  f,
			Kind:   ir.ConstBits,
			Value:  f.Width,
		})
		l.add(&ir.FieldConstant{
			OpInfo: ir.OpInfo{Name: l.names.Const(f, "Offset"), Exported: exported},
			Field:  f,
			Kind:   ir.ConstOffset,
			Value:  f.Offset,
		})
	}
}

func (l *lowerer) accessors(neg bool) {
	for _, f := range l.bf.Fields {
		if f.Padding {
			continue
		}
		exported := f.Exported(l.names.Exported())
		if f.Access.CanRead() {
			name := l.names.Field(f, "")
			l.add(&ir.Getter{
				OpInfo: ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s returns bits %s.", name, l.span(f))},
				Field:  f,
				Arith:  l.arith(f),
			})
			if neg {
				name := l.names.Field(f, "Neg")
				l.add(&ir.Getter{
					OpInfo:   ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s returns the complement of bits %s.", name, l.span(f))},
					Field:    f,
					Arith:    l.arith(f),
					Inverted: true,
				})
			}
		}
		if f.Access.CanWrite() {
			name := l.names.Field(f, "Set")
			l.add(&ir.Setter{
				OpInfo: ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s sets bits %s. Bits of v beyond the field width are dropped.", name, l.span(f))},
				Field:  f,
				Arith:  l.arith(f),
			})
			name = l.names.Field(f, "CheckedSet")
			l.add(&ir.Setter{
				OpInfo:  ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s sets bits %s, or returns an error if v does not fit in %d bits.", name, l.span(f), f.Width)},
				Field:   f,
				Arith:   l.arith(f),
				Checked: true,
			})
		}
	}
}

func (l *lowerer) constructor(kind ir.CtorKind, name string, exported bool) {
	var doc string
	typ := l.bf.Name
	switch kind {
	case ir.CtorNew:
		doc = fmt.Sprintf("%s returns a %s with every field set to its default value.", name, typ)
	case ir.CtorNewWithoutDefaults:
		doc = fmt.Sprintf("%s returns a %s with every field zeroed. Padding keeps its default.", name, typ)
	case ir.CtorFromBits:
		doc = fmt.Sprintf("%s returns a %s holding every field of v%s.", name, typ, swapNote(l.bf.Policy.FromEndian))
	case ir.CtorFromBitsWithDefaults:
		doc = fmt.Sprintf("%s is like %s, except fields with a default take their default.", name, l.names.FromBits())
	case ir.CtorReset:
		doc = "Reset sets every field to its default value."
	case ir.CtorUnmarshal:
		doc = "UnmarshalBinary implements encoding.BinaryUnmarshaler."
	}
	swap := false
	if kind.TakesInput() {
		swap = l.bf.Policy.FromEndian == ir.Little
	}
	l.add(&ir.Constructor{
		OpInfo: ir.OpInfo{Name: name, Exported: exported, Doc: doc},
		Kind:   kind,
		Swap:   swap,
		Steps:  l.ctorSteps(kind),
	})
}

func (l *lowerer) ctorSteps(kind ir.CtorKind) []ir.Step {
	var steps []ir.Step
	for _, f := range l.bf.Fields {
		if f.Padding {
			steps = append(steps, l.step(f, defaultOrZero(f)))
			continue
		}
		switch kind {
		case ir.CtorNew, ir.CtorReset:
			steps = append(steps, l.step(f, defaultOrZero(f)))
		case ir.CtorNewWithoutDefaults:
			steps = append(steps, l.step(f, ir.FromZero))
		case ir.CtorFromBits, ir.CtorUnmarshal:
			// Every packed field is loaded, whatever its access.
			steps = append(steps, l.step(f, ir.FromInput))
		case ir.CtorFromBitsWithDefaults:
			steps = append(steps, l.step(f, inputOrDefault(f)))
		default:
			panic(fmt.Sprintf("lower: unexpected constructor kind %d", int(kind)))
		}
	}
	if kind == ir.CtorUnmarshal {
		return steps
	}
	for _, f := range l.bf.Ignored {
		src := ir.FromZero
		if f.Default != nil && kind != ir.CtorNewWithoutDefaults {
			src = ir.FromDefault
		}
		steps = append(steps, ir.Step{Field: f, Source: src})
	}
	return steps
}

func (l *lowerer) bulk(kind ir.BulkKind, name string) {
	var doc string
	switch kind {
	case ir.BulkSetBits:
		doc = "SetBits sets every writable field from v. Read-only fields are left unchanged."
	case ir.BulkSetBitsWithDefaults:
		doc = "SetBitsWithDefaults is like SetBits, except fields with a default take their default."
	case ir.BulkClearBits:
		doc = "ClearBits zeroes every writable field. Read-only fields are left unchanged."
	case ir.BulkClearBitsWithDefaults:
		doc = "ClearBitsWithDefaults resets every writable field to its default, or zero."
	}
	var steps []ir.Step
	for _, f := range l.bf.Fields {
		if f.Padding {
			steps = append(steps, l.step(f, defaultOrZero(f)))
			continue
		}
		if !f.Access.CanWrite() {
			continue
		}
		var src ir.Source
		switch kind {
		case ir.BulkSetBits:
			src = ir.FromInput
		case ir.BulkSetBitsWithDefaults:
			src = inputOrDefault(f)
		case ir.BulkClearBits:
			src = ir.FromZero
		case ir.BulkClearBitsWithDefaults:
			src = defaultOrZero(f)
		default:
			panic(fmt.Sprintf("lower: unexpected bulk kind %d", int(kind)))
		}
		steps = append(steps, l.step(f, src))
	}
	l.add(&ir.BulkUpdate{
		OpInfo: ir.OpInfo{Name: name, Exported: true, Doc: doc},
		Kind:   kind,
		Steps:  steps,
	})
}

func (l *lowerer) bitOps() {
	var readGuards, writeGuards []ir.BitRange
	for _, f := range l.bf.Fields {
		r := ir.BitRange{Lo: f.Offset, Hi: f.Offset + f.Width - 1, Field: f}
		if !f.Padding && !f.Access.CanRead() {
			readGuards = append(readGuards, r)
		}
		if f.Padding || !f.Access.CanWrite() {
			writeGuards = append(writeGuards, r)
		}
	}
	sortRanges(readGuards)
	sortRanges(writeGuards)

	for _, op := range []struct {
		name    string
		write   bool
		checked bool
		doc     string
	}{
		{"GetBit", false, false, "GetBit returns bit i. It returns false for indices out of range and for bits of fields that cannot be read."},
		{"CheckedGetBit", false, true, "CheckedGetBit returns bit i, or an error for indices out of range and for bits of fields that cannot be read."},
		{"SetBit", true, false, "SetBit sets bit i. Indices out of range and bits of read-only, inaccessible or padding fields are ignored."},
		{"CheckedSetBit", true, true, "CheckedSetBit sets bit i, or returns an error for indices out of range and for bits of read-only, inaccessible or padding fields."},
	} {
		guards := readGuards
		if op.write {
			guards = writeGuards
		}
		l.add(&ir.BitOp{
			OpInfo:  ir.OpInfo{Name: op.name, Exported: true, Doc: op.doc},
			Write:   op.write,
			Checked: op.checked,
			Width:   l.backing,
			Guards:  guards,
		})
	}
}

func (l *lowerer) builder() {
	b := l.set.BuilderName
	l.add(&ir.BuilderNew{
		OpInfo:       ir.OpInfo{Name: l.names.Func("New", "Builder"), Exported: l.names.Exported(), Doc: fmt.Sprintf("%s returns a builder seeded with default values.", l.names.Func("New", "Builder"))},
		WithDefaults: true,
		Steps:        l.ctorSteps(ir.CtorNew),
	})
	l.add(&ir.BuilderNew{
		OpInfo: ir.OpInfo{Name: l.names.Func("New", "BuilderWithoutDefaults"), Exported: l.names.Exported(), Doc: fmt.Sprintf("%s returns a builder with every field zeroed.", l.names.Func("New", "BuilderWithoutDefaults"))},
		Steps:  l.ctorSteps(ir.CtorNewWithoutDefaults),
	})
	for _, f := range l.bf.Fields {
		if f.Padding || !(f.Access.CanWrite() || f.Access == ir.ReadOnly) {
			continue
		}
		exported := f.Exported(l.names.Exported())
		name := l.names.Field(f, "With")
		l.add(&ir.BuilderWith{
			OpInfo: ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s sets bits %s of the %s being built.", name, l.span(f), l.bf.Name)},
			Field:  f,
			Arith:  l.arith(f),
		})
		name = l.names.Field(f, "CheckedWith")
		l.add(&ir.BuilderWith{
			OpInfo:  ir.OpInfo{Name: name, Exported: exported, Doc: fmt.Sprintf("%s is like %s, but returns an error if v does not fit in %d bits.", name, l.names.Field(f, "With"), f.Width)},
			Field:   f,
			Arith:   l.arith(f),
			Checked: true,
		})
	}
	l.add(&ir.BuilderBuild{OpInfo: l.method("Build", "Build returns the %s built so far.", l.bf.Name)})
	l.add(&ir.ToBuilder{OpInfo: l.method("ToBuilder", "ToBuilder returns a %s seeded with the fields of the receiver.", b)})
}

func (l *lowerer) debug() {
	fields := make([]*ir.Field, 0, len(l.bf.Fields))
	for i := range l.bf.Fields {
		f := l.bf.Fields[i]
		if l.bf.Policy.Order == ir.LsbFirst {
			f = l.bf.Fields[len(l.bf.Fields)-1-i]
		}
		fields = append(fields, f)
	}
	ariths := make([]ir.Arith, len(fields))
	for i, f := range fields {
		ariths[i] = l.arith(f)
	}
	l.add(&ir.Debug{
		OpInfo: l.method("String", "String lists the raw value of every field, most significant first."),
		Fields: fields,
		Arith:  ariths,
	})
}

func (l *lowerer) step(f *ir.Field, src ir.Source) ir.Step {
	return ir.Step{Field: f, Arith: l.arith(f), Source: src}
}

func inputOrDefault(f *ir.Field) ir.Source {
	if f.Default != nil {
		return ir.FromDefault
	}
	return ir.FromInput
}

func defaultOrZero(f *ir.Field) ir.Source {
	if f.Default != nil {
		return ir.FromDefault
	}
	return ir.FromZero
}

func swapNote(e ir.Endian) string {
	if e == ir.Little {
		return ", with its bytes swapped"
	}
	return ""
}

func sortRanges(r []ir.BitRange) {
	sort.Slice(r, func(i, j int) bool { return r[i].Lo < r[j].Lo })
}
