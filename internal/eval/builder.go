package eval

import (
	"fmt"

	"lukechampine.com/uint128"

	"bitgen/internal/ir"
)

// Builder mirrors the generated builder type.
type Builder struct {
	in *Instance
}

// NewBuilder runs one of the builder constructors.
func NewBuilder(set *ir.OperationSet, withDefaults bool) (*Builder, error) {
	op, err := find(set, func(b *ir.BuilderNew) bool { return b.WithDefaults == withDefaults })
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	in := &Instance{set: set}
	if err := in.apply(op.Steps, uint128.Zero); err != nil {
		return nil, err
	}
	return &Builder{in: in}, nil
}

// With sets a field, truncating v.
func (b *Builder) With(field string, v uint64) error {
	op, err := find(b.in.set, func(w *ir.BuilderWith) bool { return w.Field.Name == field && !w.Checked })
	if err != nil {
		return b.in.missing(field, err)
	}
	b.in.insert(op.Arith, pattern(op.Field, v))
	return nil
}

// CheckedWith sets a field or rejects v if it does not fit.
func (b *Builder) CheckedWith(field string, v uint64) error {
	op, err := find(b.in.set, func(w *ir.BuilderWith) bool { return w.Field.Name == field && w.Checked })
	if err != nil {
		return b.in.missing(field, err)
	}
	return b.in.checkedInsert(op.Field, op.Arith, v)
}

// Build returns a copy of the value built so far.
func (b *Builder) Build() (*Instance, error) {
	if _, err := find(b.in.set, func(*ir.BuilderBuild) bool { return true }); err != nil {
		return nil, err
	}
	out := *b.in
	return &out, nil
}

// ToBuilder seeds a builder with the receiver's fields.
func (in *Instance) ToBuilder() (*Builder, error) {
	if _, err := find(in.set, func(*ir.ToBuilder) bool { return true }); err != nil {
		return nil, err
	}
	cp := *in
	return &Builder{in: &cp}, nil
}
