package eval

import (
	"errors"
	"fmt"
	mbits "math/bits"
	"strings"

	"lukechampine.com/uint128"

	"bitgen/bitfield"
	"bitgen/internal/ir"
)

var (
	// ErrNotGenerated is returned when the requested operation was disabled
	// by the bitfield's feature toggles or its field access.
	ErrNotGenerated = errors.New("eval: operation not generated")
	// ErrUnknownField is returned for names that are not packed fields.
	ErrUnknownField = errors.New("eval: unknown field")
	// ErrOpaqueDefault is returned when a step needs a default that is not
	// an integer literal.
	ErrOpaqueDefault = errors.New("eval: default value is not a literal")
)

// Value is a field value as read through a getter.
type Value struct {
	Raw    uint64
	Width  int
	Signed bool
	IsBool bool
}

// Uint returns the raw masked bits.
func (v Value) Uint() uint64 { return v.Raw }

// Int returns the value sign-extended from its width for signed fields.
func (v Value) Int() int64 {
	if !v.Signed || v.Width >= 64 {
		return int64(v.Raw)
	}
	shift := uint(64 - v.Width)
	return int64(v.Raw<<shift) >> shift
}

// Bool reports whether any bit is set.
func (v Value) Bool() bool { return v.Raw != 0 }

func (v Value) String() string {
	switch {
	case v.IsBool:
		return fmt.Sprint(v.Bool())
	case v.Signed:
		return fmt.Sprint(v.Int())
	}
	return fmt.Sprint(v.Raw)
}

// Instance is one value of a bitfield.
type Instance struct {
	set  *ir.OperationSet
	bits uint128.Uint128
}

func find[T ir.Operation](set *ir.OperationSet, match func(T) bool) (T, error) {
	for _, op := range set.Ops {
		if t, ok := op.(T); ok && match(t) {
			return t, nil
		}
	}
	var zero T
	return zero, ErrNotGenerated
}

// New runs the defaults-respecting constructor.
func New(set *ir.OperationSet) (*Instance, error) {
	return construct(set, ir.CtorNew, uint128.Zero)
}

// NewWithoutDefaults runs the zeroing constructor.
func NewWithoutDefaults(set *ir.OperationSet) (*Instance, error) {
	return construct(set, ir.CtorNewWithoutDefaults, uint128.Zero)
}

// FromBits runs the raw-value constructor. Bits above the backing width are
// discarded.
func FromBits(set *ir.OperationSet, v uint128.Uint128) (*Instance, error) {
	return construct(set, ir.CtorFromBits, v)
}

// FromBitsWithDefaults runs the raw-value constructor that keeps defaults.
func FromBitsWithDefaults(set *ir.OperationSet, v uint128.Uint128) (*Instance, error) {
	return construct(set, ir.CtorFromBitsWithDefaults, v)
}

func construct(set *ir.OperationSet, kind ir.CtorKind, input uint128.Uint128) (*Instance, error) {
	op, err := find(set, func(c *ir.Constructor) bool { return c.Kind == kind })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	in := &Instance{set: set}
	if err := in.run(op, input); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) run(op *ir.Constructor, input uint128.Uint128) error {
	input = input.And(in.backingMask())
	if op.Swap {
		input = swapBytes(input, in.backing())
	}
	next := &Instance{set: in.set}
	if err := next.apply(op.Steps, input); err != nil {
		return err
	}
	in.bits = next.bits
	return nil
}

// Raw returns the storage as held, without any emit-side byte swap.
func (in *Instance) Raw() uint128.Uint128 { return in.bits }

// Reset restores the defaults.
func (in *Instance) Reset() error {
	op, err := find(in.set, func(c *ir.Constructor) bool { return c.Kind == ir.CtorReset })
	if err != nil {
		return err
	}
	return in.run(op, uint128.Zero)
}

// IntoBits returns the raw value, byte-swapped when the emit endianness is
// little.
func (in *Instance) IntoBits() (uint128.Uint128, error) {
	op, err := find(in.set, func(e *ir.Encode) bool { return !e.Binary })
	if err != nil {
		return uint128.Zero, err
	}
	return in.encode(op), nil
}

// MarshalBinary encodes the emitted value as big-endian bytes.
func (in *Instance) MarshalBinary() ([]byte, error) {
	op, err := find(in.set, func(e *ir.Encode) bool { return e.Binary })
	if err != nil {
		return nil, err
	}
	v := in.encode(op)
	out := make([]byte, in.set.Bitfield.Policy.Backing.Bytes())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(v.Lo)
		v = v.Rsh(8)
	}
	return out, nil
}

// UnmarshalBinary decodes big-endian bytes like FromBits.
func (in *Instance) UnmarshalBinary(data []byte) error {
	op, err := find(in.set, func(c *ir.Constructor) bool { return c.Kind == ir.CtorUnmarshal })
	if err != nil {
		return err
	}
	want := in.set.Bitfield.Policy.Backing.Bytes()
	if len(data) != want {
		return bitfield.InvalidLength(in.set.Names.Type, len(data), want)
	}
	v := uint128.Zero
	for _, b := range data {
		v = v.Lsh(8).Or(uint128.From64(uint64(b)))
	}
	return in.run(op, v)
}

func (in *Instance) encode(op *ir.Encode) uint128.Uint128 {
	if op.Swap {
		return swapBytes(in.bits, in.backing())
	}
	return in.bits
}

// Get reads a field through its getter.
func (in *Instance) Get(field string) (Value, error) {
	return in.get(field, false)
}

// GetInverted reads a field through its inverted getter.
func (in *Instance) GetInverted(field string) (Value, error) {
	return in.get(field, true)
}

func (in *Instance) get(field string, inverted bool) (Value, error) {
	op, err := find(in.set, func(g *ir.Getter) bool { return g.Field.Name == field && g.Inverted == inverted })
	if err != nil {
		return Value{}, in.missing(field, err)
	}
	shifted := in.bits.Rsh(uint(op.Arith.Offset))
	if inverted {
		shifted = shifted.Xor(uint128.Max)
	}
	return valueOf(op.Field, shifted.And(op.Arith.Mask).Lo), nil
}

// Set writes a field through its unchecked setter. v is the field value
// converted to uint64, so negative values arrive sign-extended.
func (in *Instance) Set(field string, v uint64) error {
	op, err := find(in.set, func(s *ir.Setter) bool { return s.Field.Name == field && !s.Checked })
	if err != nil {
		return in.missing(field, err)
	}
	in.insert(op.Arith, pattern(op.Field, v))
	return nil
}

// CheckedSet writes a field through its checked setter.
func (in *Instance) CheckedSet(field string, v uint64) error {
	op, err := find(in.set, func(s *ir.Setter) bool { return s.Field.Name == field && s.Checked })
	if err != nil {
		return in.missing(field, err)
	}
	return in.checkedInsert(op.Field, op.Arith, v)
}

func (in *Instance) checkedInsert(f *ir.Field, a ir.Arith, v uint64) error {
	raw := pattern(f, v)
	if !f.Bool && a.NeedsCheck() && raw > a.Mask.Lo {
		return bitfield.ValueTooLarge(in.set.Names.Type, f.Name, f.Width)
	}
	in.insert(a, raw)
	return nil
}

// SetBits updates every writable field from v.
func (in *Instance) SetBits(v uint128.Uint128) error {
	return in.bulk(ir.BulkSetBits, v)
}

// SetBitsWithDefaults is SetBits with defaults taking precedence.
func (in *Instance) SetBitsWithDefaults(v uint128.Uint128) error {
	return in.bulk(ir.BulkSetBitsWithDefaults, v)
}

// ClearBits zeroes every writable field.
func (in *Instance) ClearBits() error {
	return in.bulk(ir.BulkClearBits, uint128.Zero)
}

// ClearBitsWithDefaults resets every writable field to its default.
func (in *Instance) ClearBitsWithDefaults() error {
	return in.bulk(ir.BulkClearBitsWithDefaults, uint128.Zero)
}

func (in *Instance) bulk(kind ir.BulkKind, v uint128.Uint128) error {
	op, err := find(in.set, func(b *ir.BulkUpdate) bool { return b.Kind == kind })
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return in.apply(op.Steps, v.And(in.backingMask()))
}

// GetBit reads bit i, reporting false where the checked variant would fail.
func (in *Instance) GetBit(i uint) (bool, error) {
	op, err := in.bitOp(false, false)
	if err != nil {
		return false, err
	}
	if in.guard(op, i) != nil {
		return false, nil
	}
	return in.bits.Rsh(i).Lo&1 == 1, nil
}

// CheckedGetBit reads bit i.
func (in *Instance) CheckedGetBit(i uint) (bool, error) {
	op, err := in.bitOp(false, true)
	if err != nil {
		return false, err
	}
	if err := in.guard(op, i); err != nil {
		return false, err
	}
	return in.bits.Rsh(i).Lo&1 == 1, nil
}

// SetBit writes bit i, ignoring indices the checked variant would refuse.
func (in *Instance) SetBit(i uint, v bool) error {
	op, err := in.bitOp(true, false)
	if err != nil {
		return err
	}
	if in.guard(op, i) != nil {
		return nil
	}
	in.writeBit(i, v)
	return nil
}

// CheckedSetBit writes bit i.
func (in *Instance) CheckedSetBit(i uint, v bool) error {
	op, err := in.bitOp(true, true)
	if err != nil {
		return err
	}
	if err := in.guard(op, i); err != nil {
		return err
	}
	in.writeBit(i, v)
	return nil
}

func (in *Instance) bitOp(write, checked bool) (*ir.BitOp, error) {
	return find(in.set, func(b *ir.BitOp) bool { return b.Write == write && b.Checked == checked })
}

func (in *Instance) guard(op *ir.BitOp, i uint) error {
	if i >= uint(op.Width) {
		return bitfield.IndexOutOfBounds(in.set.Names.Type, i, op.Width)
	}
	for _, g := range op.Guards {
		if int(i) >= g.Lo && int(i) <= g.Hi {
			return bitfield.NoAccess(in.set.Names.Type, i, op.Write)
		}
	}
	return nil
}

func (in *Instance) writeBit(i uint, v bool) {
	one := uint128.From64(1).Lsh(i)
	if v {
		in.bits = in.bits.Or(one)
		return
	}
	in.bits = in.bits.And(one.Xor(uint128.Max))
}

// Format renders the value like the generated String method.
func (in *Instance) Format() (string, error) {
	op, err := find(in.set, func(*ir.Debug) bool { return true })
	if err != nil {
		return "", err
	}
	parts := make([]string, len(op.Fields))
	for i, f := range op.Fields {
		raw := in.bits.Rsh(uint(op.Arith[i].Offset)).And(op.Arith[i].Mask).Lo
		parts[i] = fmt.Sprintf("%s: %d", f.Name, raw)
	}
	return fmt.Sprintf("%s{%s}", in.set.Names.Type, strings.Join(parts, ", ")), nil
}

// FieldValue pairs a readable field with its current value.
type FieldValue struct {
	Field *ir.Field
	Value Value
}

// Fields reads every field that has a getter, in declaration order.
func (in *Instance) Fields() []FieldValue {
	var out []FieldValue
	for _, f := range in.set.Bitfield.Fields {
		if f.Padding || !f.Access.CanRead() {
			continue
		}
		v, err := in.Get(f.Name)
		if err != nil {
			continue
		}
		out = append(out, FieldValue{Field: f, Value: v})
	}
	return out
}

func (in *Instance) apply(steps []ir.Step, input uint128.Uint128) error {
	for _, st := range steps {
		if st.Field.Ignored {
			continue
		}
		switch st.Source {
		case ir.FromInput:
			m := st.Field.ShiftedMask()
			in.bits = in.bits.And(st.Arith.ClearMask).Or(input.And(m))
		case ir.FromDefault:
			pat, ok := st.Field.DefaultBits()
			if !ok {
				return fmt.Errorf("field %s: %w", st.Field.Name, ErrOpaqueDefault)
			}
			in.insert(st.Arith, uint128.FromBig(pat).Lo)
		case ir.FromZero:
			in.insert(st.Arith, 0)
		default:
			panic(fmt.Sprintf("eval: unexpected step source %d", int(st.Source)))
		}
	}
	return nil
}

func (in *Instance) insert(a ir.Arith, raw uint64) {
	v := uint128.From64(raw).And(a.Mask).Lsh(uint(a.Offset))
	in.bits = in.bits.And(a.ClearMask).Or(v)
}

func (in *Instance) missing(field string, err error) error {
	if in.set.Bitfield.Field(field) == nil {
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return fmt.Errorf("%q: %w", field, err)
}

func (in *Instance) backing() int {
	return in.set.Bitfield.Policy.Backing.Bits()
}

func (in *Instance) backingMask() uint128.Uint128 {
	return ir.MaskOf(in.backing())
}

func valueOf(f *ir.Field, raw uint64) Value {
	return Value{Raw: raw, Width: f.Width, Signed: f.Signed, IsBool: f.Bool}
}

// pattern converts a uint64-widened field value into the unsigned bit
// pattern of the field's own type.
func pattern(f *ir.Field, v uint64) uint64 {
	if f.Bool {
		if v != 0 {
			return 1
		}
		return 0
	}
	if f.TypeBits < 64 {
		v &= 1<<uint(f.TypeBits) - 1
	}
	return v
}

func swapBytes(v uint128.Uint128, bits int) uint128.Uint128 {
	switch bits {
	case 8:
		return v
	case 16:
		return uint128.From64(uint64(mbits.ReverseBytes16(uint16(v.Lo))))
	case 32:
		return uint128.From64(uint64(mbits.ReverseBytes32(uint32(v.Lo))))
	case 64:
		return uint128.From64(mbits.ReverseBytes64(v.Lo))
	}
	return v.ReverseBytes()
}
