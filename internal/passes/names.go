package passes

import (
	"fmt"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
)

// NameCheck rejects fields whose generated identifiers collide, either with
// each other or with the members every generated type carries. Identifiers
// are checked per Go scope: the methods and fields of the generated type,
// the package block and the methods of the builder.
type NameCheck struct {
	reporter *diag.Reporter
}

// NewNameCheck constructs the pass.
func NewNameCheck(reporter *diag.Reporter) *NameCheck {
	return &NameCheck{reporter: reporter}
}

// Name implements the Pass interface.
func (n *NameCheck) Name() string {
	return "names"
}

// Run implements the Pass interface.
func (n *NameCheck) Run(bf *ir.Bitfield) error {
	names := ir.NamesFor(bf.Name)
	feat := bf.Policy.Features

	members := newScope()
	members.fixed(ownerStorage, ir.StorageField)
	if feat.IntoBits {
		members.fixed(ownerMethod, "IntoBits")
	}
	if feat.Conversions {
		members.fixed(ownerMethod, "MarshalBinary", "UnmarshalBinary")
	}
	if feat.Default {
		members.fixed(ownerMethod, "Reset")
	}
	if feat.SetBits {
		members.fixed(ownerMethod, "SetBits", "SetBitsWithDefaults")
	}
	if feat.ClearBits {
		members.fixed(ownerMethod, "ClearBits", "ClearBitsWithDefaults")
	}
	if feat.BitOps {
		members.fixed(ownerMethod, "GetBit", "CheckedGetBit", "SetBit", "CheckedSetBit")
	}
	if feat.Debug {
		members.fixed(ownerMethod, "String")
	}
	if feat.Builder {
		members.fixed(ownerMethod, "ToBuilder")
	}

	pkg := newScope()
	pkg.fixed(ownerType, names.Type)
	if feat.New {
		pkg.fixed(ownerFunc, names.Func("New", ""), names.Func("New", "WithoutDefaults"))
	}
	if feat.FromBits {
		pkg.fixed(ownerFunc, names.FromBits(), names.FromBits()+"WithDefaults")
	}
	if feat.Builder {
		pkg.fixed(ownerType, names.Builder())
		pkg.fixed(ownerFunc, names.Func("New", "Builder"), names.Func("New", "BuilderWithoutDefaults"))
	}

	builder := newScope()
	builder.fixed(ownerMethod, "Build")

	failed := 0
	claim := func(s scope, f *ir.Field, ident string) {
		if prev, taken := s[ident]; taken && prev != f.Name {
			failed++
			n.reporter.Report(diag.Diagnostic{
				Code:     diag.GeneratedNameCollision,
				Position: f.Pos,
				Type:     bf.Name,
				Field:    f.Name,
				Message:  fmt.Sprintf("generated identifier %s collides with %s", ident, describeOwner(prev)),
			})
			return
		}
		s[ident] = f.Name
	}

	for _, f := range bf.Ignored {
		claim(members, f, f.Name)
	}
	for _, f := range bf.Fields {
		if f.Padding || f.Access == ir.NoAccess {
			continue
		}
		if f.Access.CanRead() {
			claim(members, f, names.Field(f, ""))
			if feat.Neg {
				claim(members, f, names.Field(f, "Neg"))
			}
		}
		if f.Access.CanWrite() {
			claim(members, f, names.Field(f, "Set"))
			claim(members, f, names.Field(f, "CheckedSet"))
		}
		if f.HasConstants() {
			claim(pkg, f, names.Const(f, "Bits"))
			claim(pkg, f, names.Const(f, "Offset"))
		}
		if feat.Builder && (f.Access.CanWrite() || f.Access == ir.ReadOnly) {
			claim(builder, f, names.Field(f, "With"))
			claim(builder, f, names.Field(f, "CheckedWith"))
		}
	}
	if failed > 0 {
		return fmt.Errorf("bitfield %s: %d identifier collision(s)", bf.Name, failed)
	}
	return nil
}

// scope maps an identifier to the field that generated it.
type scope map[string]string

func newScope() scope {
	return make(scope)
}

func (s scope) fixed(owner string, idents ...string) {
	for _, ident := range idents {
		s[ident] = owner
	}
}

// Owners that are not field names start with a space so they never equal one.
const (
	ownerStorage = " storage field"
	ownerMethod  = " method"
	ownerFunc    = " function"
	ownerType    = " type"
)

func describeOwner(owner string) string {
	switch owner {
	case ownerStorage, ownerMethod, ownerFunc, ownerType:
		return "the generated" + owner
	}
	return "the identifier generated for field " + owner
}
