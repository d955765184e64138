package validate

import (
	"fmt"
	"go/types"
)

// Contract records how a custom field type converts to and from its integer
// representation.
type Contract struct {
	// Repr is the unsigned integer type name, such as "uint8".
	Repr string
	// FromBits is the constructor function name.
	FromBits string
}

var reprNames = map[types.BasicKind]string{
	types.Uint8:  "uint8",
	types.Uint16: "uint16",
	types.Uint32: "uint32",
	types.Uint64: "uint64",
}

// CustomContract checks that t can be packed as a custom field: it must have
// an IntoBits method returning a fixed-size unsigned integer, and its package
// must declare a function <Name>FromBits taking that integer and returning t.
func CustomContract(t types.Type) (Contract, error) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return Contract{}, fmt.Errorf("only named types can be packed")
	}
	if named.TypeParams().Len() > 0 || named.TypeArgs().Len() > 0 {
		return Contract{}, fmt.Errorf("generic types can't be packed")
	}
	obj := named.Obj()
	if obj.Pkg() == nil {
		return Contract{}, fmt.Errorf("predeclared type %s can't be packed", obj.Name())
	}

	sel := types.NewMethodSet(types.NewPointer(named)).Lookup(obj.Pkg(), "IntoBits")
	if sel == nil {
		return Contract{}, fmt.Errorf("missing method IntoBits() uintN")
	}
	sig, ok := sel.Type().(*types.Signature)
	if !ok || sig.Params().Len() != 0 || sig.Results().Len() != 1 {
		return Contract{}, fmt.Errorf("IntoBits must take no arguments and return a single unsigned integer")
	}
	reprType := sig.Results().At(0).Type()
	repr, ok := reprName(reprType)
	if !ok {
		return Contract{}, fmt.Errorf("IntoBits returns %s, want uint8, uint16, uint32 or uint64", reprType)
	}

	fnName := obj.Name() + "FromBits"
	fn, ok := obj.Pkg().Scope().Lookup(fnName).(*types.Func)
	if !ok {
		return Contract{}, fmt.Errorf("missing function %s(%s) %s", fnName, repr, obj.Name())
	}
	fsig, ok := fn.Type().(*types.Signature)
	if !ok || fsig.Params().Len() != 1 || fsig.Results().Len() != 1 {
		return Contract{}, fmt.Errorf("%s must take one %s and return %s", fnName, repr, obj.Name())
	}
	if !types.Identical(fsig.Params().At(0).Type(), reprType) {
		return Contract{}, fmt.Errorf("%s takes %s, but IntoBits returns %s", fnName, fsig.Params().At(0).Type(), repr)
	}
	if !types.Identical(fsig.Results().At(0).Type(), named) {
		return Contract{}, fmt.Errorf("%s returns %s, want %s", fnName, fsig.Results().At(0).Type(), obj.Name())
	}
	return Contract{Repr: repr, FromBits: fnName}, nil
}

func reprName(t types.Type) (string, bool) {
	b, ok := types.Unalias(t).(*types.Basic)
	if !ok {
		return "", false
	}
	name, ok := reprNames[b.Kind()]
	return name, ok
}
