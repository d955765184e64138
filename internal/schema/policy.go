package schema

import (
	"fmt"
	"go/token"
	"strings"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
)

// Directive is the comment prefix that marks a struct as a bitfield
// declaration.
const Directive = "//bitgen:bitfield"

// Arg is one policy argument. Key is empty for positional arguments.
type Arg struct {
	Key   string
	Value string
}

// SplitArgs splits the text after the directive into arguments.
func SplitArgs(text string) []Arg {
	var args []Arg
	for _, word := range strings.Fields(text) {
		if k, v, ok := strings.Cut(word, "="); ok {
			args = append(args, Arg{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
			continue
		}
		args = append(args, Arg{Value: word})
	}
	return args
}

type policyParser struct {
	policy ir.Policy
	pos    token.Position
	errs   ErrorList
	seen   map[string]bool
}

// ParsePolicy builds a policy from args. The first positional argument, or
// the type key, names the backing type. defaultName is used unless a name
// key is present. Every problem is returned in an ErrorList.
func ParsePolicy(defaultName string, args []Arg, pos token.Position) (ir.Policy, error) {
	p := &policyParser{
		policy: ir.DefaultPolicy(defaultName, ir.Uint8),
		pos:    pos,
		seen:   make(map[string]bool),
	}
	backing := ""
	for _, arg := range args {
		key := strings.ToLower(arg.Key)
		if key == "" {
			if backing != "" {
				p.errorf(diag.InvalidPolicyValue, "unexpected argument %q", arg.Value)
				continue
			}
			backing = arg.Value
			continue
		}
		if p.seen[key] {
			p.errorf(diag.InvalidPolicyValue, "key %q given more than once", key)
			continue
		}
		p.seen[key] = true
		if key == "type" {
			if backing != "" {
				p.errorf(diag.InvalidPolicyValue, "backing type given twice (%q and %q)", backing, arg.Value)
				continue
			}
			backing = arg.Value
			continue
		}
		p.apply(key, arg.Value)
	}

	switch bt, ok := ir.ParseBackingType(backing); {
	case backing == "":
		p.errorf(diag.UnsupportedBackingType, "missing backing type: want one of uint8, uint16, uint32, uint64, uint128")
	case !ok:
		p.errorf(diag.UnsupportedBackingType, "unsupported backing type %q: want one of uint8, uint16, uint32, uint64, uint128", backing)
	default:
		p.policy.Backing = bt
	}
	return p.policy, p.errs.Err()
}

func (p *policyParser) apply(key, value string) {
	lower := strings.ToLower(value)
	feat := &p.policy.Features
	switch key {
	case "name":
		if !token.IsIdentifier(value) {
			p.errorf(diag.InvalidPolicyValue, "name %q is not a valid Go identifier", value)
			return
		}
		p.policy.Name = value
	case "order":
		switch lower {
		case "lsb":
			p.policy.Order = ir.LsbFirst
		case "msb":
			p.policy.Order = ir.MsbFirst
		default:
			p.errorf(diag.InvalidPolicyValue, "order must be lsb or msb, got %q", value)
		}
	case "from_endian":
		p.policy.FromEndian = p.endian(key, lower)
	case "into_endian":
		p.policy.IntoEndian = p.endian(key, lower)
	case "new":
		feat.New = p.boolean(key, lower)
	case "into_bits":
		feat.IntoBits = p.boolean(key, lower)
	case "from_bits":
		feat.FromBits = p.boolean(key, lower)
	case "from":
		feat.Conversions = p.boolean(key, lower)
	case "default":
		feat.Default = p.boolean(key, lower)
	case "debug":
		feat.Debug = p.boolean(key, lower)
	case "builder":
		feat.Builder = p.boolean(key, lower)
	case "bit_ops":
		feat.BitOps = p.boolean(key, lower)
	case "set_bits":
		feat.SetBits = p.boolean(key, lower)
	case "clear_bits":
		feat.ClearBits = p.boolean(key, lower)
	case "neg":
		feat.Neg = p.boolean(key, lower)
	default:
		p.errorf(diag.UnknownPolicyKey, "unknown key %q", key)
	}
}

func (p *policyParser) endian(key, value string) ir.Endian {
	switch value {
	case "big", "be":
		return ir.Big
	case "little", "le":
		return ir.Little
	}
	p.errorf(diag.InvalidPolicyValue, "%s must be big or little, got %q", key, value)
	return ir.Big
}

func (p *policyParser) boolean(key, value string) bool {
	switch value {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	}
	p.errorf(diag.InvalidPolicyValue, "%s must be true or false, got %q", key, value)
	return false
}

func (p *policyParser) errorf(code diag.Code, format string, args ...any) {
	p.errs = append(p.errs, &Error{
		Code: code,
		Pos:  p.pos,
		Type: p.policy.Name,
		Msg:  fmt.Sprintf(format, args...),
	})
}
