package literal

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"math/big"
	"regexp"
	"strings"
)

var (
	// ErrFloat marks a floating point literal. Float defaults are rejected.
	ErrFloat = errors.New("floating point literal")
	// ErrNotLiteral marks an expression that is not a numeric literal, such
	// as a named constant or a function call.
	ErrNotLiteral = errors.New("not a numeric literal")
)

// Number is a parsed integer literal.
type Number struct {
	Magnitude *big.Int
	Negative  bool
	// HadSuffix is set when the literal carried an explicit integer type,
	// either as a Go conversion (uint8(5)) or as a trailing type name (5u8).
	HadSuffix bool
}

var suffixPattern = regexp.MustCompile(`^(.*?)((?:u|i|uint|int)(?:8|16|32|64|128|size)|uint|int|uintptr)$`)

var conversionTypes = map[string]bool{
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "int": true, "uintptr": true, "byte": true,
}

// Parse interprets expr as an integer literal.
func Parse(expr string) (Number, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return Number{}, ErrNotLiteral
	}

	if node, err := parser.ParseExpr(s); err == nil {
		switch n := node.(type) {
		case *ast.Ident:
			switch n.Name {
			case "true":
				return Number{Magnitude: big.NewInt(1)}, nil
			case "false":
				return Number{Magnitude: big.NewInt(0)}, nil
			}
			return Number{}, ErrNotLiteral
		case *ast.CallExpr:
			return parseConversion(s, n)
		case *ast.ParenExpr:
			return Parse(s[n.Lparen:n.Rparen-1])
		case *ast.BasicLit, *ast.UnaryExpr:
		default:
			return Number{}, ErrNotLiteral
		}
	}

	return parseText(s)
}

func parseConversion(src string, call *ast.CallExpr) (Number, error) {
	fn, ok := call.Fun.(*ast.Ident)
	if !ok || len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return Number{}, ErrNotLiteral
	}
	if fn.Name == "float32" || fn.Name == "float64" {
		return Number{}, ErrFloat
	}
	if !conversionTypes[fn.Name] {
		return Number{}, ErrNotLiteral
	}
	arg := call.Args[0]
	// Positions are 1-based offsets into src because ParseExpr uses a fresh
	// file set.
	inner := src[arg.Pos()-1 : arg.End()-1]
	n, err := Parse(inner)
	if err != nil {
		return Number{}, err
	}
	n.HadSuffix = true
	return n, nil
}

func parseText(s string) (Number, error) {
	s = strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(s))

	var n Number
	switch {
	case strings.HasPrefix(s, "-"):
		n.Negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	hex := strings.HasPrefix(s, "0x")
	if !hex && (strings.Contains(s, ".") || strings.HasSuffix(s, "f32") || strings.HasSuffix(s, "f64")) {
		return Number{}, ErrFloat
	}
	if m := suffixPattern.FindStringSubmatch(s); m != nil && m[1] != "" {
		s = m[1]
		n.HadSuffix = true
	}

	node, err := parser.ParseExpr(s)
	if err != nil {
		return Number{}, ErrNotLiteral
	}
	lit, ok := node.(*ast.BasicLit)
	if !ok {
		return Number{}, ErrNotLiteral
	}
	switch lit.Kind {
	case token.INT:
	case token.FLOAT, token.IMAG:
		return Number{}, ErrFloat
	default:
		return Number{}, ErrNotLiteral
	}

	v := constant.MakeFromLiteral(lit.Value, token.INT, 0)
	if v.Kind() != constant.Int {
		return Number{}, ErrNotLiteral
	}
	switch x := constant.Val(v).(type) {
	case int64:
		n.Magnitude = big.NewInt(x)
	case *big.Int:
		n.Magnitude = new(big.Int).Set(x)
	default:
		return Number{}, ErrNotLiteral
	}
	if n.Magnitude.Sign() == 0 {
		n.Negative = false
	}
	return n, nil
}

// Value returns the signed value of n.
func (n Number) Value() *big.Int {
	v := new(big.Int).Set(n.magnitude())
	if n.Negative {
		v.Neg(v)
	}
	return v
}

// FitsBits reports whether the magnitude is representable in bits unsigned
// bits, that is magnitude < 2^bits.
func (n Number) FitsBits(bits int) bool {
	return n.magnitude().BitLen() <= bits
}

// BitPattern returns the two's-complement encoding of n truncated to width
// bits.
func (n Number) BitPattern(width int) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	v := n.Value()
	v.Mod(v, mod)
	return v
}

// String renders n as a signed decimal, which is how diagnostics cite it.
func (n Number) String() string {
	return n.Value().String()
}

func (n Number) magnitude() *big.Int {
	if n.Magnitude == nil {
		return new(big.Int)
	}
	return n.Magnitude
}

// Describe is a debugging helper used by dumps.
func (n Number) Describe() string {
	if n.HadSuffix {
		return fmt.Sprintf("%s (typed)", n.String())
	}
	return n.String()
}
