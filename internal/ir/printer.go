package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable description of the resolved layout.
func Dump(bf *Bitfield, w io.Writer) {
	if bf == nil {
		fmt.Fprintln(w, "<nil bitfield>")
		return
	}
	p := bf.Policy
	fmt.Fprintf(w, "bitfield %s %s order=%s from_endian=%s into_endian=%s\n",
		bf.Name, p.Backing, p.Order, p.FromEndian, p.IntoEndian)
	dumpFields(bf, w)
	dumpIgnored(bf, w)
}

func dumpFields(bf *Bitfield, w io.Writer) {
	if len(bf.Fields) == 0 {
		return
	}
	fmt.Fprintln(w, "  fields:")
	for _, f := range bf.Fields {
		fmt.Fprintf(w, "    %-12s %-9s %3db %-8s %-4s%s%s\n",
			f.Name,
			bitSpan(f, bf.Policy.Order),
			f.Width,
			f.Type,
			accessLabel(f),
			signSuffix(f),
			defaultSuffix(f),
		)
	}
}

func dumpIgnored(bf *Bitfield, w io.Writer) {
	if len(bf.Ignored) == 0 {
		return
	}
	fmt.Fprintln(w, "  ignored:")
	for _, f := range bf.Ignored {
		fmt.Fprintf(w, "    %-12s %s%s\n", f.Name, f.Type, defaultSuffix(f))
	}
}

// DumpOps writes one line per generated operation.
func DumpOps(set *OperationSet, w io.Writer) {
	if set == nil {
		fmt.Fprintln(w, "<nil operation set>")
		return
	}
	fmt.Fprintf(w, "ops %s (%d)\n", set.Names.Type, len(set.Ops))
	for _, op := range set.Ops {
		fmt.Fprintf(w, "  %s\n", describeOp(op))
	}
}

func describeOp(op Operation) string {
	name := op.Info().Name
	switch o := op.(type) {
	case *FieldConstant:
		return fmt.Sprintf("const %s = %d", name, o.Value)
	case *Getter:
		kind := "get"
		if o.Inverted {
			kind = "neg"
		}
		return fmt.Sprintf("%s %s %s", kind, name, arithLabel(o.Arith))
	case *Setter:
		kind := "set"
		if o.Checked {
			kind = "checked-set"
		}
		return fmt.Sprintf("%s %s %s", kind, name, arithLabel(o.Arith))
	case *Constructor:
		swap := ""
		if o.Swap {
			swap = " swap"
		}
		return fmt.Sprintf("%s %s%s [%s]", o.Kind, name, swap, stepsLabel(o.Steps))
	case *Encode:
		kind := "into-bits"
		if o.Binary {
			kind = "marshal"
		}
		if o.Swap {
			kind += " swap"
		}
		return fmt.Sprintf("%s %s", kind, name)
	case *BulkUpdate:
		return fmt.Sprintf("%s %s [%s]", o.Kind, name, stepsLabel(o.Steps))
	case *BitOp:
		kind := "get-bit"
		if o.Write {
			kind = "set-bit"
		}
		if o.Checked {
			kind = "checked-" + kind
		}
		guards := make([]string, 0, len(o.Guards))
		for _, g := range o.Guards {
			guards = append(guards, fmt.Sprintf("%d..=%d", g.Lo, g.Hi))
		}
		return fmt.Sprintf("%s %s width=%d guards=[%s]", kind, name, o.Width, strings.Join(guards, " "))
	case *BuilderNew:
		return fmt.Sprintf("builder-new %s defaults=%t [%s]", name, o.WithDefaults, stepsLabel(o.Steps))
	case *BuilderWith:
		kind := "with"
		if o.Checked {
			kind = "checked-with"
		}
		return fmt.Sprintf("%s %s %s", kind, name, arithLabel(o.Arith))
	case *BuilderBuild:
		return "build " + name
	case *ToBuilder:
		return "to-builder " + name
	case *Debug:
		names := make([]string, 0, len(o.Fields))
		for _, f := range o.Fields {
			names = append(names, f.Name)
		}
		return fmt.Sprintf("debug %s [%s]", name, strings.Join(names, " "))
	}
	return fmt.Sprintf("%T %s", op, name)
}

func arithLabel(a Arith) string {
	label := fmt.Sprintf("bits %d..=%d mask=%#x", a.Offset, a.Offset+a.Width-1, a.Mask.Lo)
	if a.SignShift > 0 {
		label += fmt.Sprintf(" sext=%d", a.SignShift)
	}
	return label
}

func stepsLabel(steps []Step) string {
	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		parts = append(parts, st.Field.Name+"="+st.Source.String())
	}
	return strings.Join(parts, " ")
}

// BitSpan renders the bit range of f, high index first for MSB-first layouts.
func BitSpan(f *Field, order BitOrder) string {
	return bitSpan(f, order)
}

func bitSpan(f *Field, order BitOrder) string {
	lo, hi := f.Offset, f.Offset+f.Width-1
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	if order == MsbFirst {
		return fmt.Sprintf("%d..=%d", hi, lo)
	}
	return fmt.Sprintf("%d..=%d", lo, hi)
}

func accessLabel(f *Field) string {
	if f.Padding {
		return "pad"
	}
	return f.Access.String()
}

func signSuffix(f *Field) string {
	if f.SignExtend() {
		return " sext"
	}
	return ""
}

func defaultSuffix(f *Field) string {
	if f.Default == nil {
		return ""
	}
	return " default=" + f.Default.Expr
}
