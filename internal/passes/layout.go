package passes

import (
	"fmt"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
)

// LayoutResolver assigns bit offsets from the declaration order and the bit
// order, then checks that the fields fill the backing type exactly.
type LayoutResolver struct {
	reporter *diag.Reporter
}

// NewLayoutResolver constructs the pass.
func NewLayoutResolver(reporter *diag.Reporter) *LayoutResolver {
	return &LayoutResolver{reporter: reporter}
}

// Name implements the Pass interface.
func (l *LayoutResolver) Name() string {
	return "layout"
}

// Run implements the Pass interface.
func (l *LayoutResolver) Run(bf *ir.Bitfield) error {
	backing := bf.Policy.Backing.Bits()
	prefix := 0
	for _, f := range bf.Fields {
		f.Offset = offsetOf(bf.Policy.Order, backing, prefix, f.Width)
		prefix += f.Width
	}

	total := bf.TotalWidth()
	switch {
	case total > backing:
		l.report(bf, diag.LayoutBudgetExceeded,
			"total number of bits for the fields (%d bits) is greater than the number of bits of the bitfield type '%s' (%d bits); remove %d bits",
			total, bf.Policy.Backing, backing, total-backing)
		return fmt.Errorf("bitfield %s uses %d of %d bits", bf.Name, total, backing)
	case total < backing:
		l.report(bf, diag.LayoutBudgetUnderfilled,
			"total number of bits for the fields (%d bits) is less than the number of bits of the bitfield type '%s' (%d bits); add a padding field (prefixed with '_') of %d bits to fill the remaining bits",
			total, bf.Policy.Backing, backing, backing-total)
		return fmt.Errorf("bitfield %s uses %d of %d bits", bf.Name, total, backing)
	}
	bf.Resolved = true
	return nil
}

// offsetOf places a field of width bits whose predecessors occupy prefix
// bits. MSB-first offsets clamp to zero instead of underflowing; the budget
// check rejects such layouts afterwards.
func offsetOf(order ir.BitOrder, backing, prefix, width int) int {
	if order == ir.LsbFirst {
		return prefix
	}
	if prefix+width < backing {
		return backing - width - prefix
	}
	return 0
}

func (l *LayoutResolver) report(bf *ir.Bitfield, code diag.Code, format string, args ...any) {
	l.reporter.Report(diag.Diagnostic{
		Code:     code,
		Position: bf.Pos,
		Type:     bf.Name,
		Message:  fmt.Sprintf(format, args...),
	})
}
