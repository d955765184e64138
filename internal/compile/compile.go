package compile

import (
	"fmt"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
	"bitgen/internal/lower"
	"bitgen/internal/passes"
)

// Declaration compiles a single declaration into its operation set.
func Declaration(decl *ir.Declaration, reporter *diag.Reporter) (*ir.OperationSet, error) {
	bf, err := ir.BuildBitfield(decl, reporter)
	if err != nil {
		return nil, err
	}
	if err := runDefaultPasses(bf, reporter); err != nil {
		return nil, err
	}
	return lower.Lower(bf)
}

// All compiles every declaration. Failing declarations do not stop the
// others from being checked, so every problem is reported in one run, but
// no operation set is returned unless all of them succeed.
func All(decls []ir.Declaration, reporter *diag.Reporter) ([]*ir.OperationSet, error) {
	sets := make([]*ir.OperationSet, 0, len(decls))
	failed := 0
	for i := range decls {
		set, err := Declaration(&decls[i], reporter)
		if err != nil {
			failed++
			continue
		}
		sets = append(sets, set)
	}
	if failed > 0 {
		return nil, fmt.Errorf("%d of %d bitfield(s) failed to compile", failed, len(decls))
	}
	if err := checkPackageNames(sets, reporter); err != nil {
		return nil, err
	}
	return sets, nil
}

func runDefaultPasses(bf *ir.Bitfield, reporter *diag.Reporter) error {
	before := reporter.ErrorCount()
	passMgr := passes.NewManager()
	passMgr.Add(passes.NewLayoutResolver(reporter))
	passMgr.Add(passes.NewNameCheck(reporter))
	if err := passMgr.Run(bf); err != nil {
		return err
	}
	if reporter.ErrorCount() > before {
		return fmt.Errorf("analysis passes reported errors")
	}
	return nil
}

// checkPackageNames rejects two declarations generating the same type, or
// any other package-level identifier, in one output file.
func checkPackageNames(sets []*ir.OperationSet, reporter *diag.Reporter) error {
	types := make(map[string]*ir.Bitfield, len(sets))
	owner := make(map[string]*ir.Bitfield)
	dups := 0
	for _, set := range sets {
		bf := set.Bitfield
		if first, ok := types[bf.Name]; ok {
			dups++
			reporter.Report(diag.Diagnostic{
				Code:     diag.GeneratedNameCollision,
				Position: bf.Pos,
				Type:     bf.Name,
				Message:  fmt.Sprintf("type %s is already generated by %s at %s", bf.Name, first.Source, first.Pos),
			})
			continue
		}
		types[bf.Name] = bf
		for _, ident := range set.PackageIdents() {
			if first, ok := owner[ident]; ok {
				dups++
				reporter.Report(diag.Diagnostic{
					Code:     diag.GeneratedNameCollision,
					Position: bf.Pos,
					Type:     bf.Name,
					Message:  fmt.Sprintf("generated identifier %s is already declared for type %s", ident, first.Name),
				})
				continue
			}
			owner[ident] = bf
		}
	}
	if dups > 0 {
		return fmt.Errorf("%d duplicate package-level name(s)", dups)
	}
	return nil
}
