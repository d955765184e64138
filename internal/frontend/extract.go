package frontend

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"
	gopackages "golang.org/x/tools/go/packages"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
	"bitgen/internal/schema"
	"bitgen/internal/validate"
)

// Package is a loaded Go package and the bitfields it declares.
type Package struct {
	Name         string
	Path         string
	Dir          string
	Declarations []ir.Declaration
}

// specSuffix is trimmed from a declaration name to derive the generated
// type name when the directive has no name key.
const specSuffix = "Spec"

type candidate struct {
	spec   *ast.TypeSpec
	st     *ast.StructType
	policy ir.Policy
	doc    string
	pos    token.Position
}

type extractor struct {
	pkg      *gopackages.Package
	reporter *diag.Reporter
	failed   int
	// pending maps generated type names to their backing types, so fields
	// can refer to bitfields that have not been generated yet.
	pending map[string]ir.BackingType
}

// Extract returns the bitfield declarations found in pkgs. Packages without
// declarations are omitted.
func Extract(pkgs []*gopackages.Package, reporter *diag.Reporter) ([]*Package, error) {
	var out []*Package
	failed := 0
	for _, pkg := range pkgs {
		if pkg == nil || pkg.Types == nil {
			continue
		}
		e := &extractor{
			pkg:      pkg,
			reporter: reporter,
			pending:  make(map[string]ir.BackingType),
		}
		decls := e.run()
		failed += e.failed
		if len(decls) == 0 {
			continue
		}
		dir := ""
		if len(pkg.GoFiles) > 0 {
			dir = filepathDir(pkg.GoFiles[0])
		}
		out = append(out, &Package{
			Name:         pkg.Name,
			Path:         pkg.PkgPath,
			Dir:          dir,
			Declarations: decls,
		})
		Logger().Debug("extracted declarations",
			zap.String("package", pkg.PkgPath),
			zap.Int("declarations", len(decls)),
		)
	}
	if failed > 0 {
		return nil, fmt.Errorf("%d declaration error(s)", failed)
	}
	return out, nil
}

func (e *extractor) position(pos token.Pos) token.Position {
	return e.pkg.Fset.Position(pos)
}

func (e *extractor) report(code diag.Code, pos token.Pos, typ, field, format string, args ...any) {
	e.failed++
	e.reporter.Report(diag.Diagnostic{
		Code:     code,
		Position: e.position(pos),
		Type:     typ,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (e *extractor) run() []ir.Declaration {
	var cands []candidate
	for _, file := range e.pkg.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				if c, ok := e.candidate(ts, doc); ok {
					cands = append(cands, c)
				}
			}
		}
	}

	decls := make([]ir.Declaration, 0, len(cands))
	for _, c := range cands {
		decl := ir.Declaration{
			Name:   c.spec.Name.Name,
			Policy: c.policy,
			Doc:    c.doc,
			Pos:    c.pos,
		}
		ok := true
		for _, field := range c.st.Fields.List {
			fds, fieldOK := e.fields(c.policy.Name, field)
			ok = ok && fieldOK
			decl.Fields = append(decl.Fields, fds...)
		}
		if ok {
			decls = append(decls, decl)
		}
	}
	return decls
}

func (e *extractor) candidate(ts *ast.TypeSpec, doc *ast.CommentGroup) (candidate, bool) {
	cm := validate.DirectiveComment(doc)
	if cm == nil {
		return candidate{}, false
	}
	st, ok := ts.Type.(*ast.StructType)
	if !ok || ts.TypeParams != nil || ts.Assign.IsValid() {
		// Reported by validate.CheckDirectives.
		return candidate{}, false
	}

	declName := ts.Name.Name
	defaultName := ""
	if trimmed, found := strings.CutSuffix(declName, specSuffix); found && trimmed != "" {
		defaultName = trimmed
	}
	pos := e.position(ts.Pos())
	args := schema.SplitArgs(strings.TrimPrefix(cm.Text, schema.Directive))
	policy, err := schema.ParsePolicy(defaultName, args, pos)
	if err != nil {
		schema.Report(e.reporter, err)
		e.failed++
		return candidate{}, false
	}
	switch {
	case policy.Name == "":
		e.report(diag.UnsupportedDeclaration, ts.Pos(), declName, "",
			"cannot derive a type name: add name=... to the directive or end the declaration name with %q", specSuffix)
		return candidate{}, false
	case policy.Name == declName:
		e.report(diag.UnsupportedDeclaration, ts.Pos(), declName, "",
			"generated type name %s collides with the declaration itself", policy.Name)
		return candidate{}, false
	}
	if _, dup := e.pending[policy.Name]; dup {
		e.report(diag.UnsupportedDeclaration, ts.Pos(), declName, "",
			"generated type name %s is used by another declaration", policy.Name)
		return candidate{}, false
	}
	e.pending[policy.Name] = policy.Backing

	return candidate{
		spec:   ts,
		st:     st,
		policy: policy,
		doc:    strings.TrimSpace(doc.Text()),
		pos:    pos,
	}, true
}

func (e *extractor) fields(typ string, field *ast.Field) ([]ir.FieldDecl, bool) {
	if len(field.Names) == 0 {
		e.report(diag.UnsupportedDeclaration, field.Pos(), typ, "", "embedded fields are not supported")
		return nil, false
	}

	var meta ir.FieldDecl
	if field.Tag != nil {
		raw, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			e.report(diag.InvalidFieldTag, field.Tag.Pos(), typ, field.Names[0].Name, "malformed struct tag: %v", err)
			return nil, false
		}
		if value, ok := reflect.StructTag(raw).Lookup(schema.TagKey); ok {
			if err := schema.ParseFieldTag(&meta, value); err != nil {
				e.report(diag.InvalidFieldTag, field.Tag.Pos(), typ, field.Names[0].Name, "%v", err)
				return nil, false
			}
		}
	}

	ref, foreignComposite := e.typeRef(field.Type)
	if meta.Ignore && foreignComposite {
		e.report(diag.UnsupportedFieldType, field.Type.Pos(), typ, field.Names[0].Name,
			"ignored field type %s refers to another package; use a named type declared in this package", ref.Name)
		return nil, false
	}

	out := make([]ir.FieldDecl, 0, len(field.Names))
	for _, name := range field.Names {
		fd := meta
		fd.Name = name.Name
		fd.Type = ref
		fd.Pos = e.position(name.Pos())
		out = append(out, fd)
	}
	return out, true
}

// typeRef classifies a field type expression. foreignComposite is set for
// composite types mentioning other packages, which the generated file could
// not import.
func (e *extractor) typeRef(expr ast.Expr) (ref ir.TypeRef, foreignComposite bool) {
	t := e.pkg.TypesInfo.TypeOf(expr)
	if t == nil || t == types.Typ[types.Invalid] {
		return e.unresolved(expr), false
	}

	switch tt := types.Unalias(t).(type) {
	case *types.Basic:
		if tt.Kind() == types.Invalid {
			return e.unresolved(expr), false
		}
		return ir.TypeRef{Name: tt.Name()}, false
	case *types.Named:
		obj := tt.Obj()
		ref = ir.TypeRef{Name: obj.Name()}
		if obj.Pkg() != nil && obj.Pkg() != e.pkg.Types {
			ref.PkgPath = obj.Pkg().Path()
			ref.PkgName = obj.Pkg().Name()
		}
		if c, err := validate.CustomContract(tt); err != nil {
			ref.Unsupported = err.Error()
		} else {
			ref.Repr = c.Repr
			ref.FromBits = c.FromBits
		}
		return ref, false
	}

	name := types.TypeString(t, func(p *types.Package) string {
		if p == e.pkg.Types {
			return ""
		}
		foreignComposite = true
		return p.Name()
	})
	return ir.TypeRef{Name: name, Unsupported: "only named types can be packed"}, foreignComposite
}

// unresolved handles identifiers the type checker could not resolve. A
// bitfield declared in the same package is accepted before its type has
// been generated.
func (e *extractor) unresolved(expr ast.Expr) ir.TypeRef {
	name := types.ExprString(expr)
	id, ok := expr.(*ast.Ident)
	if !ok {
		return ir.TypeRef{Name: name, Unsupported: "type could not be resolved"}
	}
	backing, pending := e.pending[id.Name]
	if !pending {
		return ir.TypeRef{Name: name, Unsupported: "type could not be resolved"}
	}
	if backing == ir.Uint128 {
		return ir.TypeRef{Name: name, Unsupported: "128-bit bitfields can't be nested"}
	}
	return ir.TypeRef{Name: name, Repr: backing.String(), FromBits: name + "FromBits"}
}

func filepathDir(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[:i]
	}
	return "."
}
