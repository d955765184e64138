package frontend

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	gopackages "golang.org/x/tools/go/packages"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
	"bitgen/internal/validate"
)

// checkedPackage type-checks src the way LoadPackages would, tolerating
// references to types that have not been generated yet.
func checkedPackage(t *testing.T, src string) *gopackages.Package {
	t.Helper()
	fset := token.NewFileSet()
	path := filepath.Join("testdata", "regs", "regs.go")
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
	conf := types.Config{Error: func(error) {}}
	pkg, _ := conf.Check("example.com/regs", fset, []*ast.File{file}, info)
	return &gopackages.Package{
		Name:      "regs",
		PkgPath:   "example.com/regs",
		GoFiles:   []string{path},
		Fset:      fset,
		Syntax:    []*ast.File{file},
		Types:     pkg,
		TypesInfo: info,
	}
}

const regsSrc = `package regs

// Kind selects the transfer kind.
type Kind uint8

func (k Kind) IntoBits() uint8 { return uint8(k) }

func KindFromBits(v uint8) Kind { return Kind(v) }

// StatusSpec describes the status register.
//
//bitgen:bitfield uint16 bit_ops=true
type StatusSpec struct {
	Mode  uint8  ` + "`bits:\"4,default=0x3\"`" + `
	Ready bool   ` + "`bits:\"access=ro\" json:\"ready\"`" + `
	Kind  Kind   ` + "`bits:\"3\"`" + `
	_     uint8  ` + "`bits:\"8\"`" + `
	Note  string ` + "`bits:\"ignore\"`" + `
}

//bitgen:bitfield uint8 name=Inner order=msb
type innerSpec struct {
	A, B uint8 ` + "`bits:\"4\"`" + `
}

//bitgen:bitfield uint16
type OuterSpec struct {
	In    Inner
	Extra uint8
	Tags  []string
}

type Plain struct{ A uint8 }
`

func TestExtract(t *testing.T) {
	reporter := diag.NewReporter(nil, "text")
	pkgs, err := Extract([]*gopackages.Package{checkedPackage(t, regsSrc)}, reporter)
	if err != nil {
		t.Fatalf("Extract failed: %v (%v)", err, reporter.Diagnostics())
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected one package, got %d", len(pkgs))
	}
	pkg := pkgs[0]
	if pkg.Name != "regs" || pkg.Path != "example.com/regs" || pkg.Dir != filepath.Join("testdata", "regs") {
		t.Fatalf("unexpected package %+v", pkg)
	}
	if len(pkg.Declarations) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(pkg.Declarations))
	}

	status := pkg.Declarations[0]
	if status.Name != "StatusSpec" || status.Policy.Name != "Status" || status.Policy.Backing != ir.Uint16 || !status.Policy.Features.BitOps {
		t.Fatalf("unexpected status declaration %+v", status)
	}
	if status.Doc != "StatusSpec describes the status register." {
		t.Fatalf("unexpected doc %q", status.Doc)
	}
	if status.Pos.Line != 13 {
		t.Fatalf("expected declaration on line 13, got %s", status.Pos)
	}

	type summary struct {
		Name    string
		Type    ir.TypeRef
		Bits    int
		Default string
		Access  string
		Ignore  bool
	}
	summarize := func(fields []ir.FieldDecl) []summary {
		var out []summary
		for _, fd := range fields {
			s := summary{Name: fd.Name, Type: fd.Type, Ignore: fd.Ignore}
			if fd.Bits != nil {
				s.Bits = *fd.Bits
			}
			if fd.Default != nil {
				s.Default = *fd.Default
			}
			if fd.Access != nil {
				s.Access = *fd.Access
			}
			out = append(out, s)
		}
		return out
	}

	want := []summary{
		{Name: "Mode", Type: ir.TypeRef{Name: "uint8"}, Bits: 4, Default: "0x3"},
		{Name: "Ready", Type: ir.TypeRef{Name: "bool"}, Access: "ro"},
		{Name: "Kind", Type: ir.TypeRef{Name: "Kind", Repr: "uint8", FromBits: "KindFromBits"}, Bits: 3},
		{Name: "_", Type: ir.TypeRef{Name: "uint8"}, Bits: 8},
		{Name: "Note", Type: ir.TypeRef{Name: "string"}, Ignore: true},
	}
	if diff := cmp.Diff(want, summarize(status.Fields)); diff != "" {
		t.Fatalf("status fields mismatch (-want +got):\n%s", diff)
	}

	inner := pkg.Declarations[1]
	if inner.Policy.Name != "Inner" || inner.Policy.Order != ir.MsbFirst {
		t.Fatalf("unexpected inner policy %+v", inner.Policy)
	}
	want = []summary{
		{Name: "A", Type: ir.TypeRef{Name: "uint8"}, Bits: 4},
		{Name: "B", Type: ir.TypeRef{Name: "uint8"}, Bits: 4},
	}
	if diff := cmp.Diff(want, summarize(inner.Fields)); diff != "" {
		t.Fatalf("inner fields mismatch (-want +got):\n%s", diff)
	}

	want = []summary{
		{Name: "In", Type: ir.TypeRef{Name: "Inner", Repr: "uint8", FromBits: "InnerFromBits"}},
		{Name: "Extra", Type: ir.TypeRef{Name: "uint8"}},
		{Name: "Tags", Type: ir.TypeRef{Name: "[]string", Unsupported: "only named types can be packed"}},
	}
	if diff := cmp.Diff(want, summarize(pkg.Declarations[2].Fields)); diff != "" {
		t.Fatalf("outer fields mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want []diag.Code
	}{
		{
			name: "bad backing",
			src:  "package regs\n\n//bitgen:bitfield int8\ntype FlagsSpec struct{ A uint8 }\n",
			want: []diag.Code{diag.UnsupportedBackingType},
		},
		{
			name: "no derivable name",
			src:  "package regs\n\n//bitgen:bitfield uint8\ntype Flags struct{ A uint8 }\n",
			want: []diag.Code{diag.UnsupportedDeclaration},
		},
		{
			name: "name collides with declaration",
			src:  "package regs\n\n//bitgen:bitfield uint8 name=Flags\ntype Flags struct{ A uint8 }\n",
			want: []diag.Code{diag.UnsupportedDeclaration},
		},
		{
			name: "two declarations generate one type",
			src:  "package regs\n\n//bitgen:bitfield uint8\ntype FlagsSpec struct{ A uint8 }\n\n//bitgen:bitfield uint8 name=Flags\ntype OtherSpec struct{ A uint8 }\n",
			want: []diag.Code{diag.UnsupportedDeclaration},
		},
		{
			name: "embedded field",
			src:  "package regs\n\ntype Base struct{}\n\n//bitgen:bitfield uint8\ntype FlagsSpec struct{ Base }\n",
			want: []diag.Code{diag.UnsupportedDeclaration},
		},
		{
			name: "bad tag",
			src:  "package regs\n\n//bitgen:bitfield uint8\ntype FlagsSpec struct{ A uint8 `bits:\"wide\"` }\n",
			want: []diag.Code{diag.InvalidFieldTag},
		},
		{
			name: "every declaration is checked",
			src:  "package regs\n\n//bitgen:bitfield uint8 colour=red\ntype ASpec struct{ A uint8 }\n\n//bitgen:bitfield uint8\ntype BSpec struct{ A uint8 `bits:\"4,4\"` }\n",
			want: []diag.Code{diag.UnknownPolicyKey, diag.InvalidFieldTag},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reporter := diag.NewReporter(nil, "text")
			pkgs, err := Extract([]*gopackages.Package{checkedPackage(t, tc.src)}, reporter)
			if err == nil {
				t.Fatalf("expected error, got %d package(s)", len(pkgs))
			}
			if diff := cmp.Diff(tc.want, reporter.Codes()); diff != "" {
				t.Fatalf("codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractSkipsPackagesWithoutDeclarations(t *testing.T) {
	reporter := diag.NewReporter(nil, "text")
	pkgs, err := Extract([]*gopackages.Package{nil, checkedPackage(t, "package regs\n\ntype Plain struct{ A uint8 }\n")}, reporter)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(pkgs) != 0 {
		t.Fatalf("expected no packages, got %d", len(pkgs))
	}
}

func TestLoadPackages(t *testing.T) {
	reporter := diag.NewReporter(nil, "text")
	pkgs, fset, err := LoadPackages(LoadConfig{Patterns: []string{"./testdata/regs"}}, reporter)
	if err != nil {
		t.Fatalf("LoadPackages failed: %v (%v)", err, reporter.Diagnostics())
	}
	if fset == nil || len(pkgs) != 1 {
		t.Fatalf("expected one package and a file set, got %d", len(pkgs))
	}
	if err := validate.CheckDirectives(pkgs, reporter); err != nil {
		t.Fatalf("CheckDirectives failed: %v (%v)", err, reporter.Diagnostics())
	}
	out, err := Extract(pkgs, reporter)
	if err != nil {
		t.Fatalf("Extract failed: %v (%v)", err, reporter.Diagnostics())
	}
	if len(out) != 1 || out[0].Name != "regs" || len(out[0].Declarations) != 2 {
		t.Fatalf("unexpected extraction result %+v", out)
	}
	control := out[0].Declarations[1]
	if control.Policy.Name != "Control" || len(control.Fields) != 3 {
		t.Fatalf("unexpected control declaration %+v", control)
	}
	// Status is not generated yet, so the field type resolves through the
	// pending declaration.
	if got := control.Fields[0].Type; got.Repr != "uint16" || got.FromBits != "StatusFromBits" {
		t.Fatalf("expected pending bitfield type, got %+v", got)
	}
}

func TestLoadPatterns(t *testing.T) {
	got := loadPatterns([]string{"./...", "regs.go"})
	abs, err := filepath.Abs("regs.go")
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	if diff := cmp.Diff([]string{"./...", "file=" + abs}, got); diff != "" {
		t.Fatalf("patterns mismatch (-want +got):\n%s", diff)
	}
	if dir := workingDir(filepath.Join("pkg", "regs.go")); dir != "pkg" {
		t.Fatalf("expected pkg, got %q", dir)
	}
	if dir := workingDir("./..."); dir != "" {
		t.Fatalf("expected empty dir for package pattern, got %q", dir)
	}
	if diff := cmp.Diff([]string{"-tags=a,b"}, buildTagFlag([]string{"a", "b"})); diff != "" {
		t.Fatalf("build flags mismatch (-want +got):\n%s", diff)
	}
}
