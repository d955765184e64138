package backend

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bitgen/internal/compile"
	"bitgen/internal/diag"
	"bitgen/internal/ir"
	"bitgen/internal/schema"
)

const statusSchema = `
package: regs
bitfields:
  - name: Status
    type: uint32
    from_endian: little
    bit_ops: true
    fields:
      - {name: mode, type: uint8, bits: 4, default: 0x3}
      - {name: ready, type: bool, access: ro}
      - {name: level, type: int8, bits: 3}
      - {name: code, type: uint16, bits: 12, access: wo}
      - {name: _reserved, type: uint16, bits: 12, default: 0xFFF}
      - {name: note, type: string, ignore: true, default: '"idle"'}
`

func compileSets(t *testing.T, src string) []*ir.OperationSet {
	t.Helper()
	file, err := schema.Parse("test.yaml", []byte(src))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	reporter := diag.NewReporter(nil, "text")
	sets, err := compile.All(file.Declarations, reporter)
	if err != nil {
		t.Fatalf("compile: %v (diagnostics: %v)", err, reporter.Diagnostics())
	}
	return sets
}

func render(t *testing.T, src string) (string, *ast.File) {
	t.Helper()
	out, err := Render(compileSets(t, src), Options{Package: "regs"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	file, err := parser.ParseFile(token.NewFileSet(), "gen.go", out, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, out)
	}
	return string(out), file
}

func declaredNames(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil {
				recv := d.Recv.List[0].Type
				if star, ok := recv.(*ast.StarExpr); ok {
					recv = star.X
				}
				name = recv.(*ast.Ident).Name + "." + name
			}
			names = append(names, name)
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names = append(names, "type "+s.Name.Name)
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names = append(names, "const "+n.Name)
					}
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func TestRenderDeclaresOperationSet(t *testing.T) {
	_, file := render(t, statusSchema)
	want := []string{
		"NewStatus",
		"NewStatusBuilder",
		"NewStatusBuilderWithoutDefaults",
		"NewStatusWithoutDefaults",
		"Status.CheckedGetBit",
		"Status.CheckedSetBit",
		"Status.CheckedSetCode",
		"Status.CheckedSetLevel",
		"Status.CheckedSetMode",
		"Status.ClearBits",
		"Status.ClearBitsWithDefaults",
		"Status.GetBit",
		"Status.IntoBits",
		"Status.Level",
		"Status.MarshalBinary",
		"Status.Mode",
		"Status.Ready",
		"Status.Reset",
		"Status.SetBit",
		"Status.SetBits",
		"Status.SetBitsWithDefaults",
		"Status.SetCode",
		"Status.SetLevel",
		"Status.SetMode",
		"Status.String",
		"Status.ToBuilder",
		"Status.UnmarshalBinary",
		"StatusBuilder.Build",
		"StatusBuilder.CheckedWithCode",
		"StatusBuilder.CheckedWithLevel",
		"StatusBuilder.CheckedWithMode",
		"StatusBuilder.CheckedWithReady",
		"StatusBuilder.WithCode",
		"StatusBuilder.WithLevel",
		"StatusBuilder.WithMode",
		"StatusBuilder.WithReady",
		"StatusFromBits",
		"StatusFromBitsWithDefaults",
		"const StatusCodeBits",
		"const StatusCodeOffset",
		"const StatusLevelBits",
		"const StatusLevelOffset",
		"const StatusModeBits",
		"const StatusModeOffset",
		"const StatusReadyBits",
		"const StatusReadyOffset",
		"type Status",
		"type StatusBuilder",
	}
	if diff := cmp.Diff(want, declaredNames(file)); diff != "" {
		t.Fatalf("declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderBodies(t *testing.T) {
	src, file := render(t, statusSchema)

	if !strings.HasPrefix(src, "// "+DefaultHeader) {
		t.Fatalf("expected generated header, got:\n%s", src[:80])
	}
	for _, snippet := range []string{
		"bits uint32",
		"note string",
		`s.note = "idle"`,
		`bitfield.ValueTooLarge("Status", "mode", 4)`,
		`bitfield.ValueTooLarge("Status", "code", 12)`,
		`bitfield.NoAccess("Status", i, true)`,
		`bitfield.IndexOutOfBounds("Status", i, 32)`,
		`bitfield.InvalidLength("Status", len(data), 4)`,
		"bits.ReverseBytes32(v)",
		"binary.BigEndian.Uint32(data)",
		"binary.BigEndian.PutUint32(data, s.bits)",
		"uint8(v) > 0x7",
		"int8(int64(uint64(",
		`fmt.Sprintf("Status{_reserved: %d, code: %d, level: %d, ready: %d, mode: %d}"`,
		"return StatusBuilder{s: s}",
		"// Mode returns bits 0..=3.",
	} {
		if !strings.Contains(src, snippet) {
			t.Fatalf("expected generated source to contain %q:\n%s", snippet, src)
		}
	}

	imports := make([]string, 0, len(file.Imports))
	for _, imp := range file.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}
	sort.Strings(imports)
	want := []string{DefaultRuntimeImport, "encoding/binary", "fmt", "math/bits"}
	if diff := cmp.Diff(want, imports); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderReadOnlyFieldHasNoSetter(t *testing.T) {
	src, _ := render(t, statusSchema)
	if strings.Contains(src, "SetReady") {
		t.Fatalf("read-only field must not get a setter:\n%s", src)
	}
	if strings.Contains(src, "func (s Status) Code()") {
		t.Fatalf("write-only field must not get a getter:\n%s", src)
	}
}

func TestRenderWide(t *testing.T) {
	src, file := render(t, `
package: regs
bitfields:
  - name: Wide
    type: uint128
    into_endian: little
    fields:
      - {name: lo, type: uint64}
      - {name: hi, type: uint64, bits: 63, default: 1}
      - {name: flag, type: bool}
`)
	for _, snippet := range []string{
		"bits uint128.Uint128",
		"uint128.FromBytesBE(data)",
		"PutBytesBE(data)",
		"ReverseBytes()",
		"s.bits.Rsh(64).Lo",
		"uint128.From64(",
	} {
		if !strings.Contains(src, snippet) {
			t.Fatalf("expected generated source to contain %q:\n%s", snippet, src)
		}
	}
	found := false
	for _, imp := range file.Imports {
		if imp.Path.Value == `"`+uint128Path+`"` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s import", uint128Path)
	}
}

func TestRenderCustomField(t *testing.T) {
	src, _ := render(t, `
package: regs
bitfields:
  - name: Packet
    type: uint16
    fields:
      - {name: kind, type: Kind, bits: 4, repr: uint8}
      - {name: flags, type: flags.Set, import: example.com/flags, bits: 12, repr: uint16}
`)
	for _, snippet := range []string{
		"KindFromBits(uint8(",
		"func (s Packet) Kind() Kind",
		"v.IntoBits()",
		`flags "example.com/flags"`,
		"flags.SetFromBits(uint16(",
		"func (s *Packet) SetFlags(v flags.Set)",
	} {
		if !strings.Contains(src, snippet) {
			t.Fatalf("expected generated source to contain %q:\n%s", snippet, src)
		}
	}
}

func TestRenderUnexportedType(t *testing.T) {
	src, _ := render(t, `
package: regs
bitfields:
  - name: ctrl
    type: uint8
    fields:
      - {name: On, type: bool}
      - {name: level, type: uint8, bits: 7}
`)
	for _, snippet := range []string{
		"func newCtrl() ctrl",
		"func ctrlFromBits(v uint8) ctrl",
		"func (s ctrl) level() uint8",
		"func (s ctrl) on() bool",
		"func (s ctrl) IntoBits() uint8",
	} {
		if !strings.Contains(src, snippet) {
			t.Fatalf("expected generated source to contain %q:\n%s", snippet, src)
		}
	}
}

func TestRenderOptions(t *testing.T) {
	sets := compileSets(t, statusSchema)
	if _, err := Render(sets, Options{}); err == nil {
		t.Fatalf("expected error for missing package name")
	}
	if _, err := Render(nil, Options{Package: "regs"}); err == nil {
		t.Fatalf("expected error for empty input")
	}
	out, err := Render(sets, Options{Package: "regs", Header: "custom header", RuntimeImport: "example.com/rt"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(string(out), "// custom header") {
		t.Fatalf("expected custom header, got:\n%s", out)
	}
	if !strings.Contains(string(out), `"example.com/rt"`) {
		t.Fatalf("expected custom runtime import:\n%s", out)
	}
}

func TestEmitWritesFile(t *testing.T) {
	sets := compileSets(t, statusSchema)
	out := filepath.Join(t.TempDir(), "nested", "status_bitgen.go")
	res, err := Emit(sets, out, Options{Package: "regs"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if res.MainPath != out {
		t.Fatalf("expected main path %s, got %s", out, res.MainPath)
	}
	if diff := cmp.Diff([]string{"Status"}, res.Types); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "package regs") {
		t.Fatalf("expected package clause, got:\n%s", data)
	}
	if _, err := Emit(sets, "-", Options{Package: "regs"}); err == nil {
		t.Fatalf("expected error for stdout path")
	}
}
