package backend

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// harnessSchema exercises every field kind and layout option the emitter
// handles. The scenarios in testdata/harness assert against it.
const harnessSchema = `
package: regs
bitfields:
  - name: Status
    type: uint32
    from_endian: little
    bit_ops: true
    neg: true
    fields:
      - {name: mode, type: uint8, bits: 4, default: 0x3}
      - {name: ready, type: bool, access: ro}
      - {name: level, type: int8, bits: 3}
      - {name: kind, type: Kind, bits: 4, repr: uint8}
      - {name: code, type: uint16, bits: 12, access: wo}
      - {name: _reserved, type: uint8, bits: 8, default: 0xFF}
      - {name: note, type: string, ignore: true, default: '"idle"'}
  - name: Flags
    type: uint16
    fields:
      - {name: a, type: uint8, bits: 4}
      - {name: roBool, type: bool, access: ro}
      - {name: b, type: uint8, bits: 3}
      - {name: c, type: uint8}
  - name: Mixed
    type: uint64
    fields:
      - {name: ro1, type: uint8, access: ro}
      - {name: rw1, type: uint8}
      - {name: ro2, type: uint8, access: ro}
      - {name: rw2, type: uint8}
      - {name: large, type: uint32}
  - name: Lsb
    type: uint32
    fields:
      - {name: a, type: uint8, default: 0x12}
      - {name: b, type: uint8, default: 0x34}
      - {name: c, type: uint8, default: 0x56}
      - {name: d, type: uint8, default: 0x78}
  - name: Msb
    type: uint32
    order: msb
    from_endian: little
    fields:
      - {name: a, type: uint8, default: 0x12}
      - {name: b, type: uint8, default: 0x34}
      - {name: c, type: uint8, default: 0x56}
      - {name: d, type: uint8, default: 0x78}
  - name: LittleIn
    type: uint32
    from_endian: little
    fields:
      - {name: a, type: uint8}
      - {name: b, type: uint8}
      - {name: c, type: uint8}
      - {name: d, type: uint8}
  - name: Wide
    type: uint128
    from_endian: little
    bit_ops: true
    neg: true
    fields:
      - {name: lo, type: uint64}
      - {name: mid, type: uint32, default: 0xDEADBEEF}
      - {name: hi, type: int32, bits: 20}
      - {name: _pad, type: uint16, bits: 12}
`

// harnessPackage writes the rendered harness schema next to the
// hand-written files of testdata/harness, in a fresh directory inside this
// module so the runtime and uint128 imports resolve.
func harnessPackage(t *testing.T) string {
	t.Helper()
	src, err := Render(compileSets(t, harnessSchema), Options{Package: "regs"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	dir, err := os.MkdirTemp("testdata", "gen")
	if err != nil {
		t.Fatalf("create package dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	fixtures, err := filepath.Glob(filepath.Join("testdata", "harness", "*.go"))
	if err != nil || len(fixtures) == 0 {
		t.Fatalf("expected harness fixtures, got %v (%v)", fixtures, err)
	}
	for _, path := range fixtures {
		copyFile(t, path, filepath.Join(dir, filepath.Base(path)))
	}
	if err := os.WriteFile(filepath.Join(dir, "regs_bitgen.go"), src, 0o644); err != nil {
		t.Fatalf("write generated file: %v", err)
	}
	return "./" + filepath.ToSlash(dir)
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	in, err := os.Open(from)
	if err != nil {
		t.Fatalf("open %s: %v", from, err)
	}
	defer in.Close()
	out, err := os.Create(to)
	if err != nil {
		t.Fatalf("create %s: %v", to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		t.Fatalf("copy %s: %v", from, err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close %s: %v", to, err)
	}
}

func TestGeneratedCodeTypeChecks(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	pattern := harnessPackage(t)

	cfg := &packages.Config{
		Mode:  packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Tests: true,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	if len(pkgs) == 0 {
		t.Fatalf("expected packages for %s", pattern)
	}
	var errs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e.Error())
		}
	})
	if len(errs) > 0 {
		t.Fatalf("generated package does not type-check:\n%s", strings.Join(errs, "\n"))
	}
}

func TestGeneratedCodeBehaviour(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go test on generated code")
	}
	gocmd, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not available")
	}
	pattern := harnessPackage(t)

	cmd := exec.Command(gocmd, "test", "-count=1", pattern)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go test %s failed: %v\n%s", pattern, err, out)
	}
}
