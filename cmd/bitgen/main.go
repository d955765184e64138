package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"bitgen/internal/backend"
	"bitgen/internal/compile"
	"bitgen/internal/config"
	"bitgen/internal/diag"
	"bitgen/internal/eval"
	"bitgen/internal/frontend"
	"bitgen/internal/ir"
	"bitgen/internal/literal"
	"bitgen/internal/lower"
	"bitgen/internal/schema"
	"bitgen/internal/validate"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printGlobalUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "generate":
		return runGenerate(args[1:])
	case "lint":
		return runLint(args[1:])
	case "dump":
		return runDump(args[1:])
	case "decode":
		return runDecode(args[1:])
	default:
		printGlobalUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printGlobalUsage() {
	fmt.Fprintf(stderr, "bitgen: packed bitfield code generator\n\n")
	fmt.Fprintf(stderr, "Usage:\n")
	fmt.Fprintf(stderr, "  bitgen <command> [options] [packages]\n\n")
	fmt.Fprintf(stderr, "Commands:\n")
	fmt.Fprintf(stderr, "  generate   Generate Go code for annotated structs or a YAML schema\n")
	fmt.Fprintf(stderr, "  lint       Check declarations without writing anything\n")
	fmt.Fprintf(stderr, "  dump       Print resolved layouts or operation sets\n")
	fmt.Fprintf(stderr, "  decode     Print the fields of a raw value\n")
}

// inputFlags are shared by every command that reads declarations.
type inputFlags struct {
	config     *string
	schema     *string
	tags       *string
	diagFormat *string
	verbose    *bool
}

func addInputFlags(fs *flag.FlagSet) *inputFlags {
	return &inputFlags{
		config:     fs.String("config", config.FileName, "path to the project configuration (ignored when missing)"),
		schema:     fs.String("schema", "", "read declarations from a YAML schema instead of Go packages"),
		tags:       fs.String("tags", "", "comma-separated build tags used when loading packages"),
		diagFormat: fs.String("diag-format", "", "diagnostic output format (text|json, default from config)"),
		verbose:    fs.Bool("v", false, "enable debug logging"),
	}
}

// unit is one group of declarations rendered into one Go file.
type unit struct {
	pkgName string
	pkgPath string
	dir     string
	base    string
	decls   []ir.Declaration
	sets    []*ir.OperationSet
}

type session struct {
	cfg      *config.Config
	reporter *diag.Reporter
	logger   *zap.Logger
	units    []*unit
}

func (s *session) close() {
	_ = s.logger.Sync()
	frontend.SetLogger(nil)
	lower.SetLogger(nil)
	backend.SetLogger(nil)
}

// prepare loads the configuration, reads every declaration and compiles it.
// Nothing is returned unless every declaration compiled.
func prepare(inputs []string, in *inputFlags) (*session, error) {
	cfg, err := config.Load(*in.config)
	if err != nil {
		return nil, err
	}
	format := cfg.Generate.DiagFormat
	if *in.diagFormat != "" {
		format = *in.diagFormat
	}
	logger, err := cfg.Logger(*in.verbose)
	if err != nil {
		return nil, err
	}
	frontend.SetLogger(logger)
	lower.SetLogger(logger)
	backend.SetLogger(logger)

	s := &session{
		cfg:      cfg,
		reporter: diag.NewReporter(stderr, format),
		logger:   logger,
	}
	if *in.schema != "" {
		if len(inputs) > 0 {
			s.close()
			return nil, fmt.Errorf("-schema cannot be combined with package arguments")
		}
		err = s.readSchema(*in.schema)
	} else {
		err = s.readPackages(inputs, splitTags(*in.tags))
	}
	if err == nil {
		err = s.compile()
	}
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) readSchema(path string) error {
	file, err := schema.LoadFile(path)
	if err != nil {
		schema.Report(s.reporter, err)
		return fmt.Errorf("schema %s has errors", path)
	}
	s.units = append(s.units, &unit{
		pkgName: file.Package,
		dir:     filepath.Dir(path),
		base:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		decls:   file.Declarations,
	})
	return nil
}

func (s *session) readPackages(patterns, tags []string) error {
	pkgs, _, err := frontend.LoadPackages(frontend.LoadConfig{Patterns: patterns, BuildTags: tags}, s.reporter)
	if err != nil {
		return err
	}
	if err := validate.CheckDirectives(pkgs, s.reporter); err != nil {
		return err
	}
	found, err := frontend.Extract(pkgs, s.reporter)
	if err != nil {
		return err
	}
	for _, pkg := range found {
		s.units = append(s.units, &unit{
			pkgName: pkg.Name,
			pkgPath: pkg.Path,
			dir:     pkg.Dir,
			base:    strings.ToLower(pkg.Name),
			decls:   pkg.Declarations,
		})
	}
	return nil
}

func (s *session) compile() error {
	failed := 0
	total := 0
	for _, u := range s.units {
		total += len(u.decls)
		sets, err := compile.All(u.decls, s.reporter)
		if err != nil {
			failed++
			continue
		}
		u.sets = sets
	}
	if failed > 0 {
		return fmt.Errorf("errors reported while compiling bitfields")
	}
	if total == 0 {
		return fmt.Errorf("no bitfield declarations found")
	}
	s.logger.Debug("compiled bitfields", zap.Int("units", len(s.units)), zap.Int("bitfields", total))
	return nil
}

func (s *session) sets() []*ir.OperationSet {
	var out []*ir.OperationSet
	for _, u := range s.units {
		out = append(out, u.sets...)
	}
	return out
}

func (s *session) backendOptions(u *unit) backend.Options {
	return backend.Options{
		Package:       u.pkgName,
		PkgPath:       u.pkgPath,
		Header:        s.cfg.Generate.Header,
		RuntimeImport: s.cfg.Generate.RuntimeImport,
	}
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := addInputFlags(fs)
	output := fs.String("o", "", "output file path (default <package><suffix> next to the sources, - for stdout)")
	diffOnly := fs.Bool("d", false, "print a unified diff against the existing output instead of writing it")
	runtime := fs.String("runtime", "", "import path of the bitfield run-time package (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := prepare(fs.Args(), in)
	if err != nil {
		return err
	}
	defer s.close()
	if *runtime != "" {
		s.cfg.Generate.RuntimeImport = *runtime
	}

	if *output != "" && len(s.units) > 1 {
		return fmt.Errorf("-o requires the declarations of a single package, found %d", len(s.units))
	}
	for _, u := range s.units {
		path := *output
		if path == "" {
			path = filepath.Join(u.dir, u.base+s.cfg.Generate.Suffix)
		}
		opts := s.backendOptions(u)
		if !*diffOnly && path != "-" {
			if _, err := backend.Emit(u.sets, path, opts); err != nil {
				return err
			}
			continue
		}
		src, err := backend.Render(u.sets, opts)
		if err != nil {
			return err
		}
		if *diffOnly {
			if err := writeDiff(stdout, path, src); err != nil {
				return err
			}
			continue
		}
		if _, err := stdout.Write(src); err != nil {
			return err
		}
	}
	return nil
}

// writeDiff prints the unified diff from the file at path to src. Nothing is
// printed when they are equal.
func writeDiff(w io.Writer, path string, src []byte) error {
	var current []byte
	if path != "-" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		current = data
	}
	return difflib.WriteUnifiedDiff(w, difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(src)),
		FromFile: path,
		ToFile:   path + " (generated)",
		Context:  3,
	})
}

func runLint(args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := addInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := prepare(fs.Args(), in)
	if err != nil {
		return err
	}
	defer s.close()
	for _, u := range s.units {
		if _, err := backend.Render(u.sets, s.backendOptions(u)); err != nil {
			return err
		}
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := addInputFlags(fs)
	emit := fs.String("emit", "layout", "what to print (layout|ops)")
	output := fs.String("o", "", "output file path (stdout when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *emit != "layout" && *emit != "ops" {
		return fmt.Errorf("unknown emit format: %s", *emit)
	}

	s, err := prepare(fs.Args(), in)
	if err != nil {
		return err
	}
	defer s.close()

	return withOutputWriter(*output, func(w io.Writer) error {
		for i, set := range s.sets() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if *emit == "ops" {
				ir.DumpOps(set, w)
				continue
			}
			ir.Dump(set.Bitfield, w)
		}
		return nil
	})
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := addInputFlags(fs)
	typeName := fs.String("type", "", "generated type or declaration name to decode as")
	value := fs.String("value", "", "raw value as an integer literal, such as 0x1234")
	output := fs.String("o", "", "output file path (stdout when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeName == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("decode requires -type and -value")
	}

	s, err := prepare(fs.Args(), in)
	if err != nil {
		return err
	}
	defer s.close()

	set := findSet(s.sets(), *typeName)
	if set == nil {
		return fmt.Errorf("no bitfield named %s", *typeName)
	}
	raw, err := parseRaw(*value, set.Bitfield.Policy.Backing)
	if err != nil {
		return err
	}
	inst, err := eval.FromBits(set, raw)
	if err != nil {
		return err
	}
	return withOutputWriter(*output, func(w io.Writer) error {
		return printDecoded(w, inst)
	})
}

func findSet(sets []*ir.OperationSet, name string) *ir.OperationSet {
	for _, set := range sets {
		if set.Names.Type == name || set.Bitfield.Source == name {
			return set
		}
	}
	return nil
}

func parseRaw(s string, backing ir.BackingType) (uint128.Uint128, error) {
	n, err := literal.Parse(s)
	if err != nil {
		return uint128.Zero, fmt.Errorf("invalid value %q: %w", s, err)
	}
	if n.Negative {
		return uint128.Zero, fmt.Errorf("invalid value %q: must not be negative", s)
	}
	if !n.FitsBits(backing.Bits()) {
		return uint128.Zero, fmt.Errorf("value %s does not fit in %s", s, backing)
	}
	return uint128.FromBig(n.Value()), nil
}

func printDecoded(w io.Writer, inst *eval.Instance) error {
	if line, err := inst.Format(); err == nil {
		fmt.Fprintln(w, line)
	} else if !errors.Is(err, eval.ErrNotGenerated) {
		return err
	}
	fields := inst.Fields()
	width := 0
	for _, fv := range fields {
		if len(fv.Field.Name) > width {
			width = len(fv.Field.Name)
		}
	}
	for _, fv := range fields {
		fmt.Fprintf(w, "  %-*s = %s\n", width, fv.Field.Name, fv.Value)
	}
	return nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func withOutputWriter(path string, fn func(io.Writer) error) error {
	w, cleanup, err := outputWriter(path)
	if err != nil {
		return err
	}
	if cleanup == nil {
		return fn(w)
	}
	err = fn(w)
	if closeErr := cleanup(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

func outputWriter(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
