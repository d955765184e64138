package backend

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"

	"bitgen/internal/ir"
)

const (
	// DefaultHeader marks emitted files as generated.
	DefaultHeader = "Code generated by bitgen. DO NOT EDIT."
	// DefaultRuntimeImport is the package providing the run-time errors
	// returned by checked operations.
	DefaultRuntimeImport = "bitgen/bitfield"

	uint128Path = "lukechampine.com/uint128"
)

// Options configures Go emission.
type Options struct {
	// Package is the package clause of the emitted file.
	Package string
	// PkgPath is the import path of the emitted package. Custom field types
	// declared in that package are referenced without a qualifier.
	PkgPath string
	// Header replaces DefaultHeader when non-empty.
	Header string
	// RuntimeImport replaces DefaultRuntimeImport when non-empty.
	RuntimeImport string
}

// Result lists the artifacts produced during emission.
type Result struct {
	MainPath string
	Types    []string
}

// Render emits one Go file holding every operation set in sets, in order.
func Render(sets []*ir.OperationSet, opts Options) ([]byte, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("backend: package name is empty")
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("backend: nothing to emit")
	}

	var f *jen.File
	if opts.PkgPath != "" {
		f = jen.NewFilePathName(opts.PkgPath, opts.Package)
	} else {
		f = jen.NewFile(opts.Package)
	}
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}
	f.HeaderComment(header)
	f.ImportName(uint128Path, "uint128")

	runtime := opts.RuntimeImport
	if runtime == "" {
		runtime = DefaultRuntimeImport
	}
	for _, set := range sets {
		if set == nil || set.Bitfield == nil {
			return nil, fmt.Errorf("backend: operation set is nil")
		}
		e := newEmitter(f, set, runtime)
		if err := e.emit(); err != nil {
			return nil, fmt.Errorf("backend: %s: %w", set.Names.Type, err)
		}
		Logger().Debug("rendered bitfield",
			zap.String("type", set.Names.Type),
			zap.Int("ops", len(set.Ops)),
		)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("backend: format generated source: %w", err)
	}
	return buf.Bytes(), nil
}

// Emit renders sets and writes the result to outputPath.
func Emit(sets []*ir.OperationSet, outputPath string, opts Options) (Result, error) {
	if outputPath == "" || outputPath == "-" {
		return Result{}, fmt.Errorf("backend: Emit requires an output path")
	}
	src, err := Render(sets, opts)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("backend: create output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, src, 0o644); err != nil {
		return Result{}, fmt.Errorf("backend: write %s: %w", outputPath, err)
	}
	res := Result{MainPath: outputPath}
	for _, set := range sets {
		res.Types = append(res.Types, set.Names.Type)
	}
	Logger().Info("wrote generated file", zap.String("path", outputPath), zap.Strings("types", res.Types))
	return res, nil
}
