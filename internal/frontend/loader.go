package frontend

import (
	"fmt"
	"go/token"
	"path/filepath"
	"strings"

	gopackages "golang.org/x/tools/go/packages"
	"go.uber.org/zap"

	"bitgen/internal/diag"
)

// LoadConfig configures how packages are loaded.
type LoadConfig struct {
	// Patterns are package patterns or Go file names. An empty list loads
	// the package in Dir.
	Patterns  []string
	Dir       string
	BuildTags []string
}

// LoadPackages loads the requested packages with syntax and type
// information. Type errors are tolerated: a package often refers to types
// that bitgen has not generated yet. Listing and parse errors are reported
// and fail the load.
func LoadPackages(cfg LoadConfig, reporter *diag.Reporter) ([]*gopackages.Package, *token.FileSet, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	fset := token.NewFileSet()
	dir := cfg.Dir
	if dir == "" {
		dir = workingDir(patterns[0])
	}
	if dir != "" {
		if absDir, err := filepath.Abs(dir); err == nil {
			dir = absDir
		}
	}

	loadCfg := &gopackages.Config{
		Mode:  gopackages.NeedName | gopackages.NeedSyntax | gopackages.NeedFiles | gopackages.NeedTypes | gopackages.NeedTypesInfo | gopackages.NeedImports | gopackages.NeedModule,
		Fset:  fset,
		Tests: false,
		Dir:   dir,
	}
	if flags := buildTagFlag(cfg.BuildTags); len(flags) > 0 {
		loadCfg.BuildFlags = flags
	}

	pkgs, err := gopackages.Load(loadCfg, loadPatterns(patterns)...)
	if err != nil {
		return nil, nil, err
	}

	reporter.SetFileSet(fset)

	var hadErrors bool
	for _, pkg := range pkgs {
		for _, loadErr := range pkg.Errors {
			if loadErr.Kind == gopackages.TypeError {
				Logger().Debug("tolerating type error",
					zap.String("package", pkg.PkgPath),
					zap.String("error", loadErr.Msg),
				)
				continue
			}
			reporter.Errorf("%s: %s", loadErr.Pos, loadErr.Msg)
			hadErrors = true
		}
	}

	if hadErrors {
		return nil, nil, fmt.Errorf("package loading failed")
	}
	Logger().Debug("loaded packages", zap.Int("count", len(pkgs)), zap.String("dir", dir))
	return pkgs, fset, nil
}

func buildTagFlag(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	joined := strings.Join(tags, ",")
	if joined == "" {
		return nil
	}
	return []string{"-tags=" + joined}
}

// workingDir returns the directory of a Go file pattern so that the file is
// loaded in the context of its own module.
func workingDir(sample string) string {
	if !strings.HasSuffix(sample, ".go") {
		return ""
	}
	dir := filepath.Dir(sample)
	if dir == "." {
		return ""
	}
	return dir
}

// loadPatterns turns Go file arguments into file= queries so the whole
// package containing each file is loaded.
func loadPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.HasSuffix(p, ".go") {
			if abs, err := filepath.Abs(p); err == nil {
				p = "file=" + abs
			}
		}
		out = append(out, p)
	}
	return out
}
