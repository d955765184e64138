package validate

import (
	"fmt"
	"go/ast"
	"go/token"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"bitgen/internal/diag"
	"bitgen/internal/schema"
)

// CheckDirectives reports bitfield directives that are not attached to a
// struct type declaration.
func CheckDirectives(pkgs []*packages.Package, reporter *diag.Reporter) error {
	if reporter == nil {
		return fmt.Errorf("no reporter provided for validation")
	}
	c := &checker{reporter: reporter}
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		for _, file := range pkg.Syntax {
			c.checkFile(file)
		}
	}
	if c.errCount > 0 {
		return fmt.Errorf("validation failed with %d issue(s)", c.errCount)
	}
	return nil
}

type checker struct {
	reporter *diag.Reporter
	errCount int
}

func (c *checker) error(pos token.Pos, format string, args ...any) {
	c.errCount++
	c.reporter.Report(diag.Diagnostic{
		Code:     diag.UnsupportedDeclaration,
		Position: c.reporter.Position(pos),
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) checkFile(file *ast.File) {
	directives := make(map[token.Pos]bool)
	for _, cg := range file.Comments {
		for _, cm := range cg.List {
			if IsDirective(cm.Text) {
				directives[cm.Slash] = true
			}
		}
	}
	if len(directives) == 0 {
		return
	}

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
			cm := DirectiveComment(doc)
			if cm == nil {
				continue
			}
			delete(directives, cm.Slash)
			switch {
			case ts.TypeParams != nil:
				c.error(ts.Pos(), "bitfield declaration %s can't have type parameters", ts.Name.Name)
			case ts.Assign.IsValid():
				c.error(ts.Pos(), "bitfield declaration %s must be a struct type, not an alias", ts.Name.Name)
			default:
				if _, isStruct := ts.Type.(*ast.StructType); !isStruct {
					c.error(ts.Pos(), "bitfield declaration %s must be a struct type", ts.Name.Name)
				}
			}
		}
	}
	stray := make([]token.Pos, 0, len(directives))
	for pos := range directives {
		stray = append(stray, pos)
	}
	sort.Slice(stray, func(i, j int) bool { return stray[i] < stray[j] })
	for _, pos := range stray {
		c.error(pos, "%s must directly precede a struct type declaration", schema.Directive)
	}
}

// IsDirective reports whether a comment line is a bitfield directive.
func IsDirective(text string) bool {
	rest, ok := strings.CutPrefix(text, schema.Directive)
	return ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t')
}

// DirectiveComment returns the directive line of a doc comment, if any.
func DirectiveComment(doc *ast.CommentGroup) *ast.Comment {
	if doc == nil {
		return nil
	}
	for _, cm := range doc.List {
		if IsDirective(cm.Text) {
			return cm
		}
	}
	return nil
}
