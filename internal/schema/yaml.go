package schema

import (
	"fmt"
	"go/token"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"bitgen/internal/diag"
	"bitgen/internal/ir"
)

// File is a parsed YAML schema.
type File struct {
	Path         string
	Package      string
	Declarations []ir.Declaration
}

// LoadFile reads and parses a YAML schema from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse parses a YAML schema. Problems inside declarations are returned
// together as an ErrorList; malformed YAML is returned as is.
func Parse(path string, data []byte) (*File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	y := &yamlReader{path: path}
	file := &File{Path: path}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		y.errorf(doc, diag.UnsupportedDeclaration, "", "", "schema must be a mapping with package and bitfields keys")
		return nil, y.errs.Err()
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		switch key.Value {
		case "package":
			file.Package = val.Value
		case "bitfields":
			if val.Kind != yaml.SequenceNode {
				y.errorf(val, diag.UnsupportedDeclaration, "", "", "bitfields must be a list")
				continue
			}
			for _, item := range val.Content {
				if decl, ok := y.bitfield(item); ok {
					file.Declarations = append(file.Declarations, decl)
				}
			}
		default:
			y.errorf(key, diag.UnsupportedDeclaration, "", "", "unknown top-level key %q", key.Value)
		}
	}
	if file.Package == "" {
		y.errorf(doc, diag.UnsupportedDeclaration, "", "", "missing package")
	} else if !token.IsIdentifier(file.Package) {
		y.errorf(doc, diag.UnsupportedDeclaration, "", "", "package %q is not a valid Go identifier", file.Package)
	}
	if err := y.errs.Err(); err != nil {
		return nil, err
	}
	return file, nil
}

type yamlReader struct {
	path string
	errs ErrorList
}

func (y *yamlReader) pos(n *yaml.Node) token.Position {
	return token.Position{Filename: y.path, Line: n.Line, Column: n.Column}
}

func (y *yamlReader) errorf(n *yaml.Node, code diag.Code, typ, field, format string, args ...any) {
	y.errs = append(y.errs, &Error{
		Code:  code,
		Pos:   y.pos(n),
		Type:  typ,
		Field: field,
		Msg:   fmt.Sprintf(format, args...),
	})
}

func (y *yamlReader) bitfield(n *yaml.Node) (ir.Declaration, bool) {
	decl := ir.Declaration{Pos: y.pos(n)}
	if n.Kind != yaml.MappingNode {
		y.errorf(n, diag.UnsupportedDeclaration, "", "", "bitfield entry must be a mapping")
		return decl, false
	}
	var (
		args   []Arg
		fields *yaml.Node
		ok     = true
	)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "name":
			decl.Name = val.Value
		case "doc":
			decl.Doc = strings.TrimSpace(val.Value)
		case "fields":
			fields = val
		default:
			if val.Kind != yaml.ScalarNode {
				y.errorf(val, diag.InvalidPolicyValue, decl.Name, "", "%s must be a scalar", key.Value)
				ok = false
				continue
			}
			args = append(args, Arg{Key: key.Value, Value: val.Value})
		}
	}
	if decl.Name == "" {
		y.errorf(n, diag.UnsupportedDeclaration, "", "", "bitfield entry is missing a name")
		return decl, false
	}

	policy, err := ParsePolicy(decl.Name, args, decl.Pos)
	if err != nil {
		if list, isList := err.(ErrorList); isList {
			y.errs = append(y.errs, list...)
		}
		ok = false
	}
	decl.Policy = policy

	if fields == nil || fields.Kind != yaml.SequenceNode {
		y.errorf(n, diag.UnsupportedDeclaration, decl.Name, "", "fields must be a list")
		return decl, false
	}
	for _, item := range fields.Content {
		fd, fieldOK := y.field(decl.Name, item)
		ok = ok && fieldOK
		decl.Fields = append(decl.Fields, fd)
	}
	return decl, ok
}

func (y *yamlReader) field(typ string, n *yaml.Node) (ir.FieldDecl, bool) {
	fd := ir.FieldDecl{Pos: y.pos(n)}
	if n.Kind != yaml.MappingNode {
		y.errorf(n, diag.InvalidFieldTag, typ, "", "field entry must be a mapping")
		return fd, false
	}
	ok := true
	var importPath string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			y.errorf(val, diag.InvalidFieldTag, typ, fd.Name, "%s must be a scalar", key.Value)
			ok = false
			continue
		}
		v := val.Value
		switch key.Value {
		case "name":
			fd.Name = v
		case "type":
			fd.Type.Name = v
		case "bits":
			w, err := ParseWidth(v)
			if err != nil {
				y.errorf(val, diag.InvalidFieldTag, typ, fd.Name, "%v", err)
				ok = false
				continue
			}
			fd.Bits = &w
		case "default":
			fd.Default = &v
		case "access":
			fd.Access = &v
		case "vis", "visibility":
			fd.Visibility = &v
		case "ignore":
			b, err := strconv.ParseBool(v)
			if err != nil {
				y.errorf(val, diag.InvalidFieldTag, typ, fd.Name, "ignore must be true or false, got %q", v)
				ok = false
				continue
			}
			fd.Ignore = b
		case "repr":
			fd.Type.Repr = v
		case "from_bits":
			fd.Type.FromBits = v
		case "import":
			importPath = v
		default:
			y.errorf(key, diag.InvalidFieldTag, typ, fd.Name, "unknown field key %q", key.Value)
			ok = false
		}
	}
	if fd.Name == "" {
		y.errorf(n, diag.InvalidFieldTag, typ, "", "field entry is missing a name")
		ok = false
	}
	if fd.Type.Name == "" {
		y.errorf(n, diag.InvalidFieldTag, typ, fd.Name, "field is missing a type")
		ok = false
	}
	if importPath != "" {
		pkg, name, qualified := strings.Cut(fd.Type.Name, ".")
		if !qualified {
			y.errorf(n, diag.InvalidFieldTag, typ, fd.Name, "type %q must be qualified as pkg.Type when import is set", fd.Type.Name)
			ok = false
		} else {
			fd.Type.PkgPath, fd.Type.PkgName, fd.Type.Name = importPath, pkg, name
		}
	}
	if fd.Type.Repr != "" && fd.Type.FromBits == "" {
		fd.Type.FromBits = fd.Type.Name + "FromBits"
	}
	return fd, ok
}
