package schema

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"bitgen/internal/ir"
)

// TagKey is the struct tag key holding field metadata.
const TagKey = "bits"

// ParseFieldTag fills the metadata of fd from the value of its bits tag, for
// example "4,default=0x3,access=ro" or "ignore". A leading bare integer is
// the width.
func ParseFieldTag(fd *ir.FieldDecl, tag string) error {
	seen := make(map[string]bool)
	for i, item := range splitTopLevel(tag) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, hasValue := strings.Cut(item, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !hasValue {
			switch {
			case key == "ignore":
				value = "true"
			case i == 0 && isDigits(key):
				key, value = "bits", item
			default:
				return fmt.Errorf("unknown option %q", item)
			}
		}
		if seen[key] {
			return fmt.Errorf("option %q given more than once", key)
		}
		seen[key] = true

		switch key {
		case "bits":
			w, err := ParseWidth(value)
			if err != nil {
				return err
			}
			fd.Bits = &w
		case "default":
			if value == "" {
				return fmt.Errorf("default requires a value")
			}
			v := value
			fd.Default = &v
		case "access":
			v := value
			fd.Access = &v
		case "vis", "visibility":
			v := value
			fd.Visibility = &v
		case "ignore":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("ignore must be true or false, got %q", value)
			}
			fd.Ignore = b
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}

// ParseWidth parses a bit width in any Go integer base.
func ParseWidth(s string) (int, error) {
	u, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bit width %q", s)
	}
	w, err := safecast.Conv[int](u)
	if err != nil {
		return 0, fmt.Errorf("bit width %q: %w", s, err)
	}
	return w, nil
}

// splitTopLevel splits on commas that are not nested in brackets or quotes,
// so defaults such as pack(1, 2) survive.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
