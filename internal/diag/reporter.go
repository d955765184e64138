package diag

import (
	"encoding/json"
	"fmt"
	"go/token"
	"io"
	"strings"
	"sync"
)

// Diagnostic is a single generation-time error.
type Diagnostic struct {
	Code     Code
	Position token.Position
	// Type and Field name the declaration the diagnostic belongs to, when known.
	Type    string
	Field   string
	Message string
}

// String renders the diagnostic in the text format.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Position.IsValid() {
		b.WriteString(d.Position.String())
		b.WriteString(": ")
	}
	b.WriteString("error")
	if d.Code != "" {
		b.WriteByte('[')
		b.WriteString(string(d.Code))
		b.WriteByte(']')
	}
	b.WriteString(": ")
	if d.Type != "" {
		b.WriteString(d.Type)
		if d.Field != "" {
			b.WriteByte('.')
			b.WriteString(d.Field)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

type jsonDiagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Code    Code   `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Reporter prints diagnostics as they arrive and remembers them so callers
// can decide whether a stage failed. The zero value discards output.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	fset   *token.FileSet
	diags  []Diagnostic
}

// NewReporter returns a reporter writing to w in the given format ("text" or
// "json"). Unknown formats fall back to text.
func NewReporter(w io.Writer, format string) *Reporter {
	if format != "json" {
		format = "text"
	}
	return &Reporter{w: w, format: format}
}

// SetFileSet installs the file set used to resolve token.Pos values.
func (r *Reporter) SetFileSet(fset *token.FileSet) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.fset = fset
	r.mu.Unlock()
}

// Position resolves pos against the installed file set.
func (r *Reporter) Position(pos token.Pos) token.Position {
	if r == nil || r.fset == nil || !pos.IsValid() {
		return token.Position{}
	}
	return r.fset.Position(pos)
}

// Error reports an uncoded diagnostic at pos.
func (r *Reporter) Error(pos token.Pos, msg string) {
	r.Report(Diagnostic{Position: r.Position(pos), Message: msg})
}

// Errorf reports an uncoded diagnostic without a position.
func (r *Reporter) Errorf(format string, args ...any) {
	r.Report(Diagnostic{Message: fmt.Sprintf(format, args...)})
}

// Report records d and prints it.
func (r *Reporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
	if r.w == nil {
		return
	}
	if r.format == "json" {
		out, err := json.Marshal(jsonDiagnostic{
			File:    d.Position.Filename,
			Line:    d.Position.Line,
			Column:  d.Position.Column,
			Code:    d.Code,
			Type:    d.Type,
			Field:   d.Field,
			Message: d.Message,
		})
		if err != nil {
			fmt.Fprintln(r.w, d.String())
			return
		}
		fmt.Fprintln(r.w, string(out))
		return
	}
	fmt.Fprintln(r.w, d.String())
}

// HasErrors reports whether any diagnostic was recorded.
func (r *Reporter) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of recorded diagnostics.
func (r *Reporter) ErrorCount() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diags)
}

// Diagnostics returns a copy of the recorded diagnostics.
func (r *Reporter) Diagnostics() []Diagnostic {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

// Codes returns the codes of the recorded diagnostics in report order.
func (r *Reporter) Codes() []Code {
	diags := r.Diagnostics()
	codes := make([]Code, 0, len(diags))
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	return codes
}
