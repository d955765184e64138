package schema

import (
	"errors"
	"go/token"
	"strings"

	"bitgen/internal/diag"
)

// Error is a coded parse error.
type Error struct {
	Code  diag.Code
	Pos   token.Position
	Type  string
	Field string
	Msg   string
}

// Diagnostic converts e for a diag.Reporter.
func (e *Error) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{Code: e.Code, Position: e.Pos, Type: e.Type, Field: e.Field, Message: e.Msg}
}

func (e *Error) Error() string {
	return e.Diagnostic().String()
}

// ErrorList collects every parse error of a declaration.
type ErrorList []*Error

func (l ErrorList) Error() string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

// Err returns nil for an empty list.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Report forwards err to reporter, one diagnostic per contained Error.
func Report(reporter *diag.Reporter, err error) {
	if err == nil {
		return
	}
	var list ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			reporter.Report(e.Diagnostic())
		}
		return
	}
	var single *Error
	if errors.As(err, &single) {
		reporter.Report(single.Diagnostic())
		return
	}
	reporter.Errorf("%v", err)
}
