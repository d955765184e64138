package diag

// Code identifies a class of generation-time diagnostic.
type Code string

// Field and layout errors.
const (
	UnsupportedBackingType         Code = "UnsupportedBackingType"
	UnsupportedFieldType           Code = "UnsupportedFieldType"
	AmbiguousWidthFieldType        Code = "AmbiguousWidthFieldType"
	MissingExplicitWidth           Code = "MissingExplicitWidth"
	ZeroWidthField                 Code = "ZeroWidthField"
	FieldTooWideForDeclaredType    Code = "FieldTooWideForDeclaredType"
	DefaultValueExceedsFieldWidth  Code = "DefaultValueExceedsFieldWidth"
	DefaultValueExceedsTypeRange   Code = "DefaultValueExceedsTypeRange"
	DuplicateFieldName             Code = "DuplicateFieldName"
	PaddingFieldWithExplicitAccess Code = "PaddingFieldWithExplicitAccess"
	LayoutBudgetExceeded           Code = "LayoutBudgetExceeded"
	LayoutBudgetUnderfilled        Code = "LayoutBudgetUnderfilled"
	FloatDefaultValueUnsupported   Code = "FloatDefaultValueUnsupported"
)

// Declaration parsing errors.
const (
	UnknownPolicyKey       Code = "UnknownPolicyKey"
	InvalidPolicyValue     Code = "InvalidPolicyValue"
	InvalidFieldTag        Code = "InvalidFieldTag"
	UnsupportedDeclaration Code = "UnsupportedDeclaration"
	GeneratedNameCollision Code = "GeneratedNameCollision"
)
