package types

// Remote field types that carry special meaning locally. Any other type
// (string, textarea, picklist, date, reference, ...) is stored as text.
const (
	FieldTypeBoolean  = "boolean"
	FieldTypeInt      = "int"
	FieldTypeDouble   = "double"
	FieldTypeCurrency = "currency"
	FieldTypePercent  = "percent"
	FieldTypePicklist = "picklist"
)

// DefaultValue returns the typed zero value a new survey uses for a field of
// the given remote type: false for booleans, 0 for numbers, "" otherwise.
func DefaultValue(fieldType string) any {
	switch fieldType {
	case FieldTypeBoolean:
		return false
	case FieldTypeInt:
		return int64(0)
	case FieldTypeDouble, FieldTypeCurrency, FieldTypePercent:
		return float64(0)
	default:
		return ""
	}
}

// IsSystemField reports whether name is a local-only bookkeeping field.
func IsSystemField(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
