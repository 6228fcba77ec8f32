package types

// Comparison operators supported by Filter conditions.
const (
	OpEq = "="
	OpIn = "IN"
)

// Condition restricts rows by comparing one field.
type Condition struct {
	Field  string
	Op     string
	Values []any
}

// Filter is a list of conditions combined with AND. An empty Filter is not
// a valid argument to LocalStore.GetRecords; read everything with
// GetAllRecords instead.
type Filter []Condition

// Eq matches rows whose field equals value.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Values: []any{value}}
}

// In matches rows whose field equals any of values. An In condition with no
// values matches nothing.
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Values: values}
}

// Where builds a Filter from conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}
