package sqlite

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// literal renders a value for a write statement. The rule is applied to every
// insert and update:
//
//   - booleans become 1 or 0;
//   - any other falsy value (nil, "", numeric zero, NaN) becomes '';
//   - strings are single-quoted with embedded quotes doubled;
//   - other numbers are written as-is.
//
// Numeric zero therefore reads back as empty text, not 0.
func literal(value any) (string, error) {
	if b, ok := value.(bool); ok {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	if !isScalar(value) {
		return "", fmt.Errorf("%w: %T", types.ErrUnsupportedValue, value)
	}
	if isFalsy(value) {
		return "''", nil
	}

	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	default:
		return fmt.Sprint(v), nil
	}
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: infinite number", types.ErrUnsupportedValue)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

func isScalar(value any) bool {
	switch value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case int:
		return v == 0
	case int8:
		return v == 0
	case int16:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint8:
		return v == 0
	case uint16:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case float64:
		return v == 0 || math.IsNaN(v)
	default:
		return false
	}
}

// whereClause renders filter as a WHERE clause with ? placeholders. Filter
// values are bound as-is (booleans as 1/0); they are not coerced like writes.
func whereClause(filter types.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, types.ErrMissingFilter
	}

	var conds []string
	var args []any
	for _, c := range filter {
		if c.Field == "" {
			return "", nil, fmt.Errorf("%w: filter field is empty", types.ErrInvalidArgument)
		}
		col := quoteIdent(c.Field)

		switch c.Op {
		case types.OpEq:
			if len(c.Values) != 1 {
				return "", nil, fmt.Errorf("%w: %s = takes one value", types.ErrInvalidArgument, c.Field)
			}
			if c.Values[0] == nil {
				conds = append(conds, col+" IS NULL")
				continue
			}
			conds = append(conds, col+" = ?")
			args = append(args, bindValue(c.Values[0]))
		case types.OpIn:
			if len(c.Values) == 0 {
				conds = append(conds, "0")
				continue
			}
			placeholders := make([]string, len(c.Values))
			for i, v := range c.Values {
				placeholders[i] = "?"
				args = append(args, bindValue(v))
			}
			conds = append(conds, col+" IN ("+strings.Join(placeholders, ",")+")")
		default:
			return "", nil, fmt.Errorf("%w: unknown operator %q", types.ErrInvalidArgument, c.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func bindValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
