package sqlitestore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"logitrack/internal/store"
)

// timeLayout is fixed width so that lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

var sqlOps = map[store.Op]string{
	store.OpEq:  "=",
	store.OpGt:  ">",
	store.OpGte: ">=",
	store.OpLt:  "<",
	store.OpLte: "<=",
}

func column(field string) (string, error) {
	if !identifier.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(attrs, '$.%s')", field), nil
}

func buildWhere(filters []store.Filter) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "1", nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []interface{}
	for _, f := range filters {
		clause, fargs, err := buildClause(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, clause)
		args = append(args, fargs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func buildClause(f store.Filter) (string, []interface{}, error) {
	if f.Op == store.OpOr {
		if len(f.Any) == 0 {
			return "0", nil, nil
		}
		parts := make([]string, 0, len(f.Any))
		var args []interface{}
		for _, alt := range f.Any {
			clause, altArgs, err := buildClause(alt)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, altArgs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	col, err := column(f.Field)
	if err != nil {
		return "", nil, err
	}

	switch f.Op {
	case store.OpNull:
		return col + " IS NULL", nil, nil
	case store.OpNotNull:
		return col + " IS NOT NULL", nil, nil
	case store.OpNe:
		v, _ := scalarValue(f.Value)
		return fmt.Sprintf("(%s IS NULL OR %s <> ?)", col, col), []interface{}{v}, nil
	case store.OpIn:
		values := reflect.ValueOf(f.Value)
		if values.Kind() != reflect.Slice && values.Kind() != reflect.Array {
			v, _ := scalarValue(f.Value)
			return col + " = ?", []interface{}{v}, nil
		}
		if values.Len() == 0 {
			return "0", nil, nil
		}
		marks := make([]string, values.Len())
		args := make([]interface{}, values.Len())
		for i := 0; i < values.Len(); i++ {
			marks[i] = "?"
			args[i], _ = scalarValue(values.Index(i).Interface())
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")), args, nil
	}

	op, ok := sqlOps[f.Op]
	if !ok {
		return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
	}
	v, _ := scalarValue(f.Value)
	return fmt.Sprintf("%s %s ?", col, op), []interface{}{v}, nil
}

func buildOrder(sorts []store.Sort) (string, error) {
	parts := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		col, err := column(s.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "rowid ASC")
	return strings.Join(parts, ", "), nil
}

// scalarValue converts a document or parameter value into its JSON/SQL
// projection. ok is false for arrays and sub-documents.
func scalarValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case primitive.DateTime:
		return t.Time().UTC().Format(timeLayout), true
	case time.Time:
		return t.UTC().Format(timeLayout), true
	case *time.Time:
		if t == nil {
			return nil, true
		}
		return t.UTC().Format(timeLayout), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	case reflect.Struct:
		if tm, ok := rv.Interface().(time.Time); ok {
			return tm.UTC().Format(timeLayout), true
		}
	}
	return nil, false
}
