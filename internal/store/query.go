package store

import "strings"

type Op string

const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpIn      Op = "in"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpNull    Op = "null"
	OpNotNull Op = "notnull"
	OpOr      Op = "or"
)

// Filter is a single predicate. For OpOr, Any holds the alternatives and
// Field/Value are ignored.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
	Any   []Filter
}

type Sort struct {
	Field string
	Desc  bool
}

// Query selects rows of one table. Filters are combined with AND.
type Query struct {
	Table   string
	Filters []Filter
	Sort    []Sort
	Limit   int
}

func From(table string) Query {
	return Query{Table: table}
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Sort = append(append([]Sort(nil), q.Sort...), Sort{Field: field, Desc: desc})
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func Eq(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v interface{}) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v interface{}) Filter { return Filter{Field: field, Op: OpLte, Value: v} }
func IsNull(field string) Filter             { return Filter{Field: field, Op: OpNull} }
func NotNull(field string) Filter            { return Filter{Field: field, Op: OpNotNull} }

// In matches rows whose field equals any of values. values must be a slice.
func In(field string, values interface{}) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

func Or(alternatives ...Filter) Filter {
	return Filter{Op: OpOr, Any: alternatives}
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Table)
	for _, f := range q.Filters {
		b.WriteString(" ")
		b.WriteString(f.String())
	}
	return b.String()
}

func (f Filter) String() string {
	if f.Op == OpOr {
		parts := make([]string, len(f.Any))
		for i, alt := range f.Any {
			parts[i] = alt.String()
		}
		return "(" + strings.Join(parts, " | ") + ")"
	}
	return f.Field + ":" + string(f.Op)
}
