package memstore

import (
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"logitrack/internal/store"
)

type valueKind int

const (
	kindNil valueKind = iota
	kindNumber
	kindString
	kindBool
	kindTime
	kindOther
)

type scalar struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

func normalize(v interface{}) scalar {
	switch t := v.(type) {
	case nil:
		return scalar{kind: kindNil}
	case primitive.DateTime:
		return scalar{kind: kindTime, num: float64(t)}
	case time.Time:
		return scalar{kind: kindTime, num: float64(t.UnixMilli())}
	case *time.Time:
		if t == nil {
			return scalar{kind: kindNil}
		}
		return scalar{kind: kindTime, num: float64(t.UnixMilli())}
	case bool:
		return scalar{kind: kindBool, b: t}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return scalar{kind: kindNil}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar{kind: kindNumber, num: float64(rv.Int())}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return scalar{kind: kindNumber, num: float64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return scalar{kind: kindNumber, num: rv.Float()}
	case reflect.String:
		return scalar{kind: kindString, str: rv.String()}
	case reflect.Bool:
		return scalar{kind: kindBool, b: rv.Bool()}
	case reflect.Struct:
		if tm, ok := rv.Interface().(time.Time); ok {
			return scalar{kind: kindTime, num: float64(tm.UnixMilli())}
		}
	}
	return scalar{kind: kindOther}
}

// compare orders two scalars. ok is false when the kinds differ.
func compare(a, b scalar) (int, bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case kindNil:
		return 0, true
	case kindNumber, kindTime:
		switch {
		case a.num < b.num:
			return -1, true
		case a.num > b.num:
			return 1, true
		}
		return 0, true
	case kindString:
		return strings.Compare(a.str, b.str), true
	case kindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case !a.b:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func equal(a, b interface{}) bool {
	c, ok := compare(normalize(a), normalize(b))
	return ok && c == 0
}

func matchAll(doc bson.M, filters []store.Filter) bool {
	for _, f := range filters {
		if !match(doc, f) {
			return false
		}
	}
	return true
}

func match(doc bson.M, f store.Filter) bool {
	if f.Op == store.OpOr {
		for _, alt := range f.Any {
			if match(doc, alt) {
				return true
			}
		}
		return false
	}

	v, present := doc[f.Field]
	isNil := !present || normalize(v).kind == kindNil

	switch f.Op {
	case store.OpNull:
		return isNil
	case store.OpNotNull:
		return !isNil
	case store.OpEq:
		return present && equal(v, f.Value)
	case store.OpNe:
		return !present || !equal(v, f.Value)
	case store.OpIn:
		if !present {
			return false
		}
		values := reflect.ValueOf(f.Value)
		if values.Kind() != reflect.Slice && values.Kind() != reflect.Array {
			return equal(v, f.Value)
		}
		for i := 0; i < values.Len(); i++ {
			if equal(v, values.Index(i).Interface()) {
				return true
			}
		}
		return false
	case store.OpGt, store.OpGte, store.OpLt, store.OpLte:
		if isNil {
			return false
		}
		c, ok := compare(normalize(v), normalize(f.Value))
		if !ok {
			return false
		}
		switch f.Op {
		case store.OpGt:
			return c > 0
		case store.OpGte:
			return c >= 0
		case store.OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

// less orders documents by the sort spec. Missing values sort first when
// ascending, as in MongoDB.
func less(a, b bson.M, sorts []store.Sort) bool {
	for _, s := range sorts {
		va, vb := normalize(a[s.Field]), normalize(b[s.Field])
		var c int
		switch {
		case va.kind == kindNil && vb.kind == kindNil:
			c = 0
		case va.kind == kindNil:
			c = -1
		case vb.kind == kindNil:
			c = 1
		default:
			c, _ = compare(va, vb)
		}
		if c == 0 {
			continue
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}
