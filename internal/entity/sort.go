package entity

import (
	"cmp"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// sortField locates a sortable struct field by json name or Go name.
type sortField struct {
	index []int
	kind  reflect.Kind
	isPtr bool
}

// sortFields indexes every sortable field of t, promoted fields included.
// Keys are lower-cased; json names win over Go names on collision.
func sortFields(t reflect.Type) map[string]sortField {
	out := make(map[string]sortField)
	byGoName := make(map[string]sortField)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		ft := f.Type
		isPtr := false
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
			isPtr = true
		}
		if !sortable(ft) {
			continue
		}
		sf := sortField{index: f.Index, kind: ft.Kind(), isPtr: isPtr}
		byGoName[strings.ToLower(f.Name)] = sf
		if name := jsonName(f); name != "" {
			out[strings.ToLower(name)] = sf
		}
	}
	for name, sf := range byGoName {
		if _, ok := out[name]; !ok {
			out[name] = sf
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func sortable(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String, reflect.Bool:
		return true
	}
	return false
}

// compare orders a and b, two values of the field described by sf, taken
// from struct values. Nil pointers sort first.
func (sf sortField) compare(a, b reflect.Value) int {
	av := a.FieldByIndex(sf.index)
	bv := b.FieldByIndex(sf.index)
	if sf.isPtr {
		switch {
		case av.IsNil() && bv.IsNil():
			return 0
		case av.IsNil():
			return -1
		case bv.IsNil():
			return 1
		}
		av, bv = av.Elem(), bv.Elem()
	}
	if av.Type() == timeType {
		return av.Interface().(time.Time).Compare(bv.Interface().(time.Time))
	}
	switch sf.kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(av.Int(), bv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(av.Uint(), bv.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(av.Float(), bv.Float())
	case reflect.String:
		return strings.Compare(av.String(), bv.String())
	case reflect.Bool:
		switch {
		case av.Bool() == bv.Bool():
			return 0
		case bv.Bool():
			return -1
		default:
			return 1
		}
	}
	return 0
}
