package entity

import "reflect"

// deepCopy replaces every slice, map and pointer reachable through the
// exported fields of v with a fresh copy. v must be settable.
func deepCopy(v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		if t == timeType {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); t.Field(i).IsExported() && f.CanSet() {
				deepCopy(f)
			}
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(v.Elem())
		deepCopy(p.Elem())
		v.Set(p)
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(s, v)
		for i := 0; i < s.Len(); i++ {
			deepCopy(s.Index(i))
		}
		v.Set(s)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			deepCopy(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		m := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val := reflect.New(v.Type().Elem()).Elem()
			val.Set(iter.Value())
			deepCopy(val)
			m.SetMapIndex(iter.Key(), val)
		}
		v.Set(m)
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		inner := reflect.New(v.Elem().Type()).Elem()
		inner.Set(v.Elem())
		deepCopy(inner)
		v.Set(inner)
	}
}
