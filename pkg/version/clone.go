package version

import "reflect"

// Clone returns a structural deep copy of s that keeps every value's type.
// Maps, slices, arrays, pointers and the exported fields of structs are
// copied recursively. Unexported struct fields are copied as they are, so a
// time.Time keeps its location. Funcs and channels are shared. Values
// reachable more than once, including cycles, are copied once and the copy
// is reused.
func Clone(s Snapshot) Snapshot {
	if s == nil {
		return nil
	}
	c := cloner{seen: make(map[seenKey]reflect.Value)}
	return c.clone(reflect.ValueOf(s)).Interface().(Snapshot)
}

// seenKey identifies a reference value already copied. Slices include their
// length because subslices share a data pointer.
type seenKey struct {
	ptr  uintptr
	kind reflect.Kind
	len  int
}

type cloner struct {
	seen map[seenKey]reflect.Value
}

// lookup returns the earlier copy of a reference, converted to typ when the
// same data was reached through a differently named type
func (c *cloner) lookup(key seenKey, typ reflect.Type) (reflect.Value, bool) {
	prev, ok := c.seen[key]
	if !ok {
		return reflect.Value{}, false
	}
	if prev.Type() == typ {
		return prev, true
	}
	if prev.Type().ConvertibleTo(typ) {
		return prev.Convert(typ), true
	}
	return reflect.Value{}, false
}

func (c *cloner) clone(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return reflect.Zero(rv.Type())
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(c.clone(rv.Elem()))
		return out

	case reflect.Map:
		if rv.IsNil() {
			return reflect.Zero(rv.Type())
		}
		key := seenKey{ptr: rv.Pointer(), kind: reflect.Map}
		if prev, ok := c.lookup(key, rv.Type()); ok {
			return prev
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		c.seen[key] = out
		iter := rv.MapRange()
		for iter.Next() {
			// Keys are comparable values; copying a pointer key would change its identity
			out.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return reflect.Zero(rv.Type())
		}
		key := seenKey{ptr: rv.Pointer(), kind: reflect.Slice, len: rv.Len()}
		if prev, ok := c.lookup(key, rv.Type()); ok {
			return prev
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		c.seen[key] = out
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(c.clone(rv.Index(i)))
		}
		return out

	case reflect.Pointer:
		if rv.IsNil() {
			return reflect.Zero(rv.Type())
		}
		key := seenKey{ptr: rv.Pointer(), kind: reflect.Pointer}
		if prev, ok := c.lookup(key, rv.Type()); ok {
			return prev
		}
		out := reflect.New(rv.Type().Elem())
		c.seen[key] = out
		out.Elem().Set(c.clone(rv.Elem()))
		return out

	case reflect.Struct:
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		for i := 0; i < out.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(c.clone(rv.Field(i)))
			}
		}
		return out

	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(c.clone(rv.Index(i)))
		}
		return out
	}

	// Scalars copy by value; funcs, channels and unsafe pointers are shared
	return rv
}

func cloneEntry(e Entry) Entry {
	e.Proposal = Clone(e.Proposal)
	return e
}
