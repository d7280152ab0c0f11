package serialization

import (
	"reflect"
	"sync"
)

// Marshaler is implemented by types whose state lives in unexported, write-once fields.
// MarshalFields returns the field set to persist, keyed by field name.
type Marshaler interface {
	MarshalFields() (map[string]interface{}, error)
}

// Unmarshaler is the sanctioned reconstruction path for a Marshaler. It is called once,
// on a zero value, with the fields read back from the payload.
type Unmarshaler interface {
	UnmarshalFields(fields Fields) error
}

var (
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

// Fields is the decoded field set handed to an Unmarshaler.
// Missing fields decode to the zero value so payloads written by older versions still load.
type Fields struct {
	values map[string]interface{}
	dec    *decoder
	path   string
}

// Has reports whether the payload carries name.
func (f Fields) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Decode decodes the named field into target, which must be a non-nil pointer.
// Tagged values are resolved through the serializer's registry.
func (f Fields) Decode(name string, target interface{}) error {
	raw, ok := f.values[name]
	if !ok {
		return nil
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return &ParseError{Path: f.path + "." + name, Err: errNotPointer}
	}
	return f.dec.decode(raw, v.Elem(), f.path+"."+name, 0)
}

// String decodes the named field as a string.
func (f Fields) String(name string) (string, error) {
	var s string
	err := f.Decode(name, &s)
	return s, err
}

// Int64 decodes the named field as an integer.
func (f Fields) Int64(name string) (int64, error) {
	var n int64
	err := f.Decode(name, &n)
	return n, err
}

// Float64 decodes the named field as a floating-point number.
func (f Fields) Float64(name string) (float64, error) {
	var n float64
	err := f.Decode(name, &n)
	return n, err
}

// Bool decodes the named field as a boolean.
func (f Fields) Bool(name string) (bool, error) {
	var b bool
	err := f.Decode(name, &b)
	return b, err
}

type field struct {
	name  string
	index []int
	depth int
}

var fieldCache sync.Map // reflect.Type -> []field

func cachedFields(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	f, _ := fieldCache.LoadOrStore(t, typeFields(t))
	return f.([]field)
}

// typeFields lists the serializable fields of t. Embedded structs are flattened; a name
// declared at a shallower depth hides deeper ones, and a tie at the same depth drops the name.
func typeFields(t reflect.Type) []field {
	var all []field
	var walk func(t reflect.Type, index []int, depth int, visited map[reflect.Type]bool)
	walk = func(t reflect.Type, index []int, depth int, visited map[reflect.Type]bool) {
		visited[t] = true
		defer delete(visited, t)

		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.Tag.Get("es") == "-" {
				continue
			}
			idx := make([]int, len(index)+1)
			copy(idx, index)
			idx[len(index)] = i

			if sf.Anonymous {
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct && !implementsMarshaler(et) && !visited[et] {
					if sf.Type.Kind() == reflect.Pointer && !sf.IsExported() {
						continue
					}
					walk(et, idx, depth+1, visited)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}
			all = append(all, field{name: sf.Name, index: idx, depth: depth})
		}
	}
	walk(t, nil, 0, map[reflect.Type]bool{})

	best := map[string]int{}
	count := map[string]int{}
	for _, f := range all {
		d, ok := best[f.name]
		switch {
		case !ok || f.depth < d:
			best[f.name] = f.depth
			count[f.name] = 1
		case f.depth == d:
			count[f.name]++
		}
	}

	out := make([]field, 0, len(all))
	for _, f := range all {
		if best[f.name] == f.depth && count[f.name] == 1 {
			out = append(out, f)
		}
	}
	return out
}

func implementsMarshaler(t reflect.Type) bool {
	return t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)
}

// fieldByIndex walks index, reporting false when a nil embedded pointer is crossed.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// fieldByIndexAlloc walks index, allocating nil embedded pointers on the way.
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
