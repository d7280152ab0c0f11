package serialization

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

func (s *Serializer) encode(v reflect.Value, path string, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("serialization: %w at %s", errTooDeep, path)
	}
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return s.encode(v.Elem(), path, depth+1)

	case reflect.Struct:
		if v.Type() == timeType && v.CanInterface() {
			return v.Interface().(time.Time).UnixMicro(), nil
		}
		return s.encodeStruct(v, path, depth)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("serialization: %w: map key %s at %s", ErrUnsupportedType, v.Type().Key(), path)
		}
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if k == TypeKey {
				return nil, fmt.Errorf("serialization: %w at %s", errReservedKey, path)
			}
			ev, err := s.encode(iter.Value(), path+"."+k, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		return s.encodeList(v, path, depth)

	case reflect.Array:
		return s.encodeList(v, path, depth)

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return formatFloat(v.Float(), v.Type().Bits(), path)
	}

	return nil, fmt.Errorf("serialization: %w: %s at %s", ErrUnsupportedType, v.Type(), path)
}

func (s *Serializer) encodeStruct(v reflect.Value, path string, depth int) (interface{}, error) {
	t := v.Type()
	out := map[string]interface{}{TypeKey: s.registry.NameOf(t)}

	if m, ok := asMarshaler(v); ok {
		fields, err := m.MarshalFields()
		if err != nil {
			return nil, fmt.Errorf("serialization: marshal %s: %w", TypeName(t), err)
		}
		for name, fv := range fields {
			if name == TypeKey {
				return nil, fmt.Errorf("serialization: %w in %s", errReservedKey, TypeName(t))
			}
			ev, err := s.encode(reflect.ValueOf(fv), path+"."+name, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = ev
		}
		return out, nil
	}

	for _, f := range cachedFields(t) {
		fv, ok := fieldByIndex(v, f.index)
		if !ok {
			continue
		}
		ev, err := s.encode(fv, path+"."+f.name, depth+1)
		if err != nil {
			return nil, err
		}
		out[f.name] = ev
	}
	return out, nil
}

func (s *Serializer) encodeList(v reflect.Value, path string, depth int) (interface{}, error) {
	out := make([]interface{}, v.Len())
	for i := range out {
		ev, err := s.encode(v.Index(i), indexPath(path, i), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func asMarshaler(v reflect.Value) (Marshaler, bool) {
	t := v.Type()
	if t.Implements(marshalerType) && v.CanInterface() {
		return v.Interface().(Marshaler), true
	}
	if !reflect.PointerTo(t).Implements(marshalerType) {
		return nil, false
	}
	if v.CanAddr() && v.Addr().CanInterface() {
		return v.Addr().Interface().(Marshaler), true
	}
	if v.CanInterface() {
		p := reflect.New(t)
		p.Elem().Set(v)
		return p.Interface().(Marshaler), true
	}
	return nil, false
}

// formatFloat keeps the shortest exact representation and always writes a fraction or
// exponent, so 24.0 stays distinguishable from the integer 24.
func formatFloat(f float64, bits int, path string) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("serialization: %w: %v at %s", ErrUnsupportedType, f, path)
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	n := strconv.FormatFloat(f, format, -1, bits)
	if !strings.ContainsAny(n, ".eE") {
		n += ".0"
	}
	return json.Number(n), nil
}
