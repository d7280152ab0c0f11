package serialization

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

type decoder struct {
	registry *Registry
}

// decode populates target from the generic tree produced by parse. Targets that already
// hold a value are left as they are.
func (d *decoder) decode(raw interface{}, target reflect.Value, path string, depth int) error {
	if depth > maxDepth {
		return &ParseError{Path: path, Err: errTooDeep}
	}
	if raw == nil {
		return nil
	}

	switch target.Kind() {
	case reflect.Interface:
		return d.decodeInterface(raw, target, path, depth)

	case reflect.Pointer:
		if target.IsNil() {
			if !target.CanSet() {
				return nil
			}
			target.Set(reflect.New(target.Type().Elem()))
		}
		return d.decode(raw, target.Elem(), path, depth+1)

	case reflect.Struct:
		if target.Type() == timeType {
			return decodeTime(raw, target, path)
		}
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return mismatch(path, "object", raw)
		}
		if err := d.checkTag(obj, target.Type(), path); err != nil {
			return err
		}
		return d.populate(obj, target, path, depth)

	case reflect.Map:
		return d.decodeMap(raw, target, path, depth)

	case reflect.Slice:
		return d.decodeSlice(raw, target, path, depth)

	case reflect.Array:
		list, ok := raw.([]interface{})
		if !ok {
			return mismatch(path, "array", raw)
		}
		for i := 0; i < len(list) && i < target.Len(); i++ {
			if err := d.decode(list[i], target.Index(i), indexPath(path, i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return mismatch(path, "string", raw)
		}
		target.SetString(s)
		return nil

	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return mismatch(path, "boolean", raw)
		}
		target.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := raw.(json.Number)
		if !ok {
			return mismatch(path, "number", raw)
		}
		i, err := parseInt(n)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		if target.OverflowInt(i) {
			return &ParseError{Path: path, Err: fmt.Errorf("%s overflows %s", n, target.Type())}
		}
		target.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := raw.(json.Number)
		if !ok {
			return mismatch(path, "number", raw)
		}
		u, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		if target.OverflowUint(u) {
			return &ParseError{Path: path, Err: fmt.Errorf("%s overflows %s", n, target.Type())}
		}
		target.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		n, ok := raw.(json.Number)
		if !ok {
			return mismatch(path, "number", raw)
		}
		f, err := strconv.ParseFloat(string(n), target.Type().Bits())
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		target.SetFloat(f)
		return nil
	}

	return &ParseError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, target.Type())}
}

func (d *decoder) decodeInterface(raw interface{}, target reflect.Value, path string, depth int) error {
	if !target.IsNil() || !target.CanSet() {
		return nil
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		if tag, present := obj[TypeKey]; present {
			name, ok := tag.(string)
			if !ok {
				return &ParseError{Path: path + "." + TypeKey, Err: errors.New("type tag is not a string")}
			}
			t, found := d.registry.Lookup(name)
			if !found {
				return &TypeResolutionError{Path: path, TypeName: name, Reason: "type is not registered"}
			}
			p := reflect.New(baseType(t))
			if err := d.decode(obj, p.Elem(), path, depth+1); err != nil {
				return err
			}
			v, err := fitInterface(p, t.Kind() == reflect.Pointer, target.Type(), path)
			if err != nil {
				return err
			}
			target.Set(v)
			return nil
		}
	}

	if target.NumMethod() > 0 {
		return &TypeResolutionError{
			Path:     path,
			TypeName: target.Type().String(),
			Reason:   "payload has no type tag to pick an implementation",
		}
	}

	v, err := d.plainValue(raw, path, depth)
	if err != nil || v == nil {
		return err
	}
	target.Set(reflect.ValueOf(v))
	return nil
}

// plainValue converts an untagged value aimed at an empty interface. Integral numbers
// become int64, others float64; tagged values nested inside still resolve through the registry.
func (d *decoder) plainValue(raw interface{}, path string, depth int) (interface{}, error) {
	switch x := raw.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return f, nil

	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, v := range x {
			ev := reflect.New(emptyInterfaceType).Elem()
			if err := d.decode(v, ev, path+"."+k, depth+1); err != nil {
				return nil, err
			}
			out[k] = ev.Interface()
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(x))
		for i, v := range x {
			ev := reflect.New(emptyInterfaceType).Elem()
			if err := d.decode(v, ev, indexPath(path, i), depth+1); err != nil {
				return nil, err
			}
			out[i] = ev.Interface()
		}
		return out, nil
	}
	return raw, nil
}

var emptyInterfaceType = reflect.TypeOf((*interface{})(nil)).Elem()

// checkTag accepts an untagged object, the type's own name, or an alias registered for it.
func (d *decoder) checkTag(obj map[string]interface{}, t reflect.Type, path string) error {
	tag, present := obj[TypeKey]
	if !present {
		return nil
	}
	name, ok := tag.(string)
	if !ok {
		return &ParseError{Path: path + "." + TypeKey, Err: errors.New("type tag is not a string")}
	}
	if name == d.registry.NameOf(t) || name == TypeName(t) {
		return nil
	}
	if lt, found := d.registry.Lookup(name); found && baseType(lt) == t {
		return nil
	}
	return &TypeResolutionError{Path: path, TypeName: name, Reason: "not assignable to " + t.String()}
}

func (d *decoder) populate(obj map[string]interface{}, target reflect.Value, path string, depth int) error {
	t := target.Type()

	if reflect.PointerTo(t).Implements(unmarshalerType) {
		if !target.IsZero() {
			return nil
		}
		values := make(map[string]interface{}, len(obj))
		for k, v := range obj {
			if k != TypeKey {
				values[k] = v
			}
		}

		holder, detached := target, !target.CanAddr()
		if detached {
			holder = reflect.New(t).Elem()
		}
		u := holder.Addr().Interface().(Unmarshaler)
		if err := u.UnmarshalFields(Fields{values: values, dec: d, path: path}); err != nil {
			if errors.Is(err, ErrParse) || errors.Is(err, ErrTypeResolution) {
				return err
			}
			return &ParseError{Path: path, Err: err}
		}
		if detached && target.CanSet() {
			target.Set(holder)
		}
		return nil
	}

	for _, f := range cachedFields(t) {
		raw, ok := obj[f.name]
		if !ok {
			continue
		}
		fv, ok := fieldByIndexAlloc(target, f.index)
		if !ok || !fv.CanSet() || !fv.IsZero() {
			continue
		}
		if err := d.decode(raw, fv, path+"."+f.name, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) decodeMap(raw interface{}, target reflect.Value, path string, depth int) error {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return mismatch(path, "object", raw)
	}
	mt := target.Type()
	if mt.Key().Kind() != reflect.String {
		return &ParseError{Path: path, Err: fmt.Errorf("%w: map key %s", ErrUnsupportedType, mt.Key())}
	}
	if target.IsNil() {
		if !target.CanSet() {
			return nil
		}
		target.Set(reflect.MakeMapWithSize(mt, len(obj)))
	}

	for k, v := range obj {
		if k == TypeKey {
			continue
		}
		key := reflect.ValueOf(k).Convert(mt.Key())
		if target.MapIndex(key).IsValid() {
			continue
		}
		ev := reflect.New(mt.Elem()).Elem()
		if err := d.decode(v, ev, path+"."+k, depth+1); err != nil {
			return err
		}
		target.SetMapIndex(key, ev)
	}
	return nil
}

func (d *decoder) decodeSlice(raw interface{}, target reflect.Value, path string, depth int) error {
	if target.Len() > 0 || !target.CanSet() {
		return nil
	}

	if target.Type().Elem().Kind() == reflect.Uint8 {
		s, ok := raw.(string)
		if !ok {
			return mismatch(path, "base64 string", raw)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		target.SetBytes(b)
		return nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return mismatch(path, "array", raw)
	}
	out := reflect.MakeSlice(target.Type(), len(list), len(list))
	for i, v := range list {
		if err := d.decode(v, out.Index(i), indexPath(path, i), depth+1); err != nil {
			return err
		}
	}
	target.Set(out)
	return nil
}

func decodeTime(raw interface{}, target reflect.Value, path string) error {
	var t time.Time
	switch x := raw.(type) {
	case json.Number:
		micros, err := parseInt(x)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		t = time.UnixMicro(micros).UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		t = parsed.UTC()
	default:
		return mismatch(path, "timestamp", raw)
	}
	if target.CanSet() {
		target.Set(reflect.ValueOf(t))
	}
	return nil
}

func parseInt(n json.Number) (int64, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	return int64(f), nil
}

func mismatch(path, want string, raw interface{}) error {
	return &ParseError{Path: path, Err: fmt.Errorf("expected %s, got %T", want, raw)}
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
