// Package serialization converts object graphs to a tagged JSON form and back.
//
// Every struct is written as a JSON object holding a "$type" entry with its qualified type
// name plus one entry per field. On the way back the tag selects the concrete type, which is
// what lets interface-typed fields (identifiers, events) come back as the right subtype.
// Payloads written without tags still load by falling back to the caller's type hint.
package serialization

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
)

const (
	// TypeKey is the reserved field holding the concrete type name of a serialized object.
	TypeKey = "$type"

	maxDepth = 256
)

// Serializer round-trips object graphs through tagged JSON.
// It is safe for concurrent use on independent graphs.
type Serializer struct {
	registry *Registry
	dec      *decoder
}

// New returns a Serializer resolving tags through registry.
func New(registry *Registry) *Serializer {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Serializer{
		registry: registry,
		dec:      &decoder{registry: registry},
	}
}

// Registry returns the registry consulted for type tags.
func (s *Serializer) Registry() *Registry {
	return s.registry
}

// Serialize converts v into its tagged JSON representation.
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	tree, err := s.encode(reflect.ValueOf(v), "$", 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Deserialize parses data into a new instance. A type tag in the payload takes precedence
// over hint; without one, hint decides the type. An empty or null payload yields nil.
func (s *Serializer) Deserialize(data []byte, hint reflect.Type) (interface{}, error) {
	raw, err := parse(data)
	if err != nil || raw == nil {
		return nil, err
	}

	resolved, err := s.resolve(raw, hint)
	if err != nil {
		return nil, err
	}

	p := reflect.New(baseType(resolved))
	if err = s.dec.decode(raw, p.Elem(), "$", 0); err != nil {
		return nil, err
	}

	want := hint
	if want == nil || want.Kind() == reflect.Interface {
		want = resolved
	}
	if hint != nil && hint.Kind() == reflect.Interface {
		v, err := fitInterface(p, want.Kind() == reflect.Pointer, hint, "$")
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
	if want.Kind() == reflect.Pointer {
		return p.Interface(), nil
	}
	return p.Elem().Interface(), nil
}

// DeserializeInto populates target, which must be a non-nil pointer. Fields of target that
// already hold a value are left untouched.
func (s *Serializer) DeserializeInto(data []byte, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return &ParseError{Err: errNotPointer}
	}
	raw, err := parse(data)
	if err != nil || raw == nil {
		return err
	}
	return s.dec.decode(raw, v.Elem(), "$", 0)
}

// DeserializeAs is Deserialize with T as the type hint.
func DeserializeAs[T any](s *Serializer, data []byte) (T, error) {
	var zero T
	hint := reflect.TypeOf((*T)(nil)).Elem()
	v, err := s.Deserialize(data, hint)
	if err != nil || v == nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &TypeResolutionError{
			TypeName: reflect.TypeOf(v).String(),
			Reason:   "not assignable to " + hint.String(),
		}
	}
	return out, nil
}

func (s *Serializer) resolve(raw interface{}, hint reflect.Type) (reflect.Type, error) {
	if obj, ok := raw.(map[string]interface{}); ok {
		if tag, present := obj[TypeKey]; present {
			name, ok := tag.(string)
			if !ok {
				return nil, &ParseError{Path: "$." + TypeKey, Err: errors.New("type tag is not a string")}
			}
			resolved, found := s.registry.Lookup(name)
			if !found {
				if hint == nil || (name != TypeName(hint) && name != s.registry.NameOf(hint)) {
					return nil, &TypeResolutionError{TypeName: name, Reason: "type is not registered"}
				}
				resolved = hint
			}
			if hint != nil && hint.Kind() != reflect.Interface && baseType(hint) != baseType(resolved) {
				return nil, &TypeResolutionError{TypeName: name, Reason: "not assignable to " + hint.String()}
			}
			return resolved, nil
		}
	}

	if hint == nil {
		return nil, &TypeResolutionError{Reason: "payload has no type tag and no type hint was given"}
	}
	if baseType(hint).Kind() == reflect.Interface {
		return nil, &TypeResolutionError{TypeName: hint.String(), Reason: "payload has no type tag to pick an implementation"}
	}
	return hint, nil
}

func parse(data []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Err: errors.New("unexpected data after top-level value")}
	}
	return raw, nil
}

// fitInterface picks the pointer or value form of the freshly built instance p so that the
// result implements iface, trying the registered form first.
func fitInterface(p reflect.Value, preferPointer bool, iface reflect.Type, path string) (reflect.Value, error) {
	first, second := p.Elem(), p
	if preferPointer {
		first, second = p, p.Elem()
	}
	if first.Type().Implements(iface) {
		return first, nil
	}
	if second.Type().Implements(iface) {
		return second, nil
	}
	return reflect.Value{}, &TypeResolutionError{
		Path:     path,
		TypeName: TypeName(p.Type()),
		Reason:   "does not implement " + iface.String(),
	}
}
