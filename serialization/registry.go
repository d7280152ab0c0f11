package serialization

import (
	"reflect"
	"sync"
)

// Registry is the closed set of types a Serializer may resolve from a type tag.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry constructs a Registry and binds the specified samples.
func NewRegistry(samples ...interface{}) *Registry {
	r := &Registry{
		byName: map[string]reflect.Type{},
		byType: map[reflect.Type]string{},
	}
	r.Register(samples...)
	return r
}

// Register binds each sample under its qualified type name; may be called more than once.
// A pointer sample makes tagged values resolve to pointers wherever an interface is decoded.
func (r *Registry) Register(samples ...interface{}) {
	for _, sample := range samples {
		t := reflect.TypeOf(sample)
		if t == nil {
			continue
		}
		r.RegisterAs(TypeName(t), sample)
	}
}

// RegisterAs binds sample under an explicit name. Extra names act as aliases: payloads
// written under an old name keep resolving, while new payloads use the first name bound.
func (r *Registry) RegisterAs(name string, sample interface{}) {
	t := reflect.TypeOf(sample)
	if t == nil || name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = t
	if _, ok := r.byType[baseType(t)]; !ok {
		r.byType[baseType(t)] = name
	}
}

// Lookup returns the registered form of the type bound to name.
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// NameOf returns the tag written for t: its registered name, or its qualified name.
func (r *Registry) NameOf(t reflect.Type) string {
	r.mu.RLock()
	name, ok := r.byType[baseType(t)]
	r.mu.RUnlock()
	if ok {
		return name
	}
	return TypeName(t)
}

// TypeName returns the fully-qualified name of t, dereferencing pointers.
func TypeName(t reflect.Type) string {
	t = baseType(t)
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
