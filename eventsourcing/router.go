package eventsourcing

import (
	"fmt"
	"reflect"
	"strings"
)

// EventRouter delivers an event to the handler that mutates aggregate state.
type EventRouter interface {
	Dispatch(event Event) error
}

// DispatchFunc adapts an explicit type switch into an EventRouter:
//
//	func (o *SalesOrder) route(e eventsourcing.Event) error {
//		switch e := e.(type) {
//		case *SalesOrderCreated:
//			o.applyCreated(e)
//		default:
//			return eventsourcing.NewHandlerNotFoundError(o, e)
//		}
//		return nil
//	}
type DispatchFunc func(event Event) error

// Dispatch implements EventRouter
func (f DispatchFunc) Dispatch(event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidArgument)
	}
	return f(event)
}

// Router looks handlers up by the exact runtime type of the event.
type Router struct {
	handlers map[reflect.Type]func(Event)
	strict   bool
	owner    string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// IgnoreMissingHandlers makes Dispatch a no-op for events without a handler.
func IgnoreMissingHandlers() RouterOption {
	return func(r *Router) {
		r.strict = false
	}
}

// NewRouter returns an empty, strict Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		handlers: map[reflect.Type]func(Event){},
		strict:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewConventionRouter returns a Router holding the Apply<Suffix> methods of instance.
func NewConventionRouter(instance interface{}, opts ...RouterOption) (*Router, error) {
	r := NewRouter(opts...)
	if err := r.RegisterAggregate(instance); err != nil {
		return nil, err
	}
	return r, nil
}

// Register binds handler to events of type T.
func Register[T Event](r *Router, handler func(T)) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidArgument, t)
	}
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s is an interface", ErrInvalidArgument, t)
	}
	return r.add(t, func(e Event) { handler(e.(T)) })
}

var eventType = reflect.TypeOf((*Event)(nil)).Elem()

// RegisterAggregate binds every exported method of instance named Apply<Suffix> that takes a
// single concrete event and returns nothing. The bare name Apply is left alone.
func (r *Router) RegisterAggregate(instance interface{}) error {
	if instance == nil {
		return fmt.Errorf("%w: nil aggregate", ErrInvalidArgument)
	}
	v := reflect.ValueOf(instance)
	t := v.Type()
	if r.owner == "" {
		r.owner = typeName(instance)
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.Name == "Apply" || !strings.HasPrefix(m.Name, "Apply") {
			continue
		}
		// m.Type includes the receiver
		if m.Type.NumIn() != 2 || m.Type.NumOut() != 0 {
			continue
		}
		param := m.Type.In(1)
		if !isConcreteEvent(param) {
			continue
		}

		fn := v.Method(i)
		if err := r.add(param, func(e Event) {
			fn.Call([]reflect.Value{reflect.ValueOf(e)})
		}); err != nil {
			return err
		}
	}
	return nil
}

func isConcreteEvent(t reflect.Type) bool {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	return base.Kind() == reflect.Struct && t.Implements(eventType)
}

func (r *Router) add(t reflect.Type, handler func(Event)) error {
	if _, ok := r.handlers[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, t)
	}
	r.handlers[t] = handler
	return nil
}

// Dispatch implements EventRouter. Handler panics propagate to the caller.
func (r *Router) Dispatch(event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidArgument)
	}
	handler, ok := r.handlers[reflect.TypeOf(event)]
	if !ok {
		if !r.strict {
			return nil
		}
		return &HandlerNotFoundError{AggregateType: r.owner, EventType: typeName(event)}
	}
	handler(event)
	return nil
}
