package eventsourcing

import (
	"hash/fnv"
	"reflect"

	uuid "github.com/satori/go.uuid"
)

// DomainID identifies an aggregate. Concrete kinds embed ID so that identifiers of
// different aggregates never compare equal even when their values match:
//
//	type SalesOrderID struct{ eventsourcing.ID }
type DomainID interface {
	IDValue() string
	String() string
}

// ID is the embeddable base of every DomainID.
type ID struct {
	Value string
}

// NewID returns an ID holding value. Empty values are allowed.
func NewID(value string) ID {
	return ID{Value: value}
}

// NewGUID returns an ID holding a random UUID.
func NewGUID() ID {
	return ID{Value: uuid.NewV4().String()}
}

// IDValue implements DomainID
func (id ID) IDValue() string {
	return id.Value
}

// String implements DomainID
func (id ID) String() string {
	return id.Value
}

// IDsEqual reports whether a and b are the same kind of identifier with the same value.
func IDsEqual(a, b DomainID) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a.IDValue() == b.IDValue()
}

// HashID hashes the value of id only, consistent with IDsEqual.
func HashID(id DomainID) uint64 {
	h := fnv.New64a()
	if id != nil {
		_, _ = h.Write([]byte(id.IDValue()))
	}
	return h.Sum64()
}
