package eventsourcing

import (
	"fmt"
	"strconv"
)

// Standard header keys.
const (
	HeaderCorrelationID = "CorrelationId"
	HeaderAccountID     = "AccountId"
	HeaderWho           = "Who"
	HeaderWhen          = "When"
	HeaderAggregateType = "AggregateType"
)

// EventHeaders carries the envelope metadata of an event: the standard keys above plus
// free-form custom entries.
type EventHeaders struct {
	Standards map[string]string
	Customs   map[string]string
}

func (h *EventHeaders) setStandard(key, value string) {
	if h.Standards == nil {
		h.Standards = map[string]string{}
	}
	h.Standards[key] = value
}

// CorrelationID returns the id shared by every message of one business transaction.
func (h EventHeaders) CorrelationID() string {
	return h.Standards[HeaderCorrelationID]
}

// SetCorrelationID sets the correlation id.
func (h *EventHeaders) SetCorrelationID(id string) {
	h.setStandard(HeaderCorrelationID, id)
}

// Who returns the account that caused the event.
func (h EventHeaders) Who() Account {
	return NewAccount(h.Standards[HeaderAccountID], h.Standards[HeaderWho])
}

// SetWho records the account that caused the event.
func (h *EventHeaders) SetWho(who Account) {
	h.setStandard(HeaderAccountID, who.ID())
	h.setStandard(HeaderWho, who.Name())
}

// When returns the occurrence time, stored as Unix microseconds.
func (h EventHeaders) When() (When, error) {
	raw, ok := h.Standards[HeaderWhen]
	if !ok {
		return When{}, fmt.Errorf("header %s is not set", HeaderWhen)
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return When{}, fmt.Errorf("header %s: %w", HeaderWhen, err)
	}
	return WhenFromMicros(micros), nil
}

// SetWhen records the occurrence time.
func (h *EventHeaders) SetWhen(when When) {
	h.setStandard(HeaderWhen, strconv.FormatInt(when.Micros(), 10))
}

// AggregateType returns the name of the aggregate kind that raised the event.
func (h EventHeaders) AggregateType() string {
	return h.Standards[HeaderAggregateType]
}

// SetAggregateType records the aggregate kind.
func (h *EventHeaders) SetAggregateType(name string) {
	h.setStandard(HeaderAggregateType, name)
}

// ContainsKey reports whether key is set, as a standard or a custom header.
func (h EventHeaders) ContainsKey(key string) bool {
	if _, ok := h.Standards[key]; ok {
		return true
	}
	_, ok := h.Customs[key]
	return ok
}

// Get returns a custom header.
func (h EventHeaders) Get(key string) (string, bool) {
	v, ok := h.Customs[key]
	return v, ok
}

// Set stores a custom header.
func (h *EventHeaders) Set(key, value string) {
	if h.Customs == nil {
		h.Customs = map[string]string{}
	}
	h.Customs[key] = value
}
