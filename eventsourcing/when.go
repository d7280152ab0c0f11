package eventsourcing

import (
	"time"

	"github.com/cannahum/cqrs-lite/serialization"
)

// When is an immutable instant with microsecond precision, always in UTC.
type When struct {
	micros int64
}

// NewWhen truncates t to microseconds.
func NewWhen(t time.Time) When {
	return When{micros: t.UnixMicro()}
}

// WhenFromMicros returns the instant micros microseconds after the Unix epoch.
func WhenFromMicros(micros int64) When {
	return When{micros: micros}
}

// Now returns the current instant.
func Now() When {
	return NewWhen(time.Now())
}

// Time returns the instant as a UTC time.Time.
func (w When) Time() time.Time {
	return time.UnixMicro(w.micros).UTC()
}

// Micros returns microseconds since the Unix epoch.
func (w When) Micros() int64 {
	return w.micros
}

// MarshalFields implements serialization.Marshaler
func (w When) MarshalFields() (map[string]interface{}, error) {
	return map[string]interface{}{"Micros": w.micros}, nil
}

// UnmarshalFields implements serialization.Unmarshaler
func (w *When) UnmarshalFields(f serialization.Fields) error {
	micros, err := f.Int64("Micros")
	if err != nil {
		return err
	}
	w.micros = micros
	return nil
}
