package eventstore

import (
	"context"
	"errors"
	"fmt"
)

// EventStore provides an abstraction for the Repository to save data
type EventStore interface {
	// Save appends the provided serialized records to the stream of aggregateID.
	// expectedVersion is the version of the last record the caller has seen (0 for a new
	// stream); records must be numbered expectedVersion+1 onwards. Either every record is
	// stored or none is.
	Save(ctx context.Context, aggregateID string, expectedVersion int, records ...Record) error

	// Load the history of events up to the version specified.
	// When toVersion is 0, all events will be loaded.
	// To start at the beginning, fromVersion should be set to 0.
	// An unknown aggregate yields an empty History.
	Load(ctx context.Context, aggregateID string, fromVersion, toVersion int) (History, error)
}

var (
	// ErrVersionConflict is matched by every *VersionConflictError.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidRecords is returned when a batch is not numbered contiguously after the expected version.
	ErrInvalidRecords = errors.New("records are not contiguous")
)

// VersionConflictError is returned by Save when the stream head moved past the expected version.
type VersionConflictError struct {
	AggregateID string
	Expected    int
	Actual      int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s on aggregate %s: expected version %d, actual %d",
		ErrVersionConflict, e.AggregateID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

func checkContiguous(expectedVersion int, records []Record) error {
	if expectedVersion < 0 {
		return fmt.Errorf("%w: negative expected version %d", ErrInvalidRecords, expectedVersion)
	}
	for i, r := range records {
		if want := expectedVersion + i + 1; r.Version != want {
			return fmt.Errorf("%w: record %d has version %d, want %d", ErrInvalidRecords, i, r.Version, want)
		}
	}
	return nil
}
