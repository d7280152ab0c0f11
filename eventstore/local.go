package eventstore

import (
	"context"
	"sync"
)

type memoryEventStore struct {
	mux        sync.RWMutex
	eventsByID map[string]History
}

func (m *memoryEventStore) Save(_ context.Context, aggregateID string, expectedVersion int, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkContiguous(expectedVersion, records); err != nil {
		return err
	}

	m.mux.Lock()
	defer m.mux.Unlock()

	stream := m.eventsByID[aggregateID]
	if head := stream.Head(); head != expectedVersion {
		// a replay of a batch that is already stored succeeds silently
		if head >= records[len(records)-1].Version && sameRecords(stream[expectedVersion:expectedVersion+len(records)], records) {
			return nil
		}
		return &VersionConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: head}
	}

	for _, r := range records {
		r.Data = append([]byte(nil), r.Data...)
		stream = append(stream, r)
	}
	m.eventsByID[aggregateID] = stream
	return nil
}

func (m *memoryEventStore) Load(_ context.Context, aggregateID string, fromVersion, toVersion int) (History, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	all := m.eventsByID[aggregateID]
	history := make(History, 0, len(all))
	for _, record := range all {
		if v := record.Version; v >= fromVersion && (toVersion == 0 || v <= toVersion) {
			record.Data = append([]byte(nil), record.Data...)
			history = append(history, record)
		}
	}
	return history, nil
}

// GetLocalStore returns an EventStore in memory - good for tests!
func GetLocalStore() EventStore {
	return &memoryEventStore{
		eventsByID: map[string]History{},
	}
}
