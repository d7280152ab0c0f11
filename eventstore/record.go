package eventstore

import "bytes"

// Record represents the event in serialized form.
// Version is stored under the table's range key, so it is mapped by the store itself.
type Record struct {
	Version  int    `dynamodbav:"-"`
	Data     []byte `dynamodbav:"event_data"`
	CommitID string `dynamodbav:"commit_id,omitempty"`
}

// Same reports whether r and other hold the same version and payload.
func (r Record) Same(other Record) bool {
	return r.Version == other.Version && r.CommitID == other.CommitID && bytes.Equal(r.Data, other.Data)
}

// History represents the ordered records of one aggregate
type History []Record

// Len implements sort.Interface
func (h History) Len() int {
	return len(h)
}

// Swap implements sort.Interface
func (h History) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Less implements sort.Interface
func (h History) Less(i, j int) bool {
	return h[i].Version < h[j].Version
}

// Head returns the version of the last record, or 0 when h is empty.
func (h History) Head() int {
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1].Version
}

func sameRecords(stored History, records []Record) bool {
	if len(stored) != len(records) {
		return false
	}
	for i := range records {
		if !stored[i].Same(records[i]) {
			return false
		}
	}
	return true
}
