package eventsourcing

// Memento is a point-in-time copy of aggregate state. Implementations embed MementoModel
// and are returned by pointer.
type Memento interface {
	MementoID() string
	MementoVersion() int
	stamp(id string, version int)
}

// Snapshotter is implemented by aggregates able to produce a Memento.
type Snapshotter interface {
	CreateSnapshot() Memento
}

// MementoModel provides a default implementation of Memento
type MementoModel struct {
	ID      string
	Version int
}

// MementoID implements Memento
func (m MementoModel) MementoID() string {
	return m.ID
}

// MementoVersion implements Memento
func (m MementoModel) MementoVersion() int {
	return m.Version
}

func (m *MementoModel) stamp(id string, version int) {
	m.ID = id
	m.Version = version
}
