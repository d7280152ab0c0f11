package eventsourcing

import "github.com/cannahum/cqrs-lite/serialization"

// AnonymousName is the name given to accounts created without one.
const AnonymousName = "Anonymous"

// Account identifies who issued a command or caused an event. It is immutable.
type Account struct {
	id   string
	name string
}

// NewAccount returns an Account; a blank name becomes AnonymousName.
func NewAccount(id, name string) Account {
	if name == "" {
		name = AnonymousName
	}
	return Account{id: id, name: name}
}

// ID returns the account id.
func (a Account) ID() string { return a.id }

// Name returns the display name.
func (a Account) Name() string { return a.name }

// MarshalFields implements serialization.Marshaler
func (a Account) MarshalFields() (map[string]interface{}, error) {
	return map[string]interface{}{"Id": a.id, "Name": a.name}, nil
}

// UnmarshalFields implements serialization.Unmarshaler
func (a *Account) UnmarshalFields(f serialization.Fields) error {
	id, err := f.String("Id")
	if err != nil {
		return err
	}
	name, err := f.String("Name")
	if err != nil {
		return err
	}
	*a = NewAccount(id, name)
	return nil
}
