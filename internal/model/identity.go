package model

import (
	"encoding/json"
	"strconv"
)

// ID is the store-assigned identifier of a persisted entity.
type ID uint

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal identifier.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Identity is an entity's ID, absent until the entity is first saved.
type Identity struct {
	id       ID
	assigned bool
}

// Unassigned returns the identity of an entity that has never been saved.
func Unassigned() Identity {
	return Identity{}
}

// Assigned returns the identity of a persisted entity.
func Assigned(id ID) Identity {
	return Identity{id: id, assigned: true}
}

// Get returns the ID and whether one has been assigned.
func (i Identity) Get() (ID, bool) {
	return i.id, i.assigned
}

// IsAssigned reports whether the entity has been persisted.
func (i Identity) IsAssigned() bool {
	return i.assigned
}

// Value returns the ID, or zero when unassigned.
func (i Identity) Value() ID {
	return i.id
}

// Equal reports whether both identities are assigned and refer to the same ID.
func (i Identity) Equal(o Identity) bool {
	return i.assigned && o.assigned && i.id == o.id
}

// MarshalJSON encodes an unassigned identity as null.
func (i Identity) MarshalJSON() ([]byte, error) {
	if !i.assigned {
		return []byte("null"), nil
	}
	return json.Marshal(uint(i.id))
}

// UnmarshalJSON accepts null or a number.
func (i *Identity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Unassigned()
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*i = Assigned(ID(v))
	return nil
}
