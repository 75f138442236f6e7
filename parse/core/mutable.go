package core

import (
	"iter"
	"time"
)

// Property names carried by PropertyChangedEvent.
const (
	PropertyClassName = "ClassName"
	PropertyObjectID  = "ObjectId"
	PropertyCreatedAt = "CreatedAt"
	PropertyUpdatedAt = "UpdatedAt"
	// PropertyItem is reported for field writes and removals; the event Key names the field.
	PropertyItem = "Item"
)

// PropertyChangedEvent describes a single change applied to a MutableObjectState.
type PropertyChangedEvent struct {
	Property string
	Key      string
}

// PropertyChangedFunc receives change notifications from a MutableObjectState.
type PropertyChangedFunc func(PropertyChangedEvent)

// MutableObjectState is the single-use scratch copy handed to MutatedClone
// callbacks. It is not safe for concurrent use and must not be retained after
// the callback returns: once frozen every mutating method panics with ErrFrozen.
// The zero value is an empty builder with no class name.
type MutableObjectState struct {
	className string
	objectID  string
	createdAt *time.Time
	updatedAt *time.Time
	fields    fieldMap

	listeners []PropertyChangedFunc
	frozen    bool
}

// NewMutableObjectState returns an empty builder for className.
func NewMutableObjectState(className string) *MutableObjectState {
	return &MutableObjectState{
		className: className,
		fields:    newFieldMap(0),
	}
}

// OnPropertyChanged registers fn to be called synchronously after each change.
func (m *MutableObjectState) OnPropertyChanged(fn PropertyChangedFunc) {
	if fn == nil {
		return
	}
	m.listeners = append(m.listeners, fn)
}

func (m *MutableObjectState) IsNew() bool {
	return m.objectID == ""
}

func (m *MutableObjectState) ClassName() string {
	return m.className
}

func (m *MutableObjectState) ObjectID() string {
	return m.objectID
}

func (m *MutableObjectState) CreatedAt() (time.Time, bool) {
	return derefTime(m.createdAt)
}

func (m *MutableObjectState) UpdatedAt() (time.Time, bool) {
	return derefTime(m.updatedAt)
}

func (m *MutableObjectState) Get(key string) any {
	value, _ := m.fields.lookup(key)
	return value
}

func (m *MutableObjectState) Lookup(key string) (any, bool) {
	return m.fields.lookup(key)
}

func (m *MutableObjectState) ContainsKey(key string) bool {
	_, ok := m.fields.lookup(key)
	return ok
}

func (m *MutableObjectState) Keys() []string {
	keys := make([]string, len(m.fields.keys))
	copy(keys, m.fields.keys)
	return keys
}

func (m *MutableObjectState) Len() int {
	return m.fields.len()
}

func (m *MutableObjectState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range m.fields.keys {
			if !yield(key, m.fields.values[key]) {
				return
			}
		}
	}
}

// Set adds or replaces a field. New keys are appended to the enumeration order.
func (m *MutableObjectState) Set(key string, value any) {
	m.ensureMutable()
	m.fields.set(key, value)
	m.notify(PropertyItem, key)
}

// Remove deletes a field and reports whether it was present.
func (m *MutableObjectState) Remove(key string) bool {
	m.ensureMutable()
	if !m.fields.remove(key) {
		return false
	}
	m.notify(PropertyItem, key)
	return true
}

func (m *MutableObjectState) SetClassName(name string) {
	m.ensureMutable()
	if m.className == name {
		return
	}
	m.className = name
	m.notify(PropertyClassName, "")
}

// SetObjectID records the id assigned by the server. An id can be set once;
// replacing it with a different value fails with ErrObjectIDImmutable.
func (m *MutableObjectState) SetObjectID(id string) error {
	m.ensureMutable()
	if m.objectID == id {
		return nil
	}
	if m.objectID != "" {
		return ErrObjectIDImmutable
	}
	m.objectID = id
	m.notify(PropertyObjectID, "")
	return nil
}

func (m *MutableObjectState) SetCreatedAt(t time.Time) {
	m.ensureMutable()
	m.createdAt = &t
	m.notify(PropertyCreatedAt, "")
}

func (m *MutableObjectState) SetUpdatedAt(t time.Time) {
	m.ensureMutable()
	m.updatedAt = &t
	m.notify(PropertyUpdatedAt, "")
}

// Freeze turns the builder into an immutable snapshot. The builder hands its
// storage over to the snapshot and rejects further mutation.
func (m *MutableObjectState) Freeze() ObjectState {
	m.ensureMutable()
	m.frozen = true
	m.listeners = nil
	return &objectState{
		className: m.className,
		objectID:  m.objectID,
		createdAt: m.createdAt,
		updatedAt: m.updatedAt,
		fields:    m.fields,
	}
}

func (m *MutableObjectState) ensureMutable() {
	if m.frozen {
		panic(ErrFrozen)
	}
}

func (m *MutableObjectState) notify(property, key string) {
	if len(m.listeners) == 0 {
		return
	}
	event := PropertyChangedEvent{Property: property, Key: key}
	for _, fn := range m.listeners {
		fn(event)
	}
}
