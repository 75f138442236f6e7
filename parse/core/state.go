package core

import (
	"iter"
	"sort"
	"time"
)

// ObjectState is an immutable snapshot of a remote record: its class, identity,
// timestamps and an insertion-ordered set of fields.
//
// Field values are stored exactly as they were decoded (primitives, []any,
// map[string]any, json.Number, ...). Typed access goes through the conversion
// package on read.
type ObjectState interface {
	// IsNew reports whether the record has not been persisted yet, which is the
	// case exactly when ObjectID is empty.
	IsNew() bool
	ClassName() string
	ObjectID() string
	CreatedAt() (time.Time, bool)
	UpdatedAt() (time.Time, bool)

	// Get returns the field value or nil when the key is absent. Use Lookup to
	// tell an absent key from a field holding nil.
	Get(key string) any
	Lookup(key string) (any, bool)
	ContainsKey(key string) bool
	// Keys returns the field keys in insertion order. The slice is owned by the caller.
	Keys() []string
	Len() int
	// All yields the fields in insertion order. It can be ranged over any number of times.
	All() iter.Seq2[string, any]

	// MutatedClone copies this snapshot into a MutableObjectState, hands it to
	// mutate and freezes the result into a new snapshot. The receiver is never changed.
	MutatedClone(mutate func(*MutableObjectState)) (ObjectState, error)
}

type objectState struct {
	className string
	objectID  string
	createdAt *time.Time
	updatedAt *time.Time
	fields    fieldMap
}

var _ ObjectState = (*objectState)(nil)

// Option configures the initial contents of a snapshot built by NewObjectState.
type Option func(*MutableObjectState)

// WithObjectID marks the snapshot as an existing, persisted record.
func WithObjectID(id string) Option {
	return func(m *MutableObjectState) {
		m.objectID = id
	}
}

// WithCreatedAt sets the creation timestamp.
func WithCreatedAt(t time.Time) Option {
	return func(m *MutableObjectState) {
		m.createdAt = &t
	}
}

// WithUpdatedAt sets the last update timestamp.
func WithUpdatedAt(t time.Time) Option {
	return func(m *MutableObjectState) {
		m.updatedAt = &t
	}
}

// WithField appends a single field.
func WithField(key string, value any) Option {
	return func(m *MutableObjectState) {
		m.fields.set(key, value)
	}
}

// WithFields appends every entry of fields in ascending key order, so the
// resulting enumeration order does not depend on Go map iteration.
func WithFields(fields map[string]any) Option {
	return func(m *MutableObjectState) {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			m.fields.set(key, fields[key])
		}
	}
}

// NewObjectState builds a snapshot for className. Without WithObjectID the
// snapshot describes a new, unsaved record.
func NewObjectState(className string, opts ...Option) ObjectState {
	m := NewMutableObjectState(className)
	for _, opt := range opts {
		opt(m)
	}
	return m.Freeze()
}

func (s *objectState) IsNew() bool {
	return s.objectID == ""
}

func (s *objectState) ClassName() string {
	return s.className
}

func (s *objectState) ObjectID() string {
	return s.objectID
}

func (s *objectState) CreatedAt() (time.Time, bool) {
	return derefTime(s.createdAt)
}

func (s *objectState) UpdatedAt() (time.Time, bool) {
	return derefTime(s.updatedAt)
}

func (s *objectState) Get(key string) any {
	value, _ := s.fields.lookup(key)
	return value
}

func (s *objectState) Lookup(key string) (any, bool) {
	return s.fields.lookup(key)
}

func (s *objectState) ContainsKey(key string) bool {
	_, ok := s.fields.lookup(key)
	return ok
}

func (s *objectState) Keys() []string {
	keys := make([]string, len(s.fields.keys))
	copy(keys, s.fields.keys)
	return keys
}

func (s *objectState) Len() int {
	return s.fields.len()
}

func (s *objectState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range s.fields.keys {
			if !yield(key, s.fields.values[key]) {
				return
			}
		}
	}
}

func (s *objectState) MutatedClone(mutate func(*MutableObjectState)) (ObjectState, error) {
	if mutate == nil {
		return nil, ErrInvalidArgument
	}

	m := &MutableObjectState{
		className: s.className,
		objectID:  s.objectID,
		createdAt: copyTime(s.createdAt),
		updatedAt: copyTime(s.updatedAt),
		fields:    s.fields.clone(),
	}
	mutate(m)
	if m.frozen {
		return nil, ErrFrozen
	}
	return m.Freeze(), nil
}

func derefTime(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
