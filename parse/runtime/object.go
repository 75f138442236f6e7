package runtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsekit/parsekit/parse/core"
)

var (
	// ErrNilState indicates an operation was given a nil ObjectState.
	ErrNilState = errors.New("runtime: object state is required")
	// ErrKeyNotFound indicates a typed accessor was asked for an absent field.
	ErrKeyNotFound = errors.New("runtime: key not found")
)

// Option configures an Object.
type Option func(*objectConfig)

type objectConfig struct {
	logger  *zap.Logger
	localID string
}

// WithLogger sets the logger used for diagnostic messages.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *objectConfig) {
		cfg.logger = logger
	}
}

// WithLocalID overrides the generated local id.
func WithLocalID(id string) Option {
	return func(cfg *objectConfig) {
		cfg.localID = id
	}
}

// ChangeFunc is called after a new snapshot has been committed.
type ChangeFunc func(prev, next core.ObjectState)

type committedChange struct {
	prev, next core.ObjectState
	events     []core.PropertyChangedEvent
}

// Object is the live, goroutine-safe holder of one record's current
// ObjectState. Every change goes through MutatedClone, so snapshots handed
// out by State are never altered afterwards.
//
// Listeners are called in commit order, one change at a time and without any
// lock held. When commits race, the goroutine already delivering notifications
// also delivers the others, so a commit may return before its own listeners ran.
type Object struct {
	localID string
	logger  *zap.Logger

	mu          sync.RWMutex
	state       core.ObjectState
	version     uint64
	pending     []committedChange
	dispatching bool

	listenerMu sync.RWMutex
	onChange   []ChangeFunc
	onProperty []core.PropertyChangedFunc
}

// New creates an Object for a new, unsaved record of className.
func New(className string, opts ...Option) *Object {
	return newObject(core.NewObjectState(className), opts)
}

// FromState creates an Object around an existing snapshot.
func FromState(state core.ObjectState, opts ...Option) (*Object, error) {
	if state == nil {
		return nil, ErrNilState
	}
	return newObject(state, opts), nil
}

func newObject(state core.ObjectState, opts []Option) *Object {
	cfg := objectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	localID := cfg.localID
	if localID == "" {
		localID = uuid.NewString()
	}

	return &Object{
		localID: localID,
		logger:  logger.With(zap.String("class", state.ClassName()), zap.String("localId", localID)),
		state:   state,
	}
}

// State returns the current snapshot.
func (o *Object) State() core.ObjectState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LocalID identifies the object inside this process, before and after it has
// been assigned an objectId.
func (o *Object) LocalID() string {
	return o.localID
}

func (o *Object) ObjectID() string {
	return o.State().ObjectID()
}

func (o *Object) IsNew() bool {
	return o.State().IsNew()
}

// Set stores value under key.
func (o *Object) Set(key string, value any) error {
	return o.commit(func(m *core.MutableObjectState) error {
		m.Set(key, value)
		return nil
	})
}

// Remove deletes key. Removing an absent key still commits an identical snapshot.
func (o *Object) Remove(key string) error {
	return o.commit(func(m *core.MutableObjectState) error {
		m.Remove(key)
		return nil
	})
}

// Mutate applies fn to a mutable copy of the current state and commits the
// result. fn runs without the object's lock held and may read the object, but
// it runs again if another commit lands first, so it must not commit to the
// same object itself.
func (o *Object) Mutate(fn func(*core.MutableObjectState)) error {
	if fn == nil {
		return core.ErrInvalidArgument
	}
	return o.commit(func(m *core.MutableObjectState) error {
		fn(m)
		return nil
	})
}

// ApplyServerResult merges the outcome of a save round-trip: the assigned
// objectId, timestamps and any fields the server returned. A result carrying a
// different objectId than the one already held is rejected.
func (o *Object) ApplyServerResult(result core.ObjectState) error {
	if result == nil {
		return ErrNilState
	}

	err := o.commit(func(m *core.MutableObjectState) error {
		if id := result.ObjectID(); id != "" {
			if err := m.SetObjectID(id); err != nil {
				return fmt.Errorf("runtime: server returned objectId %q for %q: %w", id, m.ObjectID(), err)
			}
		}
		if t, ok := result.CreatedAt(); ok {
			m.SetCreatedAt(t)
		}
		if t, ok := result.UpdatedAt(); ok {
			m.SetUpdatedAt(t)
		}
		for key, value := range result.All() {
			m.Set(key, value)
		}
		return nil
	})
	if err != nil {
		o.logger.Warn("rejected server result", zap.String("objectId", result.ObjectID()), zap.Error(err))
		return err
	}
	return nil
}

// ApplyServerData decodes a server payload for this object's class and applies it.
func (o *Object) ApplyServerData(data map[string]any) error {
	result, err := core.FromServerData(o.State().ClassName(), data)
	if err != nil {
		return err
	}
	return o.ApplyServerResult(result)
}

// OnChange registers a callback fired after each committed change.
func (o *Object) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	o.listenerMu.Lock()
	o.onChange = append(o.onChange, fn)
	o.listenerMu.Unlock()
}

// OnPropertyChanged registers a callback for the property events raised while
// a change is built. Events are delivered in order once the change is committed.
func (o *Object) OnPropertyChanged(fn core.PropertyChangedFunc) {
	if fn == nil {
		return
	}
	o.listenerMu.Lock()
	o.onProperty = append(o.onProperty, fn)
	o.listenerMu.Unlock()
}

func (o *Object) commit(fn func(*core.MutableObjectState) error) error {
	change, err := o.apply(fn)
	if err != nil {
		return err
	}

	o.logger.Debug("committed object state",
		zap.String("objectId", change.next.ObjectID()),
		zap.Int("fields", change.next.Len()),
		zap.Int("changes", len(change.events)),
	)
	o.dispatch()
	return nil
}

// apply builds the next snapshot from the current one and swaps it in if no
// other commit happened meanwhile, retrying otherwise.
func (o *Object) apply(fn func(*core.MutableObjectState) error) (committedChange, error) {
	for {
		o.mu.RLock()
		prev, version := o.state, o.version
		o.mu.RUnlock()

		var (
			events []core.PropertyChangedEvent
			fnErr  error
		)
		next, err := prev.MutatedClone(func(m *core.MutableObjectState) {
			m.OnPropertyChanged(func(e core.PropertyChangedEvent) {
				events = append(events, e)
			})
			fnErr = fn(m)
		})
		if err != nil {
			return committedChange{}, err
		}
		if fnErr != nil {
			return committedChange{}, fnErr
		}

		o.mu.Lock()
		if o.version != version {
			o.mu.Unlock()
			continue
		}
		change := committedChange{prev: prev, next: next, events: events}
		o.state = next
		o.version++
		o.pending = append(o.pending, change)
		o.mu.Unlock()
		return change, nil
	}
}

// dispatch drains pending changes unless another goroutine is already doing so.
func (o *Object) dispatch() {
	o.mu.Lock()
	if o.dispatching {
		o.mu.Unlock()
		return
	}
	o.dispatching = true
	o.mu.Unlock()

	drained := false
	defer func() {
		// A panicking listener must not leave the object stuck in dispatch.
		if !drained {
			o.mu.Lock()
			o.dispatching = false
			o.mu.Unlock()
		}
	}()

	for {
		o.mu.Lock()
		if len(o.pending) == 0 {
			o.dispatching = false
			drained = true
			o.mu.Unlock()
			return
		}
		change := o.pending[0]
		o.pending[0] = committedChange{}
		o.pending = o.pending[1:]
		o.mu.Unlock()

		o.notify(change)
	}
}

func (o *Object) notify(change committedChange) {
	o.listenerMu.RLock()
	onProperty := make([]core.PropertyChangedFunc, len(o.onProperty))
	copy(onProperty, o.onProperty)
	onChange := make([]ChangeFunc, len(o.onChange))
	copy(onChange, o.onChange)
	o.listenerMu.RUnlock()

	for _, e := range change.events {
		for _, fn := range onProperty {
			fn(e)
		}
	}
	for _, fn := range onChange {
		fn(change.prev, change.next)
	}
}
