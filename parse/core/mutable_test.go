package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestMutableObjectStatePropertyChanged(t *testing.T) {
	m := NewMutableObjectState("GameScore")

	var events []PropertyChangedEvent
	m.OnPropertyChanged(func(e PropertyChangedEvent) {
		events = append(events, e)
	})
	m.OnPropertyChanged(nil)

	m.Set("score", 10)
	m.SetClassName("GameScore") // unchanged, no event
	m.SetClassName("Score")
	if err := m.SetObjectID("id-1"); err != nil {
		t.Fatalf("SetObjectID returned error: %v", err)
	}
	m.SetCreatedAt(time.Unix(0, 0))
	m.SetUpdatedAt(time.Unix(1, 0))
	m.Remove("score")
	m.Remove("score") // already gone, no event

	want := []PropertyChangedEvent{
		{Property: PropertyItem, Key: "score"},
		{Property: PropertyClassName},
		{Property: PropertyObjectID},
		{Property: PropertyCreatedAt},
		{Property: PropertyUpdatedAt},
		{Property: PropertyItem, Key: "score"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\nwant %#v\ngot  %#v", want, events)
	}
}

func TestMutableObjectStateListenersSeeNewValue(t *testing.T) {
	m := NewMutableObjectState("GameScore")
	var observed any
	m.OnPropertyChanged(func(e PropertyChangedEvent) {
		observed = m.Get(e.Key)
	})
	m.Set("score", 42)
	if observed != 42 {
		t.Fatalf("expected listener to observe 42, got %v", observed)
	}
}

func TestMutableObjectStateObjectIDSetOnce(t *testing.T) {
	m := NewMutableObjectState("GameScore")
	if err := m.SetObjectID("a"); err != nil {
		t.Fatalf("first SetObjectID failed: %v", err)
	}
	if err := m.SetObjectID("a"); err != nil {
		t.Fatalf("repeating the same id should succeed, got %v", err)
	}
	if err := m.SetObjectID("b"); !errors.Is(err, ErrObjectIDImmutable) {
		t.Fatalf("expected ErrObjectIDImmutable, got %v", err)
	}
	if m.ObjectID() != "a" {
		t.Fatalf("expected objectId to stay a, got %q", m.ObjectID())
	}
}

func TestMutableObjectStateFreezePanicsOnReuse(t *testing.T) {
	m := NewMutableObjectState("GameScore")
	m.Set("a", 1)
	state := m.Freeze()

	defer func() {
		r := recover()
		if r != ErrFrozen {
			t.Fatalf("expected ErrFrozen panic, got %v", r)
		}
		if state.ContainsKey("b") {
			t.Fatalf("frozen state must not observe later writes")
		}
	}()
	m.Set("b", 2)
}

func TestMutableObjectStateReads(t *testing.T) {
	m := NewMutableObjectState("GameScore")
	m.Set("a", 1)
	m.Set("b", nil)

	if !m.IsNew() {
		t.Fatalf("expected builder without id to be new")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 fields, got %d", m.Len())
	}
	if !m.ContainsKey("b") || m.Get("b") != nil {
		t.Fatalf("expected nil field b to be present")
	}
	if m.Get("c") != nil {
		t.Fatalf("expected nil for missing key")
	}
	var keys []string
	for key := range m.All() {
		keys = append(keys, key)
	}
	if !reflect.DeepEqual(keys, m.Keys()) {
		t.Fatalf("All and Keys disagree: %v vs %v", keys, m.Keys())
	}
}

func TestMutableObjectStateZeroValue(t *testing.T) {
	var m MutableObjectState
	m.Set("a", 1)
	m.Set("b", 2)
	m.Remove("a")

	state := m.Freeze()
	if !state.IsNew() {
		t.Fatalf("expected zero-value builder to produce a new state")
	}
	if got := state.Keys(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("unexpected keys: %v", got)
	}

	var empty MutableObjectState
	if frozen := empty.Freeze(); frozen.Len() != 0 || frozen.ContainsKey("a") {
		t.Fatalf("expected empty state from untouched zero value")
	}
}
