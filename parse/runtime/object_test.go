package runtime

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/parsekit/parsekit/parse/core"
)

func TestObjectSetKeepsOldSnapshots(t *testing.T) {
	obj := New("GameScore")
	require.True(t, obj.IsNew())
	require.NotEmpty(t, obj.LocalID())

	before := obj.State()
	require.NoError(t, obj.Set("score", 10))
	after := obj.State()

	require.False(t, before.ContainsKey("score"))
	require.Equal(t, 10, after.Get("score"))

	require.NoError(t, obj.Remove("score"))
	require.False(t, obj.State().ContainsKey("score"))
	require.True(t, after.ContainsKey("score"))
}

func TestObjectWithLocalID(t *testing.T) {
	obj := New("GameScore", WithLocalID("local-1"))
	require.Equal(t, "local-1", obj.LocalID())
}

func TestFromStateRequiresState(t *testing.T) {
	_, err := FromState(nil)
	require.ErrorIs(t, err, ErrNilState)

	state := core.NewObjectState("GameScore", core.WithObjectID("abc"))
	obj, err := FromState(state)
	require.NoError(t, err)
	require.Equal(t, "abc", obj.ObjectID())
	require.Same(t, state, obj.State())
}

func TestObjectMutateRequiresCallback(t *testing.T) {
	obj := New("GameScore")
	require.ErrorIs(t, obj.Mutate(nil), core.ErrInvalidArgument)
}

func TestObjectListeners(t *testing.T) {
	obj := New("GameScore")

	var events []core.PropertyChangedEvent
	obj.OnPropertyChanged(func(e core.PropertyChangedEvent) {
		// The new snapshot is already visible when events are delivered.
		require.True(t, obj.State().ContainsKey("score"))
		events = append(events, e)
	})

	var changes int
	obj.OnChange(func(prev, next core.ObjectState) {
		changes++
		require.False(t, prev.ContainsKey("score"))
		require.Equal(t, 1, next.Get("score"))
	})
	obj.OnChange(nil)
	obj.OnPropertyChanged(nil)

	require.NoError(t, obj.Mutate(func(m *core.MutableObjectState) {
		m.Set("score", 1)
		m.SetClassName("HighScore")
	}))

	require.Equal(t, 1, changes)
	require.Equal(t, []core.PropertyChangedEvent{
		{Property: core.PropertyItem, Key: "score"},
		{Property: core.PropertyClassName},
	}, events)
	require.Equal(t, "HighScore", obj.State().ClassName())
}

func TestObjectApplyServerResult(t *testing.T) {
	obj := New("GameScore")
	require.NoError(t, obj.Set("score", 1337))

	created := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	result := core.NewObjectState("GameScore",
		core.WithObjectID("xWMyZ4YEGZ"),
		core.WithCreatedAt(created),
		core.WithUpdatedAt(created),
		core.WithField("rank", 3),
	)
	require.NoError(t, obj.ApplyServerResult(result))

	state := obj.State()
	require.False(t, state.IsNew())
	require.Equal(t, "xWMyZ4YEGZ", state.ObjectID())
	got, ok := state.CreatedAt()
	require.True(t, ok)
	require.True(t, got.Equal(created))
	require.Equal(t, []string{"score", "rank"}, state.Keys())

	require.ErrorIs(t, obj.ApplyServerResult(nil), ErrNilState)
}

func TestObjectApplyServerResultRejectsDifferentID(t *testing.T) {
	zc, logs := observer.New(zapcore.WarnLevel)
	obj, err := FromState(coreState("first"), WithLogger(zap.New(zc)))
	require.NoError(t, err)

	before := obj.State()
	err = obj.ApplyServerResult(coreState("second"))
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrObjectIDImmutable))
	require.Same(t, before, obj.State(), "a rejected result must not commit")

	entries := logs.FilterMessage("rejected server result").All()
	require.Len(t, entries, 1)
	require.Equal(t, "second", entries[0].ContextMap()["objectId"])
}

func TestObjectApplyServerData(t *testing.T) {
	obj := New("GameScore")
	require.NoError(t, obj.ApplyServerData(map[string]any{
		"objectId":  "abc",
		"createdAt": "2024-03-01T10:00:00.000Z",
	}))
	require.Equal(t, "abc", obj.ObjectID())
	_, ok := obj.State().UpdatedAt()
	require.True(t, ok)

	require.Error(t, obj.ApplyServerData(map[string]any{"createdAt": 5}))
}

func TestObjectLogsCommits(t *testing.T) {
	zc, logs := observer.New(zapcore.DebugLevel)
	obj := New("GameScore", WithLogger(zap.New(zc)), WithLocalID("local-7"))

	require.NoError(t, obj.Set("a", 1))

	entries := logs.FilterMessage("committed object state").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "GameScore", ctx["class"])
	require.Equal(t, "local-7", ctx["localId"])
	require.EqualValues(t, 1, ctx["changes"])
}

func TestObjectConcurrentSets(t *testing.T) {
	obj := New("Counter")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = obj.Set("k"+strconv.Itoa(i), i)
			_ = obj.State().Len()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, obj.State().Len())
}

func coreState(id string) core.ObjectState {
	return core.NewObjectState("GameScore", core.WithObjectID(id))
}

func TestObjectMutateCallbackReadsObject(t *testing.T) {
	obj := New("GameScore")
	require.NoError(t, obj.Set("score", 1))

	done := make(chan error, 1)
	go func() {
		done <- obj.Mutate(func(m *core.MutableObjectState) {
			current := obj.State()
			m.Set("previous", current.Get("score"))
			m.Set("new", obj.IsNew())
			m.Set("id", obj.ObjectID())
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Mutate did not return while its callback read the object")
	}
	require.Equal(t, 1, obj.State().Get("previous"))
	require.Equal(t, true, obj.State().Get("new"))
}

func TestObjectListenerMayCommit(t *testing.T) {
	obj := New("GameScore")

	var seen []int
	obj.OnChange(func(prev, next core.ObjectState) {
		n, _ := next.Get("n").(int)
		seen = append(seen, n)
		if n < 3 {
			require.NoError(t, obj.Set("n", n+1))
		}
	})

	require.NoError(t, obj.Set("n", 1))
	require.Equal(t, []int{1, 2, 3}, seen)
	require.Equal(t, 3, obj.State().Get("n"))
}

func TestObjectChangesDeliveredInCommitOrder(t *testing.T) {
	obj := New("Counter")

	type delivery struct{ prev, next core.ObjectState }
	var (
		mu         sync.Mutex
		deliveries []delivery
	)
	obj.OnChange(func(prev, next core.ObjectState) {
		mu.Lock()
		deliveries = append(deliveries, delivery{prev: prev, next: next})
		mu.Unlock()
	})

	first := obj.State()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = obj.Set("k"+strconv.Itoa(i), i)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deliveries, 50)
	require.Same(t, first, deliveries[0].prev)
	for i := 1; i < len(deliveries); i++ {
		require.Same(t, deliveries[i-1].next, deliveries[i].prev, "delivery %d out of order", i)
	}
	require.Same(t, obj.State(), deliveries[len(deliveries)-1].next)
}
