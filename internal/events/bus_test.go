package events

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribersOfType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var opened, closed []*Event
	bus.Subscribe(SignalOpened, func(e *Event) { opened = append(opened, e) })
	bus.Subscribe(SignalClosed, func(e *Event) { closed = append(closed, e) })

	bus.Emit(SignalOpened, "ranking", map[string]interface{}{"symbol": "FOLD"})

	require.Len(t, opened, 1)
	assert.Empty(t, closed)
	assert.Equal(t, SignalOpened, opened[0].Type)
	assert.Equal(t, "ranking", opened[0].Module)
	assert.Equal(t, "FOLD", opened[0].Data["symbol"])
	assert.False(t, opened[0].Timestamp.IsZero())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var first, second int
	sub := bus.Subscribe(CycleCompleted, func(*Event) { first++ })
	bus.Subscribe(CycleCompleted, func(*Event) { second++ })
	assert.Equal(t, 2, bus.SubscriberCount(CycleCompleted))

	bus.Emit(CycleCompleted, "pipeline", nil)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Emit(CycleCompleted, "pipeline", nil)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, bus.SubscriberCount(CycleCompleted))
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var delivered bool
	bus.Subscribe(ErrorOccurred, func(*Event) { panic("handler bug") })
	bus.Subscribe(ErrorOccurred, func(*Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Emit(ErrorOccurred, "test", nil) })
	assert.True(t, delivered)
}

func TestBusConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(SignalOpened, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(SignalOpened, "test", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}

func TestManagerPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(SignalOpened, func(e *Event) { got = e })

	manager.Publish("ranking", &SignalOpenedData{SignalID: "s1", Symbol: "KHOD", EntryPrice: 250})

	require.NotNil(t, got)
	assert.Equal(t, SignalOpened, got.Type)
	assert.Equal(t, "ranking", got.Module)
	assert.Equal(t, "KHOD", got.Data["symbol"])
	assert.Equal(t, 250.0, got.Data["entry_price"])

	typed, ok := got.GetTypedData().(*SignalOpenedData)
	require.True(t, ok)
	assert.Equal(t, "s1", typed.SignalID)
}

func TestManagerPublishError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got []*Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = append(got, e) })

	manager.PublishError("pipeline", assert.AnError, map[string]interface{}{"source": "golden_key"})
	manager.PublishError("pipeline", nil, nil)

	require.Len(t, got, 1)
	assert.Equal(t, assert.AnError.Error(), got[0].Data["error"])
	assert.Equal(t, map[EventType]uint64{ErrorOccurred: 1}, manager.Published())
}

func TestManagerCountsWithoutSubscribers(t *testing.T) {
	manager := NewManager(NewBus(zerolog.Nop()), zerolog.Nop())

	manager.Publish("pipeline", &CycleCompletedData{Source: "golden_key"})
	manager.Publish("pipeline", &CycleCompletedData{Source: "buy_queue"})
	manager.Publish("lifecycle", &SignalClosedData{SignalID: "s1"})

	counts := manager.Published()
	assert.Equal(t, uint64(2), counts[CycleCompleted])
	assert.Equal(t, uint64(1), counts[SignalClosed])

	counts[CycleCompleted] = 99
	assert.Equal(t, uint64(2), manager.Published()[CycleCompleted])
}

func TestNilManagerIsNoop(t *testing.T) {
	var manager *Manager
	assert.NotPanics(t, func() {
		manager.Publish("x", &CycleCompletedData{})
	})
	assert.Nil(t, manager.Published())
}
