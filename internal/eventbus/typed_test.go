package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	assert.Equal(t, "hello", <-ch)
	bus.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok, "unsubscribed channel must be closed")
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")
	bus.Publish(1)
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	assert.NotPanics(t, func() { bus.Unsubscribe(ch) })
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTyped[int](WithBuffer(2))
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	require.Len(t, ch, 2)
	assert.Equal(t, 0, <-ch)
	assert.Equal(t, 1, <-ch)
	assert.EqualValues(t, 3, bus.Dropped())
}

func TestBusCarriesAnyEvent(t *testing.T) {
	type ping struct{ n int }
	bus := New(WithBuffer(0))
	ch := bus.Subscribe()
	bus.Publish(ping{n: 3})
	bus.Publish("text")
	assert.Equal(t, ping{n: 3}, <-ch)
	assert.Equal(t, "text", <-ch)
	assert.Zero(t, bus.Dropped())
}
