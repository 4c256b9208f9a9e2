package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	first, cancelFirst := bus.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	bus.Emit(New(PluginLoaded, map[string]any{"plugin_id": "p-1"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, PluginLoaded, e.Type)
			assert.Equal(t, "p-1", e.Payload["plugin_id"])
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// Second emit must not block even though nobody is draining.
	done := make(chan struct{})
	go func() {
		bus.Emit(New(HookError, nil))
		bus.Emit(New(HookError, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}

	require.Len(t, ch, 1)
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Emitting after cancel must not panic.
	bus.Emit(New(PluginEnabled, nil))
}

func TestBusClose(t *testing.T) {
	bus := NewBus(nil)
	ch, _ := bus.Subscribe(1)

	require.NoError(t, bus.Close())
	_, open := <-ch
	assert.False(t, open)

	// Emit and double close are no-ops after Close.
	bus.Emit(New(PluginEnabled, nil))
	require.NoError(t, bus.Close())
}
