package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribePublishSync(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received []Event
	unsubscribe := bus.Subscribe(ApprovalRequired, func(e Event) {
		received = append(received, e)
	})
	defer unsubscribe()

	bus.PublishSync(Event{Type: ApprovalRequired, Data: ApprovalRequiredData{ID: "a1", ToolName: "bash"}})
	bus.PublishSync(Event{Type: ToolFinished, Data: ToolFinishedData{ToolName: "bash", Success: true}})

	assert.Len(t, received, 1)
	data := received[0].Data.(ApprovalRequiredData)
	assert.Equal(t, "a1", data.ID)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsubscribe := bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.PublishSync(Event{Type: ToolStarted})
	bus.PublishSync(Event{Type: ToolEscalated})

	unsubscribe()
	bus.PublishSync(Event{Type: ToolFinished})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	done := make(chan Event, 1)
	bus.Subscribe(CacheHit, func(e Event) {
		done <- e
	})

	bus.Publish(Event{Type: CacheHit, Data: CacheHitData{ToolName: "read", Decision: "approve_session"}})

	select {
	case e := <-done:
		assert.Equal(t, CacheHit, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestClosedBusDropsEvents(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(ToolStarted, func(e Event) { called = true })

	assert.NoError(t, bus.Close())
	bus.PublishSync(Event{Type: ToolStarted})
	assert.False(t, called)
}
